package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/librarian/internal/audit"
	"github.com/openshelf/librarian/internal/auth"
	"github.com/openshelf/librarian/internal/entities"
)

// MembersController handles membership endpoints.
type MembersController struct {
	store   MemberStore
	auditor *audit.Service
}

func NewMembersController(store MemberStore, auditor *audit.Service) *MembersController {
	return &MembersController{
		store:   store,
		auditor: auditor,
	}
}

type memberRequest struct {
	Username         string `json:"username" binding:"required"`
	MembershipNumber string `json:"membership_number" binding:"required"`
	Email            string `json:"email" binding:"required"`
	Phone            string `json:"phone" binding:"required"`
	Address          string `json:"address"`
}

// RegisterMember enrolls a patron. The membership number must carry a
// recognized institutional prefix.
func (controller *MembersController) RegisterMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	member := &entities.Member{
		Username:         strings.TrimSpace(req.Username),
		MembershipNumber: strings.TrimSpace(req.MembershipNumber),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
	}

	if err := controller.store.RegisterMember(member); err != nil {
		respondStoreError(c, err, "register member")
		return
	}

	if controller.auditor != nil {
		controller.auditor.LogMembership(auth.GetAdminID(c), "register_member", member.ID,
			fmt.Sprintf("Registered %q (%s)", member.Username, member.MembershipNumber))
	}
	respondCreated(c, member)
}

// UpdateMember modifies a member's details.
func (controller *MembersController) UpdateMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	member := &entities.Member{
		ID:               id,
		Username:         strings.TrimSpace(req.Username),
		MembershipNumber: strings.TrimSpace(req.MembershipNumber),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
	}

	if err := controller.store.UpdateMember(member); err != nil {
		respondStoreError(c, err, "update member")
		return
	}

	updated, err := controller.store.GetMemberByID(id)
	if err != nil {
		respondStoreError(c, err, "update member")
		return
	}

	if controller.auditor != nil {
		controller.auditor.LogMembership(auth.GetAdminID(c), "update_member", id,
			fmt.Sprintf("Updated %q", updated.Username))
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteMember soft-deletes a member; their loan history is kept.
func (controller *MembersController) DeleteMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.SoftDeleteMember(id); err != nil {
		respondStoreError(c, err, "delete member")
		return
	}

	if controller.auditor != nil {
		controller.auditor.LogMembership(auth.GetAdminID(c), "delete_member", id, "Removed member")
	}
	respondSuccess(c, "member deleted")
}

// GetMember returns a single member.
func (controller *MembersController) GetMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	member, err := controller.store.GetMemberByID(id)
	if err != nil {
		respondStoreError(c, err, "get member")
		return
	}

	c.JSON(http.StatusOK, member)
}

// ListMembers returns enrolled members. An optional "q" query filters
// by username, membership number or email.
func (controller *MembersController) ListMembers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))

	var (
		members []entities.Member
		err     error
	)
	if query != "" {
		members, err = controller.store.SearchMembers(query)
	} else {
		members, err = controller.store.ListMembers()
	}
	if err != nil {
		respondStoreError(c, err, "list members")
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members, "count": len(members)})
}
