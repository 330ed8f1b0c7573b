package members

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/librarian/internal/database"
	"github.com/openshelf/librarian/internal/entities"
	"github.com/openshelf/librarian/internal/liberr"
)

func setupTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	dbPath := "./test_" + t.Name() + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return NewRepository(db.DB, []string{"PA", "PSS"}), cleanup
}

func validMember() *entities.Member {
	return &entities.Member{
		Username:         "asha",
		MembershipNumber: "PA1001",
		Email:            "asha@example.com",
		Phone:            "5551234567",
		Address:          "42 Library Lane",
	}
}

func TestRegisterMember(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	t.Run("registers active member", func(t *testing.T) {
		member := validMember()
		require.NoError(t, repo.RegisterMember(member))
		assert.NotZero(t, member.ID)
		assert.True(t, member.IsActive)
		assert.False(t, member.ActivatedAt.IsZero())
	})

	t.Run("rejects duplicate membership number", func(t *testing.T) {
		member := validMember()
		member.Username = "other"
		member.Email = "other@example.com"
		err := repo.RegisterMember(member)
		assert.ErrorIs(t, err, liberr.ErrConflict)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		member := validMember()
		member.Username = "other"
		member.MembershipNumber = "PA1002"
		err := repo.RegisterMember(member)
		assert.ErrorIs(t, err, liberr.ErrConflict)
	})

	t.Run("rejects unrecognized prefix", func(t *testing.T) {
		member := validMember()
		member.MembershipNumber = "XX1003"
		member.Email = "xx@example.com"
		err := repo.RegisterMember(member)
		assert.ErrorIs(t, err, liberr.ErrValidation)
	})

	t.Run("rejects bare prefix with no number", func(t *testing.T) {
		member := validMember()
		member.MembershipNumber = "PA"
		member.Email = "pa@example.com"
		err := repo.RegisterMember(member)
		assert.ErrorIs(t, err, liberr.ErrValidation)
	})

	t.Run("accepts PSS prefix", func(t *testing.T) {
		member := validMember()
		member.Username = "staff"
		member.MembershipNumber = "PSS77"
		member.Email = "staff@example.com"
		assert.NoError(t, repo.RegisterMember(member))
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		member := validMember()
		member.MembershipNumber = "PA1004"
		member.Email = "not-an-email"
		err := repo.RegisterMember(member)
		assert.ErrorIs(t, err, liberr.ErrValidation)
	})

	t.Run("rejects non-digit phone", func(t *testing.T) {
		member := validMember()
		member.MembershipNumber = "PA1005"
		member.Email = "phone@example.com"
		member.Phone = "555-123-4567"
		err := repo.RegisterMember(member)
		assert.ErrorIs(t, err, liberr.ErrValidation)
	})

	t.Run("rejects missing address", func(t *testing.T) {
		member := validMember()
		member.MembershipNumber = "PA1006"
		member.Email = "addr@example.com"
		member.Address = ""
		err := repo.RegisterMember(member)
		assert.ErrorIs(t, err, liberr.ErrValidation)
	})
}

func TestUpdateMember(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	member := validMember()
	require.NoError(t, repo.RegisterMember(member))

	t.Run("updates contact details", func(t *testing.T) {
		member.Phone = "5559876543"
		member.Address = "7 New Street"
		member.IsActive = true
		require.NoError(t, repo.UpdateMember(member))

		loaded, err := repo.GetMemberByID(member.ID)
		require.NoError(t, err)
		assert.Equal(t, "5559876543", loaded.Phone)
		assert.Equal(t, "7 New Street", loaded.Address)
	})

	t.Run("rejects number collision with another member", func(t *testing.T) {
		other := validMember()
		other.Username = "talia"
		other.MembershipNumber = "PA2000"
		other.Email = "talia@example.com"
		require.NoError(t, repo.RegisterMember(other))

		other.MembershipNumber = member.MembershipNumber
		err := repo.UpdateMember(other)
		assert.ErrorIs(t, err, liberr.ErrConflict)
	})

	t.Run("unknown member", func(t *testing.T) {
		ghost := validMember()
		ghost.ID = 9999
		ghost.MembershipNumber = "PA3000"
		ghost.Email = "ghost@example.com"
		err := repo.UpdateMember(ghost)
		assert.ErrorIs(t, err, liberr.ErrNotFound)
	})
}

func TestSoftDeleteMember(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	member := validMember()
	require.NoError(t, repo.RegisterMember(member))

	require.NoError(t, repo.SoftDeleteMember(member.ID))

	_, err := repo.GetMemberByID(member.ID)
	assert.ErrorIs(t, err, liberr.ErrNotFound)

	_, err = repo.GetMemberByUsername(member.Username)
	assert.ErrorIs(t, err, liberr.ErrNotFound)

	listed, err := repo.ListMembers()
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Second delete reports not found
	assert.ErrorIs(t, repo.SoftDeleteMember(member.ID), liberr.ErrNotFound)
}

func TestSearchAndCount(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	first := validMember()
	require.NoError(t, repo.RegisterMember(first))

	second := validMember()
	second.Username = "benedict"
	second.MembershipNumber = "PSS42"
	second.Email = "ben@example.com"
	require.NoError(t, repo.RegisterMember(second))

	found, err := repo.SearchMembers("bene")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "benedict", found[0].Username)

	found, err = repo.SearchMembers("PSS")
	require.NoError(t, err)
	require.Len(t, found, 1)

	count, err := repo.CountActiveMembers()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, repo.SoftDeleteMember(second.ID))
	count, err = repo.CountActiveMembers()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
