package auth

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/openshelf/librarian/internal/config"
	"github.com/openshelf/librarian/internal/database"
)

const testPassword = "a-long-enough-password"

func setupTestService(t *testing.T) (*Service, func()) {
	t.Helper()
	dbPath := "./test_" + t.Name() + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	cfg := config.Auth{
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 3,
		LockoutDuration:  time.Minute,
		TokenExpiry:      time.Hour,
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return NewService(db.DB, cfg), cleanup
}

func TestRegisterAdmin(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	t.Run("registers first admin", func(t *testing.T) {
		admin, err := service.RegisterAdmin("librarian", "admin@example.com", "5551234567", testPassword)
		require.NoError(t, err)
		assert.NotZero(t, admin.ID)
		assert.True(t, admin.IsActive)
		assert.NotEqual(t, testPassword, admin.PasswordHash)

		active, err := service.HasActiveAdmin()
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("blocked while an active admin exists", func(t *testing.T) {
		_, err := service.RegisterAdmin("second", "second@example.com", "", testPassword)
		assert.ErrorIs(t, err, ErrAdminExists)
	})

	t.Run("deactivation reopens registration", func(t *testing.T) {
		admin, err := service.Authenticate("librarian", testPassword)
		require.NoError(t, err)

		require.NoError(t, service.DeactivateAdmin(admin.ID, testPassword))

		active, err := service.HasActiveAdmin()
		require.NoError(t, err)
		assert.False(t, active)

		replacement, err := service.RegisterAdmin("successor", "successor@example.com", "", testPassword)
		require.NoError(t, err)
		assert.True(t, replacement.IsActive)
	})
}

func TestRegisterAdminValidation(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	cases := []struct {
		name                      string
		username, email, password string
		want                      error
	}{
		{"missing username", "", "a@example.com", testPassword, ErrUsernameRequired},
		{"missing email", "admin", "", testPassword, ErrEmailRequired},
		{"missing password", "admin", "a@example.com", "", ErrPasswordRequired},
		{"short username", "ab", "a@example.com", testPassword, ErrUsernameInvalid},
		{"username with spaces", "bad name", "a@example.com", testPassword, ErrUsernameInvalid},
		{"malformed email", "admin", "not-an-email", testPassword, ErrEmailInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.RegisterAdmin(tc.username, tc.email, "", tc.password)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("short password", func(t *testing.T) {
		_, err := service.RegisterAdmin("admin", "a@example.com", "", "short")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})
}

func TestAuthenticate(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	admin, err := service.RegisterAdmin("librarian", "admin@example.com", "", testPassword)
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		got, err := service.Authenticate("librarian", testPassword)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)
		assert.NotNil(t, got.LastLoginAt)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.Authenticate("librarian", "wrong-password-here")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := service.Authenticate("nobody", testPassword)
		assert.ErrorIs(t, err, ErrAdminNotFound)
	})

	t.Run("locks after repeated failures", func(t *testing.T) {
		// MaxLoginAttempts is 3; one failure already recorded above
		for i := 0; i < 2; i++ {
			_, err := service.Authenticate("librarian", "wrong-password-here")
			assert.ErrorIs(t, err, ErrInvalidPassword)
		}

		// Even the right password is refused while locked
		_, err := service.Authenticate("librarian", testPassword)
		assert.ErrorIs(t, err, ErrAccountLocked)
	})
}

func TestChangePassword(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	admin, err := service.RegisterAdmin("librarian", "admin@example.com", "", testPassword)
	require.NoError(t, err)

	t.Run("rejects wrong old password", func(t *testing.T) {
		err := service.ChangePassword(admin.ID, "wrong-old-password", "replacement-password")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("rejects short new password", func(t *testing.T) {
		err := service.ChangePassword(admin.ID, testPassword, "short")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("changes password", func(t *testing.T) {
		require.NoError(t, service.ChangePassword(admin.ID, testPassword, "replacement-password"))

		_, err := service.Authenticate("librarian", testPassword)
		assert.ErrorIs(t, err, ErrInvalidPassword)

		_, err = service.Authenticate("librarian", "replacement-password")
		assert.NoError(t, err)
	})

	t.Run("unknown admin", func(t *testing.T) {
		err := service.ChangePassword(9999, testPassword, "replacement-password")
		assert.ErrorIs(t, err, ErrAdminNotFound)
	})
}

func TestAPITokens(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	admin, err := service.RegisterAdmin("librarian", "admin@example.com", "", testPassword)
	require.NoError(t, err)

	t.Run("generate and validate", func(t *testing.T) {
		token, err := service.GenerateToken(admin.ID)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		got, err := service.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)

		// Only the hash is stored
		loaded, err := service.GetAdminByID(admin.ID)
		require.NoError(t, err)
		assert.NotEqual(t, token, loaded.TokenHash)
		assert.Equal(t, HashToken(token), loaded.TokenHash)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		_, err := service.ValidateToken("deadbeef")
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = service.ValidateToken("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("regeneration invalidates the old token", func(t *testing.T) {
		first, err := service.GenerateToken(admin.ID)
		require.NoError(t, err)
		second, err := service.GenerateToken(admin.ID)
		require.NoError(t, err)

		_, err = service.ValidateToken(first)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = service.ValidateToken(second)
		assert.NoError(t, err)
	})

	t.Run("revocation", func(t *testing.T) {
		token, err := service.GenerateToken(admin.ID)
		require.NoError(t, err)
		require.NoError(t, service.RevokeToken(admin.ID))

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown admin", func(t *testing.T) {
		_, err := service.GenerateToken(9999)
		assert.ErrorIs(t, err, ErrAdminNotFound)
	})

	t.Run("deactivation revokes the token", func(t *testing.T) {
		token, err := service.GenerateToken(admin.ID)
		require.NoError(t, err)
		require.NoError(t, service.DeactivateAdmin(admin.ID, testPassword))

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
