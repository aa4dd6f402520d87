package sqlite_test

import (
	"context"
	"testing"

	"github.com/corvid-labs/facegate/internal/auth/domain"
	"github.com/corvid-labs/facegate/internal/auth/store"
	"github.com/corvid-labs/facegate/internal/auth/store/drivers/sqlite"
	"github.com/corvid-labs/facegate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestUsersRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	secret := "JBSWY3DPEHPK3PXP"
	u := domain.User{
		ID:           idx.New().String(),
		Username:     "alice",
		Email:        "alice@example.com",
		Phone:        "+15550100",
		PasswordHash: "$argon2id$fake",
		TOTPSecret:   &secret,
	}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.Email, got.Email)
	require.NotNil(t, got.TOTPSecret)
	require.Equal(t, secret, *got.TOTPSecret)
	require.Nil(t, got.FaceTemplate)

	byID, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := domain.User{ID: idx.New().String(), Username: "bob", PasswordHash: "h"}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	dup := domain.User{ID: idx.New().String(), Username: "bob", PasswordHash: "h"}
	err := s.Users().CreateUser(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := domain.User{
		ID: idx.New().String(), Username: "bob",
		Email: "shared@example.com", PasswordHash: "h",
	}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	dup := domain.User{
		ID: idx.New().String(), Username: "mallory",
		Email: "shared@example.com", PasswordHash: "h",
	}
	err := s.Users().CreateUser(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Accounts without an email do not collide with each other.
	for _, name := range []string{"carol", "dan"} {
		require.NoError(t, s.Users().CreateUser(ctx, domain.User{
			ID: idx.New().String(), Username: name, PasswordHash: "h",
		}))
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Users().GetUserByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateFaceTemplate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := domain.User{ID: idx.New().String(), Username: "carol", PasswordHash: "h"}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().UpdateFaceTemplate(ctx, u.ID, `[0.1,0.2]`))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FaceTemplate)
	require.Equal(t, `[0.1,0.2]`, *got.FaceTemplate)
}

func TestRolesAndAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userRole := domain.Role{ID: idx.New().String(), Name: "user"}
	adminRole := domain.Role{ID: idx.New().String(), Name: "admin"}
	require.NoError(t, s.Roles().CreateRole(ctx, userRole))
	require.NoError(t, s.Roles().CreateRole(ctx, adminRole))

	err := s.Roles().CreateRole(ctx, domain.Role{ID: idx.New().String(), Name: "admin"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	u := domain.User{ID: idx.New().String(), Username: "dave", PasswordHash: "h"}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().AssignRole(ctx, u.ID, userRole.ID))
	require.NoError(t, s.Users().AssignRole(ctx, u.ID, adminRole.ID))
	// duplicate assignment is a no-op
	require.NoError(t, s.Users().AssignRole(ctx, u.ID, userRole.ID))

	names, err := s.Users().ListRoles(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "user"}, names)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		u := domain.User{ID: idx.New().String(), Username: "eve", PasswordHash: "h"}
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		return context.Canceled // force rollback
	})
	require.Error(t, err)

	_, err = s.Users().GetUserByUsername(ctx, "eve")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxCommits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, domain.User{
			ID: idx.New().String(), Username: "frank", PasswordHash: "h",
		})
	}))

	_, err := s.Users().GetUserByUsername(ctx, "frank")
	require.NoError(t, err)
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := domain.Role{ID: idx.New().String(), Name: "user"}
	require.NoError(t, s.Roles().CreateRole(ctx, role))

	u := domain.User{ID: idx.New().String(), Username: "grace", PasswordHash: "h"}
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.Users().AssignRole(ctx, u.ID, role.ID))

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))

	_, err := s.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	names, err := s.Users().ListRoles(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, names)
}
