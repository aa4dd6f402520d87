package service

import (
	"context"
	"errors"

	"github.com/corvid-labs/facegate/internal/auth/domain"
	"github.com/corvid-labs/facegate/internal/auth/store"
	"github.com/corvid-labs/facegate/pkg/idx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

// SeedRoles creates the default roles if they are missing. Safe to run on
// every startup.
func SeedRoles(ctx context.Context, s store.Store) error {
	log := slogx.FromContext(ctx)

	return s.WithTx(ctx, func(tx store.Tx) error {
		for _, role := range domain.DefaultRoles() {
			_, err := tx.Roles().GetRoleByName(ctx, role.Name)
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			role.ID = idx.New().String()
			if err := tx.Roles().CreateRole(ctx, role); err != nil {
				return err
			}
			log.Info("seeded role", "role", role.Name)
		}
		return nil
	})
}

// PromoteToAdmin grants the admin role to a user. Used by operational
// tooling; there is no HTTP surface for it.
func PromoteToAdmin(ctx context.Context, s store.Store, userID string) error {
	role, err := s.Roles().GetRoleByName(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	return s.Users().AssignRole(ctx, userID, role.ID)
}
