package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"timesheets/internal/domain/auth"
)

// Seed makes sure every role and permission the service checks exists and
// that each role holds its default grants. Existing grants are left alone.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}
	if err := ensureRoles(ctx, pool); err != nil {
		return err
	}
	return ensureRolePermissions(ctx, pool)
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range auth.DefaultPermissions {
		if _, err := pool.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm); err != nil {
			return fmt.Errorf("seed permission %s: %w", perm, err)
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool) error {
	for roleName := range auth.RolePermissions {
		if _, err := pool.Exec(ctx, "INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", roleName); err != nil {
			return fmt.Errorf("seed role %s: %w", roleName, err)
		}
	}
	return nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for roleName, perms := range auth.RolePermissions {
		for _, permKey := range perms {
			_, err := pool.Exec(ctx, `
    INSERT INTO role_permissions (role_name, permission_key)
    VALUES ($1, $2)
    ON CONFLICT DO NOTHING
  `, roleName, permKey)
			if err != nil {
				return fmt.Errorf("seed grant %s -> %s: %w", roleName, permKey, err)
			}
		}
	}
	return nil
}
