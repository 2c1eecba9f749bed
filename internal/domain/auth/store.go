package auth

import (
	"context"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) HasPermission(ctx context.Context, roleName, permission string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM role_permissions
      WHERE role_name = $1 AND permission_key = $2
    )
  `, roleName, permission).Scan(&exists)
	return exists, err
}

// StaticPermissions answers permission checks from RolePermissions without a
// database.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	return slices.Contains(RolePermissions[roleName], permission), nil
}
