// Package role は既定ロールのシード処理を提供する。
package role

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
)

// Creator はロールの挿入インターフェース。
type Creator interface {
	CreateIfNotExists(ctx context.Context, role *model.Role) (bool, error)
}

// Seeder は既定ロールを冪等に投入する。
type Seeder struct {
	repo  Creator
	roles []permission.RoleDefinition
}

// NewSeeder はpermission.DefaultRolesを投入するSeederを生成する。
func NewSeeder(repo Creator) *Seeder {
	return &Seeder{repo: repo, roles: permission.DefaultRoles()}
}

// Seed は存在しないロールのみを挿入し、挿入した件数を返す。
// 既存ロールの権限は上書きしない。
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	inserted := 0
	now := time.Now()

	for _, def := range s.roles {
		created, err := s.repo.CreateIfNotExists(ctx, &model.Role{
			ID:          def.ID,
			Name:        def.Name,
			Permissions: def.Permissions,
			CreatedAt:   now,
		})
		if err != nil {
			return inserted, fmt.Errorf("failed to seed role %s: %w", def.ID, err)
		}

		if created {
			inserted++
			slog.Info("role seeded",
				slog.String("role_id", def.ID),
				slog.Int("permissions", len(def.Permissions)),
			)
		} else {
			slog.Debug("role already exists", slog.String("role_id", def.ID))
		}
	}

	return inserted, nil
}
