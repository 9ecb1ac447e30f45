package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/holograma/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Upsert はUIDをキーにユーザーを作成または更新し、保存後の値を返す。
// created_atは初回作成時の値を維持する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	saved := &model.User{}
	var displayName sql.NullString
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (uid, email, display_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (uid) DO UPDATE
		 SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, updated_at = now()
		 RETURNING uid, email, display_name, created_at, updated_at`,
		user.UID, user.Email, nullString(user.DisplayName),
	).Scan(&saved.UID, &saved.Email, &displayName, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	saved.DisplayName = nullStringValue(displayName)
	return saved, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
