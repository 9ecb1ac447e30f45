package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/holograma/internal/model"
	"github.com/lib/pq"
)

// PostgresMediaRepo はPostgreSQLを使用したメディアリポジトリ。
type PostgresMediaRepo struct {
	db *sql.DB
}

// NewPostgresMediaRepo はPostgresMediaRepoを生成する。
func NewPostgresMediaRepo(db *sql.DB) *PostgresMediaRepo {
	return &PostgresMediaRepo{db: db}
}

// Create はメディアを作成し、生成されたIDとcreated_atを設定する。
func (r *PostgresMediaRepo) Create(ctx context.Context, media *model.Media) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO media (url, kind, provider, public_id, width, height, duration, status, session_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		media.URL, string(media.Kind), media.Provider, media.PublicID,
		intPtrValue(media.Width), intPtrValue(media.Height), floatPtrValue(media.Duration),
		string(media.Status), nullString(media.SessionID),
	).Scan(&media.ID, &media.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert media: %w", err)
	}
	return nil
}

// ListOrphans はcreated_atがolderThanより古く、どの記事にも紐付いていないメディアを古い順に取得する。
// 記事作成前のtempメディアと、更新で紐付けを外されたreadyメディアの両方が対象になる。
func (r *PostgresMediaRepo) ListOrphans(ctx context.Context, olderThan time.Time, limit int) ([]*model.Media, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mediaColumns+`
		 FROM media m
		 WHERE m.created_at < $1
		   AND NOT EXISTS (SELECT 1 FROM article_media am WHERE am.media_id = m.id)
		 ORDER BY m.created_at ASC
		 LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan media: %w", err)
	}
	defer rows.Close()

	var media []*model.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orphan media: %w", err)
	}
	return media, nil
}

// DeleteOrphans は指定IDのうち、現在も紐付けのないメディアだけを削除し、削除したメディアを返す。
// 一覧取得後に記事へ紐付けられたメディアは削除しない。
func (r *PostgresMediaRepo) DeleteOrphans(ctx context.Context, ids []string) ([]*model.Media, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM media m
		 WHERE m.id = ANY($1::uuid[])
		   AND NOT EXISTS (SELECT 1 FROM article_media am WHERE am.media_id = m.id)
		 RETURNING `+mediaColumns,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete orphan media: %w", err)
	}
	defer rows.Close()

	var deleted []*model.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deleted media: %w", err)
		}
		deleted = append(deleted, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted media: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ MediaRepository = (*PostgresMediaRepo)(nil)
