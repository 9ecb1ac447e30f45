package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/holograma/internal/model"
	"github.com/lib/pq"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// FindByID は指定IDの記事を表示位置順のメディア付きで取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id int64) (*model.ArticleWithMedia, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, artist, content, author_uid, created_at, updated_at
		 FROM article WHERE id = $1`,
		id,
	)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by ID: %w", err)
	}

	linked, err := r.listLinkedMedia(ctx, []int64{id})
	if err != nil {
		return nil, err
	}

	return &model.ArticleWithMedia{Article: *article, Media: linked[id]}, nil
}

// List はcreated_at降順で記事をメディア付きで取得する。limitが0以下の場合は全件を返す。
// メディアは記事ごとではなく1回のクエリでまとめて取得する。
func (r *PostgresArticleRepo) List(ctx context.Context, limit int) ([]model.ArticleWithMedia, error) {
	query := `SELECT id, title, artist, content, author_uid, created_at, updated_at
		 FROM article ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []model.ArticleWithMedia
	var ids []int64
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, model.ArticleWithMedia{Article: *article})
		ids = append(ids, article.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	if len(ids) == 0 {
		return []model.ArticleWithMedia{}, nil
	}

	linked, err := r.listLinkedMedia(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		articles[i].Media = linked[articles[i].ID]
	}

	return articles, nil
}

// listLinkedMedia は記事IDごとに表示位置順のメディアを返す。
// 同じ表示位置のメディアはcreated_at順に並べて読み取り結果を安定させる。
func (r *PostgresArticleRepo) listLinkedMedia(ctx context.Context, articleIDs []int64) (map[int64][]model.LinkedMedia, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mediaColumns+`, am.article_id, am.position
		 FROM article_media am
		 JOIN media m ON m.id = am.media_id
		 WHERE am.article_id = ANY($1)
		 ORDER BY am.article_id, am.position ASC, m.created_at ASC, m.id ASC`,
		pq.Array(articleIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list article media: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]model.LinkedMedia, len(articleIDs))
	for rows.Next() {
		var lm model.LinkedMedia
		m, err := scanMedia(rows, &lm.ArticleID, &lm.Position)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article media: %w", err)
		}
		lm.Media = *m
		result[lm.ArticleID] = append(result[lm.ArticleID], lm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate article media: %w", err)
	}

	return result, nil
}

// Create は記事を作成し、指定メディアを紐付けてready状態にする。
// article.ID、CreatedAt、UpdatedAtはDBが採番した値で上書きされる。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article, media []model.MediaPosition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO article (title, artist, content, author_uid)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		article.Title, nullString(article.Artist), article.Content, article.AuthorUID,
	).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}

	if err := linkMedia(ctx, tx, article.ID, media); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update は記事を更新し、紐付け解除・表示位置更新・新規紐付けの順にメディアを変更する。
func (r *PostgresArticleRepo) Update(ctx context.Context, article *model.Article, change ArticleMediaChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`UPDATE article SET title = $2, artist = $3, content = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING author_uid, created_at, updated_at`,
		article.ID, article.Title, nullString(article.Artist), article.Content,
	).Scan(&article.AuthorUID, &article.CreatedAt, &article.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrArticleNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}

	if len(change.Removed) > 0 {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM article_media WHERE article_id = $1 AND media_id = ANY($2::uuid[])`,
			article.ID, pq.Array(change.Removed),
		)
		if err != nil {
			if isUnknownMediaError(err) {
				return fmt.Errorf("%w: %v", ErrUnknownMedia, err)
			}
			return fmt.Errorf("failed to unlink media: %w", err)
		}
	}

	for _, p := range change.Positions {
		_, err := tx.ExecContext(ctx,
			`UPDATE article_media SET position = $3 WHERE article_id = $1 AND media_id = $2`,
			article.ID, p.ID, p.Position,
		)
		if err != nil {
			if isUnknownMediaError(err) {
				return fmt.Errorf("%w: %v", ErrUnknownMedia, err)
			}
			return fmt.Errorf("failed to update media position: %w", err)
		}
	}

	if err := linkMedia(ctx, tx, article.ID, change.Added); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// linkMedia はメディアを記事に紐付け、temp状態のメディアをreadyにしてsession_idをクリアする。
// 同じメディアが再度指定された場合は表示位置を上書きする。
func linkMedia(ctx context.Context, tx *sql.Tx, articleID int64, media []model.MediaPosition) error {
	if len(media) == 0 {
		return nil
	}

	ids := make([]string, 0, len(media))
	for _, p := range media {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO article_media (article_id, media_id, position)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (article_id, media_id) DO UPDATE SET position = EXCLUDED.position`,
			articleID, p.ID, p.Position,
		)
		if err != nil {
			if isUnknownMediaError(err) {
				return fmt.Errorf("%w: %s", ErrUnknownMedia, p.ID)
			}
			return fmt.Errorf("failed to link media: %w", err)
		}
		ids = append(ids, p.ID)
	}

	_, err := tx.ExecContext(ctx,
		`UPDATE media SET status = 'ready', session_id = NULL WHERE id = ANY($1::uuid[])`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to mark media ready: %w", err)
	}
	return nil
}

func scanArticle(s rowScanner) (*model.Article, error) {
	a := &model.Article{}
	var artist sql.NullString
	if err := s.Scan(&a.ID, &a.Title, &artist, &a.Content, &a.AuthorUID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Artist = nullStringValue(artist)
	return a, nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
