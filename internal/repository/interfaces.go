// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/holograma/internal/model"
)

// ErrArticleNotFound は更新対象の記事が存在しない場合に返される。
var ErrArticleNotFound = errors.New("article not found")

// ErrUnknownMedia は存在しない、または形式が不正なメディアIDが指定された場合に返される。
var ErrUnknownMedia = errors.New("unknown media id")

// ArticleMediaChange は記事更新時のメディア紐付けの変更内容を表す。
// 適用順は Removed → Positions → Added。
type ArticleMediaChange struct {
	Removed   []string              // 紐付けを解除するメディアID
	Positions []model.MediaPosition // 既存の紐付けの表示位置
	Added     []model.MediaPosition // 新たに紐付けるメディア
}

// ArticleRepository は記事と記事メディア紐付けの永続化インターフェース。
type ArticleRepository interface {
	// FindByID は指定IDの記事を表示位置順のメディア付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.ArticleWithMedia, error)

	// List はcreated_at降順で記事をメディア付きで取得する。limitが0以下の場合は全件を返す。
	List(ctx context.Context, limit int) ([]model.ArticleWithMedia, error)

	// Create は記事を作成し、指定メディアを紐付けてready状態にする。
	// すべての処理を同一トランザクションで行う。
	Create(ctx context.Context, article *model.Article, media []model.MediaPosition) error

	// Update は記事のタイトル・アーティスト・本文を更新し、メディアの紐付けを変更する。
	// 記事が存在しない場合はErrArticleNotFoundを返す。
	Update(ctx context.Context, article *model.Article, change ArticleMediaChange) error
}

// MediaRepository はメディアの永続化インターフェース。
type MediaRepository interface {
	// Create はメディアを作成し、生成されたIDとcreated_atを設定する。
	Create(ctx context.Context, media *model.Media) error

	// ListOrphans はcreated_atがolderThanより古く、どの記事にも紐付いていないメディアを取得する。
	ListOrphans(ctx context.Context, olderThan time.Time, limit int) ([]*model.Media, error)

	// DeleteOrphans は指定IDのうち、現在も紐付けのないメディアだけを削除し、削除したメディアを返す。
	DeleteOrphans(ctx context.Context, ids []string) ([]*model.Media, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Upsert はUIDをキーにユーザーを作成または更新し、保存後の値を返す。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)
}
