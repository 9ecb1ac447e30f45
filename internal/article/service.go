package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hitoshi/holograma/internal/metrics"
	"github.com/hitoshi/holograma/internal/model"
	"github.com/hitoshi/holograma/internal/repository"
	"github.com/hitoshi/holograma/internal/security"
)

// CreateInput は記事作成の入力。
type CreateInput struct {
	Title     string
	Artist    string
	Content   string
	AuthorUID string
	Media     []model.MediaPosition
}

// UpdateInput は記事更新の入力。
// メディアの変更は Removed → Positions → Added の順に適用される。
type UpdateInput struct {
	ID        int64
	Title     string
	Artist    string
	Content   string
	Removed   []string
	Positions []model.MediaPosition
	Added     []model.MediaPosition
}

// Service は記事のサービス層。
// 表示位置はクライアントが決めたものをそのまま保存し、並べ替えや連番チェックは行わない。
type Service struct {
	repo      repository.ArticleRepository
	sanitizer security.ContentSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	repo repository.ArticleRepository,
	sanitizer security.ContentSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
	}
}

// ParseID は記事IDの文字列を解釈する。数値でない、または1未満の場合はAPIErrorを返す。
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, model.NewInvalidArticleIDError(raw)
	}
	return id, nil
}

// Create は記事を作成し、指定メディアを紐付ける。作成した記事IDを返す。
func (s *Service) Create(ctx context.Context, in CreateInput) (int64, error) {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.AuthorUID) == "" {
		missing = append(missing, "author_uid")
	}
	if len(missing) > 0 {
		return 0, model.NewMissingFieldsError(missing)
	}
	if err := validatePositions("media_ids", in.Media); err != nil {
		return 0, err
	}

	a := &model.Article{
		Title:     strings.TrimSpace(in.Title),
		Artist:    strings.TrimSpace(in.Artist),
		Content:   s.sanitizer.Sanitize(in.Content),
		AuthorUID: strings.TrimSpace(in.AuthorUID),
	}

	if err := s.repo.Create(ctx, a, in.Media); err != nil {
		if errors.Is(err, repository.ErrUnknownMedia) {
			return 0, unknownMediaError("media_ids")
		}
		return 0, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}

	s.metrics.RecordArticleWrite(metrics.ArticleOpCreate)
	s.logger.Info("記事を作成しました",
		slog.Int64("article_id", a.ID),
		slog.String("author_uid", a.AuthorUID),
		slog.Int("media_count", len(in.Media)),
	)
	return a.ID, nil
}

// Update は記事を更新し、メディアの紐付けを変更する。
func (s *Service) Update(ctx context.Context, in UpdateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return model.NewMissingFieldsError([]string{"title"})
	}
	for _, id := range in.Removed {
		if strings.TrimSpace(id) == "" {
			return model.NewInvalidMediaPayloadError("removed_media_ids", "空のメディアIDが含まれています")
		}
	}
	if err := validatePositions("media_positions", in.Positions); err != nil {
		return err
	}
	if err := validatePositions("media_ids", in.Added); err != nil {
		return err
	}

	a := &model.Article{
		ID:      in.ID,
		Title:   strings.TrimSpace(in.Title),
		Artist:  strings.TrimSpace(in.Artist),
		Content: s.sanitizer.Sanitize(in.Content),
	}
	change := repository.ArticleMediaChange{
		Removed:   in.Removed,
		Positions: in.Positions,
		Added:     in.Added,
	}

	if err := s.repo.Update(ctx, a, change); err != nil {
		switch {
		case errors.Is(err, repository.ErrArticleNotFound):
			return model.NewArticleNotFoundError(in.ID)
		case errors.Is(err, repository.ErrUnknownMedia):
			return unknownMediaError("media_ids")
		}
		return fmt.Errorf("記事の更新に失敗しました: %w", err)
	}

	s.metrics.RecordArticleWrite(metrics.ArticleOpUpdate)
	s.logger.Info("記事を更新しました",
		slog.Int64("article_id", a.ID),
		slog.Int("removed", len(in.Removed)),
		slog.Int("repositioned", len(in.Positions)),
		slog.Int("added", len(in.Added)),
	)
	return nil
}

// Get は記事を取得してViewに変換する。存在しない場合はAPIError（ARTICLE_NOT_FOUND）を返す。
func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewArticleNotFoundError(id)
	}
	v := Project(*a)
	return &v, nil
}

// List は記事を新しい順に取得してViewに変換する。limitが0以下の場合は全件を返す。
func (s *Service) List(ctx context.Context, limit int) ([]View, error) {
	articles, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}

	views := make([]View, 0, len(articles))
	for _, a := range articles {
		views = append(views, Project(a))
	}
	return views, nil
}

// validatePositions は {id, position} の指定を検証する。
// 同じIDの重複指定は後勝ちで上書きされるため許容する。
func validatePositions(field string, positions []model.MediaPosition) error {
	for _, p := range positions {
		if strings.TrimSpace(p.ID) == "" {
			return model.NewInvalidMediaPayloadError(field, "idが指定されていません")
		}
		if p.Position < 0 {
			return model.NewInvalidMediaPayloadError(field, "positionは0以上で指定してください")
		}
	}
	return nil
}

func unknownMediaError(field string) error {
	return model.NewInvalidMediaPayloadError(field, "存在しないメディアIDが含まれています")
}
