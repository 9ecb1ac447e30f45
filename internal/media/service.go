package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/holograma/internal/mediahost"
	"github.com/hitoshi/holograma/internal/metrics"
	"github.com/hitoshi/holograma/internal/model"
	"github.com/hitoshi/holograma/internal/repository"
)

// TempFolder はアップロード直後のメディアを保存するホスト上のフォルダ。
const TempFolder = "articles/temp"

// compensateTimeout はmediaテーブルへの保存失敗時にホストオブジェクトを削除する際のタイムアウト。
const compensateTimeout = 10 * time.Second

// UploadInput はメディアアップロードの入力。
type UploadInput struct {
	FileName  string
	Body      io.Reader
	Size      int64 // 不明な場合は-1
	SessionID string
}

// Service はメディアホストへのアップロードとtempメディアの登録を行う。
type Service struct {
	host    mediahost.Host
	repo    repository.MediaRepository
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(host mediahost.Host, repo repository.MediaRepository, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		host:    host,
		repo:    repo,
		metrics: collector,
		logger:  logger,
	}
}

// Upload はファイルをホストのtempフォルダへ送り、種別を判定してtemp状態のメディアを登録する。
// mediaテーブルへの保存に失敗した場合はホストのオブジェクトを削除してからエラーを返す。
func (s *Service) Upload(ctx context.Context, in UploadInput) (*model.Media, error) {
	if in.Body == nil || strings.TrimSpace(in.SessionID) == "" {
		return nil, model.NewMissingUploadDataError()
	}

	result, err := s.host.Upload(ctx, TempFolder, in.FileName, in.Body, in.Size)
	if err != nil {
		s.metrics.RecordUploadFailure(metrics.UploadStageHost)
		s.logger.Error("メディアホストへのアップロードに失敗しました",
			slog.String("file_name", in.FileName),
			slog.String("session_id", in.SessionID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewMediaUploadFailedError()
	}

	m := &model.Media{
		URL:       result.URL,
		Kind:      Classify(in.FileName, result.ResourceType),
		Provider:  s.host.Provider(),
		PublicID:  result.PublicID,
		Width:     result.Width,
		Height:    result.Height,
		Duration:  result.Duration,
		Status:    model.MediaStatusTemp,
		SessionID: in.SessionID,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		s.metrics.RecordUploadFailure(metrics.UploadStageStore)
		s.compensate(ctx, result.PublicID)
		return nil, fmt.Errorf("メディアの保存に失敗しました: %w", err)
	}

	s.metrics.RecordUpload(string(m.Kind))
	s.logger.Info("メディアをアップロードしました",
		slog.String("media_id", m.ID),
		slog.String("kind", string(m.Kind)),
		slog.String("session_id", m.SessionID),
	)
	return m, nil
}

// compensate はDB保存に失敗したメディアのホストオブジェクトを削除する。
// 削除にも失敗した場合はログに残し、オブジェクトは孤立したままになる。
func (s *Service) compensate(ctx context.Context, publicID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	if err := s.host.Delete(ctx, publicID); err != nil {
		s.logger.Error("ホストオブジェクトの削除に失敗しました",
			slog.String("public_id", publicID),
			slog.String("error", err.Error()),
		)
	}
}
