// Package cleanup は記事に紐付いていないメディアを定期的に削除するジョブを提供する。
// 記事作成前に放棄されたtempメディアと、更新で紐付けを外されたメディアが対象。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/holograma/internal/mediahost"
	"github.com/hitoshi/holograma/internal/metrics"
	"github.com/hitoshi/holograma/internal/model"
	"github.com/hitoshi/holograma/internal/repository"
)

const (
	defaultTTL            = 24 * time.Hour
	defaultBatchSize      = 100
	defaultMaxConcurrency = 4
	// maxBatchesPerRun は1回の実行で処理するバッチ数の上限。
	maxBatchesPerRun = 100
)

// OrphanSweepJob は孤立メディアの削除ジョブ。
// 行を先に削除し（削除時点でも未紐付けであることを再確認する）、その後ホストのオブジェクトを削除する。
// ホスト側の削除に失敗した場合はログに残し、オブジェクトは孤立したままになる。
type OrphanSweepJob struct {
	media   repository.MediaRepository
	host    mediahost.Host
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	TTL            time.Duration // この時間より古い未紐付けメディアを削除する（デフォルト: 24時間）
	BatchSize      int           // 1回のクエリで処理する件数（デフォルト: 100）
	MaxConcurrency int           // ホスト削除の最大並列数（デフォルト: 4）

	now func() time.Time
}

// NewOrphanSweepJob は新しいOrphanSweepJobを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewOrphanSweepJob(
	media repository.MediaRepository,
	host mediahost.Host,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *OrphanSweepJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &OrphanSweepJob{
		media:          media,
		host:           host,
		metrics:        collector,
		logger:         logger,
		TTL:            defaultTTL,
		BatchSize:      defaultBatchSize,
		MaxConcurrency: defaultMaxConcurrency,
		now:            time.Now,
	}
}

// Start はinterval間隔のティッカーでジョブを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *OrphanSweepJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("孤立メディアの削除ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("ttl", j.TTL),
	)

	j.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("孤立メディアの削除ジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *OrphanSweepJob) runAndLog(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("孤立メディアの削除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Run はTTLを超過した孤立メディアをバッチ単位で削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *OrphanSweepJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().Add(-j.TTL)

	var deletedCount, hostFailures int
	for batch := 0; batch < maxBatchesPerRun; batch++ {
		orphans, err := j.media.ListOrphans(ctx, cutoff, j.BatchSize)
		if err != nil {
			return fmt.Errorf("孤立メディアの取得に失敗: %w", err)
		}
		if len(orphans) == 0 {
			break
		}

		ids := make([]string, 0, len(orphans))
		for _, m := range orphans {
			ids = append(ids, m.ID)
		}

		deleted, err := j.media.DeleteOrphans(ctx, ids)
		if err != nil {
			return fmt.Errorf("孤立メディアの削除に失敗: %w", err)
		}

		deletedCount += len(deleted)
		hostFailures += j.deleteFromHost(ctx, deleted)
		j.metrics.RecordOrphansSwept(len(deleted))

		// 一覧取得後にすべて紐付けられた場合や最後のバッチの場合は終了する
		if len(deleted) == 0 || len(orphans) < j.BatchSize {
			break
		}
	}

	j.logger.Info("孤立メディアの削除ジョブが完了しました",
		slog.Int("deleted_count", deletedCount),
		slog.Int("host_delete_failures", hostFailures),
		slog.Duration("ttl", j.TTL),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// deleteFromHost は削除済みメディアのホストオブジェクトを並列に削除し、失敗件数を返す。
// semaphoreパターンで最大並列数を制御する。
func (j *OrphanSweepJob) deleteFromHost(ctx context.Context, deleted []*model.Media) int {
	maxConcurrency := j.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0

	for _, m := range deleted {
		wg.Add(1)
		sem <- struct{}{}

		go func(m *model.Media) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := j.host.Delete(ctx, m.PublicID); err != nil {
				j.metrics.RecordOrphanDeleteFailure()
				j.logger.Warn("ホストオブジェクトの削除に失敗しました",
					slog.String("media_id", m.ID),
					slog.String("public_id", m.PublicID),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}(m)
	}

	wg.Wait()
	return failures
}
