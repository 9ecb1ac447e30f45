// Package editor は記事編集フォームで使うメディアの並び順管理を提供する。
//
// Sessionは1回の編集中に、既存メディア・追加中のファイル・削除予定のID・
// 全種別共通の表示順をまとめて保持し、送信用のフォーム値を組み立てる。
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hitoshi/holograma/internal/model"
)

// ErrUploadsPending はアップロード中のファイルが残っている状態で送信しようとした場合に返される。
var ErrUploadsPending = errors.New("uploads are still in progress")

// ErrUnknownMedia は表示順に存在しないIDが指定された場合に返される。
var ErrUnknownMedia = errors.New("media is not in the order")

// UploadStatus は追加ファイルのアップロード状態を表す。
type UploadStatus string

const (
	// StatusUploading はアップロード中を表す。
	StatusUploading UploadStatus = "uploading"
	// StatusReady はアップロードが完了し、サーバーのIDに置き換わった状態を表す。
	StatusReady UploadStatus = "ready"
	// StatusError はアップロードに失敗した状態を表す。送信対象から除外される。
	StatusError UploadStatus = "error"
)

// ExistingMedia は編集開始時点で記事に紐付いているメディア。
type ExistingMedia struct {
	ID       string
	URL      string
	Kind     model.MediaKind
	Position int
}

// StagedMedia は編集中に追加したファイル。
// アップロード中のIDは一時IDで、完了するとサーバーが採番したIDに置き換わる。
type StagedMedia struct {
	ID       string
	FileName string
	URL      string
	Kind     model.MediaKind
	Status   UploadStatus
	Err      error

	release *sync.Once
	onFree  func()
}

// State はSessionのある時点のコピー。
type State struct {
	Existing []ExistingMedia
	Added    []StagedMedia
	Removed  []string
	Order    []string
}

// Session は1回の記事編集におけるメディアの状態を保持する。並行利用に安全。
type Session struct {
	uploader  Uploader
	logger    *slog.Logger
	sessionID string
	newID     func() string

	mu       sync.Mutex
	existing []ExistingMedia
	added    []StagedMedia
	removed  []string
	order    []string

	wg sync.WaitGroup
}

// NewSession は既存メディアを表示順のまま取り込んでSessionを生成する。
// アップロードにはセッションごとに生成したsession_idを使う。
func NewSession(uploader Uploader, initial []ExistingMedia, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		uploader:  uploader,
		logger:    logger,
		sessionID: uuid.NewString(),
		newID:     uuid.NewString,
		existing:  append([]ExistingMedia(nil), initial...),
		order:     make([]string, 0, len(initial)),
	}
	for _, m := range initial {
		s.order = append(s.order, m.ID)
	}
	return s
}

// SessionID はアップロード時に送るsession_idを返す。
func (s *Session) SessionID() string {
	return s.sessionID
}

// AddFiles はファイルごとに一時IDのプレースホルダーを追加し、並行してアップロードを開始する。
// 完了を待たずに一時IDを追加順に返す。完了を待つにはWaitを呼ぶ。
func (s *Session) AddFiles(ctx context.Context, files []File) []string {
	ids := make([]string, 0, len(files))

	s.mu.Lock()
	for _, f := range files {
		tempID := s.newID()
		s.added = append(s.added, StagedMedia{
			ID:       tempID,
			FileName: f.Name,
			URL:      f.PreviewURL,
			Kind:     KindFromContentType(f.ContentType),
			Status:   StatusUploading,
			release:  &sync.Once{},
			onFree:   f.Release,
		})
		s.order = append(s.order, tempID)
		ids = append(ids, tempID)
	}
	s.mu.Unlock()

	for i, f := range files {
		s.wg.Add(1)
		go func(tempID string, f File) {
			defer s.wg.Done()
			uploaded, err := s.uploader.Upload(ctx, s.sessionID, f)
			s.complete(tempID, uploaded, err)
		}(ids[i], f)
	}

	return ids
}

// complete はアップロード結果を一時IDのプレースホルダーにだけ反映する。
// 完了前にRemoveAddedで取り除かれていた場合は何もしない。
func (s *Session) complete(tempID string, uploaded *UploadedMedia, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfAdded(tempID)
	if i < 0 {
		if err == nil && uploaded != nil {
			s.logger.Info("removed media finished uploading, leaving it to the orphan sweep",
				slog.String("media_id", uploaded.ID),
			)
		}
		return
	}

	item := &s.added[i]
	if err == nil && uploaded == nil {
		err = errors.New("uploader returned no media")
	}
	if err != nil {
		item.Status = StatusError
		item.Err = err
		s.logger.Warn("media upload failed",
			slog.String("file_name", item.FileName),
			slog.String("error", err.Error()),
		)
		return
	}

	item.ID = uploaded.ID
	item.URL = uploaded.URL
	if uploaded.Kind != "" {
		item.Kind = uploaded.Kind
	}
	item.Status = StatusReady
	for j, id := range s.order {
		if id == tempID {
			s.order[j] = uploaded.ID
		}
	}
	item.free()
}

// RemoveExisting は既存メディアを表示順から外し、紐付け解除の対象に加える。
func (s *Session) RemoveExisting(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.existing {
		if m.ID == id {
			s.existing = append(s.existing[:i], s.existing[i+1:]...)
			s.removed = append(s.removed, id)
			s.order = removeID(s.order, id)
			return true
		}
	}
	return false
}

// RemoveAdded は追加したファイルを表示順から外し、ローカルの参照を解放する。
// アップロード中のファイルは中断せず、完了結果を無視する。
func (s *Session) RemoveAdded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfAdded(id)
	if i < 0 {
		return false
	}
	item := s.added[i]
	s.added = append(s.added[:i], s.added[i+1:]...)
	s.order = removeID(s.order, id)
	item.free()
	return true
}

// Move は表示順の中でidをindexの位置へ移動する。
func (s *Session) Move(id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := -1
	for i, v := range s.order {
		if v == id {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMedia, id)
	}
	if index < 0 || index >= len(s.order) {
		return fmt.Errorf("index %d is out of range [0, %d)", index, len(s.order))
	}

	s.order = append(s.order[:from], s.order[from+1:]...)
	s.order = append(s.order[:index], append([]string{id}, s.order[index:]...)...)
	return nil
}

// State は現在の状態のコピーを返す。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Existing: append([]ExistingMedia(nil), s.existing...),
		Added:    make([]StagedMedia, len(s.added)),
		Removed:  append([]string(nil), s.removed...),
		Order:    append([]string(nil), s.order...),
	}
	for i, m := range s.added {
		m.release, m.onFree = nil, nil
		st.Added[i] = m
	}
	return st
}

// Pending はアップロード中のファイル数を返す。
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.added {
		if m.Status == StatusUploading {
			n++
		}
	}
	return n
}

// Wait は開始済みのアップロードがすべて完了するまで待つ。
func (s *Session) Wait() {
	s.wg.Wait()
}

// Submission は表示順から送信用の値を組み立てる。
// positionは表示順のインデックスで、失敗したファイルは飛ばす（位置は詰めない）。
// アップロード中のファイルがある場合はErrUploadsPendingを返す。
func (s *Session) Submission() (*Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.added {
		if m.Status == StatusUploading {
			return nil, ErrUploadsPending
		}
	}

	existing := make(map[string]bool, len(s.existing))
	for _, m := range s.existing {
		existing[m.ID] = true
	}
	ready := make(map[string]bool, len(s.added))
	for _, m := range s.added {
		if m.Status == StatusReady {
			ready[m.ID] = true
		}
	}

	sub := &Submission{
		RemovedMediaIDs: append([]string{}, s.removed...),
		MediaPositions:  []model.MediaPosition{},
		MediaIDs:        []model.MediaPosition{},
	}
	for position, id := range s.order {
		switch {
		case existing[id]:
			sub.MediaPositions = append(sub.MediaPositions, model.MediaPosition{ID: id, Position: position})
		case ready[id]:
			sub.MediaIDs = append(sub.MediaIDs, model.MediaPosition{ID: id, Position: position})
		}
	}
	return sub, nil
}

func (s *Session) indexOfAdded(id string) int {
	for i, m := range s.added {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// free はローカルの参照を一度だけ解放する。
func (m *StagedMedia) free() {
	if m.release == nil || m.onFree == nil {
		return
	}
	m.release.Do(m.onFree)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// KindFromContentType は宣言されたContent-Typeから種別を判定する。
// image/* は画像、video/* は動画、それ以外は音声として扱う。
func KindFromContentType(contentType string) model.MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image"):
		return model.MediaKindImage
	case strings.HasPrefix(ct, "video"):
		return model.MediaKindVideo
	default:
		return model.MediaKindAudio
	}
}
