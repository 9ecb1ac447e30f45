package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/holograma/internal/model"
)

// gatedUploader はファイル名ごとのチャネルで完了タイミングを制御するテスト用Uploader。
type gatedUploader struct {
	mu      sync.Mutex
	gates   map[string]chan uploadResult
	started chan string
}

type uploadResult struct {
	media *UploadedMedia
	err   error
}

func newGatedUploader(names ...string) *gatedUploader {
	u := &gatedUploader{
		gates:   make(map[string]chan uploadResult, len(names)),
		started: make(chan string, len(names)),
	}
	for _, n := range names {
		u.gates[n] = make(chan uploadResult, 1)
	}
	return u
}

func (u *gatedUploader) Upload(ctx context.Context, sessionID string, f File) (*UploadedMedia, error) {
	u.mu.Lock()
	gate := u.gates[f.Name]
	u.mu.Unlock()
	u.started <- f.Name
	res := <-gate
	return res.media, res.err
}

func (u *gatedUploader) finish(name string, media *UploadedMedia, err error) {
	u.gates[name] <- uploadResult{media: media, err: err}
}

// completeAndWait は1件の完了を通知し、Session側に反映されるまで待つ。
func completeAndWait(t *testing.T, s *Session, u *gatedUploader, name string, media *UploadedMedia, err error, wantPending int) {
	t.Helper()
	u.finish(name, media, err)
	for i := 0; i < 1000; i++ {
		if s.Pending() == wantPending {
			return
		}
		waitBriefly()
	}
	t.Fatalf("pending = %d, want %d", s.Pending(), wantPending)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func existingFixture() []ExistingMedia {
	return []ExistingMedia{
		{ID: "e1", URL: "https://media.example.com/e1.jpg", Kind: model.MediaKindImage, Position: 0},
		{ID: "e2", URL: "https://media.example.com/e2.mp3", Kind: model.MediaKindAudio, Position: 1},
	}
}

// sequentialIDs はテスト用に予測可能な一時IDを払い出す。
func sequentialIDs(ids ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[i]
		i++
		return id
	}
}

func TestNewSession_OrderFollowsExisting(t *testing.T) {
	s := NewSession(newGatedUploader(), existingFixture(), discardLogger())

	st := s.State()
	if len(st.Order) != 2 || st.Order[0] != "e1" || st.Order[1] != "e2" {
		t.Errorf("order = %v, want [e1 e2]", st.Order)
	}
	if s.SessionID() == "" {
		t.Error("session id should not be empty")
	}
}

func TestKindFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        model.MediaKind
	}{
		{"image/png", model.MediaKindImage},
		{"IMAGE/JPEG", model.MediaKindImage},
		{"video/mp4", model.MediaKindVideo},
		{"audio/mpeg", model.MediaKindAudio},
		{"application/octet-stream", model.MediaKindAudio},
		{"", model.MediaKindAudio},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := KindFromContentType(tt.contentType); got != tt.want {
				t.Errorf("KindFromContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

// TestAddFiles_OutOfOrderCompletion は後から完了したアップロードが別のプレースホルダーを上書きしないことを検証する。
func TestAddFiles_OutOfOrderCompletion(t *testing.T) {
	u := newGatedUploader("a.jpg", "b.mp4")
	s := NewSession(u, existingFixture(), discardLogger())
	s.newID = sequentialIDs("tmp-a", "tmp-b")

	var released []string
	var relMu sync.Mutex
	release := func(name string) func() {
		return func() {
			relMu.Lock()
			released = append(released, name)
			relMu.Unlock()
		}
	}

	ids := s.AddFiles(context.Background(), []File{
		{Name: "a.jpg", ContentType: "image/jpeg", PreviewURL: "blob:a", Release: release("a")},
		{Name: "b.mp4", ContentType: "video/mp4", PreviewURL: "blob:b", Release: release("b")},
	})
	if len(ids) != 2 || ids[0] != "tmp-a" || ids[1] != "tmp-b" {
		t.Fatalf("temp ids = %v", ids)
	}
	<-u.started
	<-u.started

	st := s.State()
	if st.Added[0].Status != StatusUploading || st.Added[0].Kind != model.MediaKindImage {
		t.Errorf("added[0] = %+v", st.Added[0])
	}
	if st.Added[1].Kind != model.MediaKindVideo {
		t.Errorf("added[1].Kind = %q, want video", st.Added[1].Kind)
	}

	completeAndWait(t, s, u, "b.mp4", &UploadedMedia{ID: "srv-b", URL: "https://media.example.com/b.mp4", Kind: model.MediaKindVideo}, nil, 1)
	completeAndWait(t, s, u, "a.jpg", &UploadedMedia{ID: "srv-a", URL: "https://media.example.com/a.jpg", Kind: model.MediaKindImage}, nil, 0)
	s.Wait()

	st = s.State()
	want := []string{"e1", "e2", "srv-a", "srv-b"}
	if len(st.Order) != len(want) {
		t.Fatalf("order = %v, want %v", st.Order, want)
	}
	for i := range want {
		if st.Order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, st.Order[i], want[i])
		}
	}
	if st.Added[0].ID != "srv-a" || st.Added[0].Status != StatusReady || st.Added[0].URL != "https://media.example.com/a.jpg" {
		t.Errorf("added[0] = %+v", st.Added[0])
	}
	if st.Added[1].ID != "srv-b" || st.Added[1].Status != StatusReady {
		t.Errorf("added[1] = %+v", st.Added[1])
	}
	if len(released) != 2 || released[0] != "b" || released[1] != "a" {
		t.Errorf("released = %v, want [b a]", released)
	}
}

// TestAddFiles_FailureStaysInOrder は失敗したファイルが表示順に残り、送信対象から外れることを検証する。
func TestAddFiles_FailureStaysInOrder(t *testing.T) {
	u := newGatedUploader("ok.png", "ng.wav")
	s := NewSession(u, nil, discardLogger())
	s.newID = sequentialIDs("tmp-ng", "tmp-ok")

	s.AddFiles(context.Background(), []File{
		{Name: "ng.wav", ContentType: "audio/wav"},
		{Name: "ok.png", ContentType: "image/png"},
	})
	<-u.started
	<-u.started

	completeAndWait(t, s, u, "ng.wav", nil, errors.New("boom"), 1)
	completeAndWait(t, s, u, "ok.png", &UploadedMedia{ID: "srv-ok", URL: "u", Kind: model.MediaKindImage}, nil, 0)
	s.Wait()

	st := s.State()
	if len(st.Order) != 2 || st.Order[0] != "tmp-ng" || st.Order[1] != "srv-ok" {
		t.Fatalf("order = %v, want [tmp-ng srv-ok]", st.Order)
	}
	if st.Added[0].Status != StatusError || st.Added[0].Err == nil {
		t.Errorf("failed item = %+v, want error status", st.Added[0])
	}

	sub, err := s.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if len(sub.MediaIDs) != 1 || sub.MediaIDs[0] != (model.MediaPosition{ID: "srv-ok", Position: 1}) {
		t.Errorf("MediaIDs = %+v, want [{srv-ok 1}]", sub.MediaIDs)
	}
}

// TestRemoveAdded_DuringUpload は削除済みのプレースホルダーに完了結果が反映されないことを検証する。
func TestRemoveAdded_DuringUpload(t *testing.T) {
	u := newGatedUploader("a.jpg")
	s := NewSession(u, existingFixture(), discardLogger())
	s.newID = sequentialIDs("tmp-a")

	releases := 0
	s.AddFiles(context.Background(), []File{
		{Name: "a.jpg", ContentType: "image/jpeg", Release: func() { releases++ }},
	})
	<-u.started

	if !s.RemoveAdded("tmp-a") {
		t.Fatal("RemoveAdded() = false, want true")
	}
	if releases != 1 {
		t.Errorf("releases = %d, want 1", releases)
	}

	u.finish("a.jpg", &UploadedMedia{ID: "srv-a", URL: "u", Kind: model.MediaKindImage}, nil)
	s.Wait()

	st := s.State()
	if len(st.Added) != 0 {
		t.Errorf("added = %+v, want empty", st.Added)
	}
	if len(st.Order) != 2 {
		t.Errorf("order = %v, want [e1 e2]", st.Order)
	}
	if releases != 1 {
		t.Errorf("releases = %d after completion, want 1", releases)
	}
	if s.RemoveAdded("tmp-a") {
		t.Error("second RemoveAdded() = true, want false")
	}
}

func TestSubmission_PendingUploads(t *testing.T) {
	u := newGatedUploader("a.jpg")
	s := NewSession(u, nil, discardLogger())

	s.AddFiles(context.Background(), []File{{Name: "a.jpg", ContentType: "image/jpeg"}})
	<-u.started

	if _, err := s.Submission(); !errors.Is(err, ErrUploadsPending) {
		t.Errorf("Submission() error = %v, want ErrUploadsPending", err)
	}

	completeAndWait(t, s, u, "a.jpg", &UploadedMedia{ID: "srv-a"}, nil, 0)
	s.Wait()

	if _, err := s.Submission(); err != nil {
		t.Errorf("Submission() after completion error = %v", err)
	}
}

// TestSubmission_PositionsFollowOrder は削除・並べ替え後の表示順がpositionに反映されることを検証する。
func TestSubmission_PositionsFollowOrder(t *testing.T) {
	u := newGatedUploader("n.png")
	existing := append(existingFixture(), ExistingMedia{ID: "e3", Kind: model.MediaKindVideo, Position: 2})
	s := NewSession(u, existing, discardLogger())
	s.newID = sequentialIDs("tmp-n")

	s.AddFiles(context.Background(), []File{{Name: "n.png", ContentType: "image/png"}})
	<-u.started
	completeAndWait(t, s, u, "n.png", &UploadedMedia{ID: "srv-n", Kind: model.MediaKindImage}, nil, 0)
	s.Wait()

	if !s.RemoveExisting("e2") {
		t.Fatal("RemoveExisting() = false, want true")
	}
	if s.RemoveExisting("missing") {
		t.Error("RemoveExisting(missing) = true, want false")
	}
	if err := s.Move("srv-n", 0); err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	sub, err := s.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}

	if len(sub.RemovedMediaIDs) != 1 || sub.RemovedMediaIDs[0] != "e2" {
		t.Errorf("RemovedMediaIDs = %v, want [e2]", sub.RemovedMediaIDs)
	}
	wantPositions := []model.MediaPosition{{ID: "e1", Position: 1}, {ID: "e3", Position: 2}}
	if len(sub.MediaPositions) != len(wantPositions) {
		t.Fatalf("MediaPositions = %+v, want %+v", sub.MediaPositions, wantPositions)
	}
	for i := range wantPositions {
		if sub.MediaPositions[i] != wantPositions[i] {
			t.Errorf("MediaPositions[%d] = %+v, want %+v", i, sub.MediaPositions[i], wantPositions[i])
		}
	}
	if len(sub.MediaIDs) != 1 || sub.MediaIDs[0] != (model.MediaPosition{ID: "srv-n", Position: 0}) {
		t.Errorf("MediaIDs = %+v, want [{srv-n 0}]", sub.MediaIDs)
	}
}

func TestMove_Errors(t *testing.T) {
	s := NewSession(newGatedUploader(), existingFixture(), discardLogger())

	if err := s.Move("missing", 0); !errors.Is(err, ErrUnknownMedia) {
		t.Errorf("Move(missing) error = %v, want ErrUnknownMedia", err)
	}
	if err := s.Move("e1", 2); err == nil {
		t.Error("Move() with out-of-range index should fail")
	}
	if err := s.Move("e1", 1); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if st := s.State(); st.Order[0] != "e2" || st.Order[1] != "e1" {
		t.Errorf("order = %v, want [e2 e1]", st.Order)
	}
}

func TestSubmission_EmptySession(t *testing.T) {
	s := NewSession(newGatedUploader(), nil, discardLogger())

	sub, err := s.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if len(sub.RemovedMediaIDs) != 0 || len(sub.MediaPositions) != 0 || len(sub.MediaIDs) != 0 {
		t.Errorf("Submission() = %+v, want empty", sub)
	}
}

func waitBriefly() {
	time.Sleep(time.Millisecond)
}
