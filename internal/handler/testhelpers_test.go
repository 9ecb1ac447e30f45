package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/holograma/internal/article"
	"github.com/hitoshi/holograma/internal/auth"
	"github.com/hitoshi/holograma/internal/media"
	"github.com/hitoshi/holograma/internal/model"
)

const (
	testMediaID1 = "0b6a8f8e-6a8c-4f0e-9a53-3f6f1c2d4e5a"
	testMediaID2 = "5d1c9e2a-7b3f-4c8d-8e6a-1f2b3c4d5e6f"
	testMediaID3 = "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d"
)

// --- モック定義 ---

// mockArticleService はArticleServiceInterfaceのモック実装。
type mockArticleService struct {
	createFn func(ctx context.Context, in article.CreateInput) (int64, error)
	updateFn func(ctx context.Context, in article.UpdateInput) error
	getFn    func(ctx context.Context, id int64) (*article.View, error)
	listFn   func(ctx context.Context, limit int) ([]article.View, error)
}

func (m *mockArticleService) Create(ctx context.Context, in article.CreateInput) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return 1, nil
}

func (m *mockArticleService) Update(ctx context.Context, in article.UpdateInput) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, in)
	}
	return nil
}

func (m *mockArticleService) Get(ctx context.Context, id int64) (*article.View, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewArticleNotFoundError(id)
}

func (m *mockArticleService) List(ctx context.Context, limit int) ([]article.View, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return []article.View{}, nil
}

// mockMediaService はMediaServiceInterfaceのモック実装。
type mockMediaService struct {
	uploadFn func(ctx context.Context, in media.UploadInput) (*model.Media, error)
}

func (m *mockMediaService) Upload(ctx context.Context, in media.UploadInput) (*model.Media, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, in)
	}
	return &model.Media{ID: testMediaID1, Status: model.MediaStatusTemp}, nil
}

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	syncFn func(ctx context.Context, session *auth.Session) (*model.User, error)
}

func (m *mockAuthService) Sync(ctx context.Context, session *auth.Session) (*model.User, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx, session)
	}
	return &model.User{UID: "uid-1"}, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// formField はmultipartフォームの1フィールド。同じ名前を繰り返し指定できる。
type formField struct {
	name  string
	value string
}

// formFile はmultipartフォームのファイルパート。
type formFile struct {
	field    string
	name     string
	contents []byte
}

// newMultipartRequest はmultipartフォームのリクエストを組み立てるヘルパー。
func newMultipartRequest(t *testing.T, method, target string, fields []formField, file *formFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if file != nil {
		part, err := mw.CreateFormFile(file.field, file.name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(file.contents); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
