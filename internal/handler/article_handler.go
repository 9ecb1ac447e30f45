package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/holograma/internal/article"
)

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	// Create は記事を作成し、作成した記事IDを返す。
	Create(ctx context.Context, in article.CreateInput) (int64, error)
	// Update は記事を更新し、メディアの紐付けを変更する。
	Update(ctx context.Context, in article.UpdateInput) error
	// Get は記事を取得する。存在しない場合はAPIErrorを返す。
	Get(ctx context.Context, id int64) (*article.View, error)
	// List は記事を新しい順に取得する。
	List(ctx context.Context, limit int) ([]article.View, error)
}

// ArticleHandler は記事のHTTPハンドラー。
type ArticleHandler struct {
	service ArticleServiceInterface
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface) *ArticleHandler {
	return &ArticleHandler{service: service}
}

// createArticleResponse は記事作成のレスポンス。
type createArticleResponse struct {
	Success   bool  `json:"success"`
	ArticleID int64 `json:"article_id"`
}

// successResponse は処理成功のみを返すレスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

// ListArticles は記事一覧を新しい順に返す。
// GET /api/articles
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context(), 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetArticle は記事を1件返す。
// GET /api/articles/{id}
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := article.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CreateArticle は記事を作成する。
// POST /api/articles（multipart: title, artist, content, author_uid, media_ids[]）
func (h *ArticleHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		handleFormError(w, r, err)
		return
	}

	media, err := parseMediaPositions(r, "media_ids")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	id, err := h.service.Create(r.Context(), article.CreateInput{
		Title:     r.PostFormValue("title"),
		Artist:    r.PostFormValue("artist"),
		Content:   r.PostFormValue("content"),
		AuthorUID: r.PostFormValue("author_uid"),
		Media:     media,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createArticleResponse{Success: true, ArticleID: id})
}

// UpdateArticle は記事を更新する。
// PUT /api/articles/{id}（multipart: title, artist, content, removed_media_ids[], media_positions[], media_ids[]）
func (h *ArticleHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := article.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := parseForm(w, r); err != nil {
		handleFormError(w, r, err)
		return
	}

	removed, err := parseMediaIDs(r, "removed_media_ids")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	positions, err := parseMediaPositions(r, "media_positions")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	added, err := parseMediaPositions(r, "media_ids")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	err = h.service.Update(r.Context(), article.UpdateInput{
		ID:        id,
		Title:     r.PostFormValue("title"),
		Artist:    r.PostFormValue("artist"),
		Content:   r.PostFormValue("content"),
		Removed:   removed,
		Positions: positions,
		Added:     added,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
