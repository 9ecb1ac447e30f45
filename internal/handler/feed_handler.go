package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/holograma/internal/article"
	"github.com/hitoshi/holograma/internal/syndication"
)

// ArticleLister はフィード生成に必要な記事一覧の取得インターフェース。
type ArticleLister interface {
	List(ctx context.Context, limit int) ([]article.View, error)
}

// FeedHandler は記事のAtomフィードを配信するHTTPハンドラー。
type FeedHandler struct {
	articles ArticleLister
	title    string
	baseURL  string
	now      func() time.Time
}

// NewFeedHandler はFeedHandlerを生成する。baseURLは記事ページのリンク生成に使う。
func NewFeedHandler(articles ArticleLister, title, baseURL string) *FeedHandler {
	return &FeedHandler{
		articles: articles,
		title:    title,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

// Atom は最新の記事をAtom 1.0形式で返す。
// GET /feed.atom
func (h *FeedHandler) Atom(w http.ResponseWriter, r *http.Request) {
	views, err := h.articles.List(r.Context(), syndication.DefaultEntryLimit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	feed := syndication.BuildFeed(h.title, h.baseURL, views, h.now())

	w.Header().Set("Content-Type", syndication.ContentType)
	w.WriteHeader(http.StatusOK)
	if err := feed.Write(w); err != nil {
		// ヘッダー送信後のためステータスは変更できない
		slog.Error("failed to write atom feed", slog.String("error", err.Error()))
	}
}
