package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/holograma/internal/media"
	"github.com/hitoshi/holograma/internal/model"
)

// formOverhead はファイル以外のフォームフィールドとmultipart境界に許容するバイト数。
const formOverhead = 1 << 20

// MediaServiceInterface はメディアハンドラーが必要とするサービスインターフェース。
type MediaServiceInterface interface {
	// Upload はファイルをメディアホストへ送り、temp状態のメディアを登録する。
	Upload(ctx context.Context, in media.UploadInput) (*model.Media, error)
}

// MediaHandler はメディアアップロードのHTTPハンドラー。
type MediaHandler struct {
	service       MediaServiceInterface
	maxUploadSize int64
}

// NewMediaHandler はMediaHandlerを生成する。maxUploadSizeはファイル1件あたりの上限バイト数。
func NewMediaHandler(service MediaServiceInterface, maxUploadSize int64) *MediaHandler {
	return &MediaHandler{service: service, maxUploadSize: maxUploadSize}
}

// uploadForm はアップロードフォームのファイル以外の入力。
type uploadForm struct {
	SessionID string `validate:"required,max=128"`
}

// mediaResponse はメディアのAPIレスポンス。
type mediaResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	Provider  string    `json:"provider"`
	PublicID  string    `json:"public_id"`
	Width     *int      `json:"width,omitempty"`
	Height    *int      `json:"height,omitempty"`
	Duration  *float64  `json:"duration,omitempty"`
	Status    string    `json:"status"`
	SessionID *string   `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadMedia はファイルをアップロードしてtemp状態のメディアを返す。
// POST /api/media（multipart: file, session_id）
func (h *MediaHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+formOverhead)

	if err := r.ParseMultipartForm(formMemoryLimit); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingUploadDataError())
			return
		}
		handleFormError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := uploadForm{SessionID: r.PostFormValue("session_id")}
	if err := validate.Struct(form); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingUploadDataError())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingUploadDataError())
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewUploadTooLargeError(h.maxUploadSize))
		return
	}

	m, err := h.service.Upload(r.Context(), media.UploadInput{
		FileName:  header.Filename,
		Body:      file,
		Size:      header.Size,
		SessionID: form.SessionID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMediaResponse(m))
}

// toMediaResponse はmodel.MediaからAPIレスポンスに変換する。
func toMediaResponse(m *model.Media) mediaResponse {
	resp := mediaResponse{
		ID:        m.ID,
		URL:       m.URL,
		Kind:      string(m.Kind),
		Provider:  m.Provider,
		PublicID:  m.PublicID,
		Width:     m.Width,
		Height:    m.Height,
		Duration:  m.Duration,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
	}
	if m.SessionID != "" {
		sessionID := m.SessionID
		resp.SessionID = &sessionID
	}
	return resp
}
