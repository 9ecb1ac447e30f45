package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/hitoshi/holograma/internal/model"
)

// File はアップロード対象のローカルファイル。
type File struct {
	Name        string
	ContentType string
	Body        io.Reader

	// PreviewURL はアップロード完了までの表示に使うローカル参照。
	PreviewURL string
	// Release はローカル参照を解放する。nilの場合は何もしない。
	Release func()
}

// UploadedMedia はアップロードAPIが返すメディア。
type UploadedMedia struct {
	ID   string          `json:"id"`
	URL  string          `json:"url"`
	Kind model.MediaKind `json:"kind"`
}

// Uploader はファイルをアップロードし、サーバーが作成したメディアを返す。
type Uploader interface {
	Upload(ctx context.Context, sessionID string, f File) (*UploadedMedia, error)
}

// UploadError はアップロードAPIがエラーレスポンスを返した場合のエラー。
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("upload failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("upload failed with status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// HTTPUploader は POST /api/media にmultipartでファイルを送信する。
type HTTPUploader struct {
	endpoint string
	client   *http.Client
	token    string
}

// NewHTTPUploader はHTTPUploaderを生成する。clientがnilの場合は60秒タイムアウトのクライアントを使う。
// tokenが空でなければBearerトークンとして送信する。
func NewHTTPUploader(baseURL string, client *http.Client, token string) *HTTPUploader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPUploader{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/media",
		client:   client,
		token:    token,
	}
}

// Upload はファイル本体とsession_idを送信し、作成されたメディアを返す。
// 本文はパイプ経由でストリーミングするため、ファイル全体をメモリに読み込まない。
func (u *HTTPUploader) Upload(ctx context.Context, sessionID string, f File) (*UploadedMedia, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, sessionID, f))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", f.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		uploadErr := &UploadError{StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
			uploadErr.Code = body.Code
			uploadErr.Message = body.Error
		}
		return nil, uploadErr
	}

	var uploaded UploadedMedia
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if uploaded.ID == "" {
		return nil, fmt.Errorf("upload response has no media id")
	}
	return &uploaded, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUploadForm(mw *multipart.Writer, sessionID string, f File) error {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if f.Body != nil {
		if _, err := io.Copy(part, f.Body); err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
	}
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return err
	}
	return mw.Close()
}

// Submission は記事の作成・更新フォームに載せるメディア関連の値。
type Submission struct {
	RemovedMediaIDs []string
	// MediaPositions は既存メディアの表示位置。
	MediaPositions []model.MediaPosition
	// MediaIDs は新たに紐付けるメディアと表示位置。
	MediaIDs []model.MediaPosition
}

// WriteFields はフォーム値を removed_media_ids[]、media_positions[]、media_ids[] として書き込む。
// 表示位置はJSONエンコードした {id, position} を1件ずつ送る。
func (s *Submission) WriteFields(mw *multipart.Writer) error {
	for _, id := range s.RemovedMediaIDs {
		if err := mw.WriteField("removed_media_ids[]", id); err != nil {
			return err
		}
	}
	if err := writePositions(mw, "media_positions[]", s.MediaPositions); err != nil {
		return err
	}
	return writePositions(mw, "media_ids[]", s.MediaIDs)
}

func writePositions(mw *multipart.Writer, field string, positions []model.MediaPosition) error {
	for _, p := range positions {
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if err := mw.WriteField(field, string(b)); err != nil {
			return err
		}
	}
	return nil
}
