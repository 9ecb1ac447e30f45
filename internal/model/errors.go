package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, article, media, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeArticleNotFound     = "ARTICLE_NOT_FOUND"
	ErrCodeInvalidArticleID    = "INVALID_ARTICLE_ID"
	ErrCodeMissingFields       = "MISSING_FIELDS"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInvalidMediaPayload = "INVALID_MEDIA_PAYLOAD"
	ErrCodeMissingUploadData   = "MISSING_UPLOAD_DATA"
	ErrCodeUploadTooLarge      = "UPLOAD_TOO_LARGE"
	ErrCodeMediaUploadFailed   = "MEDIA_UPLOAD_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidIDToken      = "INVALID_ID_TOKEN"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(articleID int64) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %d", articleID),
		Category: "article",
		Action:   "記事IDを確認してください。",
	}
}

// NewInvalidArticleIDError は記事IDが数値でない場合のエラーを生成する。
func NewInvalidArticleIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArticleID,
		Message:  fmt.Sprintf("有効な記事IDを指定してください: %q", raw),
		Category: "validation",
		Action:   "記事IDには1以上の整数を指定してください。",
	}
}

// NewMissingFieldsError は必須項目が未入力の場合のエラーを生成する。
func NewMissingFieldsError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  fmt.Sprintf("必須項目が入力されていません: %v", fields),
		Category: "validation",
		Action:   "タイトルと作成者を入力してください。",
	}
}

// NewInvalidRequestError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "フォーム形式でリクエストしてください。",
	}
}

// NewInvalidMediaPayloadError はメディア指定のJSONが不正な場合のエラーを生成する。
func NewInvalidMediaPayloadError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMediaPayload,
		Message:  fmt.Sprintf("メディア指定が不正です（%s）: %s", field, reason),
		Category: "validation",
		Action:   `メディアは {"id": "...", "position": 0} 形式のJSONで指定してください。`,
	}
}

// NewMissingUploadDataError はファイルまたはセッションIDが未指定の場合のエラーを生成する。
func NewMissingUploadDataError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingUploadData,
		Message:  "アップロードするファイルとセッションIDが必要です。",
		Category: "validation",
		Action:   "ファイルを選択してから再度アップロードしてください。",
	}
}

// NewUploadTooLargeError はアップロードサイズが上限を超えた場合のエラーを生成する。
func NewUploadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", limit),
		Category: "validation",
		Action:   "サイズの小さいファイルを選択してください。",
	}
}

// NewMediaUploadFailedError はメディアホストへのアップロード失敗エラーを生成する。
func NewMediaUploadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeMediaUploadFailed,
		Message:  "メディアのアップロードに失敗しました。",
		Category: "media",
		Action:   "しばらく待ってから再度ファイルを追加してください。",
	}
}

// NewUnauthorizedError は認証ヘッダーがない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidIDTokenError はIDトークンの検証に失敗した場合のエラーを生成する。
func NewInvalidIDTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIDToken,
		Message:  "IDトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
