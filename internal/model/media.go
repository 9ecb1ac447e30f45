package model

import "time"

// MediaKind はメディアの種別を表す。
type MediaKind string

const (
	// MediaKindImage は画像を表す。
	MediaKindImage MediaKind = "image"
	// MediaKindVideo は動画を表す。
	MediaKindVideo MediaKind = "video"
	// MediaKindAudio は音声を表す。
	MediaKindAudio MediaKind = "audio"
)

// MediaStatus はメディアのライフサイクル状態を表す。
type MediaStatus string

const (
	// MediaStatusTemp は記事に未紐付けのアップロード直後の状態。
	MediaStatusTemp MediaStatus = "temp"
	// MediaStatusReady は記事に紐付け済みの状態。
	MediaStatusReady MediaStatus = "ready"
)

// Media はメディアホストにアップロードされたアセットを表す。
// Kindは作成時に確定し、以後再判定しない。
type Media struct {
	ID        string
	URL       string
	Kind      MediaKind
	Provider  string
	PublicID  string
	Width     *int
	Height    *int
	Duration  *float64
	Status    MediaStatus
	SessionID string // 空文字列はNULLを表す
	CreatedAt time.Time
}
