// Package model はドメインモデルを定義する。
package model

import "time"

// Article はユーザーが執筆したマルチメディア記事を表す。
type Article struct {
	ID        int64
	Title     string
	Artist    string
	Content   string // サニタイズ済みHTML
	AuthorUID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaPosition は記事内でのメディアの表示位置を表す。
// クライアントが送信する {id, position} に対応する。
type MediaPosition struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// LinkedMedia は記事に紐付いたメディアとその表示位置を結合したモデル。
// article_mediaテーブルとJOINして取得される。
type LinkedMedia struct {
	Media
	ArticleID int64
	Position  int
}

// ArticleWithMedia は記事と表示位置順に並んだメディアを保持する。
type ArticleWithMedia struct {
	Article
	Media []LinkedMedia
}
