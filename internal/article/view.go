// Package article は記事の作成・更新・取得のドメインロジックを提供する。
package article

import (
	"time"

	"github.com/hitoshi/holograma/internal/model"
)

// MediaView はAPIレスポンスに含める記事メディア。
type MediaView struct {
	ID       string          `json:"id"`
	URL      string          `json:"url"`
	Kind     model.MediaKind `json:"kind"`
	Position int             `json:"position"`
	Width    *int            `json:"width,omitempty"`
	Height   *int            `json:"height,omitempty"`
	Duration *float64        `json:"duration,omitempty"`
}

// View は記事と種別ごとに振り分けたメディアURLを保持するAPIレスポンス。
// Images/Videos/Audiosは表示位置順のまま種別で絞り込んだもので、Mediaは全種別の表示位置順。
type View struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Artist    string      `json:"artist"`
	Content   string      `json:"content"`
	AuthorUID string      `json:"author_uid"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Images    []string    `json:"images"`
	Videos    []string    `json:"videos"`
	Audios    []string    `json:"audios"`
	Media     []MediaView `json:"media"`
}

// Project は記事とメディアの結合結果をViewに変換する。
// メディアは表示位置順に並んでいる前提で、順序を変えずに種別ごとに振り分ける。
func Project(a model.ArticleWithMedia) View {
	v := View{
		ID:        a.ID,
		Title:     a.Title,
		Artist:    a.Artist,
		Content:   a.Content,
		AuthorUID: a.AuthorUID,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		Images:    []string{},
		Videos:    []string{},
		Audios:    []string{},
		Media:     make([]MediaView, 0, len(a.Media)),
	}

	for _, lm := range a.Media {
		switch lm.Kind {
		case model.MediaKindImage:
			v.Images = append(v.Images, lm.URL)
		case model.MediaKindVideo:
			v.Videos = append(v.Videos, lm.URL)
		case model.MediaKindAudio:
			v.Audios = append(v.Audios, lm.URL)
		}
		v.Media = append(v.Media, MediaView{
			ID:       lm.ID,
			URL:      lm.URL,
			Kind:     lm.Kind,
			Position: lm.Position,
			Width:    lm.Width,
			Height:   lm.Height,
			Duration: lm.Duration,
		})
	}

	return v
}
