// Package mediahost はメディアファイルの保存先（オブジェクトストレージ）を抽象化する。
package mediahost

import (
	"context"
	"io"
)

// UploadResult はメディアホストがアップロード後に報告する情報。
type UploadResult struct {
	URL          string
	PublicID     string
	ResourceType string // image, video, raw のいずれか
	ContentType  string
	Width        *int
	Height       *int
	Duration     *float64
}

// Host はメディアファイルの保存先を表す。
type Host interface {
	// Upload はbodyをfolder配下に保存する。sizeが不明な場合は-1を渡す。
	Upload(ctx context.Context, folder, fileName string, body io.Reader, size int64) (*UploadResult, error)
	// Delete はPublicIDで指定したオブジェクトを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, publicID string) error
	// Provider はmediaテーブルのproviderカラムに記録する名前を返す。
	Provider() string
}
