package mediahost

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// headSize は種別判定と画像サイズ取得のために先読みするバイト数。
// JPEGはEXIFの後ろにSOFマーカーがあるため余裕を持たせている。
const headSize = 256 << 10

// Inspection はファイル先頭から判定したメタデータ。
type Inspection struct {
	ResourceType string
	ContentType  string
	Width        *int
	Height       *int
}

// Inspect はファイル先頭のバイト列からリソース種別・Content-Type・画像サイズを判定する。
// リソース種別の語彙は image / video / raw で、音声はrawになる。
func Inspect(head []byte) Inspection {
	mt := mimetype.Detect(head)
	contentType := mt.String()

	ins := Inspection{
		ResourceType: resourceTypeOf(contentType),
		ContentType:  contentType,
	}

	if ins.ResourceType == "image" {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(head)); err == nil {
			w, h := cfg.Width, cfg.Height
			ins.Width = &w
			ins.Height = &h
		}
	}

	return ins
}

func resourceTypeOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "raw"
	}
}
