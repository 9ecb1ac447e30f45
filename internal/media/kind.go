// Package media はメディアの種別判定とアップロード処理を提供する。
package media

import (
	"path/filepath"
	"strings"

	"github.com/hitoshi/holograma/internal/model"
)

// audioExtensions はホストの種別に関わらず音声として扱う拡張子。
var audioExtensions = map[string]struct{}{
	"mp3":  {},
	"wav":  {},
	"ogg":  {},
	"m4a":  {},
	"aac":  {},
	"flac": {},
	"wma":  {},
	"aiff": {},
}

// Classify はファイル名とメディアホストが報告したリソース種別からメディア種別を判定する。
// ホストの語彙（image/video/raw）は音声を区別しないため、拡張子が音声の場合のみ拡張子を優先する。
func Classify(fileName, hostResourceType string) model.MediaKind {
	if IsAudioExtension(filepath.Ext(fileName)) {
		return model.MediaKindAudio
	}
	if hostResourceType == "image" {
		return model.MediaKindImage
	}
	return model.MediaKindVideo
}

// IsAudioExtension は拡張子（先頭のドットは任意）が音声拡張子かを返す。
func IsAudioExtension(ext string) bool {
	_, ok := audioExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}
