package mediahost

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("PNGのエンコードに失敗: %v", err)
	}
	return buf.Bytes()
}

func TestInspect_PNGReportsImageAndDimensions(t *testing.T) {
	ins := Inspect(encodePNG(t, 64, 48))

	if ins.ResourceType != "image" {
		t.Errorf("ResourceType = %q, want %q", ins.ResourceType, "image")
	}
	if ins.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want %q", ins.ContentType, "image/png")
	}
	if ins.Width == nil || ins.Height == nil {
		t.Fatal("画像サイズが取得できていない")
	}
	if *ins.Width != 64 || *ins.Height != 48 {
		t.Errorf("size = %dx%d, want 64x48", *ins.Width, *ins.Height)
	}
}

func TestInspect_GIF(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 10, 20), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("GIFのエンコードに失敗: %v", err)
	}

	ins := Inspect(buf.Bytes())
	if ins.ResourceType != "image" {
		t.Errorf("ResourceType = %q, want %q", ins.ResourceType, "image")
	}
	if ins.Width == nil || *ins.Width != 10 || *ins.Height != 20 {
		t.Errorf("GIFのサイズが不正: %+v", ins)
	}
}

func TestInspect_MP3IsRaw(t *testing.T) {
	head := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

	ins := Inspect(head)
	if ins.ResourceType != "raw" {
		t.Errorf("ResourceType = %q, want %q", ins.ResourceType, "raw")
	}
	if ins.Width != nil || ins.Height != nil {
		t.Error("音声にサイズが設定されてはならない")
	}
}

func TestInspect_MP4IsVideo(t *testing.T) {
	head := []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")
	head = append(head, make([]byte, 64)...)

	ins := Inspect(head)
	if ins.ResourceType != "video" {
		t.Errorf("ResourceType = %q, want %q (content-type %q)", ins.ResourceType, "video", ins.ContentType)
	}
}

func TestInspect_UnknownBytesAreRaw(t *testing.T) {
	ins := Inspect([]byte{0x01, 0x02, 0x03, 0x04})
	if ins.ResourceType != "raw" {
		t.Errorf("ResourceType = %q, want %q", ins.ResourceType, "raw")
	}
}

func TestInspect_TruncatedImageHasNoDimensions(t *testing.T) {
	full := encodePNG(t, 8, 8)
	ins := Inspect(full[:12])
	if ins.Width != nil {
		t.Errorf("途中で切れたPNGからサイズが取得された: %d", *ins.Width)
	}
}
