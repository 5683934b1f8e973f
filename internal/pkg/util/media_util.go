package util

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const thumbMaxEdge = 320

// MakeThumbnail 为图片消息生成缩略图，保持纵横比
// 返回缩略图 JPEG 字节与原图尺寸
func MakeThumbnail(r io.Reader) ([]byte, int, int, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image failed: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var thumb image.Image = img
	if width > thumbMaxEdge || height > thumbMaxEdge {
		thumb = imaging.Fit(img, thumbMaxEdge, thumbMaxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, 0, 0, fmt.Errorf("encode thumbnail failed: %w", err)
	}
	return buf.Bytes(), width, height, nil
}
