package internal

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dustin/go-humanize"
)

// imageInfo is what the terminal shows in place of an image.
type imageInfo struct {
	width, height int
	format        string
	size          int
	err           error
}

func decodeImageInfo(data []byte) imageInfo {
	info := imageInfo{size: len(data)}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		info.format = "unknown"
		return info
	}
	info.width, info.height, info.format = cfg.Width, cfg.Height, format
	return info
}

func (i imageInfo) String() string {
	switch {
	case i.err != nil:
		return "failed to load"
	case i.width == 0:
		return fmt.Sprintf("%s, %s", i.format, humanize.Bytes(uint64(i.size)))
	default:
		return fmt.Sprintf("%dx%d %s, %s", i.width, i.height, i.format, humanize.Bytes(uint64(i.size)))
	}
}
