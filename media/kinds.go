package media

import (
	"path/filepath"
	"strings"
)

// Variant describes one scaled copy produced for every transcodable asset.
type Variant struct {
	Tag    string
	Height int
}

// Variants are generated next to the original, "photo.jpg" gets
// "photo.1080.jpg" and "photo.4k.jpg".
var Variants = [...]Variant{
	{Tag: "1080", Height: 1080},
	{Tag: "4k", Height: 2160},
}

// extensions imaging can both decode and encode without losing content,
// gif is left out since re-encoding drops animation
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true, ".bmp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true, ".mkv": true,
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// IsImage reports whether path has extension of a scalable still image.
func IsImage(path string) bool {
	return imageExts[ext(path)]
}

// IsVideo reports whether path has extension of a video.
func IsVideo(path string) bool {
	return videoExts[ext(path)]
}

// IsTranscodable reports whether scaled variants are produced for path.
func IsTranscodable(path string) bool {
	return IsImage(path) || IsVideo(path)
}

// VariantPath returns name of scaled variant for path.
func VariantPath(path string, v Variant) string {
	e := filepath.Ext(path)
	return strings.TrimSuffix(path, e) + "." + v.Tag + e
}
