package constants

import "strings"

// FileKind is how the extraction pipeline treats an uploaded work-order file.
type FileKind string

const (
	IMAGE       FileKind = "image"
	PDF         FileKind = "pdf"
	UNSUPPORTED FileKind = "unsupported"
)

// imageExtensions are the image formats every vision provider accepts.
var imageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// MaxTaskNameLength caps work_order_tasks.name, counted in runes.
const MaxTaskNameLength = 255

// RawResponsePreviewLength is how much unparseable model output is surfaced to callers.
const RawResponsePreviewLength = 1000

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToKind classifies a file extension (with or without the dot).
func MapExtToKind(ext string) FileKind {
	e := NormalizeExt(ext)
	if _, ok := imageExtensions[e]; ok {
		return IMAGE
	}
	if e == "pdf" {
		return PDF
	}
	return UNSUPPORTED
}

// MapMIMEToKind classifies a declared MIME type. Parameters such as charset are ignored.
func MapMIMEToKind(mimeType string) FileKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return PDF
	case strings.HasPrefix(mt, "image/"):
		sub := strings.TrimPrefix(mt, "image/")
		if sub == "jpg" {
			sub = "jpeg"
		}
		if _, ok := imageExtensions[sub]; ok {
			return IMAGE
		}
		return UNSUPPORTED
	}
	return UNSUPPORTED
}
