package service

import (
	"path"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const (
	mimeOctetStream = "application/octet-stream"
	mimeDirectory   = "application/x-directory"
)

var mimeTypes = map[string]string{
	"txt":  "text/plain",
	"htm":  "text/html",
	"html": "text/html",
	"php":  "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"xml":  "application/xml",
	"swf":  "application/x-shockwave-flash",
	"flv":  "video/x-flv",

	// images
	"png":  "image/png",
	"jpe":  "image/jpeg",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"ico":  "image/vnd.microsoft.icon",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"svg":  "image/svg+xml",
	"svgz": "image/svg+xml",
	"webp": "image/webp",

	// archives
	"zip": "application/zip",
	"rar": "application/x-rar-compressed",
	"exe": "application/x-msdownload",
	"msi": "application/x-msdownload",
	"cab": "application/vnd.ms-cab-compressed",

	// audio/video
	"mp3": "audio/mpeg",
	"wav": "audio/wav",
	"mp4": "video/mp4",
	"avi": "video/x-msvideo",
	"mov": "video/quicktime",
	"wmv": "video/x-ms-wmv",

	// adobe
	"pdf": "application/pdf",
	"psd": "image/vnd.adobe.photoshop",
	"ai":  "application/postscript",
	"eps": "application/postscript",
	"ps":  "application/postscript",

	// ms office
	"doc":  "application/msword",
	"rtf":  "application/rtf",
	"xls":  "application/vnd.ms-excel",
	"ppt":  "application/vnd.ms-powerpoint",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	// open office
	"odt": "application/vnd.oasis.opendocument.text",
	"ods": "application/vnd.oasis.opendocument.spreadsheet",
}

// MimeType picks a content type from the file extension, falling back to
// sniffing data when the extension is unknown.
func MimeType(name string, data []byte) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}
	return mimeOctetStream
}

// FormatBytes renders n with binary units.
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}

var (
	fileNameSpaces  = regexp.MustCompile(`\s+`)
	fileNameInvalid = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	fileNameDashes  = regexp.MustCompile(`-{2,}`)
)

// SanitizeFileName reduces name to a safe single path segment.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = fileNameSpaces.ReplaceAllString(name, "-")
	name = fileNameInvalid.ReplaceAllString(name, "")
	name = fileNameDashes.ReplaceAllString(name, "-")
	return strings.Trim(name, ".-_")
}

// normalizePrefix strips leading slashes and ensures a trailing one on a
// non-empty prefix.
func normalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
