package unifs

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Common MIME types
const (
	MIMETypeTextPlain       = "text/plain"
	MIMETypeTextHTML        = "text/html"
	MIMETypeApplicationJSON = "application/json"
	MIMETypeApplicationXML  = "application/xml"
	MIMETypeOctetStream     = "application/octet-stream"
)

var extensionToMIME = map[string]string{
	".txt":  MIMETypeTextPlain,
	".log":  MIMETypeTextPlain,
	".html": MIMETypeTextHTML,
	".htm":  MIMETypeTextHTML,
	".css":  "text/css",
	".js":   "text/javascript",
	".json": MIMETypeApplicationJSON,
	".xml":  MIMETypeApplicationXML,
	".csv":  "text/csv",
	".md":   "text/markdown",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
}

// GuessContentType determines the content type of a file from its name and,
// when the extension is unknown, from its data. Names may be plain file
// names or full paths of any backend.
func GuessContentType(name string, data []byte) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, `\`, "/")))
	if contentType, ok := extensionToMIME[ext]; ok {
		return contentType
	}

	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}

	if contentType := mime.TypeByExtension(ext); ext != "" && contentType != "" {
		return contentType
	}
	return MIMETypeOctetStream
}
