package nodefs

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// Extensions whose MIME types the stdlib tables commonly miss.
var extensionToMIME = map[string]string{
	".md":    "text/markdown",
	".csv":   "text/csv",
	".json":  "application/json",
	".yaml":  "application/yaml",
	".yml":   "application/yaml",
	".gz":    "application/gzip",
	".tar":   "application/x-tar",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
}

// GuessContentType determines the MIME type of a node from its name and, if
// available, a prefix of its content. Adapters use this to populate
// [Metadata].ContentType when the backend stores none of its own.
func GuessContentType(name string, data []byte) string {
	ext := strings.ToLower(path.Ext(name))
	if contentType, ok := extensionToMIME[ext]; ok {
		return contentType
	}
	if ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}

	if len(data) > 0 {
		return http.DetectContentType(data)
	}

	return "application/octet-stream"
}
