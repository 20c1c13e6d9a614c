package artifact

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/metrics"
)

// fallbackContentType is used when an extension is outside the allow-list
// and sniffing fails. A generic binary type is deliberately chosen over
// text/html: mis-typing a binary asset as HTML breaks browsers in ways a
// download prompt does not.
const fallbackContentType = "application/octet-stream"

// defaultContentTypes is the extension allow-list for bundle uploads.
func defaultContentTypes() map[string]string {
	return map[string]string{
		".html":  "text/html",
		".css":   "text/css",
		".js":    "application/javascript",
		".mjs":   "application/javascript",
		".map":   "application/json",
		".json":  "application/json",
		".svg":   "image/svg+xml",
		".png":   "image/png",
		".jpg":   "image/jpeg",
		".jpeg":  "image/jpeg",
		".gif":   "image/gif",
		".webp":  "image/webp",
		".ico":   "image/x-icon",
		".txt":   "text/plain",
		".woff":  "font/woff",
		".woff2": "font/woff2",
	}
}

// contentTypeFor resolves the upload content type for a file. The allow-list
// wins; outside it, strict mode fails with UnsupportedContentType while the
// default policy sniffs the content and falls back to a generic binary
// type. Fallbacks are logged and counted, never silent.
func (p *Publisher) contentTypeFor(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if contentType, ok := p.contentTypes[ext]; ok {
		return contentType, nil
	}

	if p.strictTypes {
		return "", errdefs.New(errdefs.CodeUnsupportedContentType, path,
			"extension %q is not in the content type allow-list", ext)
	}

	metrics.ContentTypeFallbacks.Inc()
	if detected, err := mimetype.DetectFile(path); err == nil {
		p.logger.Warn().
			Str("file", path).
			Str("content_type", detected.String()).
			Msg("Extension outside allow-list, using sniffed content type")
		return detected.String(), nil
	}

	p.logger.Warn().
		Str("file", path).
		Str("content_type", fallbackContentType).
		Msg("Extension outside allow-list and sniffing failed, using generic binary type")
	return fallbackContentType, nil
}
