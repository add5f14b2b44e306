// Package document turns uploaded requirement documents into plain text that
// can be folded into a conversation.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"

	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

var tracer = wfotel.Tracer("github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/document")

// Budgets applied to extracted text.
const (
	MaxChars       = 5000
	PreviewChars   = 500
	TruncateMarker = "\n\n[Document truncated for brevity...]"
	DefaultMaxMB   = 10
)

var (
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("document exceeds size limit")
	// ErrUnsupportedType is returned for binary or unknown formats.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrEmpty is returned when a document has no text.
	ErrEmpty = errors.New("document is empty")
)

// Extractor extracts text content from uploaded files.
type Extractor struct {
	maxSize int64
	html    *bluemonday.Policy
}

// NewExtractor creates an extractor with a size limit in megabytes.
func NewExtractor(maxSizeMB int) *Extractor {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxMB
	}
	return &Extractor{
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		html:    bluemonday.StrictPolicy(),
	}
}

// MaxBytes returns the size limit.
func (e *Extractor) MaxBytes() int64 {
	return e.maxSize
}

// Extract returns the text of an uploaded file. Plain text formats are used
// as-is, HTML is stripped to text, and files without a known extension are
// accepted when they are valid UTF-8.
func (e *Extractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	_, span := tracer.Start(ctx, "document.extract")
	defer span.End()

	ext := strings.ToLower(filepath.Ext(filename))
	span.SetAttributes(
		attribute.String("document.ext", ext),
		attribute.Int("document.bytes", len(content)),
	)

	if int64(len(content)) > e.maxSize {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(content), e.maxSize)
	}

	var text string
	switch ext {
	case ".txt", ".md", ".csv", ".json", ".log", ".yaml", ".yml":
		text = string(content)
	case ".html", ".htm":
		text = e.html.Sanitize(string(content))
	case ".pdf", ".docx", ".xlsx", ".png", ".jpg", ".jpeg", ".zip":
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	default:
		if !utf8.Valid(content) {
			return "", fmt.Errorf("%w: %q is not UTF-8 text", ErrUnsupportedType, filename)
		}
		text = string(content)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// Truncate cuts text to MaxChars characters and appends TruncateMarker when
// anything was dropped.
func Truncate(text string) (string, bool) {
	if utf8.RuneCountInString(text) <= MaxChars {
		return text, false
	}
	return string([]rune(text)[:MaxChars]) + TruncateMarker, true
}

// Preview returns the first PreviewChars characters, with "..." when longer.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewChars {
		return text
	}
	return string([]rune(text)[:PreviewChars]) + "..."
}
