// Package extract turns uploaded documents into plain UTF-8 text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
)

// ErrEmptyContent is returned when a document yields no usable text.
var ErrEmptyContent = fmt.Errorf("%w: document contains no text", apperr.ErrExtraction)

// ErrUnsupportedFormat is returned for file types without an extractor.
var ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", apperr.ErrExtraction)

type Extractor struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{log: log}
}

// Extract returns the document text. Every error wraps apperr.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, doc models.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(string(doc.Data)) == "" {
		return "", ErrEmptyContent
	}

	var (
		text string
		err  error
	)
	switch doc.Format {
	case models.FormatPDF:
		text, err = e.extractPDF(ctx, doc.Data)
	case models.FormatEML:
		text, err = extractEML(doc.Data)
	case models.FormatMSG:
		text, err = extractMSG(doc.Data)
	case models.FormatTXT:
		text, err = decodeText(doc.Data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Format)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrExtraction) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", apperr.ErrExtraction, doc.Format, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

// withSubject prepends the subject line used for both email formats. An
// email without body text is empty even when it has a subject.
func withSubject(subject, body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	return "Subject: " + strings.TrimSpace(subject) + "\n\n" + body
}
