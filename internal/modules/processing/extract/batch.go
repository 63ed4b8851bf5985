package extract

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/models"
)

type BatchItem struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

type BatchFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type BatchResult struct {
	Processed []BatchItem    `json:"processed"`
	Failed    []BatchFailure `json:"failed"`
}

// ExtractDir extracts every supported file directly inside dir, in name
// order. Per-file failures are collected; only an unreadable dir is fatal.
func (e *Extractor) ExtractDir(ctx context.Context, dir string) (BatchResult, error) {
	result := BatchResult{Processed: []BatchItem{}, Failed: []BatchFailure{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return result, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := models.FormatFromFilename(entry.Name()); !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{Path: path, Error: err.Error()})
			continue
		}
		doc, _ := models.NewDocument(entry.Name(), data)
		text, err := e.Extract(ctx, doc)
		if err != nil {
			e.log.Warn("batch extract failed", zap.String("path", path), zap.Error(err))
			result.Failed = append(result.Failed, BatchFailure{Path: path, Error: err.Error()})
			continue
		}
		result.Processed = append(result.Processed, BatchItem{Path: path, Text: text})
	}
	return result, nil
}
