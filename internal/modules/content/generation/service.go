// Package generation exposes document runs, result history and comic script
// tools over HTTP.
package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/modules/content/pipeline"
	"github.com/mx-space/contentgen/internal/modules/processing/script"
	"github.com/mx-space/contentgen/internal/modules/storage/bundle"
	"github.com/mx-space/contentgen/internal/pkg/taskqueue"
)

var (
	errQueueUnavailable = errors.New("task queue unavailable")
	errNoPanels         = errors.New("no panels found in script")
)

type Service struct {
	runner     *pipeline.Runner
	store      *bundle.Store
	taskSvc    *taskqueue.Service
	uploadsDir string
	limits     config.UploadLimits
	log        *zap.Logger

	wg sync.WaitGroup
}

func NewService(runner *pipeline.Runner, store *bundle.Store, taskSvc *taskqueue.Service,
	uploadsDir string, limits config.UploadLimits, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		runner:     runner,
		store:      store,
		taskSvc:    taskSvc,
		uploadsDir: uploadsDir,
		limits:     limits,
		log:        log,
	}
}

// Run executes a document synchronously and persists the bundle.
func (s *Service) Run(ctx context.Context, doc models.Document, opts pipeline.RunOptions) (string, *models.ResultBundle, error) {
	b, err := s.runner.Run(ctx, doc, opts)
	if err != nil {
		return "", nil, err
	}
	name, err := s.store.Write(ctx, b)
	if err != nil {
		return "", nil, fmt.Errorf("write bundle: %w", err)
	}
	return name, b, nil
}

// EnqueueRun saves the upload and queues a run for it. The same document in
// the same mode is not queued twice while a run for it is still open.
func (s *Service) EnqueueRun(ctx context.Context, doc models.Document, opts pipeline.RunOptions) (*taskqueue.Task, error) {
	if s.taskSvc == nil {
		return nil, errQueueUnavailable
	}

	sum := sha256.Sum256(doc.Data)
	digest := hex.EncodeToString(sum[:])
	dedupKey := fmt.Sprintf("%s:%s:%d:%d", digest, opts.Mode, opts.PanelCount, opts.ComicPanelCount)

	uploadPath, err := s.saveUpload(doc)
	if err != nil {
		return nil, err
	}

	payload := RunPayload{
		Filename:        doc.Filename,
		UploadPath:      uploadPath,
		Mode:            opts.Mode,
		PanelCount:      opts.PanelCount,
		ComicPanelCount: opts.ComicPanelCount,
		SHA256:          digest,
	}
	task, created, err := s.taskSvc.Enqueue(ctx, TaskTypeRun, payload, dedupKey, digest)
	if err != nil {
		os.Remove(uploadPath)
		return nil, err
	}
	if !created {
		os.Remove(uploadPath)
		return task, nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeRun(context.Background(), task.ID, payload)
	}()
	return task, nil
}

func (s *Service) saveUpload(doc models.Document) (string, error) {
	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads directory: %w", err)
	}
	p := filepath.Join(s.uploadsDir, uuid.NewString()+"."+string(doc.Format))
	if err := os.WriteFile(p, doc.Data, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return p, nil
}

func (s *Service) executeRun(ctx context.Context, taskID string, payload RunPayload) {
	defer os.Remove(payload.UploadPath)
	log := s.log.With(zap.String("task_id", taskID), zap.String("filename", payload.Filename))

	started, err := s.taskSvc.Start(ctx, taskID)
	if err != nil || !started {
		log.Info("run task skipped", zap.Bool("started", started), zap.Error(err))
		return
	}

	fail := func(err error) {
		log.Warn("run task failed", zap.Error(err))
		if uerr := s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error()); uerr != nil {
			log.Error("update task status", zap.Error(uerr))
		}
	}

	data, err := os.ReadFile(payload.UploadPath)
	if err != nil {
		fail(fmt.Errorf("read upload: %w", err))
		return
	}
	doc, _ := models.NewDocument(payload.Filename, data)

	name, b, err := s.Run(ctx, doc, pipeline.RunOptions{
		Mode:            payload.Mode,
		PanelCount:      payload.PanelCount,
		ComicPanelCount: payload.ComicPanelCount,
	})
	if err != nil {
		fail(err)
		return
	}

	result := RunResult{Name: name, ResultType: b.ResultType, Errors: b.Errors}
	if err := s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, result, ""); err != nil {
		log.Error("update task status", zap.Error(err))
		return
	}
	log.Info("run task completed", zap.String("bundle", name))
}

// Wait blocks until queued runs finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RenderScript parses a hand-written script, renders its panels and
// persists the result.
func (s *Service) RenderScript(ctx context.Context, title, text string) (string, *models.ResultBundle, error) {
	panels := script.Parse(text)
	if len(panels) == 0 {
		return "", nil, errNoPanels
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Comic"
	}
	b := s.runner.RunScript(ctx, title, script.ToScriptPanels(panels))
	name, err := s.store.Write(ctx, b)
	if err != nil {
		return "", nil, fmt.Errorf("write bundle: %w", err)
	}
	return name, b, nil
}

// ScriptExport returns the Markdown script of a stored bundle.
func (s *Service) ScriptExport(ctx context.Context, name string) (string, string, error) {
	b, err := s.store.Read(ctx, name)
	if err != nil {
		return "", "", err
	}
	if len(b.ComicScript) == 0 {
		return "", "", fmt.Errorf("%w: %s has no comic script", bundle.ErrNotFound, name)
	}
	title := b.ComicTitle
	if title == "" {
		title = strings.TrimSuffix(b.OriginalFilename, filepath.Ext(b.OriginalFilename))
	}
	return title, script.Export(title, script.FromScriptPanels(b.ComicScript)), nil
}

// SweepUploads removes queued upload files older than maxAge. Runs normally
// remove their own upload; this catches files left by a crash.
func (s *Service) SweepUploads(_ context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.uploadsDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.uploadsDir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("stale uploads removed", zap.Int("count", removed))
	}
	return removed, nil
}
