// Package bundle persists result bundles as one JSON file per run.
package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/pkg/objectstore"
)

var (
	ErrNotFound    = errors.New("bundle: not found")
	ErrInvalidName = errors.New("bundle: invalid name")
)

const (
	timestampLayout   = "20060102_150405"
	fileExt           = ".json"
	historyKey        = "history"
	historyTTL        = 5 * time.Minute
	historyCleanup    = 10 * time.Minute
	mirrorPrefix      = "results/"
	maxCollisionIndex = 1000
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Entry is one row of the history listing.
type Entry struct {
	Name             string            `json:"name"`
	ResultType       models.ResultType `json:"result_type"`
	OriginalFilename string            `json:"original_filename"`
	Size             int64             `json:"size"`
	ModTime          time.Time         `json:"modified_at"`
}

type Store struct {
	dir    string
	mirror objectstore.Store
	cache  *cache.Cache
	log    *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New opens (and creates) the results directory. mirror may be nil.
func New(dir string, mirror objectstore.Store, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("bundle: results directory required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve results directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		dir:    abs,
		mirror: mirror,
		cache:  cache.New(historyTTL, historyCleanup),
		log:    log,
		now:    time.Now,
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// FileName builds {basename}_{YYYYMMDD_HHMMSS}_{result_type}.json.
func FileName(originalFilename string, ts time.Time, resultType models.ResultType) string {
	return baseName(originalFilename) + "_" + ts.Format(timestampLayout) + "_" + string(resultType) + fileExt
}

func baseName(original string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(original), "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		return "document"
	}
	return base
}

// Write stores b under a fresh timestamped name and returns that name. The
// file appears atomically; a same-second collision gets a _n suffix.
func (s *Store) Write(ctx context.Context, b *models.ResultBundle) (string, error) {
	if b == nil {
		return "", errors.New("bundle: nil bundle")
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = s.now()
	}
	b.Normalize()

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode bundle: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".bundle-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	s.mu.Lock()
	name, err := s.reserveName(FileName(b.OriginalFilename, b.Timestamp, b.ResultType))
	if err == nil {
		err = os.Rename(tmpName, filepath.Join(s.dir, name))
	}
	s.mu.Unlock()
	if err != nil {
		os.Remove(tmpName)
		return "", err
	}
	s.cache.Delete(historyKey)

	s.log.Info("bundle written",
		zap.String("name", name),
		zap.String("result_type", string(b.ResultType)),
		zap.Int("errors", len(b.Errors)),
	)
	s.mirrorBundle(ctx, name, data)
	return name, nil
}

func (s *Store) reserveName(name string) (string, error) {
	stem := strings.TrimSuffix(name, fileExt)
	candidate := name
	for n := 2; n <= maxCollisionIndex; n++ {
		if _, err := os.Stat(filepath.Join(s.dir, candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, fileExt)
	}
	return "", fmt.Errorf("bundle: too many files named %s", name)
}

func (s *Store) mirrorBundle(ctx context.Context, name string, data []byte) {
	if s.mirror == nil {
		return
	}
	if _, err := s.mirror.Put(ctx, mirrorPrefix+name, data, "application/json"); err != nil {
		s.log.Warn("bundle mirror failed", zap.String("name", name), zap.Error(err))
	}
}

func (s *Store) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Store) Read(_ context.Context, name string) (*models.ResultBundle, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	var b models.ResultBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", name, err)
	}
	b.Normalize()
	return &b, nil
}

// Delete removes a bundle and its mirror copy.
func (s *Store) Delete(ctx context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	s.cache.Delete(historyKey)
	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, mirrorPrefix+name); err != nil {
			s.log.Warn("bundle mirror delete failed", zap.String("name", name), zap.Error(err))
		}
	}
	return nil
}

// History lists every bundle, newest first.
func (s *Store) History(ctx context.Context) ([]Entry, error) {
	if cached, ok := s.cache.Get(historyKey); ok {
		return append([]Entry(nil), cached.([]Entry)...), nil
	}

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entry := Entry{Name: name, Size: info.Size(), ModTime: info.ModTime()}
		if head, err := readHead(filepath.Join(s.dir, name)); err == nil {
			entry.ResultType = head.ResultType
			entry.OriginalFilename = head.OriginalFilename
		} else {
			s.log.Debug("skip unreadable bundle header", zap.String("name", name), zap.Error(err))
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].Name > entries[j].Name
		}
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	s.cache.SetDefault(historyKey, entries)
	return append([]Entry(nil), entries...), nil
}

type bundleHead struct {
	ResultType       models.ResultType `json:"result_type"`
	OriginalFilename string            `json:"original_filename"`
}

func readHead(p string) (bundleHead, error) {
	var head bundleHead
	data, err := os.ReadFile(p)
	if err != nil {
		return head, err
	}
	err = json.Unmarshal(data, &head)
	return head, err
}
