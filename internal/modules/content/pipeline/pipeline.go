// Package pipeline runs one document through extraction, generation and
// image rendering and assembles the result bundle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/modules/processing/generate"
	"github.com/mx-space/contentgen/internal/modules/processing/imagegen"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
)

// Panel count bounds and the fallbacks used outside them.
const (
	MinCarouselPanels     = 4
	MaxCarouselPanels     = 12
	DefaultCarouselPanels = 8
	MinComicPanels        = 2
	MaxComicPanels        = 6
	DefaultComicPanels    = 4
)

// Stage names prefix entries in ResultBundle.Errors.
const (
	StageSocial      = "social"
	StageCarousel    = "carousel"
	StageComicScript = "comic_script"
	StageComicImages = "comic_images"
)

const rawResponseTitle = "Raw AI Response"

// ClampCarousel returns k when it is within 4..12, otherwise 8.
func ClampCarousel(k int) int {
	if k < MinCarouselPanels || k > MaxCarouselPanels {
		return DefaultCarouselPanels
	}
	return k
}

// ClampComic returns k when it is within 2..6, otherwise 4.
func ClampComic(k int) int {
	if k < MinComicPanels || k > MaxComicPanels {
		return DefaultComicPanels
	}
	return k
}

type Extractor interface {
	Extract(ctx context.Context, doc models.Document) (string, error)
}

type ContentGenerator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (models.ContentItem, error)
}

type ImageRenderer interface {
	RenderRun(ctx context.Context, runID string, script []models.ComicScriptPanel) []models.ImagePanel
}

// RunOptions selects the mode. PanelCount applies to carousel mode; combined
// mode always asks for the default carousel and uses ComicPanelCount.
type RunOptions struct {
	Mode            models.ResultType
	PanelCount      int
	ComicPanelCount int
}

type Runner struct {
	extractor Extractor
	generator ContentGenerator
	images    ImageRenderer
	llm       config.LLMConfig
	toggles   config.ContentToggles
	log       *zap.Logger
	now       func() time.Time
}

func New(extractor Extractor, generator ContentGenerator, images ImageRenderer,
	llm config.LLMConfig, toggles config.ContentToggles, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		extractor: extractor,
		generator: generator,
		images:    images,
		llm:       llm,
		toggles:   toggles,
		log:       log,
		now:       time.Now,
	}
}

// Run processes doc. Only an extraction failure (or an unknown mode) is
// returned as an error; every later failure becomes placeholder content plus
// an entry in the bundle's Errors.
func (r *Runner) Run(ctx context.Context, doc models.Document, opts RunOptions) (*models.ResultBundle, error) {
	switch opts.Mode {
	case models.ResultStandard, models.ResultCarousel, models.ResultCombined:
	default:
		return nil, apperr.Configf("unknown mode %q", opts.Mode)
	}

	text, err := r.extractor.Extract(ctx, doc)
	if err != nil {
		if !errors.Is(err, apperr.ErrExtraction) {
			err = fmt.Errorf("%w: %v", apperr.ErrExtraction, err)
		}
		r.log.Warn("extraction failed", zap.String("filename", doc.Filename), zap.Error(err))
		return nil, err
	}

	b := r.newBundle(opts.Mode, doc.Filename)
	log := r.log.With(zap.String("run_id", b.RunID), zap.String("mode", string(opts.Mode)))
	log.Info("run started", zap.String("filename", doc.Filename), zap.Int("text_len", len(text)))

	switch opts.Mode {
	case models.ResultStandard:
		r.runSocial(ctx, b, text)
	case models.ResultCarousel:
		r.runCarousel(ctx, b, text, ClampCarousel(opts.PanelCount))
	case models.ResultCombined:
		r.runCarousel(ctx, b, text, DefaultCarouselPanels)
		if r.toggles.ComicScripts {
			if r.runComicScript(ctx, b, text, ClampComic(opts.ComicPanelCount)) && r.toggles.ComicImages {
				r.runImages(ctx, b)
			}
		}
	}

	b.Normalize()
	log.Info("run finished", zap.Int("errors", len(b.Errors)))
	return b, nil
}

// RunScript renders an already written comic script and returns a combined
// bundle holding only the comic fields.
func (r *Runner) RunScript(ctx context.Context, title string, script []models.ComicScriptPanel) *models.ResultBundle {
	b := r.newBundle(models.ResultCombined, title)
	b.ComicTitle = title
	b.ComicScript = script
	r.runImages(ctx, b)
	b.Normalize()
	return b
}

func (r *Runner) newBundle(mode models.ResultType, filename string) *models.ResultBundle {
	return &models.ResultBundle{
		RunID:            uuid.NewString(),
		ResultType:       mode,
		OriginalFilename: filename,
		Timestamp:        r.now(),
	}
}

func (r *Runner) request(kind models.Kind, text string, panels int) models.GenerationRequest {
	return models.GenerationRequest{
		Kind:       kind,
		SourceText: text,
		PanelCount: panels,
		Params:     r.llm.Params(kind),
	}
}

func (r *Runner) runSocial(ctx context.Context, b *models.ResultBundle, text string) {
	item, err := r.generator.Generate(ctx, r.request(models.KindSocial, text, 0))
	if err != nil || item.Social == nil {
		if err == nil {
			err = fmt.Errorf("%w: empty social reply", apperr.ErrSchema)
		}
		b.AddError(StageSocial, generate.Describe(err))
		b.Topics = []string{"Error: " + err.Error()}
		b.LinkedInPosts = []models.LinkedInPost{}
		b.InstagramPosts = []models.InstagramPost{}

		var schemaErr *generate.SchemaError
		if errors.As(err, &schemaErr) && schemaErr.Raw != "" && r.toggles.LinkedIn {
			b.LinkedInPosts = []models.LinkedInPost{{
				Title:    rawResponseTitle,
				Content:  schemaErr.Raw,
				Hashtags: []string{},
			}}
		}
		return
	}

	b.Topics = item.Social.Topics
	b.LinkedInPosts = item.Social.LinkedInPosts
	b.InstagramPosts = item.Social.InstagramPosts
	if !r.toggles.LinkedIn {
		b.LinkedInPosts = []models.LinkedInPost{}
	}
	if !r.toggles.Instagram {
		b.InstagramPosts = []models.InstagramPost{}
	}
}

func (r *Runner) runCarousel(ctx context.Context, b *models.ResultBundle, text string, count int) {
	item, err := r.generator.Generate(ctx, r.request(models.KindCarousel, text, count))
	if err != nil {
		b.AddError(StageCarousel, generate.Describe(err))
		b.CarouselPanels = []models.CarouselPanel{{
			Title:           "Error",
			Text:            err.Error(),
			ImageSuggestion: "",
		}}
		return
	}
	b.CarouselPanels = item.Carousel
	if got := len(item.Carousel); got < count {
		b.AddError(StageCarousel, fmt.Sprintf("model returned %d of %d panels", got, count))
	}
}

// runComicScript reports whether a usable script was produced.
func (r *Runner) runComicScript(ctx context.Context, b *models.ResultBundle, text string, count int) bool {
	item, err := r.generator.Generate(ctx, r.request(models.KindComicScript, text, count))
	if err != nil {
		b.AddError(StageComicScript, generate.Describe(err))
		b.ComicScript = []models.ComicScriptPanel{}
		return false
	}
	b.ComicScript = item.Script
	for n := len(item.Script) + 1; n <= count; n++ {
		b.AddError(StageComicScript, fmt.Sprintf("panel %d missing from model reply", n))
	}
	return len(item.Script) > 0
}

func (r *Runner) runImages(ctx context.Context, b *models.ResultBundle) {
	if r.images == nil {
		return
	}
	b.ComicPanels = r.images.RenderRun(ctx, b.RunID, b.ComicScript)
	for _, err := range imagegen.Failures(b.ComicPanels) {
		b.AddError(StageComicImages, err.Error())
	}
}
