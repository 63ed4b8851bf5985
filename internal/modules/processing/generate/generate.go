// Package generate builds content prompts, calls the model and validates the
// JSON it returns.
package generate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/modules/processing/llm"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
)

// Generator turns one GenerationRequest into one ContentItem.
type Generator struct {
	client llm.Client
	brand  config.BrandProfile
	log    *zap.Logger
}

func New(client llm.Client, brand config.BrandProfile, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{client: client, brand: brand, log: log}
}

// Generate runs a single model call. Errors are apperr kinds; a reply that
// does not match the schema is returned as *SchemaError.
func (g *Generator) Generate(ctx context.Context, req models.GenerationRequest) (models.ContentItem, error) {
	item := models.ContentItem{Kind: req.Kind}
	switch req.Kind {
	case models.KindSocial:
	case models.KindCarousel, models.KindComicScript:
		if req.PanelCount < 1 {
			return item, apperr.Configf("%s needs a positive panel count, got %d", req.Kind, req.PanelCount)
		}
	default:
		return item, apperr.Configf("unknown content kind %q", req.Kind)
	}

	start := time.Now()
	raw, err := g.client.Complete(ctx, llm.Request{
		Prompt:      BuildPrompt(req, g.brand),
		MaxTokens:   req.Params.MaxTokens,
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		Timeout:     req.Params.Timeout,
	})
	if err != nil {
		g.log.Warn("model call failed",
			zap.String("kind", string(req.Kind)),
			zap.String("error_kind", apperr.Kind(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return item, err
	}

	switch req.Kind {
	case models.KindSocial:
		item.Social, err = parseSocial(raw)
	case models.KindCarousel:
		item.Carousel, err = parseCarousel(raw, req.PanelCount)
	case models.KindComicScript:
		item.Script, err = parseComicScript(raw, req.PanelCount)
	}
	if err != nil {
		g.log.Warn("model reply rejected",
			zap.String("kind", string(req.Kind)),
			zap.Int("reply_len", len(raw)),
			zap.Error(err),
		)
		return item, err
	}

	g.log.Info("content generated",
		zap.String("kind", string(req.Kind)),
		zap.Int("items", itemCount(item)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return item, nil
}

func itemCount(item models.ContentItem) int {
	switch item.Kind {
	case models.KindSocial:
		if item.Social == nil {
			return 0
		}
		return len(item.Social.LinkedInPosts) + len(item.Social.InstagramPosts)
	case models.KindCarousel:
		return len(item.Carousel)
	case models.KindComicScript:
		return len(item.Script)
	}
	return 0
}

// Describe returns a short human-readable form of err for bundle entries.
func Describe(err error) string {
	return fmt.Sprintf("[%s] %v", apperr.Kind(err), err)
}
