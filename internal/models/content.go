package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind selects what a single LLM call should produce.
type Kind string

const (
	KindSocial      Kind = "social"
	KindCarousel    Kind = "carousel"
	KindComicScript Kind = "comic_script"
)

// ResultType is the orchestration mode a bundle was produced by.
type ResultType string

const (
	ResultStandard ResultType = "standard"
	ResultCarousel ResultType = "carousel"
	ResultCombined ResultType = "combined"
)

// ParseResultType accepts the three run modes, case-insensitively.
func ParseResultType(raw string) (ResultType, bool) {
	t := ResultType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case ResultStandard, ResultCarousel, ResultCombined:
		return t, true
	}
	return "", false
}

// ModelParams are the sampling parameters sent with a chat completion.
type ModelParams struct {
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Timeout     time.Duration `json:"-"`
}

// GenerationRequest is one LLM call.
type GenerationRequest struct {
	Kind       Kind
	SourceText string
	PanelCount int
	Params     ModelParams
}

type LinkedInPost struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Hashtags []string `json:"hashtags"`
}

type InstagramPost struct {
	Caption         string `json:"caption"`
	ImageSuggestion string `json:"image_suggestion"`
}

// SocialBundle is the reply to a social request.
type SocialBundle struct {
	Topics         []string        `json:"topics"`
	LinkedInPosts  []LinkedInPost  `json:"linkedin_posts"`
	InstagramPosts []InstagramPost `json:"instagram_posts"`
}

type CarouselPanel struct {
	Title           string `json:"title"`
	Text            string `json:"text"`
	ImageSuggestion string `json:"image_suggestion"`
}

type ComicScriptPanel struct {
	Panel       int    `json:"panel"`
	Description string `json:"description"`
	Dialogue    string `json:"dialogue"`
}

// ContentItem holds exactly one of the three reply shapes, selected by Kind.
type ContentItem struct {
	Kind     Kind
	Social   *SocialBundle
	Carousel []CarouselPanel
	Script   []ComicScriptPanel
}

// ImagePanel is a comic panel after image generation.
type ImagePanel struct {
	PanelNumber int    `json:"panel_number"`
	Description string `json:"description"`
	Dialogue    string `json:"dialogue"`
	ImageURL    string `json:"image_url"`
	Error       string `json:"error,omitempty"`
}

// ResultBundle is the persisted output of one run.
type ResultBundle struct {
	RunID            string             `json:"run_id,omitempty"`
	ResultType       ResultType         `json:"result_type"`
	OriginalFilename string             `json:"original_filename"`
	Timestamp        time.Time          `json:"timestamp"`
	Topics           []string           `json:"topics"`
	LinkedInPosts    []LinkedInPost     `json:"linkedin_posts"`
	InstagramPosts   []InstagramPost    `json:"instagram_posts"`
	CarouselPanels   []CarouselPanel    `json:"carousel_panels"`
	ComicTitle       string             `json:"comic_title,omitempty"`
	ComicScript      []ComicScriptPanel `json:"comic_script"`
	ComicPanels      []ImagePanel       `json:"comic_panels"`
	Errors           []string           `json:"errors"`
}

// AddError appends a stage-prefixed error entry.
func (b *ResultBundle) AddError(stage, message string) {
	b.Errors = append(b.Errors, stage+": "+message)
}

// Normalize replaces nil slices owned by the result type with empty ones so a
// bundle reads back exactly as it was written.
func (b *ResultBundle) Normalize() {
	if b.Errors == nil {
		b.Errors = []string{}
	}
	switch b.ResultType {
	case ResultStandard:
		if b.Topics == nil {
			b.Topics = []string{}
		}
		if b.LinkedInPosts == nil {
			b.LinkedInPosts = []LinkedInPost{}
		}
		if b.InstagramPosts == nil {
			b.InstagramPosts = []InstagramPost{}
		}
	case ResultCarousel:
		if b.CarouselPanels == nil {
			b.CarouselPanels = []CarouselPanel{}
		}
	case ResultCombined:
		if b.CarouselPanels == nil {
			b.CarouselPanels = []CarouselPanel{}
		}
		if b.ComicScript == nil {
			b.ComicScript = []ComicScriptPanel{}
		}
		if b.ComicPanels == nil {
			b.ComicPanels = []ImagePanel{}
		}
	}
}

type bundleJSON struct {
	RunID            string              `json:"run_id,omitempty"`
	ResultType       ResultType          `json:"result_type"`
	OriginalFilename string              `json:"original_filename"`
	Timestamp        time.Time           `json:"timestamp"`
	Topics           *[]string           `json:"topics,omitempty"`
	LinkedInPosts    *[]LinkedInPost     `json:"linkedin_posts,omitempty"`
	InstagramPosts   *[]InstagramPost    `json:"instagram_posts,omitempty"`
	CarouselPanels   *[]CarouselPanel    `json:"carousel_panels,omitempty"`
	ComicTitle       string              `json:"comic_title,omitempty"`
	ComicScript      *[]ComicScriptPanel `json:"comic_script,omitempty"`
	ComicPanels      *[]ImagePanel       `json:"comic_panels,omitempty"`
	Errors           []string            `json:"errors"`
}

// MarshalJSON writes only the content fields that are set, so a standard
// bundle carries no carousel keys and vice versa.
func (b ResultBundle) MarshalJSON() ([]byte, error) {
	out := bundleJSON{
		RunID:            b.RunID,
		ResultType:       b.ResultType,
		OriginalFilename: b.OriginalFilename,
		Timestamp:        b.Timestamp,
		ComicTitle:       b.ComicTitle,
		Errors:           b.Errors,
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	if b.Topics != nil {
		out.Topics = &b.Topics
	}
	if b.LinkedInPosts != nil {
		out.LinkedInPosts = &b.LinkedInPosts
	}
	if b.InstagramPosts != nil {
		out.InstagramPosts = &b.InstagramPosts
	}
	if b.CarouselPanels != nil {
		out.CarouselPanels = &b.CarouselPanels
	}
	if b.ComicScript != nil {
		out.ComicScript = &b.ComicScript
	}
	if b.ComicPanels != nil {
		out.ComicPanels = &b.ComicPanels
	}
	return json.Marshal(out)
}
