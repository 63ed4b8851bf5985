package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/modules/processing/extract"
	"github.com/mx-space/contentgen/internal/modules/processing/generate"
	"github.com/mx-space/contentgen/internal/modules/processing/llm"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
)

var allOn = config.ContentToggles{LinkedIn: true, Instagram: true, ComicScripts: true, ComicImages: true}

type fakeImages struct {
	calls  int
	failAt int
}

func (f *fakeImages) RenderRun(_ context.Context, _ string, script []models.ComicScriptPanel) []models.ImagePanel {
	f.calls++
	out := make([]models.ImagePanel, len(script))
	for i, p := range script {
		out[i] = models.ImagePanel{PanelNumber: p.Panel, Description: p.Description, Dialogue: p.Dialogue,
			ImageURL: fmt.Sprintf("https://img.example/%d.png", p.Panel)}
		if p.Panel == f.failAt {
			out[i].ImageURL = ""
			out[i].Error = "HTTP 500"
			out[i].Description += " (Error: HTTP 500)"
		}
	}
	return out
}

const socialReply = `{"topics":["a","b"],"linkedin_posts":[{"title":"t","content":"c","hashtags":["#x"]}],"instagram_posts":[{"caption":"c","image_suggestion":"i"}]}`

func carouselReply(n int) string {
	panels := make([]models.CarouselPanel, n)
	for i := range panels {
		panels[i] = models.CarouselPanel{Title: fmt.Sprint(i + 1), Text: "x", ImageSuggestion: "y"}
	}
	b, _ := json.Marshal(map[string]any{"carousel_panels": panels})
	return string(b)
}

func comicReply(n int) string {
	panels := make([]models.ComicScriptPanel, n)
	for i := range panels {
		panels[i] = models.ComicScriptPanel{Panel: n - i, Description: fmt.Sprintf("scene %d", n-i), Dialogue: "Hero: go"}
	}
	b, _ := json.Marshal(map[string]any{"comic_script": panels})
	return string(b)
}

// routedModel answers by the kind of prompt it receives and records every
// prompt.
type routedModel struct {
	social, carousel, comic func(req llm.Request) (string, error)
	prompts                 []string
}

func (m *routedModel) Complete(_ context.Context, req llm.Request) (string, error) {
	m.prompts = append(m.prompts, req.Prompt)
	switch {
	case strings.Contains(req.Prompt, `"carousel_panels"`):
		return m.carousel(req)
	case strings.Contains(req.Prompt, `"comic_script"`):
		return m.comic(req)
	default:
		return m.social(req)
	}
}

func reply(s string) func(llm.Request) (string, error) {
	return func(llm.Request) (string, error) { return s, nil }
}

func newRunner(client llm.Client, images ImageRenderer, toggles config.ContentToggles) *Runner {
	cfg := config.LLMConfig{MaxTokens: 2000, Temperature: 0.7, TopP: 1, ComicMaxTokens: 1500}
	return New(extract.New(nil), generate.New(client, config.BrandProfile{}, nil), images, cfg, toggles, nil)
}

func textDoc(body string) models.Document {
	doc, _ := models.NewDocument("notes.txt", []byte(body))
	return doc
}

func TestClamp(t *testing.T) {
	for k, want := range map[int]int{-1: 8, 0: 8, 3: 8, 4: 4, 8: 8, 12: 12, 13: 8} {
		if got := ClampCarousel(k); got != want {
			t.Errorf("ClampCarousel(%d) = %d, want %d", k, got, want)
		}
	}
	for k, want := range map[int]int{0: 4, 1: 4, 2: 2, 6: 6, 7: 4} {
		if got := ClampComic(k); got != want {
			t.Errorf("ClampComic(%d) = %d, want %d", k, got, want)
		}
	}
}

func TestStandardRunWithServerErrorDegradesSocial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"upstream exploded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := llm.New(config.LLMConfig{
		Provider: config.ProviderOpenAICompatible,
		APIKey:   "sk-test",
		BaseURL:  srv.URL,
		Model:    "grok-beta",
	}, srv.Client())
	b, err := newRunner(client, &fakeImages{}, allOn).Run(context.Background(), textDoc("Revenue grew."),
		RunOptions{Mode: models.ResultStandard})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if b.LinkedInPosts == nil || len(b.LinkedInPosts) != 0 || b.InstagramPosts == nil || len(b.InstagramPosts) != 0 {
		t.Errorf("posts = %+v / %+v", b.LinkedInPosts, b.InstagramPosts)
	}
	if len(b.Errors) != 1 || !strings.HasPrefix(b.Errors[0], "social: [transport]") {
		t.Errorf("errors = %v", b.Errors)
	}
	if len(b.Topics) != 1 || !strings.HasPrefix(b.Topics[0], "Error: ") {
		t.Errorf("topics = %v", b.Topics)
	}
	if b.ResultType != models.ResultStandard || b.OriginalFilename != "notes.txt" || b.RunID == "" {
		t.Errorf("bundle = %+v", b)
	}
}

func TestStandardRunSuccessAndToggles(t *testing.T) {
	model := &routedModel{social: reply(socialReply)}

	b, err := newRunner(model, nil, allOn).Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultStandard})
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Topics) != 2 || len(b.LinkedInPosts) != 1 || len(b.InstagramPosts) != 1 || len(b.Errors) != 0 {
		t.Errorf("bundle = %+v", b)
	}

	toggles := allOn
	toggles.Instagram = false
	b, _ = newRunner(model, nil, toggles).Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultStandard})
	if len(b.LinkedInPosts) != 1 || b.InstagramPosts == nil || len(b.InstagramPosts) != 0 {
		t.Errorf("instagram toggle ignored: %+v", b)
	}
}

func TestStandardRunSchemaErrorKeepsRawReply(t *testing.T) {
	model := &routedModel{social: reply("I cannot answer in JSON today.")}
	b, err := newRunner(model, nil, allOn).Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultStandard})
	if err != nil {
		t.Fatal(err)
	}
	if len(b.LinkedInPosts) != 1 || b.LinkedInPosts[0].Title != "Raw AI Response" ||
		b.LinkedInPosts[0].Content != "I cannot answer in JSON today." {
		t.Errorf("linkedin = %+v", b.LinkedInPosts)
	}
	if len(b.Errors) != 1 || !strings.HasPrefix(b.Errors[0], "social: [schema]") {
		t.Errorf("errors = %v", b.Errors)
	}
}

func TestCarouselRunClampsPanelCount(t *testing.T) {
	model := &routedModel{carousel: reply(carouselReply(12))}
	runner := newRunner(model, nil, allOn)

	for _, tc := range []struct{ in, want int }{{4, 4}, {12, 12}, {2, 8}, {20, 8}, {0, 8}} {
		b, err := runner.Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultCarousel, PanelCount: tc.in})
		if err != nil {
			t.Fatal(err)
		}
		if len(b.CarouselPanels) != tc.want {
			t.Errorf("panel_count=%d: got %d panels", tc.in, len(b.CarouselPanels))
		}
		if b.Topics != nil || b.ComicScript != nil {
			t.Errorf("carousel bundle carries foreign fields: %+v", b)
		}
	}
	if !strings.Contains(model.prompts[2], "8-panel") {
		t.Errorf("clamped prompt = %s", model.prompts[2])
	}
}

func TestCarouselFailureAddsErrorPanel(t *testing.T) {
	model := &routedModel{carousel: func(llm.Request) (string, error) {
		return "", fmt.Errorf("%w: deadline", apperr.ErrTimeout)
	}}
	b, err := newRunner(model, nil, allOn).Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultCarousel, PanelCount: 6})
	if err != nil {
		t.Fatal(err)
	}
	if len(b.CarouselPanels) != 1 || b.CarouselPanels[0].Title != "Error" {
		t.Errorf("panels = %+v", b.CarouselPanels)
	}
	if len(b.Errors) != 1 || !strings.HasPrefix(b.Errors[0], "carousel: [timeout]") {
		t.Errorf("errors = %v", b.Errors)
	}
}

func TestCombinedRunAllStages(t *testing.T) {
	images := &fakeImages{failAt: 2}
	model := &routedModel{
		carousel: reply(carouselReply(8)),
		comic:    reply(comicReply(4)),
	}
	b, err := newRunner(model, images, allOn).Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultCombined, PanelCount: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(b.CarouselPanels) != 8 || len(b.ComicScript) != 4 || len(b.ComicPanels) != 4 {
		t.Fatalf("counts = %d/%d/%d", len(b.CarouselPanels), len(b.ComicScript), len(b.ComicPanels))
	}
	if b.ComicScript[0].Panel != 1 || b.ComicScript[0].Description != "scene 1" {
		t.Errorf("script not ordered: %+v", b.ComicScript)
	}
	if len(b.Errors) != 1 || b.Errors[0] != "comic_images: panel 2: HTTP 500" {
		t.Errorf("errors = %v", b.Errors)
	}
	if len(model.prompts) != 2 || !strings.Contains(model.prompts[1], "4-panel comic") {
		t.Errorf("prompts = %d", len(model.prompts))
	}
}

func TestCombinedRunContinuesPastFailures(t *testing.T) {
	images := &fakeImages{}
	model := &routedModel{
		carousel: func(llm.Request) (string, error) { return "", fmt.Errorf("%w: HTTP 502", apperr.ErrTransport) },
		comic:    reply(`{"comic_script":"nope"}`),
	}
	b, err := newRunner(model, images, allOn).Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultCombined})
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Errors) != 2 || !strings.HasPrefix(b.Errors[0], "carousel:") || !strings.HasPrefix(b.Errors[1], "comic_script:") {
		t.Errorf("errors = %v", b.Errors)
	}
	if images.calls != 0 {
		t.Errorf("images rendered without a script")
	}
	if b.ComicScript == nil || b.ComicPanels == nil || len(b.ComicPanels) != 0 {
		t.Errorf("comic fields = %+v / %+v", b.ComicScript, b.ComicPanels)
	}
}

func TestCombinedRunRecordsMissingComicPanels(t *testing.T) {
	model := &routedModel{
		carousel: reply(carouselReply(8)),
		comic:    reply(comicReply(2)),
	}
	b, _ := newRunner(model, &fakeImages{}, allOn).Run(context.Background(), textDoc("text"),
		RunOptions{Mode: models.ResultCombined, ComicPanelCount: 4})
	want := []string{"comic_script: panel 3 missing from model reply", "comic_script: panel 4 missing from model reply"}
	if strings.Join(b.Errors, "|") != strings.Join(want, "|") {
		t.Errorf("errors = %v", b.Errors)
	}
	if len(b.ComicPanels) != 2 {
		t.Errorf("comic panels = %d", len(b.ComicPanels))
	}
}

func TestCombinedRunHonoursComicToggles(t *testing.T) {
	images := &fakeImages{}
	model := &routedModel{carousel: reply(carouselReply(8)), comic: reply(comicReply(4))}
	toggles := allOn
	toggles.ComicImages = false

	b, _ := newRunner(model, images, toggles).Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultCombined})
	if images.calls != 0 || len(b.ComicScript) != 4 || len(b.ComicPanels) != 0 {
		t.Errorf("images toggle ignored: calls=%d %+v", images.calls, b)
	}

	toggles.ComicScripts = false
	model.prompts = nil
	b, _ = newRunner(model, images, toggles).Run(context.Background(), textDoc("text"), RunOptions{Mode: models.ResultCombined})
	if len(model.prompts) != 1 || len(b.ComicScript) != 0 {
		t.Errorf("script toggle ignored: %d prompts", len(model.prompts))
	}
}

func TestExtractionFailureStopsRun(t *testing.T) {
	model := &routedModel{}
	_, err := newRunner(model, nil, allOn).Run(context.Background(), textDoc("   \n"), RunOptions{Mode: models.ResultStandard})
	if !errors.Is(err, apperr.ErrExtraction) || !errors.Is(err, extract.ErrEmptyContent) {
		t.Fatalf("err = %v", err)
	}
	if len(model.prompts) != 0 {
		t.Errorf("model called after extraction failure")
	}

	_, err = newRunner(model, nil, allOn).Run(context.Background(), textDoc("text"), RunOptions{Mode: "weird"})
	if !errors.Is(err, apperr.ErrConfig) {
		t.Errorf("unknown mode err = %v", err)
	}
}

func TestRunScript(t *testing.T) {
	images := &fakeImages{}
	script := []models.ComicScriptPanel{{Panel: 1, Description: "Rooftop", Dialogue: "Hero: hi"}}
	b := newRunner(&routedModel{}, images, allOn).RunScript(context.Background(), "Hero Story", script)
	if b.ResultType != models.ResultCombined || b.ComicTitle != "Hero Story" || len(b.ComicPanels) != 1 || len(b.Errors) != 0 {
		t.Errorf("bundle = %+v", b)
	}
}
