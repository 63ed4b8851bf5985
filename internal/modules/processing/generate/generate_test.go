package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/modules/processing/llm"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
)

func fixedReply(reply string) llm.Client {
	return llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		return reply, nil
	})
}

func carouselReply(n int) string {
	panels := make([]map[string]string, n)
	for i := range panels {
		panels[i] = map[string]string{
			"title":            fmt.Sprintf("Slide %d", i+1),
			"text":             "Body",
			"image_suggestion": "Sky",
		}
	}
	b, _ := json.Marshal(map[string]any{"carousel_panels": panels})
	return string(b)
}

func TestCarouselReturnsExactlyRequestedCount(t *testing.T) {
	g := New(fixedReply(carouselReply(12)), config.BrandProfile{}, nil)
	for k := 4; k <= 12; k++ {
		item, err := g.Generate(context.Background(), models.GenerationRequest{
			Kind:       models.KindCarousel,
			SourceText: "text",
			PanelCount: k,
			Params:     models.ModelParams{MaxTokens: 100},
		})
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if len(item.Carousel) != k {
			t.Errorf("k=%d: got %d panels", k, len(item.Carousel))
		}
		if item.Carousel[0].Title != "Slide 1" {
			t.Errorf("k=%d: first panel = %+v", k, item.Carousel[0])
		}
	}
}

func TestComicScriptSortedAndRenumbered(t *testing.T) {
	reply := "```json\n" + `{"comic_script":[
		{"panel":6,"description":"six","dialogue":""},
		{"panel":2,"description":"two","dialogue":"Ann: hi"},
		{"panel":5,"description":"five","dialogue":null},
		{"panel":1,"description":"one","dialogue":"Bob: hey"},
		{"panel":4,"description":"four","dialogue":[{"character":"Ann","text":"go"}]},
		{"panel":"3","description":"three","dialogue":""}
	]}` + "\n```"
	g := New(fixedReply(reply), config.BrandProfile{}, nil)

	for k := 2; k <= 6; k++ {
		item, err := g.Generate(context.Background(), models.GenerationRequest{
			Kind:       models.KindComicScript,
			SourceText: "story",
			PanelCount: k,
		})
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if len(item.Script) != k {
			t.Fatalf("k=%d: got %d panels", k, len(item.Script))
		}
		want := []string{"one", "two", "three", "four", "five", "six"}
		for i, p := range item.Script {
			if p.Panel != i+1 || p.Description != want[i] {
				t.Errorf("k=%d: panel %d = %+v", k, i, p)
			}
		}
	}

	item, _ := g.Generate(context.Background(), models.GenerationRequest{Kind: models.KindComicScript, PanelCount: 6})
	if item.Script[3].Dialogue != "Ann: go" || item.Script[4].Dialogue != "" {
		t.Errorf("dialogue = %q / %q", item.Script[3].Dialogue, item.Script[4].Dialogue)
	}
}

func TestComicScriptRenumbersGaps(t *testing.T) {
	reply := `{"comic_script":[{"panel":3,"description":"b","dialogue":""},{"panel":1,"description":"a","dialogue":""}]}`
	item, err := New(fixedReply(reply), config.BrandProfile{}, nil).Generate(context.Background(),
		models.GenerationRequest{Kind: models.KindComicScript, PanelCount: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(item.Script) != 2 || item.Script[1].Panel != 2 || item.Script[1].Description != "b" {
		t.Errorf("script = %+v", item.Script)
	}
}

func TestSocialTruncatesToCaps(t *testing.T) {
	reply := `Sure! Here you go:
{"topics":["a","b","c","d","e","f","g"],
 "linkedin_posts":[{"title":"1","content":"x"},{"title":"2","content":"x","hashtags":["#a"]},{"title":"3","content":"x"},{"title":"4","content":"x"}],
 "instagram_posts":[{"caption":"1","image_suggestion":"i"},{"caption":"2","image_suggestion":"i"},{"caption":"3","image_suggestion":"i"}]}
Hope that helps.`
	item, err := New(fixedReply(reply), config.BrandProfile{}, nil).Generate(context.Background(),
		models.GenerationRequest{Kind: models.KindSocial, SourceText: "t"})
	if err != nil {
		t.Fatal(err)
	}
	s := item.Social
	if len(s.Topics) != 5 || len(s.LinkedInPosts) != 3 || len(s.InstagramPosts) != 2 {
		t.Errorf("counts = %d/%d/%d", len(s.Topics), len(s.LinkedInPosts), len(s.InstagramPosts))
	}
	if s.LinkedInPosts[0].Hashtags == nil || len(s.LinkedInPosts[1].Hashtags) != 1 {
		t.Errorf("hashtags = %+v", s.LinkedInPosts)
	}
}

func TestSchemaErrorKeepsRawReply(t *testing.T) {
	cases := map[models.Kind]string{
		models.KindSocial:      `{"topics":["a"],"linkedin_posts":[]}`,
		models.KindCarousel:    `{"carousel_panels":[{"title":"t","text":"x"}]}`,
		models.KindComicScript: `not json at all`,
	}
	for kind, reply := range cases {
		_, err := New(fixedReply(reply), config.BrandProfile{}, nil).Generate(context.Background(),
			models.GenerationRequest{Kind: kind, PanelCount: 4})
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("%s: err = %v", kind, err)
		}
		if schemaErr.Raw != reply || schemaErr.Kind != kind {
			t.Errorf("%s: schema error = %+v", kind, schemaErr)
		}
		if !errors.Is(err, apperr.ErrSchema) || apperr.Kind(err) != "schema" {
			t.Errorf("%s: not classified as schema", kind)
		}
	}
}

func TestEmptyComicScriptIsSchemaError(t *testing.T) {
	_, err := New(fixedReply(`{"comic_script":[]}`), config.BrandProfile{}, nil).Generate(context.Background(),
		models.GenerationRequest{Kind: models.KindComicScript, PanelCount: 4})
	if !errors.Is(err, apperr.ErrSchema) {
		t.Fatalf("err = %v", err)
	}
}

func TestTransportErrorPassesThrough(t *testing.T) {
	failing := llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		return "", fmt.Errorf("%w: HTTP 500", apperr.ErrTransport)
	})
	_, err := New(failing, config.BrandProfile{}, nil).Generate(context.Background(),
		models.GenerationRequest{Kind: models.KindSocial})
	if !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("err = %v", err)
	}
	if !strings.HasPrefix(Describe(err), "[transport]") {
		t.Errorf("Describe = %q", Describe(err))
	}
}

func TestPromptUsesCharBudgetAndParams(t *testing.T) {
	var got llm.Request
	spy := llm.ClientFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return carouselReply(4), nil
	})
	source := strings.Repeat("a", 1000)
	_, err := New(spy, config.BrandProfile{}, nil).Generate(context.Background(), models.GenerationRequest{
		Kind:       models.KindCarousel,
		SourceText: source,
		PanelCount: 4,
		Params:     models.ModelParams{MaxTokens: 10, Temperature: 0.3, TopP: 0.9},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Prompt, strings.Repeat("a", 20)) || strings.Contains(got.Prompt, strings.Repeat("a", 21)) {
		t.Errorf("excerpt not limited to 20 chars")
	}
	if !strings.Contains(got.Prompt, "exactly 4 objects") || !strings.Contains(got.Prompt, `"image_suggestion"`) {
		t.Errorf("schema missing from prompt: %s", got.Prompt)
	}
	if got.MaxTokens != 10 || got.Temperature != 0.3 || got.TopP != 0.9 {
		t.Errorf("params = %+v", got)
	}
}

func TestBrandProfileOnlyInSocialPrompt(t *testing.T) {
	brand := config.BrandProfile{Name: "Acme", Voice: "Friendly", Goals: []string{"grow"}}
	social := BuildPrompt(models.GenerationRequest{Kind: models.KindSocial, SourceText: "x"}, brand)
	if !strings.Contains(social, "- Name: Acme") || !strings.Contains(social, "- Goals: grow") {
		t.Errorf("social prompt = %s", social)
	}
	comic := BuildPrompt(models.GenerationRequest{Kind: models.KindComicScript, SourceText: "x", PanelCount: 4}, brand)
	if strings.Contains(comic, "Acme") {
		t.Errorf("brand leaked into comic prompt")
	}
	if plain := BuildPrompt(models.GenerationRequest{Kind: models.KindSocial}, config.BrandProfile{}); strings.Contains(plain, "company") {
		t.Errorf("empty brand should add nothing")
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q", in, got)
		}
	}
}

func TestApproxCharBudget(t *testing.T) {
	if ApproxCharBudget(2000) != 4000 || ApproxCharBudget(0) != 0 {
		t.Error("budget should be twice max tokens")
	}
	if got := truncateText("héllo", 2); got != "hé" {
		t.Errorf("truncateText = %q", got)
	}
}

func TestInvalidPanelCount(t *testing.T) {
	_, err := New(fixedReply("{}"), config.BrandProfile{}, nil).Generate(context.Background(),
		models.GenerationRequest{Kind: models.KindCarousel, PanelCount: 0})
	if !errors.Is(err, apperr.ErrConfig) {
		t.Fatalf("err = %v", err)
	}
}
