package generate

import (
	"fmt"
	"strings"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/models"
)

// Output caps for the social reply. Items past these are dropped.
const (
	maxTopics         = 5
	maxLinkedInPosts  = 3
	maxInstagramPosts = 2
)

// ApproxCharBudget is how many characters of source text go into a prompt.
// Two characters per output token is a rough proxy, not a tokenizer count.
func ApproxCharBudget(maxTokens int) int {
	if maxTokens <= 0 {
		return 0
	}
	return 2 * maxTokens
}

func truncateText(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}

const socialPrompt = `Analyze the text below and suggest social media content.
Reply with a single JSON object and nothing else. It must have exactly these keys:
1. "topics": a list of 5 short topic strings drawn from the text.
2. "linkedin_posts": a list of 2-3 objects, each with "title" (string), "content" (string) and "hashtags" (list of strings).
3. "instagram_posts": a list of 1-2 objects, each with "caption" (string) and "image_suggestion" (string).
%s
Text:
%s
`

const carouselPrompt = `Using the text below, write a %[1]d-panel Facebook/Instagram carousel ad.
Reply with a single JSON object and nothing else, with one key "carousel_panels" whose value is a list of exactly %[1]d objects.
Every object needs these keys:
1. "title": a short, catchy headline (string, at most 5 words).
2. "text": one or two engaging sentences for the panel body (string, at most 25 words).
3. "image_suggestion": a brief idea for the panel's background image (string).
The panels should flow as one coherent story.

Text:
%[2]s
`

const comicPrompt = `Read the text below and write a %[1]d-panel comic script that tells its key points as a short story.
Reply with a single JSON object and nothing else, with one key "comic_script" whose value is a list of exactly %[1]d objects.
Every object needs these keys:
1. "panel": the panel number (integer, starting at 1).
2. "description": a vivid visual description of the scene for an image generator (string, at most 30 words).
3. "dialogue": dialogue or caption for the panel written as "Name: line" (string, at most 20 words, empty string if none).

Text:
%[2]s
`

// BuildPrompt renders the single user message for req.
func BuildPrompt(req models.GenerationRequest, brand config.BrandProfile) string {
	excerpt := truncateText(req.SourceText, ApproxCharBudget(req.Params.MaxTokens))
	switch req.Kind {
	case models.KindCarousel:
		return fmt.Sprintf(carouselPrompt, req.PanelCount, excerpt)
	case models.KindComicScript:
		return fmt.Sprintf(comicPrompt, req.PanelCount, excerpt)
	default:
		return fmt.Sprintf(socialPrompt, brandContext(brand), excerpt)
	}
}

func brandContext(b config.BrandProfile) string {
	if b.IsZero() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nWrite on behalf of this company:\n")
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", label, value)
		}
	}
	line("Name", b.Name)
	line("About", b.Description)
	line("Brand voice", b.Voice)
	line("Tone", b.Tone)
	line("Target audience", b.TargetAudience)
	if len(b.Goals) > 0 {
		line("Goals", strings.Join(b.Goals, "; "))
	}
	return sb.String()
}
