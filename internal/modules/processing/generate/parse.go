package generate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mx-space/contentgen/internal/models"
	"github.com/mx-space/contentgen/internal/pkg/apperr"
)

// SchemaError means the model answered but the reply was not the JSON asked
// for. Raw keeps the reply for diagnosis.
type SchemaError struct {
	Kind   models.Kind
	Raw    string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s reply: %s", e.Kind, e.Reason)
}

func (e *SchemaError) Unwrap() error { return apperr.ErrSchema }

var errNotJSON = errors.New("reply is not valid JSON")

// stripFences removes a leading ```json or ``` marker and a trailing ```.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimPrefix(cleaned, prefix)
			break
		}
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// decodeObject parses the reply into top-level keys, falling back to the
// outermost {...} when the model wrapped the JSON in prose.
func decodeObject(raw string) (map[string]json.RawMessage, error) {
	cleaned := stripFences(raw)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil && obj != nil {
		return obj, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}
	return nil, errNotJSON
}

func requireKeys(obj map[string]json.RawMessage, keys ...string) error {
	var missing []string
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required key(s) %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseSocial(raw string) (*models.SocialBundle, error) {
	schemaErr := func(reason string) error {
		return &SchemaError{Kind: models.KindSocial, Raw: raw, Reason: reason}
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return nil, schemaErr(err.Error())
	}
	if err := requireKeys(obj, "topics", "linkedin_posts", "instagram_posts"); err != nil {
		return nil, schemaErr(err.Error())
	}

	var out models.SocialBundle
	if err := json.Unmarshal(obj["topics"], &out.Topics); err != nil {
		return nil, schemaErr("topics must be a list of strings")
	}
	if err := json.Unmarshal(obj["linkedin_posts"], &out.LinkedInPosts); err != nil {
		return nil, schemaErr("linkedin_posts must be a list of {title, content, hashtags}")
	}
	if err := json.Unmarshal(obj["instagram_posts"], &out.InstagramPosts); err != nil {
		return nil, schemaErr("instagram_posts must be a list of {caption, image_suggestion}")
	}

	out.Topics = truncate(out.Topics, maxTopics)
	out.LinkedInPosts = truncate(out.LinkedInPosts, maxLinkedInPosts)
	out.InstagramPosts = truncate(out.InstagramPosts, maxInstagramPosts)
	for i := range out.LinkedInPosts {
		if out.LinkedInPosts[i].Hashtags == nil {
			out.LinkedInPosts[i].Hashtags = []string{}
		}
	}
	return &out, nil
}

func parseCarousel(raw string, count int) ([]models.CarouselPanel, error) {
	schemaErr := func(reason string) error {
		return &SchemaError{Kind: models.KindCarousel, Raw: raw, Reason: reason}
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return nil, schemaErr(err.Error())
	}
	if err := requireKeys(obj, "carousel_panels"); err != nil {
		return nil, schemaErr(err.Error())
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(obj["carousel_panels"], &items); err != nil {
		return nil, schemaErr("carousel_panels must be a list of objects")
	}
	if len(items) == 0 {
		return nil, schemaErr("carousel_panels is empty")
	}

	items = truncate(items, count)
	panels := make([]models.CarouselPanel, 0, len(items))
	for i, item := range items {
		if err := requireKeys(item, "title", "text", "image_suggestion"); err != nil {
			return nil, schemaErr(fmt.Sprintf("panel %d: %v", i+1, err))
		}
		var p models.CarouselPanel
		if json.Unmarshal(item["title"], &p.Title) != nil ||
			json.Unmarshal(item["text"], &p.Text) != nil ||
			json.Unmarshal(item["image_suggestion"], &p.ImageSuggestion) != nil {
			return nil, schemaErr(fmt.Sprintf("panel %d: fields must be strings", i+1))
		}
		panels = append(panels, p)
	}
	return panels, nil
}

func parseComicScript(raw string, count int) ([]models.ComicScriptPanel, error) {
	schemaErr := func(reason string) error {
		return &SchemaError{Kind: models.KindComicScript, Raw: raw, Reason: reason}
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return nil, schemaErr(err.Error())
	}
	if err := requireKeys(obj, "comic_script"); err != nil {
		return nil, schemaErr(err.Error())
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(obj["comic_script"], &items); err != nil {
		return nil, schemaErr("comic_script must be a list of objects")
	}
	if len(items) == 0 {
		return nil, schemaErr("comic_script is empty")
	}

	panels := make([]models.ComicScriptPanel, 0, len(items))
	for i, item := range items {
		if err := requireKeys(item, "panel", "description"); err != nil {
			return nil, schemaErr(fmt.Sprintf("panel %d: %v", i+1, err))
		}
		if _, ok := item["dialogue"]; !ok {
			return nil, schemaErr(fmt.Sprintf("panel %d: missing required key(s) dialogue", i+1))
		}
		number, err := panelNumber(item["panel"])
		if err != nil {
			return nil, schemaErr(fmt.Sprintf("panel %d: %v", i+1, err))
		}
		var description string
		if err := json.Unmarshal(item["description"], &description); err != nil {
			return nil, schemaErr(fmt.Sprintf("panel %d: description must be a string", i+1))
		}
		dialogue, err := dialogueText(item["dialogue"])
		if err != nil {
			return nil, schemaErr(fmt.Sprintf("panel %d: %v", i+1, err))
		}
		panels = append(panels, models.ComicScriptPanel{
			Panel:       number,
			Description: description,
			Dialogue:    dialogue,
		})
	}

	sort.SliceStable(panels, func(i, j int) bool { return panels[i].Panel < panels[j].Panel })
	panels = truncate(panels, count)
	for i := range panels {
		panels[i].Panel = i + 1
	}
	return panels, nil
}

// panelNumber accepts 3, 3.0 and "3".
func panelNumber(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, errors.New("panel must be a number")
		}
		n = json.Number(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || f < 1 || f != float64(int(f)) {
		return 0, fmt.Errorf("panel must be a positive integer, got %s", n)
	}
	return int(f), nil
}

// dialogueText accepts a string, null, or a list of {character, text} lines.
func dialogueText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var lines []struct {
		Character string `json:"character"`
		Text      string `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &lines); err != nil {
		return "", errors.New("dialogue must be a string")
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		switch {
		case l.Character != "" && l.Text != "":
			out = append(out, l.Character+": "+l.Text)
		case l.Text != "":
			out = append(out, l.Text)
		}
	}
	return strings.Join(out, "\n"), nil
}

func truncate[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
