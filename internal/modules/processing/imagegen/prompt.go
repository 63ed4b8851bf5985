package imagegen

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mx-space/contentgen/internal/models"
)

const maxSpeakerNameLen = 32

// speakers collects the distinct names that open "Name: line" dialogue rows,
// in first-seen order.
func speakers(script []models.ComicScriptPanel) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range script {
		for _, row := range strings.Split(p.Dialogue, "\n") {
			name, _, ok := strings.Cut(row, ":")
			name = strings.TrimSpace(name)
			if !ok || name == "" || utf8.RuneCountInString(name) > maxSpeakerNameLen {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// buildPrompt composes the text sent for panel index i of total.
func buildPrompt(stylePrefix string, characters []string, previous, description string, i, total int) string {
	parts := make([]string, 0, 5)
	if s := strings.TrimSpace(stylePrefix); s != "" {
		parts = append(parts, s)
	}
	if len(characters) > 0 {
		parts = append(parts, fmt.Sprintf(
			"Characters: %s. Maintain consistent character appearances throughout all panels.",
			strings.Join(characters, ", ")))
	}
	if i > 0 && strings.TrimSpace(previous) != "" {
		parts = append(parts, fmt.Sprintf("This follows the previous panel where: %s.",
			strings.TrimRight(strings.TrimSpace(previous), ".")))
	}
	parts = append(parts, fmt.Sprintf("This is panel %d of %d.", i+1, total))
	parts = append(parts, "Panel content: "+strings.TrimSpace(description))
	return strings.Join(parts, " ")
}
