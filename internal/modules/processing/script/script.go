// Package script parses free-form comic scripts and formats generated ones
// for download.
package script

import (
	"fmt"
	"strings"

	"github.com/mx-space/contentgen/internal/models"
)

type DialogueLine struct {
	Character string `json:"character"`
	Text      string `json:"text"`
}

// Panel is one scene of a hand-written script.
type Panel struct {
	Number      int            `json:"panel"`
	Description string         `json:"description"`
	Dialogue    []DialogueLine `json:"dialogue"`
}

var panelMarkers = []string{"panel", "scene", "frame"}

func isPanelHeader(line string) bool {
	if !strings.Contains(line, ":") {
		return false
	}
	lower := strings.ToLower(line)
	for _, marker := range panelMarkers {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}

// Parse splits text into panels. A line starting with panel, scene or frame
// and containing a colon opens a panel; other "Name: text" lines are dialogue;
// everything else extends the current description. Lines starting with # or
// // are comments. Panels without a description are dropped.
func Parse(text string) []Panel {
	panels := make([]Panel, 0)
	current := Panel{Dialogue: []DialogueLine{}}

	flush := func() {
		if current.Description == "" {
			return
		}
		current.Number = len(panels) + 1
		panels = append(panels, current)
		current = Panel{Dialogue: []DialogueLine{}}
	}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		switch {
		case isPanelHeader(line):
			flush()
			_, rest, _ := strings.Cut(line, ":")
			current.Description = strings.TrimSpace(rest)
		case strings.Contains(line, ":"):
			character, said, _ := strings.Cut(line, ":")
			current.Dialogue = append(current.Dialogue, DialogueLine{
				Character: strings.TrimSpace(character),
				Text:      strings.TrimSpace(said),
			})
		default:
			if current.Description == "" {
				current.Description = line
			} else {
				current.Description += " " + line
			}
		}
	}
	flush()
	return panels
}

// ToScriptPanels flattens dialogue into "Name: line" rows so parsed panels
// can go through the image generator.
func ToScriptPanels(panels []Panel) []models.ComicScriptPanel {
	out := make([]models.ComicScriptPanel, 0, len(panels))
	for i, p := range panels {
		lines := make([]string, 0, len(p.Dialogue))
		for _, d := range p.Dialogue {
			lines = append(lines, d.Character+": "+d.Text)
		}
		out = append(out, models.ComicScriptPanel{
			Panel:       i + 1,
			Description: p.Description,
			Dialogue:    strings.Join(lines, "\n"),
		})
	}
	return out
}

// FromScriptPanels is the inverse of ToScriptPanels. Dialogue rows without a
// speaker are kept with an empty Character.
func FromScriptPanels(panels []models.ComicScriptPanel) []Panel {
	out := make([]Panel, 0, len(panels))
	for _, p := range panels {
		panel := Panel{Number: p.Panel, Description: p.Description, Dialogue: []DialogueLine{}}
		for _, row := range strings.Split(p.Dialogue, "\n") {
			row = strings.TrimSpace(row)
			if row == "" {
				continue
			}
			if character, said, ok := strings.Cut(row, ":"); ok {
				panel.Dialogue = append(panel.Dialogue, DialogueLine{
					Character: strings.TrimSpace(character),
					Text:      strings.TrimSpace(said),
				})
				continue
			}
			panel.Dialogue = append(panel.Dialogue, DialogueLine{Text: row})
		}
		out = append(out, panel)
	}
	return out
}

const defaultTitle = "Untitled Comic"

// Export renders panels in the downloadable Markdown script format.
func Export(title string, panels []Panel) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### **Comic Script Title: %q**\n\n", title)
	b.WriteString("---\n\n")
	for i, p := range panels {
		fmt.Fprintf(&b, "**Panel %d:**\n", i+1)
		fmt.Fprintf(&b, "*Scene: %s*\n\n", p.Description)
		if len(p.Dialogue) > 0 {
			for _, d := range p.Dialogue {
				if d.Character == "" {
					fmt.Fprintf(&b, "%s\n", d.Text)
					continue
				}
				fmt.Fprintf(&b, "**%s:** %s\n", d.Character, d.Text)
			}
			b.WriteString("\n")
		}
		b.WriteString("---\n\n")
	}
	b.WriteString("**End**\n")
	return b.String()
}
