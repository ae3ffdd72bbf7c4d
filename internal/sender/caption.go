package sender

import (
	"strings"
)

// WireframeTag marks wireframe renders. The spelling is what the chat
// archive is searched by.
const WireframeTag = "#wareframe"

// Message is the form content the caption is composed from.
type Message struct {
	Text      string `json:"text"`
	Project   string `json:"project"`
	Asset     string `json:"asset"`
	Wireframe bool   `json:"wireframe"`
}

// ComposeCaption builds the group caption: optional free text on its own
// line, then the project and the asset hashtag.
func ComposeCaption(m Message) (string, error) {
	asset := strings.TrimSpace(m.Asset)
	if asset == "" {
		return "", ErrNoAsset
	}
	project := strings.TrimSpace(m.Project)
	if project == "" {
		return "", ErrNoProject
	}

	var b strings.Builder
	if text := strings.TrimSpace(m.Text); text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	b.WriteString(project)
	b.WriteString(" #")
	b.WriteString(strings.Join(strings.Fields(asset), "_"))
	if m.Wireframe {
		b.WriteString(" " + WireframeTag)
	}
	return b.String(), nil
}
