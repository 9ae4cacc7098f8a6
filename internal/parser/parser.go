// Package parser splits a generation reply into the pieces the playground
// needs: the App component, its stylesheet, the raw code region that is sent
// back as a reference, and the explanation shown in the chat.
package parser

import (
	"fmt"
	"strings"
)

const (
	ExplanationMarker = "Response:"
	AppStart          = "import"
	AppEnd            = "export default App;"
	StyleMarker       = "```css"
)

// Fragment is one slice of a reply. Found reports whether the markers that
// bound it were present; Text may still be non-empty when Found is false
// (an explanation without a marker is the whole reply).
type Fragment struct {
	Text  string `json:"text" yaml:"text"`
	Found bool   `json:"found" yaml:"found"`
}

type Reply struct {
	Code        Fragment `json:"code" yaml:"code"`
	App         Fragment `json:"app" yaml:"app"`
	Style       Fragment `json:"style" yaml:"style"`
	Explanation Fragment `json:"explanation" yaml:"explanation"`
}

// Missing names the fragments whose markers were absent.
func (r Reply) Missing() []string {
	var missing []string
	if !r.Code.Found {
		missing = append(missing, "code")
	}
	if !r.App.Found {
		missing = append(missing, "app")
	}
	if !r.Style.Found {
		missing = append(missing, "style")
	}
	if !r.Explanation.Found {
		missing = append(missing, "explanation")
	}
	return missing
}

// Func is the signature shared by Parse and ParseLegacy.
type Func func(text string) Reply

func ByName(name string) (Func, error) {
	switch name {
	case "", "structured":
		return Parse, nil
	case "legacy":
		return ParseLegacy, nil
	default:
		return nil, fmt.Errorf("unknown parser %q", name)
	}
}

var appLanguages = map[string]bool{
	"":           true,
	"js":         true,
	"jsx":        true,
	"javascript": true,
	"ts":         true,
	"tsx":        true,
	"typescript": true,
	"react":      true,
}

// Parse reads fenced blocks and keyword boundaries instead of raw offsets.
// Everything before the first "Response:" is the code region; the App
// fragment runs from the first "import" through "export default App;".
func Parse(text string) Reply {
	var r Reply

	region := text
	if i := strings.Index(text, ExplanationMarker); i >= 0 {
		region = text[:i]
		r.Explanation = Fragment{Text: strings.TrimSpace(text[i+len(ExplanationMarker):]), Found: true}
	} else {
		r.Explanation = Fragment{Text: text}
	}

	if code := strings.TrimSpace(region); code != "" {
		r.Code = Fragment{Text: code, Found: true}
	}

	blocks := fencedBlocks(region)

	for _, b := range blocks {
		if !appLanguages[b.lang] {
			continue
		}
		if app, ok := spanApp(b.body); ok {
			r.App = Fragment{Text: app, Found: true}
			break
		}
	}
	if !r.App.Found {
		if app, ok := spanApp(region); ok {
			r.App = Fragment{Text: app, Found: true}
		}
	}

	for _, b := range blocks {
		if b.isStyle() {
			r.Style = Fragment{Text: strings.TrimSpace(b.body), Found: true}
			break
		}
	}
	if !r.Style.Found {
		if style, ok := spanStyle(region); ok {
			r.Style = Fragment{Text: style, Found: true}
		}
	}

	return r
}

func spanApp(s string) (string, bool) {
	start := strings.Index(s, AppStart)
	if start < 0 {
		return "", false
	}
	end := strings.Index(s[start:], AppEnd)
	if end < 0 {
		return "", false
	}
	return s[start : start+end+len(AppEnd)], true
}

// spanStyle handles a css fence the markdown reader did not pick up, such as
// one glued to the end of a line.
func spanStyle(s string) (string, bool) {
	i := strings.Index(s, StyleMarker)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(StyleMarker):]
	end := strings.LastIndex(rest, "}")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end+1]), true
}
