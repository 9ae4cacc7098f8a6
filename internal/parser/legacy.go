package parser

import (
	"strings"
	"unicode/utf8"
)

// ParseLegacy reproduces the offset arithmetic of the first playground
// release: a missing marker yields index -1 and slicing goes ahead anyway.
// Offsets are byte offsets that never split a character.
func ParseLegacy(text string) Reply {
	responseAt := strings.Index(text, "Response")
	code := jsSlice(text, 0, responseAt)

	importAt := strings.Index(code, AppStart)
	exportAt := strings.Index(code, AppEnd)
	app := jsSlice(code, importAt, exportAt+19)

	var style string
	hasStyle := strings.Contains(text, StyleMarker)
	if hasStyle {
		style = jsSlice(code, strings.Index(code, StyleMarker)+6, strings.LastIndex(code, "}")+1)
	}

	explanation := text
	hasExplanation := strings.Contains(text, ExplanationMarker)
	if hasExplanation {
		explanation = jsSlice(text, strings.Index(text, ExplanationMarker)+10, len(text))
	}

	return Reply{
		Code:        Fragment{Text: code, Found: responseAt >= 0},
		App:         Fragment{Text: app, Found: importAt >= 0 && exportAt >= 0},
		Style:       Fragment{Text: style, Found: hasStyle},
		Explanation: Fragment{Text: explanation, Found: hasExplanation},
	}
}

// jsSlice follows String.prototype.slice: negative indexes count from the
// end, out of range indexes clamp, and an inverted range is empty.
func jsSlice(s string, start, end int) string {
	start = clampIndex(s, start)
	end = clampIndex(s, end)
	if start >= end {
		return ""
	}
	return s[start:end]
}

// clampIndex turns a slice offset into a byte offset of s. Negative offsets
// step back whole characters from the end; positive ones snap back to the
// start of the character they land in.
func clampIndex(s string, i int) int {
	n := len(s)
	if i < 0 {
		pos := n
		for ; i < 0 && pos > 0; i++ {
			_, size := utf8.DecodeLastRuneInString(s[:pos])
			pos -= size
		}
		return pos
	}
	if i >= n {
		return n
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
