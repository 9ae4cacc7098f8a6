package parser

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestParseLegacyInlineExample(t *testing.T) {
	r := ParseLegacy("import React...App(){...}export default App;Response: It works")

	assert.Equal(t, "import React...App(){...}export default App;", r.App.Text)
	assert.Equal(t, "import React...App(){...}export default App;", r.Code.Text)
	assert.Equal(t, "It works", r.Explanation.Text)
	assert.Empty(t, r.Style.Text)
	assert.Equal(t, []string{"style"}, r.Missing())
}

func TestParseLegacyStyleRunsToLastBrace(t *testing.T) {
	text := "import R\nexport default App;\n```css\n.a { color: red; }\n```\nResponse: styled"
	r := ParseLegacy(text)

	assert.Equal(t, "\n.a { color: red; }", r.Style.Text)
	assert.True(t, r.Style.Found)
	assert.Equal(t, "import R\nexport default App;\n", r.App.Text)
	assert.Equal(t, "styled", r.Explanation.Text)
}

func TestParseLegacyMissingResponseDropsLastCharacter(t *testing.T) {
	tests := []struct {
		name string
		text string
		code string
	}{
		{"ascii", "just chatting", "just chattin"},
		{"multibyte", "好的，我明白了", "好的，我明白"},
		{"emoji", "done 🎉", "done "},
		{"single character", "好", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseLegacy(tt.text)

			assert.Equal(t, tt.code, r.Code.Text)
			assert.True(t, utf8.ValidString(r.Code.Text))
			assert.False(t, r.Code.Found)
			assert.Equal(t, tt.text, r.Explanation.Text)
			assert.False(t, r.Explanation.Found)
		})
	}
}

func TestParseLegacyMissingExportKeepsWholeCharacters(t *testing.T) {
	// the end offset of 18 falls inside the second 用
	r := ParseLegacy("import 应用应用 App(){} Response: 好")

	assert.Equal(t, "import 应用应", r.App.Text)
	assert.True(t, utf8.ValidString(r.App.Text))
	assert.False(t, r.App.Found)
}

func TestParseLegacyMissingExportSlicesFromSentinel(t *testing.T) {
	// -1 + 19 leaves an end offset of 18
	r := ParseLegacy("import a from 'b'; function App(){} Response: no export")

	assert.Equal(t, "import a from 'b';", r.App.Text)
	assert.False(t, r.App.Found)
}

func TestJSSlice(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"plain", 1, 3, "bc"},
		{"negative end", 0, -1, "abcd"},
		{"negative start", -2, 5, "de"},
		{"end past length", 2, 99, "cde"},
		{"inverted", 4, 2, ""},
		{"start far negative", -99, 2, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jsSlice("abcde", tt.start, tt.end))
		})
	}
}

func TestJSSliceMultibyte(t *testing.T) {
	s := "a好b的"
	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"negative end", 0, -1, "a好b"},
		{"negative start", -2, 99, "b的"},
		{"end inside character", 0, 3, "a"},
		{"start inside character", 2, 5, "好b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jsSlice(s, tt.start, tt.end))
		})
	}
}
