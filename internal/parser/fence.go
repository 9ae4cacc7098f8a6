package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

type block struct {
	lang  string // lowercased
	info  string // language as written
	fence byte
	body  string
}

// isStyle reports whether the block opened with the literal style marker.
func (b block) isStyle() bool {
	return string(b.fence)+string(b.fence)+string(b.fence)+b.info == StyleMarker
}

func fencedBlocks(s string) []block {
	src := []byte(s)
	doc := goldmark.DefaultParser().Parse(gmtext.NewReader(src))

	var blocks []block
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var body bytes.Buffer
		lines := fb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			body.Write(seg.Value(src))
		}
		info := string(fb.Language(src))
		blocks = append(blocks, block{
			lang:  strings.ToLower(info),
			info:  info,
			fence: fenceChar(fb, src),
			body:  body.String(),
		})
		return ast.WalkSkipChildren, nil
	})

	return blocks
}

// fenceChar returns the character the opening fence line is drawn with.
func fenceChar(fb *ast.FencedCodeBlock, src []byte) byte {
	if fb.Info == nil {
		return 0
	}
	end := fb.Info.Segment.Start
	start := bytes.LastIndexByte(src[:end], '\n') + 1
	opener := bytes.TrimLeft(src[start:end], " \t")
	if len(opener) == 0 {
		return 0
	}
	return opener[0]
}
