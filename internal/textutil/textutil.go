// Package textutil provides text normalization helpers shared by the
// signal detector and the collectors.
package textutil

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

// Normalize performs NFKC Unicode normalization and trims whitespace.
// Full-width and half-width variants of the same character collapse to one
// form, so pattern matching does not depend on the input's width variant.
func Normalize(s string) string {
	normed := norm.NFKC.String(s)
	normed = strings.TrimSpace(normed)
	// Drop control characters except newlines and tabs.
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return normed
}

var markdown = goldmark.New()

// StripMarkdown renders markdown source down to its plain text content.
// Links keep their anchor text, code blocks keep their code, everything
// else (emphasis markers, heading markers, list bullets) is dropped.
func StripMarkdown(source string) string {
	src := []byte(source)
	root := markdown.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.AutoLink:
			buf.Write(v.URL(src))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}

// RuneLen counts runes, not bytes. Length gates operate on characters so
// multibyte scripts are not penalized.
func RuneLen(s string) int {
	return len([]rune(s))
}
