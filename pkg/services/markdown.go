package services

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

type LinkKind string

const (
	LinkImage LinkKind = "image"
	LinkPage  LinkKind = "link"
)

// Link is a destination referenced from a post body. Line is 1-based within the body.
type Link struct {
	Dest string   `json:"dest"`
	Kind LinkKind `json:"kind"`
	Line int      `json:"line"`
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderHTML converts a post body to HTML for previews. Liquid tags are left as text.
func RenderHTML(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("markdown render: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderTerminal renders a post body for display in a terminal.
func RenderTerminal(body string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(body)
}

var (
	htmlSrcRe = regexp.MustCompile(`(?i)(?:^|\s)(src|href)\s*=\s*["']([^"']+)["']`)

	// Liquid regions whose contents are shown verbatim.
	verbatimRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)\{%-?\s*highlight\b.*?\{%-?\s*endhighlight\s*-?%\}`),
		regexp.MustCompile(`(?s)\{%-?\s*raw\s*-?%\}.*?\{%-?\s*endraw\s*-?%\}`),
	}
)

// maskVerbatim blanks Liquid highlight and raw regions, keeping newlines so that line
// numbers still match the source.
func maskVerbatim(body []byte) []byte {
	var masked []byte
	for _, re := range verbatimRes {
		for _, m := range re.FindAllIndex(body, -1) {
			if masked == nil {
				masked = append([]byte(nil), body...)
			}
			for i := m[0]; i < m[1]; i++ {
				if masked[i] != '\n' {
					masked[i] = ' '
				}
			}
		}
	}
	if masked == nil {
		return body
	}
	return masked
}

// ExtractLinks walks the markdown AST and returns every image and link destination,
// including src/href attributes of inline HTML. Liquid highlight and raw regions are
// skipped.
func ExtractLinks(body []byte) []Link {
	body = maskVerbatim(body)
	doc := markdown.Parser().Parse(text.NewReader(body))

	var links []Link
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			links = append(links, Link{Dest: string(node.Destination), Kind: LinkImage, Line: lineOf(body, node)})
		case *ast.Link:
			links = append(links, Link{Dest: string(node.Destination), Kind: LinkPage, Line: lineOf(body, node)})
		case *ast.HTMLBlock:
			var raw bytes.Buffer
			for i := 0; i < node.Lines().Len(); i++ {
				seg := node.Lines().At(i)
				raw.Write(seg.Value(body))
			}
			links = append(links, htmlLinks(raw.Bytes(), lineOf(body, node))...)
		case *ast.RawHTML:
			var raw bytes.Buffer
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				raw.Write(seg.Value(body))
			}
			var line int
			if node.Segments.Len() > 0 {
				line = lineAt(body, node.Segments.At(0).Start)
			}
			links = append(links, htmlLinks(raw.Bytes(), line)...)
		}
		return ast.WalkContinue, nil
	})
	return links
}

func htmlLinks(raw []byte, baseLine int) []Link {
	var links []Link
	for _, m := range htmlSrcRe.FindAllSubmatchIndex(raw, -1) {
		kind := LinkPage
		if bytes.EqualFold(raw[m[2]:m[3]], []byte("src")) {
			kind = LinkImage
		}
		links = append(links, Link{
			Dest: string(raw[m[4]:m[5]]),
			Kind: kind,
			Line: baseLine + bytes.Count(raw[:m[2]], []byte("\n")),
		})
	}
	return links
}

// lineOf finds the source line of a node from its own lines, its first text segment,
// or the nearest enclosing block.
func lineOf(source []byte, n ast.Node) int {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return lineAt(source, n.Lines().At(0).Start)
	}
	if off := firstTextOffset(n); off >= 0 {
		return lineAt(source, off)
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == ast.TypeBlock && p.Lines().Len() > 0 {
			return lineAt(source, p.Lines().At(0).Start)
		}
	}
	return 0
}

func firstTextOffset(n ast.Node) int {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			return t.Segment.Start
		}
		if off := firstTextOffset(c); off >= 0 {
			return off
		}
	}
	return -1
}

func lineAt(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return 1 + bytes.Count(source[:offset], []byte("\n"))
}
