package pages

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Heading is one entry of a page outline.
type Heading struct {
	Level int
	Text  string
	ID    string
}

// Markdown renders page sources to HTML.
type Markdown struct {
	md           goldmark.Markdown
	customBlocks map[string]struct{}
}

// NewMarkdown creates a renderer with raw HTML, GFM (tables, autolinks,
// strikethrough, task lists), typographic punctuation and heading ids.
// Each name in customBlocks enables a "::: name" container.
func NewMarkdown(customBlocks []string) *Markdown {
	blocks := make(map[string]struct{}, len(customBlocks))
	for _, name := range customBlocks {
		if name = strings.TrimSpace(name); name != "" {
			blocks[name] = struct{}{}
		}
	}
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Typographer),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		customBlocks: blocks,
	}
}

// Render converts markdown to HTML.
func (m *Markdown) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(m.expandContainers(text)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	containerOpen  = regexp.MustCompile(`^\s*:::\s*([A-Za-z][\w-]*)(?:\s+(.*))?$`)
	containerClose = regexp.MustCompile(`^\s*:::\s*$`)
	fenceLine      = regexp.MustCompile("^\\s*(```|~~~)")
)

// expandContainers rewrites "::: name" ... ":::" blocks into raw HTML divs
// surrounded by blank lines, so the content in between is still parsed as
// markdown. Unknown names and anything inside code fences are left alone.
func (m *Markdown) expandContainers(text string) string {
	if len(m.customBlocks) == 0 {
		return text
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	depth := 0
	fence := ""

	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r")

		if match := fenceLine.FindStringSubmatch(trimmed); match != nil {
			switch {
			case fence == "":
				fence = match[1]
			case fence == match[1]:
				fence = ""
			}
			out = append(out, line)
			continue
		}
		if fence != "" {
			out = append(out, line)
			continue
		}

		if match := containerOpen.FindStringSubmatch(trimmed); match != nil {
			if _, ok := m.customBlocks[match[1]]; ok {
				depth++
				out = append(out, "", `<div class="`+html.EscapeString(match[1])+`">`)
				if title := strings.TrimSpace(match[2]); title != "" {
					out = append(out, `<p class="`+html.EscapeString(match[1])+`-title">`+html.EscapeString(title)+`</p>`)
				}
				out = append(out, "")
				continue
			}
		}
		if depth > 0 && containerClose.MatchString(trimmed) {
			depth--
			out = append(out, "", "</div>", "")
			continue
		}
		out = append(out, line)
	}

	for ; depth > 0; depth-- {
		out = append(out, "", "</div>", "")
	}
	return strings.Join(out, "\n")
}

var headingAtoms = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// ExtractHeadings returns the h1-h6 elements of an HTML fragment in
// document order.
func ExtractHeadings(fragment string) ([]Heading, error) {
	nodes, err := nethtml.ParseFragment(strings.NewReader(fragment), &nethtml.Node{
		Type:     nethtml.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, err
	}

	var headings []Heading
	var walk func(n *nethtml.Node)
	walk = func(n *nethtml.Node) {
		if n.Type == nethtml.ElementNode {
			if level, ok := headingAtoms[n.DataAtom]; ok {
				h := Heading{Level: level, Text: strings.TrimSpace(textContent(n))}
				for _, attr := range n.Attr {
					if attr.Key == "id" {
						h.ID = attr.Val
					}
				}
				headings = append(headings, h)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return headings, nil
}

func textContent(n *nethtml.Node) string {
	if n.Type == nethtml.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// FallbackTitle derives a title from the last segment of a page id:
// "docs/getting-started" becomes "Getting Started".
func FallbackTitle(id string) string {
	segment := id[strings.LastIndex(id, "/")+1:]
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	// casers keep state between calls and are not shared
	return cases.Title(language.English).String(strings.TrimSpace(segment))
}
