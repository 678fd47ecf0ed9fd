package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"poolcal/internal/model"
)

const (
	containerSelector = "div, section, article"
	headingSelector   = "h2, h3, h4"
)

// headingSearchDepth bounds how many ancestors are searched for a heading
// that precedes a block.
const headingSearchDepth = 2

// Blocks splits a schedule page into text blocks.
//
// Every innermost div/section/article becomes a block, as does every
// section/article regardless of nesting. A block's heading is the first
// h2-h4 inside it, or else the closest heading right before it. Lines break
// at block-level elements and <br>; table cells of one row stay on one line
// so that "Montag | 06:00 – 08:00" reads as one row. Identical blocks are
// returned once.
func Blocks(page []byte) ([]model.Block, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("scrape: parse html: %w", err)
	}
	doc.Find("script, style, noscript, svg, template").Remove()

	var blocks []model.Block
	seen := make(map[model.Block]bool)

	doc.Find(containerSelector).Each(func(_ int, s *goquery.Selection) {
		leaf := s.Find(containerSelector).Length() == 0
		semantic := goquery.NodeName(s) != "div"
		if !leaf && !semantic {
			return
		}

		text := strings.Join(visibleLines(s.Nodes[0]), "\n")
		if text == "" {
			return
		}
		b := model.Block{Heading: blockHeading(s), Text: text}
		if seen[b] {
			return
		}
		seen[b] = true
		blocks = append(blocks, b)
	})

	return blocks, nil
}

func blockHeading(s *goquery.Selection) string {
	if h := cleanText(s.Find(headingSelector).First().Text()); h != "" {
		return h
	}
	cur := s
	for depth := 0; depth <= headingSearchDepth && cur.Length() > 0; depth++ {
		if goquery.NodeName(cur) == "body" {
			break
		}
		// PrevAll yields the closest sibling first.
		if h := cleanText(cur.PrevAll().Filter(headingSelector).First().Text()); h != "" {
			return h
		}
		cur = cur.Parent()
	}
	return ""
}

var blockLevel = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Footer: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Section: true,
	atom.Table: true, atom.Tbody: true, atom.Thead: true, atom.Tr: true, atom.Ul: true,
}

// visibleLines flattens n's text into trimmed, non-empty lines.
func visibleLines(n *html.Node) []string {
	var lines []string
	var cur strings.Builder

	flush := func() {
		if line := cleanText(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
				cur.WriteByte(' ')
			}
			if blockLevel[n.DataAtom] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	flush()
	return lines
}

// cleanText drops soft hyphens and collapses whitespace; strings.Fields
// also splits on non-breaking spaces.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00ad", "")
	return strings.Join(strings.Fields(s), " ")
}
