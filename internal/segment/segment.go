// Package segment walks the case report page and yields one entry per
// reported case, tagged with the date of the posting it appeared under.
package segment

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ebcovid/caseledger/internal/diag"
	"github.com/ebcovid/caseledger/internal/extract"
)

// PostingFallbackYear is used for posting headers that carry no year.
const PostingFallbackYear = 1990

// Entry is the raw text of one case together with its posting date.
type Entry struct {
	Posted time.Time
	Text   string
}

// Segmenter splits a parsed page into entries.
type Segmenter struct {
	ext  *extract.Extractor
	sink diag.Sink
	log  *slog.Logger
}

// New creates a Segmenter. The extractor resolves posting headers.
func New(ext *extract.Extractor, sink diag.Sink, logger *slog.Logger) *Segmenter {
	if sink == nil {
		sink = diag.Discard
	}
	return &Segmenter{ext: ext, sink: sink, log: logger.With("component", "segment")}
}

// Parse builds the node tree of an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Entries yields the case entries of doc in document order.
//
// Posting blocks are the <pre> and <p> elements of the first <div> inside
// <article>. The cases of a posting are the <li> elements of the next element
// after the block, and the text of a case is the text of its <h3>.
func (s *Segmenter) Entries(doc *html.Node) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		content := contentRoot(doc)
		if content == nil {
			s.sink.Report(diag.Diagnostic{
				Kind:   diag.KindStructural,
				Field:  "article",
				Detail: "page has no <article> with a <div>",
			})
			return
		}

		for block := range content.Descendants() {
			if !isElement(block, atom.Pre) && !isElement(block, atom.P) {
				continue
			}
			if !s.eachCase(block, yield) {
				return
			}
		}
	}
}

// eachCase yields the cases listed under one posting block. It returns false
// when the consumer stopped the iteration.
func (s *Segmenter) eachCase(block *html.Node, yield func(Entry) bool) bool {
	header := strings.TrimSpace(textOf(block))
	if !s.ext.Matches(extract.FieldPostedDate, header) {
		s.log.Debug("not a posting block", slog.String("text", header))
		return true
	}

	posted, ok := s.ext.Date(extract.FieldPostedDate, header, PostingFallbackYear)
	if !ok {
		s.sink.Report(diag.Diagnostic{
			Kind:   diag.KindStructural,
			Field:  block.Data,
			Text:   header,
			Detail: "posting header date does not resolve",
		})
		return true
	}

	list := nextElement(block)
	if list == nil {
		s.sink.Report(diag.Diagnostic{
			Kind:   diag.KindStructural,
			Field:  block.Data,
			Text:   header,
			Detail: "posting has no case list",
		})
		return true
	}

	s.log.Debug("reading posting", slog.String("posted", posted.Format(time.DateOnly)))
	for li := range list.Descendants() {
		if !isElement(li, atom.Li) {
			continue
		}
		h3 := firstElement(li, atom.H3)
		if h3 == nil {
			s.sink.Report(diag.Diagnostic{
				Kind:   diag.KindStructural,
				Field:  "li",
				Text:   strings.TrimSpace(textOf(li)),
				Detail: "case item has no <h3>",
			})
			continue
		}
		if !yield(Entry{Posted: posted, Text: strings.TrimSpace(textOf(h3))}) {
			return false
		}
	}
	return true
}

func contentRoot(doc *html.Node) *html.Node {
	article := firstElement(doc, atom.Article)
	if article == nil {
		return nil
	}
	return firstElement(article, atom.Div)
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

// firstElement returns the first descendant of n with the given tag.
func firstElement(n *html.Node, a atom.Atom) *html.Node {
	for d := range n.Descendants() {
		if isElement(d, a) {
			return d
		}
	}
	return nil
}

func nextElement(n *html.Node) *html.Node {
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode {
			return sib
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}
