// Package document wraps raw HTML into a queryable tree.
//
// Lookups that find nothing return ErrNotFound, ErrNoAttribute or ErrNoText.
// Callers that assume the element exists pass the error straight up; nothing
// in this package substitutes a default.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

var (
	// ErrNotFound is returned when no element matches a selector.
	ErrNotFound = errors.New("document: element not found")
	// ErrNoAttribute is returned when an element lacks the requested attribute.
	ErrNoAttribute = errors.New("document: attribute not found")
	// ErrNoText is returned when an element has no direct text node.
	ErrNoText = errors.New("document: text node not found")
)

// Selector matches elements by tag name and, optionally, one class. Build it
// with NewSelector or MustSelector; the zero value matches nothing.
type Selector struct {
	tag     string
	class   string
	matcher goquery.Matcher
}

// NewSelector compiles a tag/class pair.
func NewSelector(tag, class string) (Selector, error) {
	query := tag
	if class != "" {
		query += "." + class
	}
	compiled, err := cascadia.Compile(query)
	if err != nil {
		return Selector{}, fmt.Errorf("compile selector %q: %w", query, err)
	}
	return Selector{tag: tag, class: class, matcher: compiled}, nil
}

// MustSelector is like NewSelector but panics on an invalid pair.
func MustSelector(tag, class string) Selector {
	sel, err := NewSelector(tag, class)
	if err != nil {
		panic(err)
	}
	return sel
}

func (s Selector) String() string {
	if s.class == "" {
		return s.tag
	}
	return s.tag + "." + s.class
}

// Document is a parsed HTML byte stream.
type Document struct {
	Element
}

// New parses body leniently; malformed markup yields a best-effort tree.
// The encoding is taken from a byte order mark or a meta declaration, and
// bodies that are not valid UTF-8 fall back to windows-1252.
func New(body []byte) (*Document, error) {
	decoded, err := charset.NewReader(bytes.NewReader(body), "")
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{Element: Element{sel: doc.Selection}}, nil
}

// Element is one node of a Document.
type Element struct {
	sel *goquery.Selection
}

// Find returns the first descendant matching s.
func (e *Element) Find(s Selector) (*Element, error) {
	if s.matcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s)
	}
	found := e.sel.FindMatcher(s.matcher).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s)
	}
	return &Element{sel: found}, nil
}

// FindAll returns every descendant matching s in document order.
func (e *Element) FindAll(s Selector) []*Element {
	if s.matcher == nil {
		return nil
	}
	found := e.sel.FindMatcher(s.matcher)
	out := make([]*Element, 0, found.Length())
	found.Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &Element{sel: sel})
	})
	return out
}

// Text returns the concatenated text of the element and its descendants.
func (e *Element) Text() string {
	return e.sel.Text()
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, error) {
	value, ok := e.sel.Attr(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoAttribute, name)
	}
	return value, nil
}

// FirstText returns the first text node that is a direct child of the element.
func (e *Element) FirstText() (string, error) {
	if len(e.sel.Nodes) == 0 {
		return "", ErrNoText
	}
	for child := e.sel.Nodes[0].FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			return child.Data, nil
		}
	}
	return "", ErrNoText
}

// NormalizeText trims s, turns newlines into spaces and collapses runs of
// whitespace into a single space.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}
