package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-groceries/document"
)

var (
	descriptionContainer = document.MustSelector("div", "productText")
	paragraph            = document.MustSelector("p", "")
)

// DescriptionParser reads the text of a product detail page.
type DescriptionParser struct {
	doc *document.Document
}

// NewDescriptionParser parses a detail page body.
func NewDescriptionParser(body []byte) (*DescriptionParser, error) {
	doc, err := document.New(body)
	if err != nil {
		return nil, err
	}
	return &DescriptionParser{doc: doc}, nil
}

// Description joins the normalized text of every paragraph in the first
// productText container with single spaces.
func (p *DescriptionParser) Description() (string, error) {
	container, err := p.doc.Find(descriptionContainer)
	if err != nil {
		return "", fmt.Errorf("description: %w", err)
	}

	paragraphs := container.FindAll(paragraph)
	texts := make([]string, 0, len(paragraphs))
	for _, el := range paragraphs {
		texts = append(texts, document.NormalizeText(el.Text()))
	}
	return strings.Join(texts, " "), nil
}
