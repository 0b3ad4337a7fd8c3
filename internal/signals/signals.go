// Package signals extracts scoring signals from raw HTML so the validator
// never touches markup directly.
package signals

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ProductBlock is a machine-readable product description embedded in a page
// (schema.org Product in JSON-LD).
type ProductBlock struct {
	SKU  string `json:"sku,omitempty"`
	MPN  string `json:"mpn,omitempty"`
	GTIN string `json:"gtin,omitempty"`
	Name string `json:"name,omitempty"`
}

// PageSignals holds everything the validator scores against.
type PageSignals struct {
	Title    string
	H1       string
	Products []ProductBlock
	Links    []string
}

// Extract parses HTML and pulls out the title, first h1, structured product
// blocks, and hyperlink targets. Malformed JSON-LD blocks are skipped.
func Extract(body []byte) (*PageSignals, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "signals: parse html")
	}

	sig := &PageSignals{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		H1:    strings.TrimSpace(doc.Find("h1").First().Text()),
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		sig.Products = append(sig.Products, parseProducts(s.Text())...)
	})

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		if !seen[href] {
			seen[href] = true
			sig.Links = append(sig.Links, href)
		}
	})

	return sig, nil
}

// parseProducts decodes a JSON-LD payload and collects every Product node,
// including nodes nested under @graph or in top-level arrays.
func parseProducts(raw string) []ProductBlock {
	var node any
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return nil
	}
	var blocks []ProductBlock
	collectProducts(node, &blocks)
	return blocks
}

func collectProducts(node any, out *[]ProductBlock) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			collectProducts(item, out)
		}
	case map[string]any:
		if isProductType(v["@type"]) {
			*out = append(*out, ProductBlock{
				SKU:  stringField(v, "sku"),
				MPN:  stringField(v, "mpn"),
				GTIN: firstStringField(v, "gtin13", "gtin14", "gtin12", "gtin8", "gtin"),
				Name: stringField(v, "name"),
			})
		}
		if graph, ok := v["@graph"]; ok {
			collectProducts(graph, out)
		}
	}
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, "Product")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func firstStringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}
