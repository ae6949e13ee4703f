// Package reduce strips a product page down to the content worth sending
// to the language model. Raw retailer pages run to hundreds of kilobytes
// of scripts and chrome; the model only needs the structured product data
// and the visible body text.
package reduce

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// MaxPayload is the character budget for reduced content. Anything past
// it is cut and marked so the model knows the page was truncated.
const MaxPayload = 30000

// TruncationMarker is appended when the payload is cut at MaxPayload.
const TruncationMarker = "\n[content truncated]"

// Selectors removed outright before the body is serialized. These carry
// no product information and dominate page size.
var strippedSelectors = []string{
	"script",
	"style",
	"link",
	"meta",
	"noscript",
	"iframe",
	"svg",
	"header",
	"footer",
	"nav",
	"aside",
	`[role="navigation"]`,
	`[role="banner"]`,
	`[role="complementary"]`,
	`[role="contentinfo"]`,
	`[class*="cookie"]`,
	`[id*="cookie"]`,
	`[class*="newsletter"]`,
	`[class*="sidebar"]`,
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Reduce produces the extraction payload for a page: JSON-LD Product
// blocks first (they are the highest-signal source), then the stripped
// body markup. Parse failures fall back to the raw input, truncated.
func Reduce(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return truncate(collapse(html))
	}

	ldBlocks := productJSONLD(doc)

	doc.Find(strings.Join(strippedSelectors, ", ")).Remove()

	body := doc.Find("body")
	var bodyHTML string
	if body.Length() > 0 {
		bodyHTML, _ = body.Html()
	} else {
		bodyHTML, _ = doc.Html()
	}

	var b strings.Builder
	for _, block := range ldBlocks {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString(collapse(bodyHTML))

	return truncate(b.String())
}

// productJSONLD collects ld+json blocks that describe a Product. The
// blocks are read before stripping since they live in script tags.
func productJSONLD(doc *goquery.Document) []string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || !gjson.Valid(text) {
			return
		}
		if containsProduct(gjson.Parse(text)) {
			blocks = append(blocks, text)
		}
	})
	return blocks
}

// containsProduct reports whether a JSON-LD value describes a Product,
// directly or nested under mainEntity, @graph, or a top-level array.
func containsProduct(v gjson.Result) bool {
	if v.IsArray() {
		for _, item := range v.Array() {
			if containsProduct(item) {
				return true
			}
		}
		return false
	}
	if isProductType(v.Get(`\@type`)) {
		return true
	}
	if main := v.Get("mainEntity"); main.Exists() && isProductType(main.Get(`\@type`)) {
		return true
	}
	if graph := v.Get(`\@graph`); graph.IsArray() {
		for _, item := range graph.Array() {
			if isProductType(item.Get(`\@type`)) {
				return true
			}
		}
	}
	return false
}

// isProductType handles "@type" as either a string or an array of strings.
func isProductType(t gjson.Result) bool {
	if t.Type == gjson.String {
		return strings.EqualFold(t.String(), "Product")
	}
	if t.IsArray() {
		for _, item := range t.Array() {
			if strings.EqualFold(item.String(), "Product") {
				return true
			}
		}
	}
	return false
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

func truncate(s string) string {
	if len(s) <= MaxPayload {
		return s
	}
	return s[:MaxPayload] + TruncationMarker
}
