// Package dynamic decides whether a fetched page needs headless rendering.
// Retailer sites increasingly ship an empty shell and hydrate the product
// details client-side; the detector looks for framework signatures, thin
// visible text, and known always-dynamic storefronts.
package dynamic

import (
	"net/url"
	"regexp"
	"strings"
)

// SignalType identifies why a page was classified as dynamic.
type SignalType string

const (
	SignalNone        SignalType = ""
	SignalKnownHost   SignalType = "known_host"
	SignalSPAMarker   SignalType = "spa_marker"
	SignalEmptyRoot   SignalType = "empty_root"
	SignalThinContent SignalType = "thin_content"
	SignalClientFetch SignalType = "client_fetch"
)

// Detection describes the classification of a page.
type Detection struct {
	// Dynamic is true if browser rendering is needed to see the content.
	Dynamic bool

	// Signal identifies which heuristic fired.
	Signal SignalType

	// Confidence is a score from 0-100.
	Confidence int

	// Description provides a human-readable explanation.
	Description string
}

// Detector classifies fetched HTML as static or JS-rendered.
type Detector struct {
	// MinVisibleText is the visible-text length below which a page with
	// client-fetch markers is considered JS-rendered.
	MinVisibleText int

	// SPAMarkers are framework signatures whose presence implies
	// client-side rendering of the main content.
	SPAMarkers []string

	// AJAXMarkers are signatures of client-side data loading. They only
	// count when the page also has little visible text.
	AJAXMarkers []string

	// MinShellText is the visible-text length below which a page is an
	// empty shell and needs rendering regardless of markers.
	MinShellText int

	// DynamicHosts are retailer domains known to require rendering
	// regardless of what the static HTML looks like.
	DynamicHosts []string
}

// Default signature lists. Kept small and high-precision; anything that
// fires on ordinary server-rendered pages costs a browser render.
var (
	defaultSPAMarkers = []string{
		"__NEXT_DATA__",
		"__NUXT__",
		"data-reactroot",
		"ng-version",
		"window.__INITIAL_STATE__",
		"__APOLLO_STATE__",
	}

	defaultAJAXMarkers = []string{
		"fetch(",
		"XMLHttpRequest",
		".ajax(",
		"graphql",
	}

	defaultDynamicHosts = []string{
		"zara.com",
		"hm.com",
		"nike.com",
		"adidas.com",
		"asos.com",
		"shein.com",
		"uniqlo.com",
		"bershka.com",
		"pullandbear.com",
		"mango.com",
	}
)

// Empty SPA root elements suggest the markup is a shell.
var emptyRootPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<div\s+id=["'](?:root|app|__next|__nuxt)["'][^>]*>\s*</div>`),
	regexp.MustCompile(`<app-root[^>]*>\s*</app-root>`),
	regexp.MustCompile(`<div\s+id=["']react-root["'][^>]*>\s*</div>`),
}

// Patterns used to estimate visible text.
var (
	scriptRegex     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptRegex   = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	htmlTagRegex    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// NewDetector creates a detector with default signature lists. Non-nil
// overrides replace the corresponding default.
func NewDetector(spaMarkers, ajaxMarkers, dynamicHosts []string) *Detector {
	d := &Detector{
		MinVisibleText: 500,
		MinShellText:   150,
		SPAMarkers:     defaultSPAMarkers,
		AJAXMarkers:    defaultAJAXMarkers,
		DynamicHosts:   defaultDynamicHosts,
	}
	if spaMarkers != nil {
		d.SPAMarkers = spaMarkers
	}
	if ajaxMarkers != nil {
		d.AJAXMarkers = ajaxMarkers
	}
	if dynamicHosts != nil {
		d.DynamicHosts = dynamicHosts
	}
	return d
}

// Detect classifies the HTML fetched from pageURL.
func (d *Detector) Detect(html, pageURL string) Detection {
	if result := d.checkKnownHost(pageURL); result.Dynamic {
		return result
	}

	for _, marker := range d.SPAMarkers {
		if strings.Contains(html, marker) {
			return Detection{
				Dynamic:     true,
				Signal:      SignalSPAMarker,
				Confidence:  90,
				Description: "SPA framework signature found: " + marker,
			}
		}
	}

	for _, pattern := range emptyRootPatterns {
		if pattern.MatchString(html) {
			return Detection{
				Dynamic:     true,
				Signal:      SignalEmptyRoot,
				Confidence:  90,
				Description: "empty SPA root element - content is JavaScript-rendered",
			}
		}
	}

	if result := d.checkVisibleText(html); result.Dynamic {
		return result
	}

	return Detection{Dynamic: false}
}

// IsDynamic is a convenience wrapper around Detect.
func (d *Detector) IsDynamic(html, pageURL string) bool {
	return d.Detect(html, pageURL).Dynamic
}

// checkKnownHost matches the request host against the always-dynamic list.
// Matching is suffix-based so www.zara.com matches zara.com.
func (d *Detector) checkKnownHost(pageURL string) Detection {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return Detection{Dynamic: false}
	}
	host := strings.ToLower(u.Hostname())

	for _, known := range d.DynamicHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return Detection{
				Dynamic:     true,
				Signal:      SignalKnownHost,
				Confidence:  95,
				Description: "host " + known + " is known to require rendering",
			}
		}
	}
	return Detection{Dynamic: false}
}

// checkVisibleText estimates how much readable text the page carries. A
// large document with almost no visible text, a thin page that loads its
// data client-side, or a practically empty shell gets rendered.
func (d *Detector) checkVisibleText(html string) Detection {
	cleaned := scriptRegex.ReplaceAllString(html, "")
	cleaned = styleRegex.ReplaceAllString(cleaned, "")
	cleaned = noscriptRegex.ReplaceAllString(cleaned, "")

	visibleText := htmlTagRegex.ReplaceAllString(cleaned, " ")
	visibleText = whitespaceRegex.ReplaceAllString(visibleText, " ")
	visibleText = strings.TrimSpace(visibleText)

	textLength := len(visibleText)
	htmlLength := len(html)

	if htmlLength > 1000 && float64(textLength)/float64(htmlLength) < 0.02 {
		return Detection{
			Dynamic:     true,
			Signal:      SignalThinContent,
			Confidence:  70,
			Description: "very low text-to-HTML ratio - content likely JavaScript-rendered",
		}
	}

	if textLength < d.MinVisibleText {
		for _, marker := range d.AJAXMarkers {
			if strings.Contains(html, marker) {
				return Detection{
					Dynamic:     true,
					Signal:      SignalClientFetch,
					Confidence:  75,
					Description: "thin page with client-side data loading (" + marker + ")",
				}
			}
		}
	}

	if textLength < d.MinShellText {
		return Detection{
			Dynamic:     true,
			Signal:      SignalThinContent,
			Confidence:  65,
			Description: "practically no visible body text - page is an empty shell",
		}
	}

	return Detection{Dynamic: false}
}
