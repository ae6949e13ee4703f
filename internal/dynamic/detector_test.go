package dynamic

import (
	"strings"
	"testing"
)

// staticPage builds a server-rendered-looking product page with plenty of
// visible text.
func staticPage() string {
	var b strings.Builder
	b.WriteString("<html><body><main><h1>Classic Denim Jacket</h1>")
	for i := 0; i < 40; i++ {
		b.WriteString("<p>A timeless denim jacket crafted from heavyweight cotton with a relaxed fit and button front closure.</p>")
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

func TestDetectStaticPage(t *testing.T) {
	d := NewDetector(nil, nil, nil)

	result := d.Detect(staticPage(), "https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html")
	if result.Dynamic {
		t.Errorf("static page classified dynamic: %+v", result)
	}
}

func TestDetectKnownHost(t *testing.T) {
	d := NewDetector(nil, nil, nil)

	cases := []struct {
		url  string
		want bool
	}{
		{"https://www.zara.com/us/en/product-p123.html", true},
		{"https://zara.com/item", true},
		{"https://www2.hm.com/en_us/productpage.html", true},
		{"https://notzara.com/item", false},
		{"https://example.com/zara.com", false},
	}

	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			// Known hosts are forced dynamic even when the HTML looks static.
			result := d.Detect(staticPage(), tc.url)
			if result.Dynamic != tc.want {
				t.Errorf("Detect(%q).Dynamic = %v, want %v", tc.url, result.Dynamic, tc.want)
			}
			if tc.want && result.Signal != SignalKnownHost {
				t.Errorf("Signal = %q, want %q", result.Signal, SignalKnownHost)
			}
		})
	}
}

func TestDetectSPAMarker(t *testing.T) {
	d := NewDetector(nil, nil, nil)

	html := staticPage() + `<script id="__NEXT_DATA__" type="application/json">{}</script>`
	result := d.Detect(html, "https://shop.example/p/1")
	if !result.Dynamic || result.Signal != SignalSPAMarker {
		t.Errorf("Detect = %+v, want SPA marker detection", result)
	}
}

func TestDetectEmptyRoot(t *testing.T) {
	d := NewDetector(nil, nil, nil)

	html := `<html><body>` + strings.Repeat("<p>filler navigation text goes here for the header and footer sections</p>", 20) +
		`<div id="root"></div></body></html>`
	result := d.Detect(html, "https://shop.example/p/1")
	if !result.Dynamic || result.Signal != SignalEmptyRoot {
		t.Errorf("Detect = %+v, want empty root detection", result)
	}
}

func TestDetectThinContent(t *testing.T) {
	d := NewDetector(nil, nil, nil)

	// Big document, almost no visible text.
	html := "<html><body><p>hi</p><script>" + strings.Repeat("var x = 1;", 2000) + "</script></body></html>"
	result := d.Detect(html, "https://shop.example/p/1")
	if !result.Dynamic || result.Signal != SignalThinContent {
		t.Errorf("Detect = %+v, want thin content detection", result)
	}
}

func TestDetectEmptyShellWithoutMarkers(t *testing.T) {
	d := NewDetector(nil, nil, nil)

	// No framework signature, no recognized root id, no client-fetch
	// marker; there is just nothing to read.
	html := `<html><head><title>Shop</title></head><body><div id="content"></div></body></html>`
	result := d.Detect(html, "https://shop.example/p/1")
	if !result.Dynamic || result.Signal != SignalThinContent {
		t.Errorf("Detect = %+v, want empty shell detection", result)
	}
}

func TestDetectShortButReadablePageStaysStatic(t *testing.T) {
	d := NewDetector(nil, nil, nil)

	html := `<html><body><main><h1>Wool Scarf</h1>` +
		`<p>A soft lambswool scarf in charcoal grey, woven in Scotland. ` +
		`Measures 180 by 30 centimeters and pairs with any winter coat. ` +
		`Machine washable on the wool cycle, line dry flat.</p>` +
		`<p>Price 34.99 including tax.</p></main></body></html>`
	result := d.Detect(html, "https://shop.example/p/1")
	if result.Dynamic {
		t.Errorf("short server-rendered page classified dynamic: %+v", result)
	}
}

func TestDetectClientFetch(t *testing.T) {
	d := NewDetector(nil, nil, nil)

	html := `<html><body><div>Loading product...</div>` +
		`<script src="/app.js"></script></body></html>` +
		`<!-- fetch( -->`
	result := d.Detect(html, "https://shop.example/p/1")
	if !result.Dynamic || result.Signal != SignalClientFetch {
		t.Errorf("Detect = %+v, want client fetch detection", result)
	}
}

func TestDetectorOverrides(t *testing.T) {
	d := NewDetector(nil, nil, []string{"myshop.test"})

	if !d.IsDynamic(staticPage(), "https://www.myshop.test/p/1") {
		t.Error("override host should be dynamic")
	}
	if d.IsDynamic(staticPage(), "https://www.zara.com/p/1") {
		t.Error("default host list should be replaced by override")
	}
}
