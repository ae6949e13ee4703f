package models

// ProductData is the extraction result for a product page.
//
// A nil Price means "no price found" and is distinct from a zero price.
// An empty Title means "no title found", not "product has no name".
// Size and Color hold the currently *selected* variant, not just any option.
type ProductData struct {
	Price *float64 `json:"price" doc:"Numeric current price, null if not found"`
	Title string   `json:"title" doc:"Product name, empty if not found"`
	Size  string   `json:"size" doc:"Selected size, empty if none"`
	Color string   `json:"color" doc:"Selected color, empty if none"`
}

// Sufficient reports whether the extraction recovered enough data to be
// worth caching: a price or a title. Size/color alone are not sufficient.
func (p ProductData) Sufficient() bool {
	return p.Price != nil || p.Title != ""
}

// Float is a convenience for building a *float64 price literal.
func Float(v float64) *float64 {
	return &v
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	BrowserTotal int    `json:"browserTotal"`
	BrowserInUse int    `json:"browserInUse"`
	CacheEntries int    `json:"cacheEntries"`
	Uptime       int64  `json:"uptimeSeconds"`
}
