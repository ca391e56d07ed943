package menu

// MenuItem is immutable reference data owned by the catalog. The core looks
// items up by name and never mutates them.
type MenuItem struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	PriceEur  float64  `json:"price_eur"`
	Available bool     `json:"available"`
	Aliases   []string `json:"aliases,omitempty"`
}

// Menu is the validated item list a Catalog is built from.
type Menu struct {
	Meta       map[string]interface{} `json:"meta,omitempty"`
	Categories []string               `json:"categories"`
	Items      []MenuItem             `json:"items"`
}
