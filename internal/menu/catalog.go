package menu

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds diacritics, lowercases and collapses every non-alphanumeric
// run into a single space. All catalog keys and lookup inputs go through this.
func Normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Catalog resolves spoken item names to menu items by exact normalized name
// or alias match.
type Catalog struct {
	menu    Menu
	byCode  map[string]MenuItem
	nameMap map[string]string
}

func NewCatalog(m Menu) *Catalog {
	c := &Catalog{
		menu:    m,
		byCode:  make(map[string]MenuItem, len(m.Items)),
		nameMap: make(map[string]string),
	}
	for _, item := range m.Items {
		c.byCode[item.Code] = item
		c.nameMap[Normalize(item.Name)] = item.Code
		for _, alias := range item.Aliases {
			c.nameMap[Normalize(alias)] = item.Code
		}
	}
	return c
}

// Get returns the item with the given code.
func (c *Catalog) Get(code string) (MenuItem, bool) {
	item, ok := c.byCode[code]
	return item, ok
}

// Categories returns the menu's category list.
func (c *Catalog) Categories() []string {
	return c.menu.Categories
}

var categoryWords = map[string]bool{
	"pizza": true, "pizzas": true,
	"pasta": true,
	"schotel": true, "schotels": true,
}

// Lookup resolves a spoken name against the catalog. Unavailable items do not
// resolve. When the exact normalized name misses, it retries with loose
// category words stripped out ("pizza margherita" resolves to "margherita").
func (c *Catalog) Lookup(name string) (MenuItem, bool) {
	key := Normalize(name)
	if key == "" {
		return MenuItem{}, false
	}

	if item, ok := c.lookupKey(key); ok {
		return item, true
	}

	words := strings.Fields(key)
	kept := words[:0]
	for _, w := range words {
		if !categoryWords[w] {
			kept = append(kept, w)
		}
	}
	if len(kept) > 0 && len(kept) < len(words) {
		if item, ok := c.lookupKey(strings.Join(kept, " ")); ok {
			return item, true
		}
	}

	return MenuItem{}, false
}

func (c *Catalog) lookupKey(key string) (MenuItem, bool) {
	code, ok := c.nameMap[key]
	if !ok {
		return MenuItem{}, false
	}
	item := c.byCode[code]
	if !item.Available {
		return MenuItem{}, false
	}
	return item, true
}
