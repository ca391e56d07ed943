package menu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMenu() Menu {
	return Menu{
		Categories: []string{"pizza", "pasta", "schotel"},
		Items: []MenuItem{
			{Code: "pz-margherita", Name: "Margherita", Category: "pizza", PriceEur: 12.0, Available: true, Aliases: []string{"margarita"}},
			{Code: "pz-funghi", Name: "Funghi", Category: "pizza", PriceEur: 13.0, Available: true, Aliases: []string{"fungi"}},
			{Code: "sc-shoarma", Name: "Shoarma", Category: "schotel", PriceEur: 15.0, Available: true, Aliases: []string{"shoarma schotel"}},
			{Code: "pa-bolognese", Name: "Bolognese", Category: "pasta", PriceEur: 14.0, Available: true},
			{Code: "pa-carbonara", Name: "Carbonara", Category: "pasta", PriceEur: 14.5, Available: false},
		},
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "margherita", Normalize("  Marghérita! "))
	assert.Equal(t, "pizza funghi", Normalize("Pizza,   Funghi"))
	assert.Equal(t, "", Normalize("  ...  "))
}

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog(testMenu())

	item, ok := c.Lookup("margherita")
	require.True(t, ok)
	assert.Equal(t, "pizza", item.Category)
	assert.Equal(t, 12.0, item.PriceEur)

	// alias
	item, ok = c.Lookup("margarita")
	require.True(t, ok)
	assert.Equal(t, "pz-margherita", item.Code)

	// loose category word is stripped before retry
	item, ok = c.Lookup("pizza margherita")
	require.True(t, ok)
	assert.Equal(t, "pz-margherita", item.Code)

	_, ok = c.Lookup("cola")
	assert.False(t, ok)
}

func TestCatalogLookup_UnavailableItem(t *testing.T) {
	c := NewCatalog(testMenu())
	_, ok := c.Lookup("carbonara")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	m := testMenu()
	require.Empty(t, Validate(m))

	m.Items = append(m.Items, MenuItem{Code: "pz-margherita", Name: "Dup", Category: "pizza"})
	m.Items = append(m.Items, MenuItem{Code: "x", Name: "Ghost", Category: "sushi"})
	errs := Validate(m)
	assert.Len(t, errs, 2)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu.json")
	content := `{
		"categories": ["pizza"],
		"items": [
			{"code": "pz-salami", "name": "Salami", "category": "pizza", "price_eur": 13.5, "available": true}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	item, ok := c.Lookup("salami")
	require.True(t, ok)
	assert.Equal(t, 13.5, item.PriceEur)
}

func TestLoad_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu.json")
	content := `{"categories": [], "items": [{"code": "", "name": "", "category": "pizza"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "menu validation failed")
}
