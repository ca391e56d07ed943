package callflow

import (
	"testing"
	"time"

	"voicebot-server/internal/nlu"
	"voicebot-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules(t *testing.T) *Rules {
	t.Helper()
	r, err := NewRules("Ristorante Adam Spanbroek", "Europe/Amsterdam")
	require.NoError(t, err)
	return r
}

func at(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, loc)
}

func TestTimeStatus(t *testing.T) {
	r := testRules(t)

	status, msg := r.TimeStatus(at(t, 22, 0))
	assert.Equal(t, TimeStatusClosed, status)
	assert.Contains(t, msg, "niet geopend")

	status, _ = r.TimeStatus(at(t, 15, 59))
	assert.Equal(t, TimeStatusClosed, status)

	status, msg = r.TimeStatus(at(t, 21, 29))
	assert.Equal(t, TimeStatusOpen, status)
	assert.Empty(t, msg)

	status, msg = r.TimeStatus(at(t, 21, 31))
	assert.Equal(t, TimeStatusDeliveryCutoff, status)
	assert.Contains(t, msg, "afhalen kan nog")

	status, _ = r.TimeStatus(at(t, 21, 30))
	assert.Equal(t, TimeStatusDeliveryCutoff, status)
}

func TestGreeting_Dayparts(t *testing.T) {
	r := testRules(t)
	assert.Contains(t, r.Greeting(at(t, 10, 0)), "Goedemorgen")
	assert.Contains(t, r.Greeting(at(t, 14, 0)), "Goedemiddag")
	assert.Contains(t, r.Greeting(at(t, 19, 0)), "Goedenavond")
}

func TestCategoryBlocked(t *testing.T) {
	r := testRules(t)

	settings := store.DefaultLiveSettings()
	_, blocked := r.CategoryBlocked([]string{"pasta", "pizza"}, settings)
	assert.False(t, blocked)

	settings.PastasEnabled = false
	category, blocked := r.CategoryBlocked([]string{"pizza", "pasta"}, settings)
	assert.True(t, blocked)
	assert.Equal(t, "pasta", category)

	_, blocked = r.CategoryBlocked([]string{"pizza"}, settings)
	assert.False(t, blocked)
}

func TestEstimatedMinutes_DeliveryUsesMaxDelay(t *testing.T) {
	r := testRules(t)
	settings := store.DefaultLiveSettings()
	settings.DelayPizzasMin = 10
	settings.DelaySchotelsMin = 25

	lines := []OrderLine{
		{Name: "margherita", Category: "pizza", Quantity: 1, UnitPrice: 12},
		{Name: "shoarma", Category: "schotel", Quantity: 1, UnitPrice: 15},
	}

	// delivery base 60 plus max(10, 25), never the sum
	assert.Equal(t, 85, r.EstimatedMinutes(nlu.ModeDelivery, lines, settings))
}

func TestEstimatedMinutes_PickupBases(t *testing.T) {
	r := testRules(t)
	settings := store.DefaultLiveSettings()

	single := []OrderLine{{Name: "margherita", Category: "pizza", Quantity: 1, UnitPrice: 12}}
	assert.Equal(t, 15, r.EstimatedMinutes(nlu.ModePickup, single, settings))

	twoOfOne := []OrderLine{{Name: "margherita", Category: "pizza", Quantity: 2, UnitPrice: 12}}
	assert.Equal(t, 30, r.EstimatedMinutes(nlu.ModePickup, twoOfOne, settings))

	mixed := []OrderLine{
		{Name: "margherita", Category: "pizza", Quantity: 1, UnitPrice: 12},
		{Name: "bolognese", Category: "pasta", Quantity: 1, UnitPrice: 14},
	}
	assert.Equal(t, 30, r.EstimatedMinutes(nlu.ModePickup, mixed, settings))
}

func TestPhrases(t *testing.T) {
	r := testRules(t)

	assert.Equal(t, "De bezorgtijd is ongeveer 60 minuten.", r.PhraseForTime(nlu.ModeDelivery, 60))
	assert.Equal(t, "De afhaaltijd is ongeveer 15 minuten.", r.PhraseForTime(nlu.ModePickup, 15))

	assert.Contains(t, r.PhraseForPayment(nlu.ModeDelivery), "alleen contant")
	assert.Contains(t, r.PhraseForPayment(nlu.ModePickup), "contant of met pin")
}

func TestSummarize(t *testing.T) {
	r := testRules(t)

	description, total := r.Summarize(nil)
	assert.Equal(t, "geen items", description)
	assert.Equal(t, 0.0, total)

	lines := []OrderLine{
		{Name: "margherita", Category: "pizza", Quantity: 2, UnitPrice: 12.0},
		{Name: "shoarma", Category: "schotel", Quantity: 1, UnitPrice: 15.0},
		{Name: "carbonara", Category: "pasta", Quantity: 0, UnitPrice: 14.5},
	}
	description, total = r.Summarize(lines)
	assert.Equal(t, "2× margherita; 1× shoarma", description)
	assert.Equal(t, 39.0, total)
}

func TestSummarize_RoundsToCents(t *testing.T) {
	r := testRules(t)
	lines := []OrderLine{{Name: "x", Category: "pizza", Quantity: 3, UnitPrice: 4.105}}
	_, total := r.Summarize(lines)
	assert.Equal(t, 12.32, total)
}
