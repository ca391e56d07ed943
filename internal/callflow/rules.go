package callflow

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"voicebot-server/internal/nlu"
	"voicebot-server/internal/store"
)

// TimeStatus classifies the current moment against opening hours.
type TimeStatus int

const (
	TimeStatusOpen TimeStatus = iota
	TimeStatusDeliveryCutoff
	TimeStatusClosed
)

// Opening hours, minutes since midnight local time.
const (
	openFromMinutes     = 16 * 60      // 16:00
	deliveryStopMinutes = 21*60 + 30   // 21:30
	closeAtMinutes      = 22 * 60      // 22:00
)

// Base preparation durations in minutes.
const (
	deliveryBaseMinutes       = 60
	pickupCombinedBaseMinutes = 30
	pickupSingleBaseMinutes   = 15
)

// Rules computes opening-hours status, preparation estimates and the spoken
// phrasing around them. It holds no per-call state.
type Rules struct {
	restaurantName string
	location       *time.Location
}

func NewRules(restaurantName, timezone string) (*Rules, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}
	return &Rules{restaurantName: restaurantName, location: location}, nil
}

// Now returns the current restaurant-local time. VOICEBOT_FORCE_TIME=HH:MM
// overrides the clock for manual testing.
func (r *Rules) Now() time.Time {
	if forced := strings.TrimSpace(os.Getenv("VOICEBOT_FORCE_TIME")); forced != "" {
		if t, err := time.ParseInLocation("15:04", forced, r.location); err == nil {
			now := time.Now().In(r.location)
			return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, r.location)
		}
	}
	return time.Now().In(r.location)
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// TimeStatus returns the opening-hours status at the given moment and the
// message to speak for it. Open yields an empty message.
func (r *Rules) TimeStatus(now time.Time) (TimeStatus, string) {
	m := minutesOfDay(now.In(r.location))
	if m >= closeAtMinutes || m < openFromMinutes {
		return TimeStatusClosed, fmt.Sprintf(
			"Goeiedag, u spreekt met Sara, de digitale belassistent van %s. "+
				"Helaas zijn we op dit moment niet geopend. Vanaf vier uur kunt u ons weer bereiken.",
			r.restaurantName)
	}
	if m >= deliveryStopMinutes {
		return TimeStatusDeliveryCutoff, "Na half tien bezorgen we niet meer, maar afhalen kan nog tot tien uur."
	}
	return TimeStatusOpen, ""
}

// Greeting returns the daypart-appropriate opening line.
func (r *Rules) Greeting(now time.Time) string {
	m := minutesOfDay(now.In(r.location))
	daypart := "Goedenavond"
	switch {
	case m < 12*60:
		daypart = "Goedemorgen"
	case m < 18*60:
		daypart = "Goedemiddag"
	}
	return fmt.Sprintf("%s, u spreekt met Sara, de digitale belassistent van %s. Waarmee kan ik u helpen?",
		daypart, r.restaurantName)
}

// CategoryBlocked returns the first requested category disabled by the live
// settings. Only the pasta category is gateable today.
func (r *Rules) CategoryBlocked(categories []string, settings store.LiveSettings) (string, bool) {
	if settings.PastasEnabled {
		return "", false
	}
	for _, c := range categories {
		if c == "pasta" {
			return "pasta", true
		}
	}
	return "", false
}

// combinedOrder reports whether the order spans multiple categories or totals
// two or more items.
func combinedOrder(lines []OrderLine) bool {
	categories := map[string]bool{}
	totalQuantity := 0
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		categories[l.Category] = true
		totalQuantity += l.Quantity
	}
	return len(categories) >= 2 || totalQuantity >= 2
}

// extraDelay returns the highest configured per-category delay among the
// categories present. Max, not sum: a mixed order is never penalized twice.
func extraDelay(lines []OrderLine, settings store.LiveSettings) int {
	categories := map[string]bool{}
	for _, l := range lines {
		if l.Quantity > 0 {
			categories[l.Category] = true
		}
	}
	delay := 0
	if categories["pizza"] && settings.DelayPizzasMin > delay {
		delay = settings.DelayPizzasMin
	}
	if categories["schotel"] && settings.DelaySchotelsMin > delay {
		delay = settings.DelaySchotelsMin
	}
	return delay
}

// EstimatedMinutes computes the spoken preparation or delivery estimate.
func (r *Rules) EstimatedMinutes(mode nlu.FulfillmentMode, lines []OrderLine, settings store.LiveSettings) int {
	base := pickupSingleBaseMinutes
	if mode == nlu.ModeDelivery {
		base = deliveryBaseMinutes
	} else if combinedOrder(lines) {
		base = pickupCombinedBaseMinutes
	}
	return base + extraDelay(lines, settings)
}

// PhraseForTime renders the estimate as a sentence.
func (r *Rules) PhraseForTime(mode nlu.FulfillmentMode, minutes int) string {
	word := "afhaaltijd"
	if mode == nlu.ModeDelivery {
		word = "bezorgtijd"
	}
	return fmt.Sprintf("De %s is ongeveer %d minuten.", word, minutes)
}

// PhraseForPayment renders the payment options. Delivery is cash only.
func (r *Rules) PhraseForPayment(mode nlu.FulfillmentMode) string {
	if mode == nlu.ModeDelivery {
		return "Betalen kan alleen contant bij de bezorger."
	}
	return "Bij afhalen kunt u contant of met pin betalen."
}

// Summarize renders the order lines and the total price, rounded to cents.
func (r *Rules) Summarize(lines []OrderLine) (string, float64) {
	var parts []string
	total := 0.0
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d× %s", l.Quantity, l.Name))
		total += float64(l.Quantity) * l.UnitPrice
	}
	if len(parts) == 0 {
		return "geen items", 0.0
	}
	return strings.Join(parts, "; "), math.Round(total*100) / 100
}
