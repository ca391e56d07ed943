package callflow

import "voicebot-server/internal/nlu"

// OrderLine is one accumulated order position. Lines are keyed by
// (category, name, unit price); merging never creates a duplicate key.
type OrderLine struct {
	Name      string
	Category  string
	Quantity  int
	UnitPrice float64
}

// Draft is the in-progress, unconfirmed order for one call. It is owned by
// the call's state machine and discarded at call end; the core never
// persists it.
type Draft struct {
	mode  nlu.FulfillmentMode
	lines []OrderLine
}

// Merge folds extracted items into the draft, accumulating quantity for
// lines with an equal (category, name, unit price) key.
func (d *Draft) Merge(items []nlu.Item) {
	for _, item := range items {
		merged := false
		for i := range d.lines {
			l := &d.lines[i]
			if l.Category == item.Category && l.Name == item.Name && l.UnitPrice == item.UnitPrice {
				l.Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			d.lines = append(d.lines, OrderLine{
				Name:      item.Name,
				Category:  item.Category,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
	}
}

// Lines returns a copy of the accumulated order lines.
func (d *Draft) Lines() []OrderLine {
	lines := make([]OrderLine, len(d.lines))
	copy(lines, d.lines)
	return lines
}

// Categories returns the distinct categories present in the draft.
func (d *Draft) Categories() []string {
	seen := map[string]bool{}
	var categories []string
	for _, l := range d.lines {
		if l.Quantity > 0 && !seen[l.Category] {
			seen[l.Category] = true
			categories = append(categories, l.Category)
		}
	}
	return categories
}

// HasLines reports whether at least one item has been ordered.
func (d *Draft) HasLines() bool {
	return len(d.lines) > 0
}

// Mode returns the fulfillment mode, ModeNone while still unset.
func (d *Draft) Mode() nlu.FulfillmentMode {
	return d.mode
}

// SetMode sets the fulfillment mode once. A set mode never goes back to
// unset within a call, and later detections do not overwrite it.
func (d *Draft) SetMode(mode nlu.FulfillmentMode) {
	if d.mode == nlu.ModeNone && mode != nlu.ModeNone {
		d.mode = mode
	}
}
