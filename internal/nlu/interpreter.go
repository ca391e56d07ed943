package nlu

// Package nlu turns recognized caller utterances into structured order input.
// It is a tokenizer with lookup tables, not a general NLU engine: just enough
// Dutch to drive the order flow.

import (
	"strings"

	"voicebot-server/internal/menu"
)

// FulfillmentMode is the caller's delivery vs pickup choice.
type FulfillmentMode int

const (
	ModeNone FulfillmentMode = iota
	ModeDelivery
	ModePickup
)

func (m FulfillmentMode) String() string {
	switch m {
	case ModeDelivery:
		return "bezorgen"
	case ModePickup:
		return "afhalen"
	default:
		return ""
	}
}

// Affirmation is a yes/no signal extracted from an utterance.
type Affirmation int

const (
	AffirmationNone Affirmation = iota
	AffirmationYes
	AffirmationNo
)

// Item is one extracted (quantity, menu item, category) tuple.
type Item struct {
	Name      string
	Category  string
	Quantity  int
	UnitPrice float64
}

// Catalog is the menu lookup the interpreter resolves names against.
type Catalog interface {
	Lookup(name string) (menu.MenuItem, bool)
}

var quantityWords = map[string]int{
	"een": 1, "één": 1, "1": 1,
	"twee": 2, "2": 2,
	"drie": 3, "3": 3,
	"vier": 4, "4": 4,
	"vijf": 5, "5": 5,
	"zes": 6, "6": 6,
	"zeven": 7, "7": 7,
	"acht": 8, "8": 8,
	"negen": 9, "9": 9,
	"tien": 10, "10": 10,
}

// category hint words, singular and plural, mapped to the canonical category
var categoryHints = map[string]string{
	"pizza": "pizza", "pizzas": "pizza",
	"pasta": "pasta", "pastas": "pasta",
	"schotel": "schotel", "schotels": "schotel",
}

// separators between order segments ("twee pizza's en een cola")
var separatorWords = map[string]bool{
	"en":   true,
	"plus": true,
	"met":  true,
	",":    true,
}

// tokenize lowercases an utterance and splits it into words, keeping commas
// as their own tokens so they act as segment separators.
func tokenize(utterance string) []string {
	s := strings.ToLower(utterance)
	s = strings.ReplaceAll(s, ",", " , ")
	return strings.Fields(s)
}

// stripPossessive removes a trailing Dutch possessive suffix ("margherita's").
func stripPossessive(word string) string {
	word = strings.TrimSuffix(word, "'s")
	word = strings.TrimSuffix(word, "’s")
	return word
}

// splitSegments cuts the token stream on separator words.
func splitSegments(tokens []string) [][]string {
	var segments [][]string
	var current []string
	for _, tok := range tokens {
		if separatorWords[tok] {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		current = append(current, tok)
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

// ExtractItems extracts order items from an utterance. Spoken segments carry
// filler around the dish name ("nog een margherita erbij"), so matching scans
// for the largest token window that resolves in the catalog and reads the
// quantity and category hint from the tokens in front of it. Segments that
// resolve to no catalog entry are returned as unmatched phrases, never
// dropped, so the caller can decide to re-prompt. Items with an equal
// (category, name, price) key are merged with accumulated quantity.
func ExtractItems(utterance string, catalog Catalog) ([]Item, []string) {
	var items []Item
	var unmatched []string

	for _, segment := range splitSegments(tokenize(utterance)) {
		if item, ok := matchSegment(segment, catalog); ok {
			items = append(items, item)
			continue
		}

		if _, ok := quantityWords[segment[0]]; ok {
			segment = segment[1:]
		}
		if candidate := normalizeCandidate(segment); candidate != "" {
			unmatched = append(unmatched, candidate)
		}
	}

	return mergeItems(items), unmatched
}

// matchSegment tries catalog lookups for every token window, widest first,
// then resolves quantity and category hint from the tokens preceding the
// match.
func matchSegment(tokens []string, catalog Catalog) (Item, bool) {
	for size := len(tokens); size > 0; size-- {
		for start := 0; start+size <= len(tokens); start++ {
			candidate := normalizeCandidate(tokens[start : start+size])
			if candidate == "" {
				continue
			}

			hit, ok := catalog.Lookup(candidate)
			if !ok && strings.HasSuffix(candidate, "s") {
				// spoken plural of an item name ("salamis")
				hit, ok = catalog.Lookup(strings.TrimSuffix(candidate, "s"))
			}
			if !ok {
				continue
			}

			quantity, category := segmentContext(tokens[:start], hit.Category)
			return Item{
				Name:      hit.Name,
				Category:  category,
				Quantity:  quantity,
				UnitPrice: hit.PriceEur,
			}, true
		}
	}
	return Item{}, false
}

// segmentContext reads the nearest quantity word and category hint from the
// tokens in front of a matched window. The hint overrides the menu category,
// matching how callers phrase e.g. "drie pizza's salami".
func segmentContext(before []string, menuCategory string) (int, string) {
	quantity := 1
	category := menuCategory
	haveQty := false
	haveCat := false
	for i := len(before) - 1; i >= 0; i-- {
		tok := stripPossessive(before[i])
		if q, ok := quantityWords[tok]; ok && !haveQty {
			quantity = q
			haveQty = true
			continue
		}
		if cat, ok := categoryHints[tok]; ok && !haveCat {
			category = cat
			haveCat = true
		}
	}
	return quantity, category
}

// normalizeCandidate builds a lookup candidate from the remaining segment
// tokens: possessives stripped, embedded category words dropped.
func normalizeCandidate(tokens []string) string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = stripPossessive(tok)
		if _, isCat := categoryHints[tok]; isCat {
			continue
		}
		if tok != "" {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

func mergeItems(items []Item) []Item {
	type key struct {
		category string
		name     string
		price    float64
	}
	index := make(map[key]int, len(items))
	merged := items[:0]
	for _, item := range items {
		k := key{item.Category, item.Name, item.UnitPrice}
		if i, ok := index[k]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[k] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

var deliveryWords = []string{"bezorg", "bezorgen", "bezorgd", "bezorging", "thuisbezorgd", "brengen", "leveren"}
var pickupWords = []string{"afhalen", "afhaal", "afgehaald", "ophalen", "meenemen"}

// DetectFulfillmentMode keyword-matches delivery vs pickup vocabulary.
// Utterances mentioning both, or neither, yield ModeNone.
func DetectFulfillmentMode(utterance string) FulfillmentMode {
	tokens := tokenize(utterance)
	delivery := containsAny(tokens, deliveryWords)
	pickup := containsAny(tokens, pickupWords)

	switch {
	case delivery && !pickup:
		return ModeDelivery
	case pickup && !delivery:
		return ModePickup
	default:
		return ModeNone
	}
}

var yesWords = []string{"ja", "jawel", "klopt", "prima", "akkoord", "graag", "zeker", "goed"}
var noWords = []string{"nee", "neen", "niet", "fout", "verkeerd"}

// DetectAffirmation keyword-matches yes/no vocabulary. No fuzzy scoring;
// conflicting or absent signals yield AffirmationNone.
func DetectAffirmation(utterance string) Affirmation {
	tokens := tokenize(utterance)
	yes := containsAny(tokens, yesWords)
	no := containsAny(tokens, noWords)

	switch {
	case yes && !no:
		return AffirmationYes
	case no && !yes:
		return AffirmationNo
	default:
		return AffirmationNone
	}
}

func containsAny(tokens []string, vocabulary []string) bool {
	for _, tok := range tokens {
		for _, word := range vocabulary {
			if tok == word {
				return true
			}
		}
	}
	return false
}
