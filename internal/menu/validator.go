package menu

import "fmt"

// Validate checks a loaded menu for structural problems. All errors are
// collected so an operator can fix the file in one pass.
func Validate(m Menu) []error {
	var errs []error

	categories := make(map[string]bool, len(m.Categories))
	for _, c := range m.Categories {
		categories[c] = true
	}
	if len(categories) == 0 {
		errs = append(errs, fmt.Errorf("categories list is empty"))
	}

	seenCodes := make(map[string]bool, len(m.Items))
	for i, item := range m.Items {
		if item.Code == "" {
			errs = append(errs, fmt.Errorf("item[%d] missing code", i+1))
		} else if seenCodes[item.Code] {
			errs = append(errs, fmt.Errorf("duplicate code: %s", item.Code))
		} else {
			seenCodes[item.Code] = true
		}

		if item.Name == "" {
			errs = append(errs, fmt.Errorf("%s: missing name", item.Code))
		}
		if !categories[item.Category] {
			errs = append(errs, fmt.Errorf("%s: unknown category %q", item.Code, item.Category))
		}
		if item.PriceEur < 0 {
			errs = append(errs, fmt.Errorf("%s: price_eur must not be negative", item.Code))
		}
	}

	return errs
}
