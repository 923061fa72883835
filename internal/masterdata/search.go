package masterdata

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDotless maps the Turkish dotless ı (and its upper-case pair İ) onto the
// Latin i. Neither has an NFKD decomposition, so the mark-stripping transform
// below never reaches them.
var foldDotless = runes.Map(func(r rune) rune {
	switch r {
	case 'ı':
		return 'i'
	case 'İ':
		return 'I'
	}
	return r
})

// normalizeTerm lowercases a term and strips diacritics so that searches for
// "Depósito" and "deposito", or "Sayım" and "sayim", hit the same rows.
func normalizeTerm(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), foldDotless, norm.NFKC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func matchesTerm(term string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(normalizeTerm(f), term) {
			return true
		}
	}
	return false
}

func filterProducts(products []Product, search string) []Product {
	term := normalizeTerm(search)
	if term == "" {
		return products
	}
	filtered := products[:0]
	for _, p := range products {
		if matchesTerm(term, p.SKU, p.Name) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func filterWarehouses(warehouses []Warehouse, search string) []Warehouse {
	term := normalizeTerm(search)
	if term == "" {
		return warehouses
	}
	filtered := warehouses[:0]
	for _, w := range warehouses {
		if matchesTerm(term, w.Code, w.Name) {
			filtered = append(filtered, w)
		}
	}
	return filtered
}
