// Package filter extracts a structured product filter from free-form Spanish
// text. Parsing is deterministic keyword and pattern matching; within each
// field the patterns are tried in a fixed order and the first match wins.
package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// agePatterns are tried in order; explicit ranges beat single ages, which
// beat life-stage keywords.
var agePatterns = []struct {
	re     *regexp.Regexp
	format func(m []string) string
}{
	{regexp.MustCompile(`(\d+)-(\d+)\s*años?`), func(m []string) string { return m[1] + "-" + m[2] + " años" }},
	{regexp.MustCompile(`(\d+)\s*años?`), func(m []string) string { return m[1] + " años" }},
	{regexp.MustCompile(`beb[eé]s?`), func([]string) string { return "0-2 años" }},
	{regexp.MustCompile(`preescolar`), func([]string) string { return "3-6 años" }},
	{regexp.MustCompile(`escolar`), func([]string) string { return "7-12 años" }},
	{regexp.MustCompile(`adolescentes?`), func([]string) string { return "13+ años" }},
}

var genderTable = []struct {
	keyword string
	value   string
}{
	{"niña", "niña"},
	{"nina", "niña"},
	{"niño", "niño"},
	{"nino", "niño"},
	{"unisex", "unisex"},
}

var categoryTable = []struct {
	keyword string
	value   string
}{
	{"educativos", "educativos"},
	{"sostenibles", "sostenibles"},
	{"tendencias", "tendencias"},
	{"construcción", "construcción"},
	{"construccion", "construcción"},
	{"muñecas", "muñecas"},
	{"munecas", "muñecas"},
	{"carros", "carros"},
	{"videojuegos", "videojuegos"},
	{"arte", "arte"},
	{"acción", "acción"},
	{"accion", "acción"},
	{"exterior", "exterior"},
}

var brandTable = []struct {
	keyword string
	value   string
}{
	{"lego", "LEGO"},
	{"barbie", "Barbie"},
	{"hot wheels", "Hot Wheels"},
	{"nintendo", "Nintendo"},
	{"crayola", "Crayola"},
	{"fisher-price", "Fisher-Price"},
	{"fisher price", "Fisher-Price"},
	{"marvel", "Marvel"},
}

// pricePatterns all capture the numeric bound in group 1. Prices are córdobas;
// the currency marker is optional.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`menos de c?\$?(\d+)`),
	regexp.MustCompile(`m[aá]ximo c?\$?(\d+)`),
	regexp.MustCompile(`hasta c?\$?(\d+)`),
	regexp.MustCompile(`c?\$?(\d+) o menos`),
}

var discountKeywords = []string{"sí", "si", "yes", "descuentos"}

// Parse extracts a ProductFilter from text. It never fails: text with no
// recognizable constraint yields the zero filter. Parse does not mutate any
// state and the same input always produces the same output.
func Parse(text string) models.ProductFilter {
	lower := strings.ToLower(text)

	var f models.ProductFilter

	for _, p := range agePatterns {
		if m := p.re.FindStringSubmatch(lower); m != nil {
			f.AgeRange = p.format(m)
			break
		}
	}

	for _, g := range genderTable {
		if strings.Contains(lower, g.keyword) {
			f.Gender = g.value
			break
		}
	}

	for _, c := range categoryTable {
		if strings.Contains(lower, c.keyword) {
			f.Category = c.value
			break
		}
	}

	for _, b := range brandTable {
		if strings.Contains(lower, b.keyword) {
			f.Brand = b.value
			break
		}
	}

	for _, re := range pricePatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				f.MaxPrice = n
			}
			break
		}
	}

	for _, k := range discountKeywords {
		if strings.Contains(lower, k) {
			f.HasDiscounts = true
			break
		}
	}

	return f
}
