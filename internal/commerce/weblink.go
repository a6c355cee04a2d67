package commerce

import (
	"net/url"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// WebStoreBaseURL is the public web store. Links built from a filter land on
// the pre-filtered catalog page.
const WebStoreBaseURL = "https://juguetes.com.ni/tienda"

// BuildWebLink returns a web-store URL carrying the filter as query
// parameters. An empty filter links to the plain catalog.
func BuildWebLink(f models.ProductFilter) string {
	q := url.Values{}
	if f.Category != "" {
		q.Set("categoria", f.Category)
	}
	if f.Brand != "" {
		q.Set("marca", f.Brand)
	}
	if f.AgeRange != "" {
		q.Set("edad", f.AgeRange)
	}
	if f.Gender != "" {
		q.Set("genero", f.Gender)
	}
	if f.HasDiscounts {
		q.Set("descuentos", "1")
	}
	if len(q) == 0 {
		return WebStoreBaseURL
	}
	return WebStoreBaseURL + "?" + q.Encode()
}
