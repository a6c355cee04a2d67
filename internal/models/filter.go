package models

// ProductFilter is the structured result of parsing a free-text search
// request. Absent fields mean "unconstrained"; they are never defaulted to a
// sentinel value.
type ProductFilter struct {
	AgeRange     string `json:"age_range,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Category     string `json:"category,omitempty"`
	Brand        string `json:"brand,omitempty"`
	MaxPrice     int    `json:"max_price,omitempty"`
	HasDiscounts bool   `json:"has_discounts,omitempty"`
}

// IsEmpty reports whether no filter field was recognized. Callers treat an
// empty filter as "no constraints recognized" and re-prompt the user.
func (f ProductFilter) IsEmpty() bool {
	return f == ProductFilter{}
}
