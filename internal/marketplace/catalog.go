package marketplace

import "strings"

// Supported marketplace names
const (
	EBay     = "ebay"
	Facebook = "facebook"
	Mercari  = "mercari"
	Poshmark = "poshmark"
)

// requiredFields lists, in surfacing order, the fields each marketplace
// needs before a listing can be submitted. title, price and condition are
// required everywhere.
var requiredFields = map[string][]string{
	EBay:     {"title", "price", "condition", "category", "shipping_profile"},
	Facebook: {"title", "price", "condition", "category"},
	Mercari:  {"title", "price", "condition", "category", "shipping_profile"},
	Poshmark: {"title", "price", "condition", "category", "brand", "size"},
}

// Names returns all supported marketplaces in a stable order
func Names() []string {
	return []string{EBay, Facebook, Mercari, Poshmark}
}

// Supported reports whether name is a known marketplace
func Supported(name string) bool {
	_, ok := requiredFields[name]
	return ok
}

// RequiredFields returns the ordered required-field schema for a marketplace.
// Unknown marketplaces fall back to the universal minimum.
func RequiredFields(name string) []string {
	if fields, ok := requiredFields[name]; ok {
		return fields
	}
	return []string{"title", "price", "condition"}
}

// CategoryLike reports whether a field stores a {id, label} category pair,
// so fix application also records the id alongside the label.
func CategoryLike(field string) bool {
	return field == "category" || strings.HasSuffix(field, "_category")
}
