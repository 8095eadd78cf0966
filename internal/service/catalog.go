package service

import "github.com/yhwh80/freelance-marketplace/internal/model"

// Catalog is the fixed list of credit packages on sale.
type Catalog struct {
	packages []model.CreditPackage
}

// NewCatalog returns the standard packages.  priceIDs maps a package id to a
// provider price id that replaces the inline price at checkout.
func NewCatalog(priceIDs map[string]string) Catalog {
	pkgs := []model.CreditPackage{
		{ID: "credits_10", Name: "10 Credits", Credits: 10, Price: 500},
		{ID: "credits_25", Name: "25 Credits", Credits: 25, Price: 1000, Popular: true},
		{ID: "credits_50", Name: "50 Credits", Credits: 50, Price: 1800},
		{ID: "credits_100", Name: "100 Credits", Credits: 100, Price: 3200},
	}
	for i := range pkgs {
		pkgs[i].PriceID = priceIDs[pkgs[i].ID]
	}
	return Catalog{packages: pkgs}
}

// Lookup finds a package by id.
func (c Catalog) Lookup(id string) (model.CreditPackage, bool) {
	for _, p := range c.packages {
		if p.ID == id {
			return p, true
		}
	}
	return model.CreditPackage{}, false
}

// Packages returns a copy of the catalog in display order.
func (c Catalog) Packages() []model.CreditPackage {
	out := make([]model.CreditPackage, len(c.packages))
	copy(out, c.packages)
	return out
}
