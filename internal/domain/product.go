package domain

import "github.com/shopspring/decimal"

// Product is one purchasable catalog entry, normalized from the retailer's
// nested search response. Only products with both availability flags set
// are ever handed to the resolver.
type Product struct {
	Name             string          `json:"name"`
	Stockcode        string          `json:"stockcode"`
	PriceTotal       decimal.Decimal `json:"price_total"`
	PriceUnitMeasure string          `json:"price_unit_measure"`
	IsAvailable      bool            `json:"is_available"`
	IsPurchasable    bool            `json:"is_purchasable"`
}

func (p Product) Eligible() bool {
	return p.IsAvailable && p.IsPurchasable
}
