package models

import "github.com/shopspring/decimal"

// Product represents a catalogue entry served by the product service
type Product struct {
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductPrice decimal.Decimal `json:"productPrice"`
}

// ProductQuote is the unit price of a product captured during one creation attempt
type ProductQuote struct {
	ProductID int64
	UnitPrice decimal.Decimal
}
