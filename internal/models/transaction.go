package models

import (
	"math"
	"strings"
	"time"
)

// Transaction is a single invoice line. Missing numeric cells are NaN,
// missing text cells are empty and a missing date is the zero time.
type Transaction struct {
	InvoiceID   string    `json:"invoice_id"`
	StockCode   string    `json:"stock_code"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	InvoiceDate time.Time `json:"invoice_date"`
	UnitPrice   float64   `json:"unit_price"`
	CustomerID  string    `json:"customer_id"`
	Country     string    `json:"country"`
	TotalPrice  float64   `json:"total_price"`
}

func (t Transaction) Complete() bool {
	return t.InvoiceID != "" &&
		t.StockCode != "" &&
		t.Description != "" &&
		t.CustomerID != "" &&
		t.Country != "" &&
		!t.InvoiceDate.IsZero() &&
		!math.IsNaN(t.Quantity) &&
		!math.IsNaN(t.UnitPrice)
}

// Cancelled reports whether the invoice id carries the cancellation marker prefix.
func (t Transaction) Cancelled(marker string) bool {
	return marker != "" && strings.HasPrefix(t.InvoiceID, marker)
}
