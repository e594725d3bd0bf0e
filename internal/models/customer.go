package models

import "time"

// CustomerFeatures holds the per-customer inputs of the lifetime models.
// Recency and T are expressed in weeks.
type CustomerFeatures struct {
	CustomerID string  `json:"customer_id"`
	Recency    float64 `json:"recency"`
	T          float64 `json:"T"`
	Frequency  int     `json:"frequency"`
	Monetary   float64 `json:"monetary"`
}

type Segment string

const (
	SegmentD Segment = "D"
	SegmentC Segment = "C"
	SegmentB Segment = "B"
	SegmentA Segment = "A"
)

// Segments lists the labels from the lowest value quartile to the highest.
var Segments = []Segment{SegmentD, SegmentC, SegmentB, SegmentA}

func (s Segment) Rank() int {
	for i, seg := range Segments {
		if seg == s {
			return i
		}
	}
	return -1
}

// Projection is the scored output for one customer. ExpectedPurchases is
// keyed by horizon in model periods, CLV by horizon in months.
type Projection struct {
	CustomerFeatures
	ExpectedAverageProfit float64         `json:"expected_average_profit"`
	ExpectedPurchases     map[int]float64 `json:"expected_purchases"`
	CLV                   map[int]float64 `json:"clv"`
	Segment               Segment         `json:"segment"`
}

type SegmentSummary struct {
	Segment Segment `json:"segment"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Sum     float64 `json:"sum"`
}

type ModelSummary struct {
	FrequencyParams map[string]float64 `json:"frequency_params"`
	MonetaryParams  map[string]float64 `json:"monetary_params"`
	Customers       int                `json:"customers"`
	FittedAt        time.Time          `json:"fitted_at"`
}
