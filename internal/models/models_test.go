package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		InvoiceID:   "536365",
		StockCode:   "85123A",
		Description: "WHITE HANGING HEART T-LIGHT HOLDER",
		Quantity:    6,
		InvoiceDate: time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
		UnitPrice:   2.55,
		CustomerID:  "17850",
		Country:     "United Kingdom",
	}
}

func TestTransaction_Complete(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   bool
	}{
		{"complete", func(*Transaction) {}, true},
		{"missing customer", func(tx *Transaction) { tx.CustomerID = "" }, false},
		{"missing description", func(tx *Transaction) { tx.Description = "" }, false},
		{"missing date", func(tx *Transaction) { tx.InvoiceDate = time.Time{} }, false},
		{"missing quantity", func(tx *Transaction) { tx.Quantity = math.NaN() }, false},
		{"missing price", func(tx *Transaction) { tx.UnitPrice = math.NaN() }, false},
		{"zero quantity is present", func(tx *Transaction) { tx.Quantity = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			if got := tx.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransaction_Cancelled(t *testing.T) {
	tx := validTransaction()
	if tx.Cancelled("C") {
		t.Error("regular invoice reported as cancelled")
	}

	tx.InvoiceID = "C536379"
	if !tx.Cancelled("C") {
		t.Error("C-prefixed invoice should be cancelled")
	}
	if tx.Cancelled("") {
		t.Error("empty marker should never match")
	}

	tx.InvoiceID = "5363C79"
	if tx.Cancelled("C") {
		t.Error("marker is a prefix, not a substring")
	}
}

func TestSegment_Rank(t *testing.T) {
	for i, seg := range []Segment{SegmentD, SegmentC, SegmentB, SegmentA} {
		if seg.Rank() != i {
			t.Errorf("%s.Rank() = %d, want %d", seg, seg.Rank(), i)
		}
	}
	if Segment("Z").Rank() != -1 {
		t.Error("unknown segment should rank -1")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2011-01-01 10:30:00", time.Date(2011, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"2011-01-01", time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"12/1/2010 8:26", time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC)},
		{" 2011-06-01T00:00:00 ", time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestNormalizeCustomerID(t *testing.T) {
	tests := map[string]string{
		"13085.0": "13085",
		"13085":   "13085",
		" 17850 ": "17850",
		"":        "",
		"ABC-1":   "ABC-1",
		"12.5":    "12.5",
	}
	for in, want := range tests {
		if got := NormalizeCustomerID(in); got != want {
			t.Errorf("NormalizeCustomerID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProjection_MarshalJSON_NonFinite(t *testing.T) {
	p := Projection{
		CustomerFeatures:      CustomerFeatures{CustomerID: "12347", Recency: 52, T: 53, Frequency: 7, Monetary: 615},
		ExpectedAverageProfit: math.Inf(1),
		ExpectedPurchases:     map[int]float64{4: 0.56, 48: math.NaN()},
		CLV:                   map[int]float64{6: 1900},
		Segment:               SegmentA,
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("invalid JSON %s: %v", raw, err)
	}
	if decoded["expected_average_profit"] != nil {
		t.Errorf("infinite profit should encode as null, got %v", decoded["expected_average_profit"])
	}
	purchases := decoded["expected_purchases"].(map[string]any)
	if purchases["48"] != nil || purchases["4"] != 0.56 {
		t.Errorf("expected_purchases = %v", purchases)
	}
	if decoded["customer_id"] != "12347" || decoded["frequency"] != 7.0 || decoded["T"] != 53.0 {
		t.Errorf("customer fields lost: %s", raw)
	}
	if decoded["clv"].(map[string]any)["6"] != 1900.0 || decoded["segment"] != "A" {
		t.Errorf("finite fields changed: %s", raw)
	}
}

func TestSummaries_MarshalJSON_NonFinite(t *testing.T) {
	raw, err := json.Marshal([]any{
		SegmentSummary{Segment: SegmentD, Count: 0, Mean: math.NaN(), Sum: 0},
		ModelSummary{FrequencyParams: map[string]float64{"r": math.NaN(), "alpha": 4}, Customers: 3},
	})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("invalid JSON %s: %v", raw, err)
	}
	if decoded[0]["mean"] != nil || decoded[0]["segment"] != "D" {
		t.Errorf("segment summary = %v", decoded[0])
	}
	params := decoded[1]["frequency_params"].(map[string]any)
	if params["r"] != nil || params["alpha"] != 4.0 || decoded[1]["customers"] != 3.0 {
		t.Errorf("model summary = %v", decoded[1])
	}
}
