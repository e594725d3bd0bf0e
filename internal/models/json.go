package models

import (
	"encoding/json"
	"math"
)

// jsonFloat encodes NaN and infinities as null, which encoding/json
// otherwise refuses to write.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func jsonFloats[K comparable](m map[K]float64) map[K]jsonFloat {
	if m == nil {
		return nil
	}
	out := make(map[K]jsonFloat, len(m))
	for k, v := range m {
		out[k] = jsonFloat(v)
	}
	return out
}

func (p Projection) MarshalJSON() ([]byte, error) {
	type plain Projection
	return json.Marshal(struct {
		plain
		Recency               jsonFloat         `json:"recency"`
		T                     jsonFloat         `json:"T"`
		Monetary              jsonFloat         `json:"monetary"`
		ExpectedAverageProfit jsonFloat         `json:"expected_average_profit"`
		ExpectedPurchases     map[int]jsonFloat `json:"expected_purchases"`
		CLV                   map[int]jsonFloat `json:"clv"`
	}{
		plain:                 plain(p),
		Recency:               jsonFloat(p.Recency),
		T:                     jsonFloat(p.T),
		Monetary:              jsonFloat(p.Monetary),
		ExpectedAverageProfit: jsonFloat(p.ExpectedAverageProfit),
		ExpectedPurchases:     jsonFloats(p.ExpectedPurchases),
		CLV:                   jsonFloats(p.CLV),
	})
}

func (s SegmentSummary) MarshalJSON() ([]byte, error) {
	type plain SegmentSummary
	return json.Marshal(struct {
		plain
		Mean jsonFloat `json:"mean"`
		Sum  jsonFloat `json:"sum"`
	}{plain(s), jsonFloat(s.Mean), jsonFloat(s.Sum)})
}

func (m ModelSummary) MarshalJSON() ([]byte, error) {
	type plain ModelSummary
	return json.Marshal(struct {
		plain
		FrequencyParams map[string]jsonFloat `json:"frequency_params"`
		MonetaryParams  map[string]jsonFloat `json:"monetary_params"`
	}{plain(m), jsonFloats(m.FrequencyParams), jsonFloats(m.MonetaryParams)})
}
