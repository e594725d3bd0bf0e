package services

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cltv-analytics/internal/models"
)

// QuartileEdges returns the 0, 25, 50, 75 and 100 percent quantiles.
func QuartileEdges(values []float64) [5]float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var edges [5]float64
	for i := range edges {
		edges[i] = Quantile(sorted, float64(i)/4)
	}
	return edges
}

// Segment labels every value with the quartile it falls in, D for the
// lowest and A for the highest. A value equal to a boundary belongs to the
// lower quartile. With fewer than four distinct values some segments stay
// empty.
func Segment(values []float64) []models.Segment {
	out := make([]models.Segment, len(values))
	if len(values) == 0 {
		return out
	}

	edges := QuartileEdges(values)
	for i, v := range values {
		out[i] = models.SegmentA
		for q := 1; q < 4; q++ {
			if v <= edges[q] {
				out[i] = models.Segments[q-1]
				break
			}
		}
	}
	return out
}

// SummarizeSegments aggregates the CLV at horizon per populated segment,
// highest segment first.
func SummarizeSegments(projections []models.Projection, horizon int) []models.SegmentSummary {
	bySegment := make(map[models.Segment][]float64)
	for _, p := range projections {
		bySegment[p.Segment] = append(bySegment[p.Segment], p.CLV[horizon])
	}

	var out []models.SegmentSummary
	for i := len(models.Segments) - 1; i >= 0; i-- {
		seg := models.Segments[i]
		values := bySegment[seg]
		if len(values) == 0 {
			continue
		}
		out = append(out, models.SegmentSummary{
			Segment: seg,
			Count:   len(values),
			Mean:    stat.Mean(values, nil),
			Sum:     floats.Sum(values),
		})
	}
	return out
}
