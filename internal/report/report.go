// Package report renders a finished run for people: aligned text tables on
// a writer and a JSON export on disk.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"cltv-analytics/internal/models"
	"cltv-analytics/internal/services"
)

// WriteSummary prints the model parameters, cleaning counts, segment table
// and the top customers by CLV and by expected purchases.
func WriteSummary(w io.Writer, r *services.Result, topN int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	horizon := r.Options.SegmentHorizon

	fmt.Fprintf(w, "run %s, cutoff %s, %d customers\n\n", r.RunID, r.Cutoff.Format("2006-01-02"), len(r.Projections))

	fmt.Fprintln(w, "model parameters")
	writeParams(tw, "BG/NBD", r.Model.FrequencyParams)
	writeParams(tw, "Gamma-Gamma", r.Model.MonetaryParams)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\ncleaning")
	c := r.Clean
	fmt.Fprintf(tw, "input\tincomplete\tcancelled\tquantity<=0\tprice<=0\tother country\toutput\t\n")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
		c.Input, c.Incomplete, c.Cancelled, c.NonPositiveQuantity, c.NonPositivePrice, c.OtherCountry, c.Output)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nsegments by %d month CLV\n", horizon)
	fmt.Fprintf(tw, "segment\tcustomers\tmean\tsum\t\n")
	for _, s := range r.Segments {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t\n", s.Segment, s.Count, s.Mean, s.Sum)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\ntop %d customers by %d month CLV\n", topN, horizon)
	writeProjections(tw, services.RankByCLV(r.Projections, horizon, topN), r.Options)
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, h := range r.Options.PurchaseHorizons {
		fmt.Fprintf(w, "\ntop %d customers by purchases expected in %d periods\n", topN, h)
		writeProjections(tw, services.RankByExpectedPurchases(r.Projections, h, topN), r.Options)
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func writeParams(tw *tabwriter.Writer, model string, params map[string]float64) {
	names := slices.Sorted(maps.Keys(params))
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = fmt.Sprintf("%s=%.4f", name, params[name])
	}
	fmt.Fprintf(tw, "%s\t%s\t\n", model, strings.Join(values, "\t"))
}

func writeProjections(tw *tabwriter.Writer, rows []models.Projection, opts services.Options) {
	header := []string{"customer", "recency", "T", "frequency", "monetary", "exp. profit"}
	for _, h := range opts.PurchaseHorizons {
		header = append(header, fmt.Sprintf("purchases %d", h))
	}
	for _, h := range opts.CLVHorizons {
		header = append(header, fmt.Sprintf("clv %dm", h))
	}
	header = append(header, "segment")
	fmt.Fprintf(tw, "%s\t\n", strings.Join(header, "\t"))

	for _, p := range rows {
		cells := []string{
			p.CustomerID,
			fmt.Sprintf("%.2f", p.Recency),
			fmt.Sprintf("%.2f", p.T),
			fmt.Sprintf("%d", p.Frequency),
			fmt.Sprintf("%.2f", p.Monetary),
			fmt.Sprintf("%.2f", p.ExpectedAverageProfit),
		}
		for _, h := range opts.PurchaseHorizons {
			cells = append(cells, fmt.Sprintf("%.3f", p.ExpectedPurchases[h]))
		}
		for _, h := range opts.CLVHorizons {
			cells = append(cells, fmt.Sprintf("%.2f", p.CLV[h]))
		}
		cells = append(cells, string(p.Segment))
		fmt.Fprintf(tw, "%s\t\n", strings.Join(cells, "\t"))
	}
}
