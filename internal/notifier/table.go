package notifier

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"TrendCloud/internal/model"
)

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

// RenderSnapshot renders the cloud points of a snapshot as a plain-text table.
func RenderSnapshot(snap *model.Snapshot) string {
	t := newTable(fmt.Sprintf("%s %s  %s -> %s  price %.2f", snap.Symbol, snap.Timeframe,
		snap.CalculationDate.Format("2006-01-02"), snap.TargetDate.Format("2006-01-02"), snap.CurrentPrice))
	t.AppendHeader(table.Row{"#", "Price", "Kind", "Weight", "Norm", "Density", "Lines", "Confidence"})
	for i, p := range snap.Points {
		t.AppendRow(table.Row{
			i + 1,
			fmt.Sprintf("%.2f", p.PriceLevel),
			string(p.Kind),
			fmt.Sprintf("%.2f", p.Weight),
			fmt.Sprintf("%.3f", p.NormalizedWeight),
			fmt.Sprintf("%.2f", p.Density),
			p.TrendlineCount,
			fmt.Sprintf("%.3f", p.Confidence),
		})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%.2f", snap.TotalWeight), "", "",
		fmt.Sprintf("%d/%d", snap.Summary.ZoneCount, snap.TrendlineCount), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return t.Render()
}

// RenderRun renders one row per snapshot of a rolling run.
func RenderRun(res *model.RollingResult) string {
	md := res.Metadata
	t := newTable(fmt.Sprintf("%s %s rolling  %s -> %s  step %dd  (%d computed, %d skipped)",
		md.Symbol, md.Timeframe, md.Start.Format("2006-01-02"), md.End.Format("2006-01-02"),
		md.StepDays, md.Computed, md.Skipped))
	t.AppendHeader(table.Row{"Date", "Price", "Pivots", "Lines", "Zones", "S/R", "Dominant", "Weight"})
	for _, s := range res.Snapshots {
		sum := s.Summary
		dominant := "-"
		if !s.Empty() {
			dominant = fmt.Sprintf("%.2f", sum.DominantPrice)
		}
		t.AppendRow(table.Row{
			s.CalculationDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", s.CurrentPrice),
			s.PivotCount,
			s.TrendlineCount,
			sum.ZoneCount,
			fmt.Sprintf("%d/%d", sum.SupportZones, sum.ResistanceZones),
			dominant,
			fmt.Sprintf("%.1f", sum.DominantWeight),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "",
		fmt.Sprintf("%d/%d", res.Summary.SupportZones, res.Summary.ResistanceZones),
		fmt.Sprintf("avg %.2f", res.Summary.AvgStrength), ""})
	return t.Render()
}
