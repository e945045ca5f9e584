package notifier

import (
	"fmt"
	"html"
	"strings"

	"TrendCloud/internal/model"
)

// FormatSnapshot formats a trend cloud snapshot into a Telegram HTML message.
func FormatSnapshot(snap *model.Snapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("☁️ <b>TrendCloud</b> | %s %s | %s\n\n",
		html.EscapeString(snap.Symbol), html.EscapeString(snap.Timeframe), snap.CalculationDate.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Current price: %.2f\n", snap.CurrentPrice))
	b.WriteString(fmt.Sprintf("Target date: %s | lookback %dd\n",
		snap.TargetDate.Format("2006-01-02"), snap.LookbackDays))
	b.WriteString(fmt.Sprintf("Pivots: %d | Trendlines: %d\n\n", snap.PivotCount, snap.TrendlineCount))

	if snap.Empty() {
		b.WriteString("No convergence zones at the horizon.\n")
		return b.String()
	}

	b.WriteString("📍 <b>Convergence zones:</b>\n")
	for _, p := range snap.Points {
		icon := "🟢"
		if p.Kind == model.Resistance {
			icon = "🔴"
		}
		dev := 0.0
		if snap.CurrentPrice > 0 {
			dev = (p.PriceLevel - snap.CurrentPrice) / snap.CurrentPrice * 100
		}
		b.WriteString(fmt.Sprintf("  %s %.2f (%+.1f%%) weight %.1f | %d lines | conf %.2f\n",
			icon, p.PriceLevel, dev, p.Weight, p.TrendlineCount, p.Confidence))
	}
	s := snap.Summary
	b.WriteString("  ─────────────────\n")
	b.WriteString(fmt.Sprintf("  Support %d | Resistance %d | dominant %.2f (%.1f)\n",
		s.SupportZones, s.ResistanceZones, s.DominantPrice, s.DominantWeight))
	return b.String()
}

// FormatRunSummary formats a rolling run for a Telegram message.
func FormatRunSummary(res *model.RollingResult) string {
	md, s := res.Metadata, res.Summary
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Rolling run</b> | %s %s\n\n", html.EscapeString(md.Symbol), html.EscapeString(md.Timeframe)))
	b.WriteString(fmt.Sprintf("Range: %s → %s, every %dd\n", md.Start.Format("2006-01-02"), md.End.Format("2006-01-02"), md.StepDays))
	b.WriteString(fmt.Sprintf("Steps: %d computed, %d skipped of %d\n", md.Computed, md.Skipped, md.TotalSteps))
	b.WriteString(fmt.Sprintf("Zones: %d support, %d resistance\n", s.SupportZones, s.ResistanceZones))
	b.WriteString(fmt.Sprintf("Avg strength %.2f | avg lines/zone %.2f | empty %d\n",
		s.AvgStrength, s.AvgTrendlinesPerZone, s.EmptySnapshots))
	return b.String()
}
