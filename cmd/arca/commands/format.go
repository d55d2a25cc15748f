package commands

import (
	"fmt"
	"strings"

	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/meters"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// Every command prints through these so output stays uniform.
// ═══════════════════════════════════════════════════════════

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintHeader prints a boxed section title
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintDoubleSeparator()
}

// PrintProgress prints a progress step with counter
// Example: [Calibration] scoring [120/1000]
func PrintProgress(tag string, message string, current int, total int) {
	fmt.Printf("[%s] %s [%d/%d]\n", tag, message, current, total)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println()
	fmt.Printf("✅ %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// trendGlyph renders a trend set's unified record as an arrow plus speed.
func trendGlyph(set *contracts.TrendSet) string {
	if set == nil || set.Unified == nil {
		return ""
	}
	rec := set.Unified
	switch rec.Direction {
	case contracts.TrendRising:
		return fmt.Sprintf("↑ %s", rec.Speed)
	case contracts.TrendFalling:
		return fmt.Sprintf("↓ %s", rec.Speed)
	default:
		return "→"
	}
}

// printReadings renders a full day of readings, groups first, each
// group's meters beneath it in taxonomy order.
func printReadings(r *contracts.DailyReadings, registry *meters.Registry) {
	PrintHeader(fmt.Sprintf("Daily Readings %s", r.Date.Format("2006-01-02")))
	fmt.Printf("  Chart       : %s\n", r.ChartID)
	fmt.Printf("  Calibration : %s\n", r.CalibrationVersion)

	for _, groupID := range meters.GroupIDs {
		group := r.Groups[groupID]
		if group == nil {
			continue
		}

		fmt.Println()
		fmt.Printf("%-8s unified %+6.1f   intensity %5.1f   harmony %5.1f   %s\n",
			strings.ToUpper(string(groupID)), group.Unified, group.Intensity,
			group.Harmony, trendGlyph(group.Trend))
		PrintSeparator()

		for _, def := range registry.Group(groupID) {
			m := r.Meters[def.ID]
			if m == nil {
				continue
			}
			note := ""
			if m.Uncalibrated {
				note = "  (uncalibrated)"
			}
			fmt.Printf("  %-11s %+6.1f   %5.1f %-10s  %5.1f %-12s %s%s\n",
				m.Meter, m.Unified, m.Intensity, m.IntensityLabel,
				m.Harmony, m.HarmonyLabel, trendGlyph(m.Trend), note)
		}
	}
	fmt.Println()
}

// printTopAspects renders one meter's strongest contributions.
func printTopAspects(m *contracts.MeterReading) {
	PrintHeader(fmt.Sprintf("Top aspects: %s", m.Meter))
	if len(m.TopAspects) == 0 {
		fmt.Println("  No contributing aspects in orb today.")
		fmt.Println()
		return
	}
	for _, a := range m.TopAspects {
		fmt.Printf("  %-8s %-12s %-8s  orb %4.1f° %-10s  intensity %5.2f  valence %+6.2f\n",
			a.TransitBody, a.Type, a.NatalBody, a.Orb, a.Phase, a.Intensity, a.Valence)
	}
	fmt.Println()
}
