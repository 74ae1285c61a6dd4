package printcalc

import (
	"fmt"
	"strings"
)

// Badge returns the short marker shown next to a quality rating.
func Badge(q Quality) string {
	switch q {
	case QualityOptimal:
		return "🟢 Optimal"
	case QualityGood:
		return "🟡 Good"
	default:
		return "🔴 Poor"
	}
}

// QualityAdvice is a one-line explanation of a quality rating.
func QualityAdvice(q Quality) string {
	switch q {
	case QualityOptimal:
		return "This resolution will print sharp and detailed."
	case QualityGood:
		return "This resolution prints well; fine detail may soften slightly up close."
	default:
		return "This resolution is low for this size. Consider a smaller print or a higher-resolution file."
	}
}

// FormatSizeResult renders a size calculation for a customer.
func FormatSizeResult(r SizeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Print size: %s × %s cm (%s × %s in)\n",
		formatCm(r.WidthCm), formatCm(r.HeightCm), formatIn(r.WidthIn), formatIn(r.HeightIn))
	fmt.Fprintf(&b, "Artwork: %d × %d px\n", r.PixelWidth, r.PixelHeight)
	fmt.Fprintf(&b, "Resolution: %d × %d DPI (average %d DPI)\n", r.DPIWidth, r.DPIHeight, r.DPIAverage)
	fmt.Fprintf(&b, "Quality: %s\n", Badge(r.Quality))
	b.WriteString(QualityAdvice(r.Quality))
	return b.String()
}

// FormatPrintSize renders an inverse calculation for a customer.
func FormatPrintSize(p PrintSize) string {
	var b strings.Builder
	fmt.Fprintf(&b, "At %d DPI your %d × %d px artwork prints up to %s × %s cm (%s × %s in).\n",
		p.TargetDPI, p.PixelWidth, p.PixelHeight,
		formatCm(p.WidthCm), formatCm(p.HeightCm), formatIn(p.WidthIn), formatIn(p.HeightIn))
	fmt.Fprintf(&b, "Quality at that size: %s", Badge(p.Quality))
	return b.String()
}

func formatCm(v float64) string { return fmt.Sprintf("%.1f", v) }
func formatIn(v float64) string { return fmt.Sprintf("%.2f", v) }
