package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ashureev/printdesk/internal/agent"
	"github.com/ashureev/printdesk/internal/printcalc"
)

var (
	dpiPixels    string
	dpiTargetDPI int
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E")).Width(12)
	optimalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	goodStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFC107"))
	poorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E53935"))
)

var dpiCmd = &cobra.Command{
	Use:   "dpi [size]",
	Short: "Calculate print resolution for an artwork",
	Long: `Calculates the DPI an artwork reaches at a physical print size, e.g.

  printdesk dpi --pixels 3000x2832 "26.6 × 24.0 cm"

With --target-dpi the calculation runs the other way and prints the largest
size the artwork reaches at that resolution.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDPI,
}

func init() {
	dpiCmd.Flags().StringVar(&dpiPixels, "pixels", "", "artwork size in pixels, WIDTHxHEIGHT (required)")
	dpiCmd.Flags().IntVar(&dpiTargetDPI, "target-dpi", 0, "print the maximum size at this DPI instead")
	_ = dpiCmd.MarkFlagRequired("pixels")
}

func runDPI(cmd *cobra.Command, args []string) error {
	w, h, err := parsePixels(dpiPixels)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if dpiTargetDPI > 0 {
		size, err := printcalc.SizeForDPI(w, h, dpiTargetDPI)
		if err != nil {
			return err
		}
		renderPrintSize(out, size)
		return nil
	}

	if len(args) == 0 {
		return errors.New("a print size such as \"30x40 cm\" is required unless --target-dpi is set")
	}
	widthCm, heightCm, ok := agent.ParsePrintSize(args[0])
	if !ok {
		return fmt.Errorf("could not read a print size from %q", args[0])
	}
	result, err := printcalc.DPIForSize(w, h, widthCm, heightCm)
	if err != nil {
		return err
	}
	renderSizeResult(out, result)
	return nil
}

// parsePixels reads "3000x2832" (x, X, × or * as separator).
func parsePixels(s string) (int, int, error) {
	normalized := strings.NewReplacer("×", "x", "X", "x", "*", "x").Replace(strings.TrimSpace(s))
	parts := strings.Split(normalized, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid --pixels %q: want WIDTHxHEIGHT", s)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid --pixels %q: dimensions must be positive integers", s)
	}
	return w, h, nil
}

func qualityStyle(q printcalc.Quality) lipgloss.Style {
	switch q {
	case printcalc.QualityOptimal:
		return optimalStyle
	case printcalc.QualityGood:
		return goodStyle
	default:
		return poorStyle
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func renderSizeResult(w io.Writer, r printcalc.SizeResult) {
	lines := []string{
		titleStyle.Render("Print resolution"),
		row("Artwork", fmt.Sprintf("%d × %d px", r.PixelWidth, r.PixelHeight)),
		row("Print size", fmt.Sprintf("%.1f × %.1f cm (%.2f × %.2f in)", r.WidthCm, r.HeightCm, r.WidthIn, r.HeightIn)),
		row("Resolution", fmt.Sprintf("%d × %d DPI, average %d", r.DPIWidth, r.DPIHeight, r.DPIAverage)),
		row("Quality", qualityStyle(r.Quality).Render(string(r.Quality))),
		printcalc.QualityAdvice(r.Quality),
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderPrintSize(w io.Writer, p printcalc.PrintSize) {
	lines := []string{
		titleStyle.Render("Maximum print size"),
		row("Artwork", fmt.Sprintf("%d × %d px", p.PixelWidth, p.PixelHeight)),
		row("Target", fmt.Sprintf("%d DPI", p.TargetDPI)),
		row("Print size", fmt.Sprintf("%.1f × %.1f cm (%.2f × %.2f in)", p.WidthCm, p.HeightCm, p.WidthIn, p.HeightIn)),
		row("Quality", qualityStyle(p.Quality).Render(string(p.Quality))),
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
}
