// Package printcalc converts between artwork pixel dimensions, physical print
// size and print resolution (DPI).
package printcalc

import (
	"errors"
	"fmt"
	"math"
)

// CmPerInch is the number of centimetres in one inch.
const CmPerInch = 2.54

// Quality thresholds. Lower bounds are inclusive.
const (
	OptimalMinDPI = 250
	GoodMinDPI    = 200
)

// DefaultTargetDPI is used when a print size is requested without a DPI.
const DefaultTargetDPI = 300

var (
	// ErrInvalidPixels is returned when pixel dimensions are not positive.
	ErrInvalidPixels = errors.New("pixel dimensions must be positive")
	// ErrInvalidSize is returned when a physical size is not positive.
	ErrInvalidSize = errors.New("print size must be positive")
	// ErrInvalidDPI is returned when a target DPI is not positive.
	ErrInvalidDPI = errors.New("dpi must be positive")
)

// Quality rates a print resolution.
type Quality string

const (
	QualityOptimal Quality = "Optimal"
	QualityGood    Quality = "Good"
	QualityPoor    Quality = "Poor"
)

// ClassifyDPI maps an average DPI to a quality rating.
func ClassifyDPI(dpi int) Quality {
	switch {
	case dpi >= OptimalMinDPI:
		return QualityOptimal
	case dpi >= GoodMinDPI:
		return QualityGood
	default:
		return QualityPoor
	}
}

// SizeResult is the outcome of a size to DPI calculation.
type SizeResult struct {
	PixelWidth  int     `json:"pixelWidth"`
	PixelHeight int     `json:"pixelHeight"`
	WidthCm     float64 `json:"widthCm"`
	HeightCm    float64 `json:"heightCm"`
	WidthIn     float64 `json:"widthIn"`
	HeightIn    float64 `json:"heightIn"`
	DPIWidth    int     `json:"dpiWidth"`
	DPIHeight   int     `json:"dpiHeight"`
	DPIAverage  int     `json:"dpiAverage"`
	Quality     Quality `json:"quality"`
}

// DPIForSize computes the resolution an artwork of pixelWidth x pixelHeight
// pixels reaches when printed at widthCm x heightCm.
func DPIForSize(pixelWidth, pixelHeight int, widthCm, heightCm float64) (SizeResult, error) {
	if pixelWidth <= 0 || pixelHeight <= 0 {
		return SizeResult{}, fmt.Errorf("%w: %dx%d", ErrInvalidPixels, pixelWidth, pixelHeight)
	}
	if !(widthCm > 0) || !(heightCm > 0) || math.IsInf(widthCm, 0) || math.IsInf(heightCm, 0) {
		return SizeResult{}, fmt.Errorf("%w: %gx%g cm", ErrInvalidSize, widthCm, heightCm)
	}

	dpiW := roundInt(float64(pixelWidth) / (widthCm / CmPerInch))
	dpiH := roundInt(float64(pixelHeight) / (heightCm / CmPerInch))
	avg := roundInt(float64(dpiW+dpiH) / 2)

	return SizeResult{
		PixelWidth:  pixelWidth,
		PixelHeight: pixelHeight,
		WidthCm:     Round(widthCm, 1),
		HeightCm:    Round(heightCm, 1),
		WidthIn:     Round(widthCm/CmPerInch, 2),
		HeightIn:    Round(heightCm/CmPerInch, 2),
		DPIWidth:    dpiW,
		DPIHeight:   dpiH,
		DPIAverage:  avg,
		Quality:     ClassifyDPI(avg),
	}, nil
}

// PrintSize is the largest physical size an artwork supports at a target DPI.
type PrintSize struct {
	PixelWidth  int     `json:"pixelWidth"`
	PixelHeight int     `json:"pixelHeight"`
	TargetDPI   int     `json:"targetDpi"`
	WidthCm     float64 `json:"widthCm"`
	HeightCm    float64 `json:"heightCm"`
	WidthIn     float64 `json:"widthIn"`
	HeightIn    float64 `json:"heightIn"`
	Quality     Quality `json:"quality"`
}

// SizeForDPI is the inverse of DPIForSize: the print size at which the
// artwork reaches exactly dpi on both axes.
func SizeForDPI(pixelWidth, pixelHeight, dpi int) (PrintSize, error) {
	if pixelWidth <= 0 || pixelHeight <= 0 {
		return PrintSize{}, fmt.Errorf("%w: %dx%d", ErrInvalidPixels, pixelWidth, pixelHeight)
	}
	if dpi <= 0 {
		return PrintSize{}, fmt.Errorf("%w: %d", ErrInvalidDPI, dpi)
	}

	wIn := float64(pixelWidth) / float64(dpi)
	hIn := float64(pixelHeight) / float64(dpi)
	return PrintSize{
		PixelWidth:  pixelWidth,
		PixelHeight: pixelHeight,
		TargetDPI:   dpi,
		WidthCm:     Round(wIn*CmPerInch, 1),
		HeightCm:    Round(hIn*CmPerInch, 1),
		WidthIn:     Round(wIn, 2),
		HeightIn:    Round(hIn, 2),
		Quality:     ClassifyDPI(dpi),
	}, nil
}

// Round rounds v to the given number of decimal places, halves away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
