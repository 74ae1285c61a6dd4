package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ashureev/printdesk/internal/printcalc"
)

const (
	numberPattern = `(\d+(?:[.,]\d+)?)`
	sepPattern    = `\s*[x×*]\s*`
	cmPattern     = `(?:cm|centimet(?:er|re)s?)`
	inchPattern   = `(?:inch(?:es)?|in\b|"|″|”)`
)

var (
	cmPairRe   = regexp.MustCompile(numberPattern + `\s*` + cmPattern + `?` + sepPattern + numberPattern + `\s*` + cmPattern)
	inchPairRe = regexp.MustCompile(numberPattern + `\s*` + inchPattern + `?` + sepPattern + numberPattern + `\s*` + inchPattern)
	singleRe   = regexp.MustCompile(numberPattern + `\s*(` + cmPattern + `|` + inchPattern + `)`)
	dpiQueryRe = regexp.MustCompile(`\b(?:dpi|ppi|resolution|quality)\b`)

	printSizeQueryRe = regexp.MustCompile(`\b(?:how (?:big|large)|max(?:imum)?\s+(?:print\s+)?size|largest|biggest|print size)\b`)
	targetDPIRe      = regexp.MustCompile(`\b(\d{2,4})\s*(?:dpi|ppi)\b`)
)

// sizeSource records which pattern produced a parsed size.
type sizeSource string

const (
	sizeFromCmPair   sizeSource = "cm_pair"
	sizeFromInchPair sizeSource = "inch_pair"
	sizeFromSingle   sizeSource = "single"
)

type parsedSize struct {
	WidthCm  float64
	HeightCm float64
	Source   sizeSource
}

// mentionsSizeForDPI reports whether text contains a dimension with a unit
// and asks about resolution, in either order.
func mentionsSizeForDPI(text string) bool {
	lower := strings.ToLower(text)
	return dpiQueryRe.MatchString(lower) && (cmPairRe.MatchString(lower) || inchPairRe.MatchString(lower) || singleRe.MatchString(lower))
}

// parsePrintSize extracts a physical size from text. It tries an explicit cm
// pair, then an inch pair, then a single dimension taken as a square.
func parsePrintSize(text string) (parsedSize, bool) {
	lower := strings.ToLower(text)

	if m := cmPairRe.FindStringSubmatch(lower); m != nil {
		w, okW := parseNumber(m[1])
		h, okH := parseNumber(m[2])
		if okW && okH {
			return parsedSize{WidthCm: w, HeightCm: h, Source: sizeFromCmPair}, true
		}
	}
	if m := inchPairRe.FindStringSubmatch(lower); m != nil {
		w, okW := parseNumber(m[1])
		h, okH := parseNumber(m[2])
		if okW && okH {
			return parsedSize{WidthCm: w * printcalc.CmPerInch, HeightCm: h * printcalc.CmPerInch, Source: sizeFromInchPair}, true
		}
	}
	if m := singleRe.FindStringSubmatch(lower); m != nil {
		v, ok := parseNumber(m[1])
		if ok {
			if !strings.HasPrefix(m[2], "c") {
				v *= printcalc.CmPerInch
			}
			return parsedSize{WidthCm: v, HeightCm: v, Source: sizeFromSingle}, true
		}
	}
	return parsedSize{}, false
}

// ParsePrintSize returns the physical size, in centimetres, mentioned in text.
func ParsePrintSize(text string) (widthCm, heightCm float64, ok bool) {
	size, ok := parsePrintSize(text)
	return size.WidthCm, size.HeightCm, ok
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func mentionsPrintSizeQuery(text string) bool {
	return printSizeQueryRe.MatchString(strings.ToLower(text))
}

// parseTargetDPI finds a DPI value such as "300 dpi" in text.
func parseTargetDPI(text string) (int, bool) {
	m := targetDPIRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
