// internal/amount/extractor.go
package amount

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"splitbill-bot/internal/common/config"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/models"

	"github.com/shopspring/decimal"
)

// tokenPattern matches digit runs with optional thousand/decimal separators,
// e.g. "3200", "3,200", "1.234,56".
var tokenPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// Extractor scans recognized receipt text for plausible total amounts.
type Extractor struct {
	minIntegerDigits int
	minValue         decimal.Decimal
	maxValue         decimal.Decimal
	maxCandidates    int
	log              logger.Logger
}

// NewExtractor builds an Extractor from configuration. Invalid value
// bounds in config are a startup error.
func NewExtractor(cfg config.ExtractionConfig, log logger.Logger) (*Extractor, error) {
	minValue, err := decimal.NewFromString(cfg.MinValue)
	if err != nil {
		return nil, fmt.Errorf("invalid extraction.min_value %q: %w", cfg.MinValue, err)
	}
	maxValue, err := decimal.NewFromString(cfg.MaxValue)
	if err != nil {
		return nil, fmt.Errorf("invalid extraction.max_value %q: %w", cfg.MaxValue, err)
	}
	if maxValue.LessThan(minValue) {
		return nil, fmt.Errorf("extraction.max_value %s is below min_value %s", cfg.MaxValue, cfg.MinValue)
	}

	return &Extractor{
		minIntegerDigits: cfg.MinIntegerDigits,
		minValue:         minValue,
		maxValue:         maxValue,
		maxCandidates:    cfg.MaxCandidates,
		log:              log.WithFields(map[string]interface{}{"component": "amount-extractor"}),
	}, nil
}

// Extract returns the candidate amounts found in text, deduplicated by
// value and ranked by descending value. The slice is empty when nothing
// plausible is found.
func (e *Extractor) Extract(text string) []models.MonetaryCandidate {
	tokens := tokenPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	candidates := make([]models.MonetaryCandidate, 0, len(tokens))

	for _, raw := range tokens {
		value, ok := normalize(raw)
		if !ok {
			continue
		}
		if integerDigits(value) < e.minIntegerDigits {
			continue
		}
		if value.LessThan(e.minValue) || value.GreaterThan(e.maxValue) {
			continue
		}

		key := value.String()
		if seen[key] {
			continue
		}
		seen[key] = true

		candidates = append(candidates, models.MonetaryCandidate{
			RawText: raw,
			Value:   value,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Value.GreaterThan(candidates[j].Value)
	})

	if e.maxCandidates > 0 && len(candidates) > e.maxCandidates {
		candidates = candidates[:e.maxCandidates]
	}

	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	e.log.Debug("Extraction completed", map[string]interface{}{
		"tokens":     len(tokens),
		"candidates": len(candidates),
	})

	return candidates
}

// normalize resolves separator ambiguity in a numeric token. The
// rightmost separator followed by exactly one or two digits is the
// decimal point; every other separator is treated as grouping.
func normalize(raw string) (decimal.Decimal, bool) {
	lastSep := strings.LastIndexAny(raw, ".,")

	var normalized string
	if lastSep >= 0 {
		fraction := raw[lastSep+1:]
		if len(fraction) >= 1 && len(fraction) <= 2 {
			integer := stripSeparators(raw[:lastSep])
			normalized = integer + "." + fraction
		} else {
			normalized = stripSeparators(raw)
		}
	} else {
		normalized = raw
	}

	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}

func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	return strings.ReplaceAll(s, ".", "")
}

// integerDigits counts the digits left of the decimal point.
func integerDigits(value decimal.Decimal) int {
	intPart := value.Truncate(0).Abs().String()
	if intPart == "0" {
		return 1
	}
	return len(intPart)
}
