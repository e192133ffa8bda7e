// Package validation implements the delivery validation engine: document
// classification from noisy OCR text, stamp and signature inference, pallet
// scenario detection, cross-document reconciliation and the checklist rollup
// that turns individual checks into one PASS/REVIEW/FAIL status per customer
// policy.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Pattern is one named extraction pattern. The first capturing group carries
// the value.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// Plausible bounds for a total case count. Extracted values outside this
// range are treated as "not found", never clamped, so OCR noise (line
// numbers, years) cannot masquerade as a total.
const (
	MinCaseCount = 1
	MaxCaseCount = 500
)

// PONumberPatterns extract a purchase order number. Ordered most specific
// first; extraction stops at the first match.
var PONumberPatterns = []Pattern{
	{"po_labeled", regexp.MustCompile(`(?i)\bP\.?O\.?\s*(?:No\.?|Number|#)?\s*[:.]?\s*([A-Z0-9][A-Z0-9-]{3,14})`)},
	{"purchase_order", regexp.MustCompile(`(?i)\bpurchase\s+order\s*(?:No\.?|Number|#)?\s*[:.]?\s*([A-Z0-9][A-Z0-9-]{3,14})`)},
	{"order_no", regexp.MustCompile(`(?i)\border\s*(?:No\.?|#)\s*[:.]?\s*([A-Z0-9][A-Z0-9-]{3,14})`)},
}

// TotalCasesPatterns extract the document-summary total case count.
var TotalCasesPatterns = []Pattern{
	{"total_cases", regexp.MustCompile(`(?i)\btotal\s+cases?\s*[:.]?\s*(\d{1,4})`)},
	{"cases_total", regexp.MustCompile(`(?i)\bcases?\s+total\s*[:.]?\s*(\d{1,4})`)},
	{"total_qty", regexp.MustCompile(`(?i)\btotal\s+(?:qty|quantity)\s*[:.]?\s*(\d{1,4})`)},
}

// DeliveryDatePatterns extract the delivery or document date.
var DeliveryDatePatterns = []Pattern{
	{"delivery_date", regexp.MustCompile(`(?i)\bdelivery\s+date\s*[:.]?\s*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)},
	{"date_labeled", regexp.MustCompile(`(?i)\bdate\s*[:.]?\s*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)},
	{"iso_date", regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)},
}

// InvoiceTotalPatterns extract the invoice monetary total.
var InvoiceTotalPatterns = []Pattern{
	{"total_amount", regexp.MustCompile(`(?i)\btotal\s+(?:amount|due)\s*[:.]?\s*[$€£]?\s*([\d,]+\.\d{2})`)},
	{"grand_total", regexp.MustCompile(`(?i)\bgrand\s+total\s*[:.]?\s*[$€£]?\s*([\d,]+\.\d{2})`)},
	{"total_labeled", regexp.MustCompile(`(?i)\btotal\s*[:.]?\s*[$€£]?\s*([\d,]+\.\d{2})`)},
}

// TimeInPatterns and TimeOutPatterns extract arrival/departure times from a
// ship document.
var TimeInPatterns = []Pattern{
	{"time_in", regexp.MustCompile(`(?i)\btime\s*in\s*[:.]?\s*(\d{1,2}[:.]\d{2})`)},
	{"arrival", regexp.MustCompile(`(?i)\barrival\s*(?:time)?\s*[:.]?\s*(\d{1,2}[:.]\d{2})`)},
}

var TimeOutPatterns = []Pattern{
	{"time_out", regexp.MustCompile(`(?i)\btime\s*out\s*[:.]?\s*(\d{1,2}[:.]\d{2})`)},
	{"departure", regexp.MustCompile(`(?i)\bdeparture\s*(?:time)?\s*[:.]?\s*(\d{1,2}[:.]\d{2})`)},
}

// ExtractFirst applies the patterns in priority order and returns the first
// capturing-group match. There is no aggregation or voting across patterns:
// the list order is the policy. Returns "" when nothing matches.
func ExtractFirst(text string, patterns []Pattern) string {
	if text == "" {
		return ""
	}
	for _, p := range patterns {
		if m := p.Re.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// ExtractBoundedInt extracts an integer via ExtractFirst and rejects values
// outside [min, max]. Out-of-range values are "not found", not clamped.
func ExtractBoundedInt(text string, patterns []Pattern, min, max int) (int, bool) {
	raw := ExtractFirst(text, patterns)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return 0, false
	}
	if n < min || n > max {
		return 0, false
	}
	return n, true
}

// ExtractAmount extracts a monetary amount as a decimal.
func ExtractAmount(text string, patterns []Pattern) (decimal.Decimal, bool) {
	raw := ExtractFirst(text, patterns)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ExtractDate extracts a date, trying ISO first, then day-first layouts on a
// separator-normalized copy.
func ExtractDate(text string, patterns []Pattern) (time.Time, bool) {
	raw := ExtractFirst(text, patterns)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	normalized := strings.NewReplacer(".", "/", "-", "/").Replace(raw)
	for _, layout := range []string{"2/1/2006", "2/1/06"} {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// lineItemRe matches one "CODE  description  cases  [amount]" line in an
// OCR'd table. The trailing monetary amount column only appears on invoices.
var lineItemRe = regexp.MustCompile(`(?m)^\s*([A-Z][A-Z0-9-]{3,11})\s+(.{3,60}?)\s+(\d{1,3})(?:\s+([\d,]+\.\d{2}))?\s*$`)

// ParseLineItems scrapes table-style line items from raw OCR text. Lines with
// an implausible case count are skipped rather than corrected.
func ParseLineItems(text string) []LineItem {
	var items []LineItem
	for _, m := range lineItemRe.FindAllStringSubmatch(text, -1) {
		cases, err := strconv.Atoi(m[3])
		if err != nil || cases < MinCaseCount || cases > MaxCaseCount {
			continue
		}
		item := LineItem{
			Code:        m[1],
			Description: strings.TrimSpace(m[2]),
			Cases:       cases,
		}
		if m[4] != "" {
			if amount, err := decimal.NewFromString(strings.ReplaceAll(m[4], ",", "")); err == nil {
				item.Amount = amount
			}
		}
		items = append(items, item)
	}
	return items
}
