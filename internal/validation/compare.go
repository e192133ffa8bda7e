package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/podflow/delivery-validation-service/internal/models"
)

// LineItem is one parsed table row from a document.
type LineItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Cases       int             `json:"cases"`
	Amount      decimal.Decimal `json:"amount,omitempty"`
}

// Discrepancy records one cross-document mismatch. It always carries both
// values and the signed difference, never just a boolean.
type Discrepancy struct {
	Field      string  `json:"field"`
	Code       string  `json:"code"`
	ItemCode   string  `json:"itemCode,omitempty"`
	ValueA     string  `json:"valueA"`
	ValueB     string  `json:"valueB"`
	Difference float64 `json:"difference"` // signed, a - b
	Message    string  `json:"message"`
}

// varianceEpsilon guards the variance denominator against division by zero.
const varianceEpsilon = 0.0001

// ComparePONumbers diffs two PO numbers after normalization (case, spaces,
// dashes). Returns nil when they match or either side is empty.
func ComparePONumbers(a, b string) *Discrepancy {
	na, nb := normalizePO(a), normalizePO(b)
	if na == "" || nb == "" || na == nb {
		return nil
	}
	return &Discrepancy{
		Field:   "po_number",
		Code:    "po_mismatch",
		ValueA:  a,
		ValueB:  b,
		Message: fmt.Sprintf("PO numbers differ: %q vs %q", a, b),
	}
}

func normalizePO(po string) string {
	po = strings.ToUpper(strings.TrimSpace(po))
	po = strings.ReplaceAll(po, " ", "")
	return strings.ReplaceAll(po, "-", "")
}

// CompareTotalCases diffs two total case counts. Returns nil when equal.
func CompareTotalCases(a, b int) *Discrepancy {
	if a == b {
		return nil
	}
	return &Discrepancy{
		Field:      "total_cases",
		Code:       "total_cases_mismatch",
		ValueA:     fmt.Sprintf("%d", a),
		ValueB:     fmt.Sprintf("%d", b),
		Difference: float64(a - b),
		Message:    fmt.Sprintf("total cases differ: %d vs %d (difference %+d)", a, b, a-b),
	}
}

// CompareItemLists matches items by code and reports four discrepancy kinds:
// items only on side A, items only on side B, matched items whose case counts
// differ by more than allowedVariancePercent, and matched items whose monetary
// amounts differ by more than the same tolerance (checked only when both sides
// carry an amount). Variance is computed as |a-b|/max(b,eps)*100, so a
// zero-tolerance customer requires exact equality.
func CompareItemLists(a, b []LineItem, allowedVariancePercent float64) []Discrepancy {
	indexB := make(map[string]LineItem, len(b))
	for _, item := range b {
		indexB[item.Code] = item
	}

	var discrepancies []Discrepancy
	seen := make(map[string]bool, len(a))
	for _, itemA := range a {
		seen[itemA.Code] = true
		itemB, ok := indexB[itemA.Code]
		if !ok {
			discrepancies = append(discrepancies, Discrepancy{
				Field:      "line_item",
				Code:       "item_missing_in_b",
				ItemCode:   itemA.Code,
				ValueA:     fmt.Sprintf("%d", itemA.Cases),
				ValueB:     "-",
				Difference: float64(itemA.Cases),
				Message:    fmt.Sprintf("item %s present only on first document", itemA.Code),
			})
			continue
		}
		if !itemA.Amount.IsZero() && !itemB.Amount.IsZero() {
			if d := CompareAmounts(itemA.Amount, itemB.Amount, allowedVariancePercent); d != nil {
				d.Field = "line_item"
				d.Code = "item_amount_mismatch"
				d.ItemCode = itemA.Code
				d.Message = fmt.Sprintf("item %s amount differs: %s vs %s",
					itemA.Code, itemA.Amount.StringFixed(2), itemB.Amount.StringFixed(2))
				discrepancies = append(discrepancies, *d)
			}
		}
		if variancePercent(itemA.Cases, itemB.Cases) > allowedVariancePercent {
			diff := itemA.Cases - itemB.Cases
			discrepancies = append(discrepancies, Discrepancy{
				Field:      "line_item",
				Code:       "item_quantity_mismatch",
				ItemCode:   itemA.Code,
				ValueA:     fmt.Sprintf("%d", itemA.Cases),
				ValueB:     fmt.Sprintf("%d", itemB.Cases),
				Difference: float64(diff),
				Message: fmt.Sprintf("item %s quantity differs: %d vs %d (difference %+d)",
					itemA.Code, itemA.Cases, itemB.Cases, diff),
			})
		}
	}
	for _, itemB := range b {
		if seen[itemB.Code] {
			continue
		}
		discrepancies = append(discrepancies, Discrepancy{
			Field:      "line_item",
			Code:       "item_missing_in_a",
			ItemCode:   itemB.Code,
			ValueA:     "-",
			ValueB:     fmt.Sprintf("%d", itemB.Cases),
			Difference: -float64(itemB.Cases),
			Message:    fmt.Sprintf("item %s present only on second document", itemB.Code),
		})
	}
	return discrepancies
}

// CompareAmounts diffs two monetary amounts under the same percentage
// tolerance used for case counts, with exact decimal arithmetic. Returns nil
// when the amounts are within tolerance.
func CompareAmounts(a, b decimal.Decimal, allowedVariancePercent float64) *Discrepancy {
	if a.Equal(b) {
		return nil
	}
	denom := b.Abs()
	if denom.IsZero() {
		denom = decimal.NewFromFloat(varianceEpsilon)
	}
	pct := a.Sub(b).Abs().Div(denom).Mul(decimal.NewFromInt(100))
	if pct.LessThanOrEqual(decimal.NewFromFloat(allowedVariancePercent)) {
		return nil
	}
	diff, _ := a.Sub(b).Float64()
	return &Discrepancy{
		Field:      "amount",
		Code:       "amount_mismatch",
		ValueA:     a.StringFixed(2),
		ValueB:     b.StringFixed(2),
		Difference: diff,
		Message:    fmt.Sprintf("amounts differ: %s vs %s", a.StringFixed(2), b.StringFixed(2)),
	}
}

func variancePercent(a, b int) float64 {
	diff := float64(a - b)
	if diff < 0 {
		diff = -diff
	}
	denom := float64(b)
	if denom < varianceEpsilon {
		denom = varianceEpsilon
	}
	return diff / denom * 100
}

// TotalSource records which sourcing strategy produced a document's total
// case count, kept per document for auditability.
type TotalSource string

const (
	TotalFromLineItems TotalSource = "LINE_ITEMS"
	TotalFromSummary   TotalSource = "SUMMARY"
)

// ResolvedTotal is a document's total case count plus the strategy that
// produced it.
type ResolvedTotal struct {
	Value  int         `json:"value"`
	Source TotalSource `json:"source"`
	Found  bool        `json:"found"`
}

// ResolveTotalCases picks the more trustworthy total for a document. The sum
// of parsed line items is preferred unless the item list is too short, the
// OCR confidence is poor, or the sum exceeds the plausibility ceiling; then
// the summary-line total ("Total Cases: N") wins. Either strategy falls back
// to the other when it produces nothing, and the source used is always
// recorded so comparisons across different strategies stay auditable.
func ResolveTotalCases(doc *models.Document, items []LineItem) ResolvedTotal {
	sum := 0
	for _, it := range items {
		sum += it.Cases
	}

	summary, summaryFound := ExtractBoundedInt(doc.RawText, TotalCasesPatterns, MinCaseCount, MaxCaseCount)

	preferSummary := len(items) < 2 || doc.OCRConfidence < 60 || sum > MaxCaseCount
	if preferSummary {
		if summaryFound {
			return ResolvedTotal{Value: summary, Source: TotalFromSummary, Found: true}
		}
		if len(items) > 0 && sum >= MinCaseCount && sum <= MaxCaseCount {
			return ResolvedTotal{Value: sum, Source: TotalFromLineItems, Found: true}
		}
		return ResolvedTotal{}
	}

	if sum >= MinCaseCount {
		return ResolvedTotal{Value: sum, Source: TotalFromLineItems, Found: true}
	}
	if summaryFound {
		return ResolvedTotal{Value: summary, Source: TotalFromSummary, Found: true}
	}
	return ResolvedTotal{}
}
