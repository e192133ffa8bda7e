package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podflow/delivery-validation-service/internal/models"
)

func TestComparePONumbers(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		match bool
	}{
		{"identical", "PO-88421", "PO-88421", true},
		{"case and separators normalized", "po 88421", "PO-88421", true},
		{"different numbers", "PO-88421", "PO-88422", false},
		{"empty side A", "", "PO-88421", true},
		{"empty side B", "PO-88421", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ComparePONumbers(tt.a, tt.b)
			if tt.match {
				assert.Nil(t, d)
			} else {
				require.NotNil(t, d)
				assert.Equal(t, "po_mismatch", d.Code)
				assert.Equal(t, tt.a, d.ValueA)
				assert.Equal(t, tt.b, d.ValueB)
			}
		})
	}
}

func TestCompareTotalCases(t *testing.T) {
	assert.Nil(t, CompareTotalCases(120, 120))

	d := CompareTotalCases(120, 150)
	require.NotNil(t, d)
	assert.Equal(t, "total_cases_mismatch", d.Code)
	assert.Equal(t, -30.0, d.Difference)
	assert.Contains(t, d.Message, "120 vs 150")
}

func TestCompareItemLists_IdenticalListsMatch(t *testing.T) {
	items := []LineItem{
		{Code: "BRAVO-44", Cases: 60},
		{Code: "CRUX-12", Cases: 60},
	}
	assert.Empty(t, CompareItemLists(items, items, 0))
}

func TestCompareItemLists_QuantityVariance(t *testing.T) {
	a := []LineItem{{Code: "BRAVO-44", Cases: 100}}
	b := []LineItem{{Code: "BRAVO-44", Cases: 110}}

	// |100-110|/110*100 = 9.09%, inside a 10% tolerance.
	assert.Empty(t, CompareItemLists(a, b, 10))

	ds := CompareItemLists(a, b, 5)
	require.Len(t, ds, 1)
	assert.Equal(t, "item_quantity_mismatch", ds[0].Code)
	assert.Equal(t, "BRAVO-44", ds[0].ItemCode)
	assert.Equal(t, -10.0, ds[0].Difference)
}

func TestCompareItemLists_ZeroToleranceIsExact(t *testing.T) {
	a := []LineItem{{Code: "BRAVO-44", Cases: 100}}
	b := []LineItem{{Code: "BRAVO-44", Cases: 101}}

	ds := CompareItemLists(a, b, 0)
	require.Len(t, ds, 1)
	assert.Equal(t, "item_quantity_mismatch", ds[0].Code)
}

func TestCompareAmounts(t *testing.T) {
	amt := decimal.RequireFromString

	assert.Nil(t, CompareAmounts(amt("1450.00"), amt("1450.00"), 0))
	// |1450-1400|/1400*100 = 3.57%, inside a 5% tolerance.
	assert.Nil(t, CompareAmounts(amt("1450.00"), amt("1400.00"), 5))

	d := CompareAmounts(amt("1450.00"), amt("1400.00"), 0)
	require.NotNil(t, d)
	assert.Equal(t, "amount_mismatch", d.Code)
	assert.Equal(t, "1450.00", d.ValueA)
	assert.Equal(t, "1400.00", d.ValueB)
	assert.Equal(t, 50.0, d.Difference)
}

func TestCompareItemLists_AmountMismatch(t *testing.T) {
	a := []LineItem{{Code: "BRAVO-44", Cases: 60, Amount: decimal.RequireFromString("725.00")}}
	b := []LineItem{{Code: "BRAVO-44", Cases: 60, Amount: decimal.RequireFromString("650.00")}}

	ds := CompareItemLists(a, b, 0)
	require.Len(t, ds, 1)
	assert.Equal(t, "item_amount_mismatch", ds[0].Code)
	assert.Equal(t, "BRAVO-44", ds[0].ItemCode)
	assert.Equal(t, 75.0, ds[0].Difference)
	assert.Contains(t, ds[0].Message, "725.00 vs 650.00")

	// |725-650|/650*100 = 11.5%, inside a 15% tolerance.
	assert.Empty(t, CompareItemLists(a, b, 15))
}

func TestCompareItemLists_AmountSkippedWhenUnpriced(t *testing.T) {
	// Many receiving documents carry no amount column. A priced invoice item
	// against an unpriced counterpart is not a discrepancy.
	a := []LineItem{{Code: "BRAVO-44", Cases: 60, Amount: decimal.RequireFromString("725.00")}}
	b := []LineItem{{Code: "BRAVO-44", Cases: 60}}

	assert.Empty(t, CompareItemLists(a, b, 0))
	assert.Empty(t, CompareItemLists(b, a, 0))
}

func TestCompareItemLists_UnmatchedItems(t *testing.T) {
	a := []LineItem{
		{Code: "BRAVO-44", Cases: 60},
		{Code: "DELTA-07", Cases: 12},
	}
	b := []LineItem{
		{Code: "BRAVO-44", Cases: 60},
		{Code: "ECHO-31", Cases: 8},
	}

	ds := CompareItemLists(a, b, 0)
	require.Len(t, ds, 2)

	byCode := make(map[string]Discrepancy)
	for _, d := range ds {
		byCode[d.Code] = d
	}
	missing := byCode["item_missing_in_b"]
	assert.Equal(t, "DELTA-07", missing.ItemCode)
	assert.Equal(t, 12.0, missing.Difference)

	extra := byCode["item_missing_in_a"]
	assert.Equal(t, "ECHO-31", extra.ItemCode)
	assert.Equal(t, -8.0, extra.Difference)
}

func TestResolveTotalCases_PrefersLineItemSum(t *testing.T) {
	doc := &models.Document{RawText: "Total Cases: 999", OCRConfidence: 95}
	items := []LineItem{
		{Code: "BRAVO-44", Cases: 60},
		{Code: "CRUX-12", Cases: 60},
	}

	// 999 fails the plausibility bound, but even a plausible summary line
	// loses to a confident multi-item sum.
	total := ResolveTotalCases(doc, items)
	require.True(t, total.Found)
	assert.Equal(t, 120, total.Value)
	assert.Equal(t, TotalFromLineItems, total.Source)
}

func TestResolveTotalCases_SummaryWinsOnPoorOCR(t *testing.T) {
	doc := &models.Document{RawText: "Total Cases: 120", OCRConfidence: 45}
	items := []LineItem{
		{Code: "BRAVO-44", Cases: 54},
		{Code: "CRUX-12", Cases: 60},
	}

	total := ResolveTotalCases(doc, items)
	require.True(t, total.Found)
	assert.Equal(t, 120, total.Value)
	assert.Equal(t, TotalFromSummary, total.Source)
}

func TestResolveTotalCases_SummaryWinsOnShortItemList(t *testing.T) {
	doc := &models.Document{RawText: "Total Cases: 120", OCRConfidence: 95}
	items := []LineItem{{Code: "BRAVO-44", Cases: 54}}

	total := ResolveTotalCases(doc, items)
	require.True(t, total.Found)
	assert.Equal(t, TotalFromSummary, total.Source)
	assert.Equal(t, 120, total.Value)
}

func TestResolveTotalCases_SummaryWinsOnImplausibleSum(t *testing.T) {
	doc := &models.Document{RawText: "Total Cases: 480", OCRConfidence: 95}
	items := []LineItem{
		{Code: "BRAVO-44", Cases: 400},
		{Code: "CRUX-12", Cases: 400},
	}

	total := ResolveTotalCases(doc, items)
	require.True(t, total.Found)
	assert.Equal(t, TotalFromSummary, total.Source)
	assert.Equal(t, 480, total.Value)
}

func TestResolveTotalCases_FallbackToItemsWhenNoSummary(t *testing.T) {
	doc := &models.Document{RawText: "no summary line", OCRConfidence: 95}
	items := []LineItem{{Code: "BRAVO-44", Cases: 54}}

	total := ResolveTotalCases(doc, items)
	require.True(t, total.Found)
	assert.Equal(t, 54, total.Value)
	assert.Equal(t, TotalFromLineItems, total.Source)
}

func TestResolveTotalCases_NothingFound(t *testing.T) {
	doc := &models.Document{RawText: "nothing usable", OCRConfidence: 95}
	total := ResolveTotalCases(doc, nil)
	assert.False(t, total.Found)
}
