package validation

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFirst_PatternPriority(t *testing.T) {
	patterns := []Pattern{
		{"first", regexp.MustCompile(`first:(\d+)`)},
		{"second", regexp.MustCompile(`second:(\d+)`)},
	}

	// Both patterns match; the list order decides, not text position.
	value := ExtractFirst("second:222 first:111", patterns)
	assert.Equal(t, "111", value)
}

func TestExtractFirst_NoMatch(t *testing.T) {
	assert.Equal(t, "", ExtractFirst("nothing to see", PONumberPatterns))
	assert.Equal(t, "", ExtractFirst("", PONumberPatterns))
}

func TestExtractFirst_PONumber(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"labeled po", "PO Number: PO-88421\nsomething else", "PO-88421"},
		{"purchase order", "Purchase Order # AB-1234", "AB-1234"},
		{"order no", "Order No: 556677", "556677"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFirst(tt.text, PONumberPatterns))
		})
	}
}

func TestExtractBoundedInt_RejectsOutOfRange(t *testing.T) {
	// A year scraped off a date line must not become a case count: values
	// outside the plausible range are "not found", never clamped.
	_, ok := ExtractBoundedInt("Total Cases: 1999", TotalCasesPatterns, MinCaseCount, MaxCaseCount)
	assert.False(t, ok)

	n, ok := ExtractBoundedInt("Total Cases: 120", TotalCasesPatterns, MinCaseCount, MaxCaseCount)
	require.True(t, ok)
	assert.Equal(t, 120, n)

	_, ok = ExtractBoundedInt("Total Cases: 0", TotalCasesPatterns, MinCaseCount, MaxCaseCount)
	assert.False(t, ok)
}

func TestExtractAmount(t *testing.T) {
	amount, ok := ExtractAmount("Grand Total: $1,450.00", InvoiceTotalPatterns)
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("1450.00")))

	_, ok = ExtractAmount("no totals here", InvoiceTotalPatterns)
	assert.False(t, ok)
}

func TestExtractDate(t *testing.T) {
	d, ok := ExtractDate("Delivery Date: 05/01/2026", DeliveryDatePatterns)
	require.True(t, ok)
	assert.Equal(t, 2026, d.Year())
	assert.Equal(t, 5, d.Day())

	d, ok = ExtractDate("shipped 2026-01-05 by road", DeliveryDatePatterns)
	require.True(t, ok)
	assert.Equal(t, 5, d.Day())

	_, ok = ExtractDate("no date", DeliveryDatePatterns)
	assert.False(t, ok)
}

func TestParseLineItems(t *testing.T) {
	text := "BRAVO-44  Pale Ale 24x330  60\n" +
		"CRUX-12  Stout 12x500  60\n" +
		"not an item line\n" +
		"JUNK-99  implausible quantity  999\n"

	items := ParseLineItems(text)
	require.Len(t, items, 2)
	assert.Equal(t, "BRAVO-44", items[0].Code)
	assert.Equal(t, 60, items[0].Cases)
	assert.True(t, items[0].Amount.IsZero())
	assert.Equal(t, "CRUX-12", items[1].Code)
}

func TestParseLineItems_AmountColumn(t *testing.T) {
	text := "BRAVO-44  Pale Ale 24x330  60  725.00\n" +
		"CRUX-12  Stout 12x500  60  1,150.50\n" +
		"DELTA-07  Lager 24x440  12\n"

	items := ParseLineItems(text)
	require.Len(t, items, 3)
	assert.True(t, items[0].Amount.Equal(decimal.RequireFromString("725.00")))
	assert.Equal(t, 60, items[0].Cases)
	assert.True(t, items[1].Amount.Equal(decimal.RequireFromString("1150.50")))
	// The amount column is optional per line.
	assert.True(t, items[2].Amount.IsZero())
	assert.Equal(t, 12, items[2].Cases)
}
