package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/podflow/delivery-validation-service/internal/models"
)

// Check item names. The rollup matches critical checks by name substring, so
// these are referenced from criticalCheckNames below.
const (
	CheckPalletScenario        = "Pallet scenario determined"
	CheckPalletNotification    = "Pallet notification letter present"
	CheckPalletExchangeDoc     = "Pallet exchange document present"
	CheckPalletReceivingSheet  = "Pallet receiving sheet present"
	CheckPalletStamp           = "Pallet stamp present"
	CheckShipDocumentPresent   = "Ship document present"
	CheckDispatchStamp         = "Dispatch stamp present"
	CheckWarehouseStamp        = "Warehouse stamp present"
	CheckDriverSignature       = "Driver signature present"
	CheckCustomerSignature     = "Customer signature present"
	CheckTimeInOut             = "Time in/out recorded"
	CheckInvoicePresent        = "Invoice present"
	CheckRARPresent            = "Receiving acknowledgment present"
	CheckPONumbersMatch        = "PO numbers match"
	CheckTotalCasesMatch       = "Total cases match"
	CheckLineItemDiscrepancies = "Line item discrepancy detail"
	CheckInvoiceAmount         = "Invoice amount consistent"
)

// criticalCheckNames are matched as lowercase substrings against FAILED item
// names. A single failure of a critical check forces an overall FAIL.
var criticalCheckNames = []string{
	"total cases match",
	"item discrepancy",
}

// BuildOptions tweak checklist construction per policy. They are policy
// decisions, not engine defaults.
type BuildOptions struct {
	// InferUnknownShipDocument enables the narrow fallback of treating a
	// single UNKNOWN document as the missing ship document (see
	// InferUnknownShipDocument). Derived ship-document checks are downgraded
	// to WARNING when the candidate's OCR confidence is low.
	InferUnknownShipDocument bool
}

// BuildChecklist assembles the three checklist sections from the documents
// and the active client configuration, then derives the overall status and
// summary. It is a pure function of its inputs: identical documents and
// config yield an identical checklist.
func BuildChecklist(docs []*models.Document, cfg models.ClientValidationConfig, opts BuildOptions) *models.DeliveryValidationChecklist {
	scenario := DetectPalletScenario(docs)
	completeness := CheckCompleteness(docs, scenario)

	shipDoc := firstOfType(docs, models.DocTypeShipDocument)
	inferred, degraded := false, false
	if shipDoc == nil && opts.InferUnknownShipDocument {
		if candidate, ok := InferUnknownShipDocument(docs, scenario, completeness); ok {
			shipDoc = candidate
			inferred = true
			degraded = candidate.OCRConfidence < lowOCRBound
		}
	}

	cl := &models.DeliveryValidationChecklist{
		PalletChecks:       buildPalletSection(docs, scenario, cfg),
		ShipDocumentChecks: buildShipSection(docs, shipDoc, inferred, degraded, cfg),
		InvoiceChecks:      buildInvoiceSection(docs, cfg),
	}
	Rollup(cl)
	return cl
}

func buildPalletSection(docs []*models.Document, scenario PalletScenario, cfg models.ClientValidationConfig) []models.ValidationCheckItem {
	items := []models.ValidationCheckItem{
		newItem(CheckPalletScenario, models.CheckPassed,
			fmt.Sprintf("delivery scenario is %s", scenario)),
	}
	if !cfg.CheckPalletDocuments {
		return items
	}

	if scenario == WithoutPallets {
		na := func(name string) models.ValidationCheckItem {
			return newItem(name, models.CheckNotApplicable, "not applicable without pallets")
		}
		return append(items,
			na(CheckPalletNotification),
			na(CheckPalletExchangeDoc),
			na(CheckPalletReceivingSheet),
			na(CheckPalletStamp),
		)
	}

	presence := func(name string, t models.DocumentType) models.ValidationCheckItem {
		if firstOfType(docs, t) != nil {
			return newItem(name, models.CheckPassed, fmt.Sprintf("%s document found", t))
		}
		return newItem(name, models.CheckFailed, fmt.Sprintf("required %s document is missing", t))
	}
	items = append(items,
		presence(CheckPalletNotification, models.DocTypePalletNotificationLetter),
		presence(CheckPalletExchangeDoc, models.DocTypePalletExchange),
		presence(CheckPalletReceivingSheet, models.DocTypePalletReceiving),
	)

	if anyStamp(docs, models.StampPallet) {
		items = append(items, newItem(CheckPalletStamp, models.CheckPassed, "pallet stamp detected"))
	} else {
		items = append(items, newItem(CheckPalletStamp, models.CheckWarning,
			"no pallet stamp detected on any document"))
	}
	return items
}

func buildShipSection(docs []*models.Document, shipDoc *models.Document, inferred, degraded bool, cfg models.ClientValidationConfig) []models.ValidationCheckItem {
	var items []models.ValidationCheckItem

	switch {
	case shipDoc == nil:
		items = append(items, newItem(CheckShipDocumentPresent, models.CheckFailed,
			"no ship document in delivery"))
	case inferred:
		items = append(items, newItem(CheckShipDocumentPresent, models.CheckWarning,
			fmt.Sprintf("unclassified document %s treated as ship document", shipDoc.FileName)))
	default:
		items = append(items, newItem(CheckShipDocumentPresent, models.CheckPassed,
			"ship document found"))
	}

	// Downgrade derived outcomes to WARNING when the ship document was
	// inferred from a poorly OCR'd UNKNOWN document, keeping the uncertainty
	// visible instead of reporting hard passes and failures.
	derived := func(name string, status models.CheckStatus, msg string) models.ValidationCheckItem {
		if shipDoc == nil {
			return newItem(name, models.CheckNotApplicable, "no ship document to check")
		}
		if degraded && (status == models.CheckPassed || status == models.CheckFailed) {
			return newItem(name, models.CheckWarning, msg+" (low OCR confidence, inferred ship document)")
		}
		return newItem(name, status, msg)
	}

	if cfg.RequireDispatchStamp {
		if shipDoc != nil && hasStamp(shipDoc, models.StampDispatch) {
			items = append(items, derived(CheckDispatchStamp, models.CheckPassed, "dispatch stamp detected"))
		} else {
			items = append(items, derived(CheckDispatchStamp, models.CheckFailed, "dispatch stamp not found on ship document"))
		}
	}
	if cfg.RequireWarehouseStamp {
		if anyStamp(docs, models.StampWarehouse) {
			items = append(items, newItem(CheckWarehouseStamp, models.CheckPassed, "warehouse stamp detected"))
		} else {
			items = append(items, newItem(CheckWarehouseStamp, models.CheckFailed, "warehouse stamp not found on any document"))
		}
	}
	if cfg.RequireDriverSignature {
		items = append(items, signatureItem(docs, CheckDriverSignature, models.SignatureDriver))
	}
	if cfg.RequireCustomerSignature {
		items = append(items, signatureItem(docs, CheckCustomerSignature, models.SignatureCustomer))
	}

	if cfg.CheckTimeInOut {
		if shipDoc == nil {
			items = append(items, newItem(CheckTimeInOut, models.CheckNotApplicable, "no ship document to check"))
		} else {
			timeIn := ExtractFirst(shipDoc.RawText, TimeInPatterns)
			timeOut := ExtractFirst(shipDoc.RawText, TimeOutPatterns)
			switch {
			case timeIn != "" && timeOut != "":
				items = append(items, derived(CheckTimeInOut, models.CheckPassed,
					fmt.Sprintf("time in %s, time out %s", timeIn, timeOut)))
			case timeIn == "" && timeOut == "":
				items = append(items, derived(CheckTimeInOut, models.CheckFailed,
					"neither time in nor time out recorded"))
			default:
				missing := "time out"
				if timeIn == "" {
					missing = "time in"
				}
				items = append(items, derived(CheckTimeInOut, models.CheckFailed,
					fmt.Sprintf("%s not recorded", missing)))
			}
		}
	}
	return items
}

func buildInvoiceSection(docs []*models.Document, cfg models.ClientValidationConfig) []models.ValidationCheckItem {
	invoice := firstOfType(docs, models.DocTypeInvoice)
	rar := firstOfType(docs, models.DocTypeRAR)

	var items []models.ValidationCheckItem
	if invoice != nil {
		items = append(items, newItem(CheckInvoicePresent, models.CheckPassed, "invoice found"))
	} else {
		items = append(items, newItem(CheckInvoicePresent, models.CheckFailed, "no invoice in delivery"))
	}
	if rar != nil {
		items = append(items, newItem(CheckRARPresent, models.CheckPassed, "receiving acknowledgment found"))
	} else {
		items = append(items, newItem(CheckRARPresent, models.CheckFailed, "no receiving acknowledgment in delivery"))
	}

	if cfg.ComparePONumbers {
		items = append(items, comparePOItem(invoice, rar))
	}
	if cfg.CompareTotalCases {
		items = append(items, compareTotalsItem(invoice, rar))
	}
	if cfg.CompareLineItems {
		items = append(items, compareItemsItem(invoice, rar, cfg.AllowedVariancePercent))
		items = append(items, invoiceAmountItem(invoice, cfg.AllowedVariancePercent))
	}
	return items
}

func comparePOItem(invoice, rar *models.Document) models.ValidationCheckItem {
	if invoice == nil || rar == nil {
		return newItem(CheckPONumbersMatch, models.CheckNotApplicable,
			"both invoice and receiving acknowledgment required")
	}
	poInvoice := ExtractFirst(invoice.RawText, PONumberPatterns)
	poRAR := ExtractFirst(rar.RawText, PONumberPatterns)
	if poInvoice == "" || poRAR == "" {
		return newItem(CheckPONumbersMatch, models.CheckWarning,
			"could not extract a PO number from both documents")
	}
	if d := ComparePONumbers(poInvoice, poRAR); d != nil {
		item := newItem(CheckPONumbersMatch, models.CheckFailed, d.Message)
		item.Details = map[string]any{"invoicePO": poInvoice, "rarPO": poRAR}
		return item
	}
	item := newItem(CheckPONumbersMatch, models.CheckPassed,
		fmt.Sprintf("PO number %s matches", poInvoice))
	item.Details = map[string]any{"invoicePO": poInvoice, "rarPO": poRAR}
	return item
}

func compareTotalsItem(invoice, rar *models.Document) models.ValidationCheckItem {
	if invoice == nil || rar == nil {
		return newItem(CheckTotalCasesMatch, models.CheckNotApplicable,
			"both invoice and receiving acknowledgment required")
	}
	totalInvoice := ResolveTotalCases(invoice, ParseLineItems(invoice.RawText))
	totalRAR := ResolveTotalCases(rar, ParseLineItems(rar.RawText))
	if !totalInvoice.Found || !totalRAR.Found {
		return newItem(CheckTotalCasesMatch, models.CheckWarning,
			"could not determine a total case count for both documents")
	}

	details := map[string]any{
		"invoiceTotal":  totalInvoice.Value,
		"invoiceSource": string(totalInvoice.Source),
		"rarTotal":      totalRAR.Value,
		"rarSource":     string(totalRAR.Source),
	}
	if d := CompareTotalCases(totalInvoice.Value, totalRAR.Value); d != nil {
		details["difference"] = d.Difference
		item := newItem(CheckTotalCasesMatch, models.CheckFailed, d.Message)
		item.Details = details
		return item
	}
	item := newItem(CheckTotalCasesMatch, models.CheckPassed,
		fmt.Sprintf("total cases match: %d", totalInvoice.Value))
	item.Details = details
	return item
}

func compareItemsItem(invoice, rar *models.Document, variance float64) models.ValidationCheckItem {
	if invoice == nil || rar == nil {
		return newItem(CheckLineItemDiscrepancies, models.CheckNotApplicable,
			"both invoice and receiving acknowledgment required")
	}
	itemsInvoice := ParseLineItems(invoice.RawText)
	itemsRAR := ParseLineItems(rar.RawText)
	if len(itemsInvoice) == 0 && len(itemsRAR) == 0 {
		return newItem(CheckLineItemDiscrepancies, models.CheckNotApplicable,
			"no line items parsed from either document")
	}

	discrepancies := CompareItemLists(itemsInvoice, itemsRAR, variance)
	if len(discrepancies) == 0 {
		return newItem(CheckLineItemDiscrepancies, models.CheckPassed,
			fmt.Sprintf("%d line items reconciled", len(itemsInvoice)))
	}
	messages := make([]string, 0, len(discrepancies))
	for _, d := range discrepancies {
		messages = append(messages, d.Message)
	}
	item := newItem(CheckLineItemDiscrepancies, models.CheckFailed,
		fmt.Sprintf("%d line item discrepancies found", len(discrepancies)))
	item.Details = map[string]any{"discrepancies": messages}
	return item
}

// invoiceAmountItem checks the invoice against its own arithmetic: the stated
// monetary total must match the sum of the line item amounts. OCR rarely
// captures the amount column cleanly, so the check is NOT_APPLICABLE unless
// both a stated total and at least one priced line item were parsed.
func invoiceAmountItem(invoice *models.Document, variance float64) models.ValidationCheckItem {
	if invoice == nil {
		return newItem(CheckInvoiceAmount, models.CheckNotApplicable, "no invoice in delivery")
	}
	total, found := ExtractAmount(invoice.RawText, InvoiceTotalPatterns)
	sum := decimal.Zero
	priced := 0
	for _, it := range ParseLineItems(invoice.RawText) {
		if it.Amount.IsZero() {
			continue
		}
		sum = sum.Add(it.Amount)
		priced++
	}
	if !found || priced == 0 {
		return newItem(CheckInvoiceAmount, models.CheckNotApplicable,
			"no monetary amounts parsed from invoice")
	}

	details := map[string]any{
		"statedTotal": total.StringFixed(2),
		"lineItemSum": sum.StringFixed(2),
		"pricedItems": priced,
	}
	if d := CompareAmounts(sum, total, variance); d != nil {
		item := newItem(CheckInvoiceAmount, models.CheckFailed,
			fmt.Sprintf("line item amounts sum to %s but invoice states %s",
				sum.StringFixed(2), total.StringFixed(2)))
		item.Details = details
		return item
	}
	item := newItem(CheckInvoiceAmount, models.CheckPassed,
		fmt.Sprintf("invoice total %s matches line item amounts", total.StringFixed(2)))
	item.Details = details
	return item
}

// Rollup derives OverallStatus and Summary from the section items:
//
//  1. FAILED, WARNING and PASSED items are counted across all sections
//     (NOT_APPLICABLE items are excluded from the totals).
//  2. FAILED items whose names contain a critical substring force FAIL.
//  3. PASS iff failed=0 and warning=0; REVIEW iff failed=0 and warning>0;
//     otherwise FAIL iff any critical failure or failed>=2, else REVIEW.
//
// A single minor failed check must not block a delivery, but a single
// critical mismatch must.
func Rollup(cl *models.DeliveryValidationChecklist) {
	var passed, failed, warning int
	criticalFailure := false
	for _, item := range cl.AllItems() {
		switch item.Status {
		case models.CheckPassed:
			passed++
		case models.CheckFailed:
			failed++
			if isCriticalCheck(item.Name) {
				criticalFailure = true
			}
		case models.CheckWarning:
			warning++
		}
	}

	switch {
	case failed == 0 && warning == 0:
		cl.OverallStatus = models.StatusPass
	case failed == 0:
		cl.OverallStatus = models.StatusReview
	case criticalFailure || failed >= 2:
		cl.OverallStatus = models.StatusFail
	default:
		cl.OverallStatus = models.StatusReview
	}

	total := passed + failed + warning
	summary := fmt.Sprintf("%d/%d checks passed", passed, total)
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	if warning > 0 {
		summary += fmt.Sprintf(", %d warnings", warning)
	}
	cl.Summary = summary
}

func isCriticalCheck(name string) bool {
	lower := strings.ToLower(name)
	for _, critical := range criticalCheckNames {
		if strings.Contains(lower, critical) {
			return true
		}
	}
	return false
}

func newItem(name string, status models.CheckStatus, message string) models.ValidationCheckItem {
	return models.ValidationCheckItem{Name: name, Status: status, Message: message}
}

func firstOfType(docs []*models.Document, t models.DocumentType) *models.Document {
	for _, d := range docs {
		if d.EffectiveType() == t {
			return d
		}
	}
	return nil
}

func hasStamp(doc *models.Document, t models.StampType) bool {
	for _, s := range doc.Stamps {
		if s.Type == t {
			return true
		}
	}
	return false
}

func anyStamp(docs []*models.Document, t models.StampType) bool {
	for _, d := range docs {
		if hasStamp(d, t) {
			return true
		}
	}
	return false
}

func signatureItem(docs []*models.Document, name string, t models.SignatureType) models.ValidationCheckItem {
	for _, d := range docs {
		for _, s := range d.Signatures {
			if s.Type == t && s.Present {
				return newItem(name, models.CheckPassed,
					fmt.Sprintf("%s signature detected (confidence %.0f)", strings.ToLower(string(t)), s.Confidence))
			}
		}
	}
	return newItem(name, models.CheckFailed,
		fmt.Sprintf("no %s signature detected", strings.ToLower(string(t))))
}
