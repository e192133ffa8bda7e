package models

// CheckStatus is the outcome of one validation check item.
type CheckStatus string

const (
	CheckPassed        CheckStatus = "PASSED"
	CheckFailed        CheckStatus = "FAILED"
	CheckWarning       CheckStatus = "WARNING"
	CheckNotApplicable CheckStatus = "NOT_APPLICABLE"
)

// ValidationCheckItem is the atomic unit of the checklist. Items are never
// mutated after creation, only appended to a section list.
type ValidationCheckItem struct {
	Name    string         `json:"name"`
	Status  CheckStatus    `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DeliveryValidationChecklist groups the check items of one validation run
// into three ordered sections. OverallStatus and Summary are derived from the
// section contents, never set independently of them.
type DeliveryValidationChecklist struct {
	PalletChecks       []ValidationCheckItem `json:"palletChecks"`
	ShipDocumentChecks []ValidationCheckItem `json:"shipDocumentChecks"`
	InvoiceChecks      []ValidationCheckItem `json:"invoiceChecks"`

	OverallStatus DeliveryStatus `json:"overallStatus"`
	Summary       string         `json:"summary"`
}

// AllItems returns every item across the three sections in section order.
func (c *DeliveryValidationChecklist) AllItems() []ValidationCheckItem {
	items := make([]ValidationCheckItem, 0,
		len(c.PalletChecks)+len(c.ShipDocumentChecks)+len(c.InvoiceChecks))
	items = append(items, c.PalletChecks...)
	items = append(items, c.ShipDocumentChecks...)
	items = append(items, c.InvoiceChecks...)
	return items
}
