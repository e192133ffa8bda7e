package validation

import (
	"fmt"

	"github.com/podflow/delivery-validation-service/internal/models"
)

// PalletScenario determines which document set and stamps are required for a
// delivery.
type PalletScenario string

const (
	WithPallets    PalletScenario = "WITH_PALLETS"
	WithoutPallets PalletScenario = "WITHOUT_PALLETS"
)

// IssueSeverity grades a completeness issue.
type IssueSeverity string

const (
	SeverityHigh   IssueSeverity = "HIGH"
	SeverityMedium IssueSeverity = "MEDIUM"
)

// CompletenessIssue is one problem with a delivery's document set.
type CompletenessIssue struct {
	Severity     IssueSeverity       `json:"severity"`
	DocumentType models.DocumentType `json:"documentType"`
	Message      string              `json:"message"`
}

// CompletenessResult is the required-vs-present computation for a delivery.
type CompletenessResult struct {
	Scenario PalletScenario        `json:"scenario"`
	Missing  []models.DocumentType `json:"missing,omitempty"`
	Extra    []models.DocumentType `json:"extra,omitempty"`
	Issues   []CompletenessIssue   `json:"issues,omitempty"`
	Complete bool                  `json:"complete"`
}

// DetectPalletScenario decides WITH/WITHOUT pallets via a priority-ordered
// decision list, evaluated top to bottom, first match wins. Document-type
// evidence outranks stamp evidence, and a NO_PALLET stamp (evidence of
// absence) only counts once all positive evidence is exhausted.
func DetectPalletScenario(docs []*models.Document) PalletScenario {
	hasType := func(t models.DocumentType) bool {
		for _, d := range docs {
			if d.EffectiveType() == t {
				return true
			}
		}
		return false
	}
	hasStamp := func(t models.StampType) bool {
		for _, d := range docs {
			for _, s := range d.Stamps {
				if s.Type == t {
					return true
				}
			}
		}
		return false
	}

	switch {
	case hasType(models.DocTypePalletNotificationLetter):
		return WithPallets
	case hasType(models.DocTypePalletExchange):
		return WithPallets
	case hasType(models.DocTypePalletReceiving):
		return WithPallets
	case hasStamp(models.StampPallet):
		return WithPallets
	case hasStamp(models.StampNoPallet):
		return WithoutPallets
	default:
		return WithoutPallets
	}
}

// RequiredDocuments returns the document set a scenario demands.
func RequiredDocuments(scenario PalletScenario) []models.DocumentType {
	base := []models.DocumentType{
		models.DocTypeShipDocument,
		models.DocTypeInvoice,
		models.DocTypeRAR,
	}
	if scenario == WithPallets {
		return append(base,
			models.DocTypePalletNotificationLetter,
			models.DocTypePalletExchange,
			models.DocTypePalletReceiving,
		)
	}
	return base
}

// CheckCompleteness computes missing = required - present and
// extra = present - required. Every missing type yields a HIGH-severity
// issue; UNKNOWN documents are reported as extras at MEDIUM severity.
func CheckCompleteness(docs []*models.Document, scenario PalletScenario) CompletenessResult {
	required := RequiredDocuments(scenario)
	requiredSet := make(map[models.DocumentType]bool, len(required))
	for _, t := range required {
		requiredSet[t] = true
	}

	present := make(map[models.DocumentType]bool, len(docs))
	var extra []models.DocumentType
	extraSeen := make(map[models.DocumentType]bool)
	for _, d := range docs {
		t := d.EffectiveType()
		present[t] = true
		if !requiredSet[t] && !extraSeen[t] {
			extraSeen[t] = true
			extra = append(extra, t)
		}
	}

	result := CompletenessResult{Scenario: scenario, Extra: extra}
	for _, t := range required {
		if present[t] {
			continue
		}
		result.Missing = append(result.Missing, t)
		result.Issues = append(result.Issues, CompletenessIssue{
			Severity:     SeverityHigh,
			DocumentType: t,
			Message:      fmt.Sprintf("required document %s is missing", t),
		})
	}
	for _, t := range extra {
		if t != models.DocTypeUnknown {
			continue
		}
		result.Issues = append(result.Issues, CompletenessIssue{
			Severity:     SeverityMedium,
			DocumentType: t,
			Message:      "delivery contains an unclassified document",
		})
	}
	result.Complete = len(result.Missing) == 0
	return result
}

// InferUnknownShipDocument applies the bounded fallback for OCR-damaged ship
// documents: when exactly one document is UNKNOWN, the scenario is
// WITH_PALLETS, all three pallet documents plus invoice and RAR are present
// and only the ship document is missing, the UNKNOWN document is treated as
// the ship document for all downstream checks. Returns the candidate and
// whether the inference applies. Callers must downgrade derived checks to
// WARNING when the candidate's OCR confidence is also low, so the
// uncertainty stays visible in the output.
func InferUnknownShipDocument(docs []*models.Document, scenario PalletScenario, completeness CompletenessResult) (*models.Document, bool) {
	if scenario != WithPallets {
		return nil, false
	}
	if len(completeness.Missing) != 1 || completeness.Missing[0] != models.DocTypeShipDocument {
		return nil, false
	}
	var unknown *models.Document
	for _, d := range docs {
		if d.EffectiveType() != models.DocTypeUnknown {
			continue
		}
		if unknown != nil {
			return nil, false // more than one UNKNOWN: too ambiguous
		}
		unknown = d
	}
	if unknown == nil {
		return nil, false
	}
	return unknown, true
}
