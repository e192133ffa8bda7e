package validation

import (
	"sort"
	"strings"

	"github.com/podflow/delivery-validation-service/internal/models"
)

// Classification weights and thresholds. Primary keywords dominate secondary
// ones so a single strong signal outweighs several ambiguous weak ones.
const (
	primaryWeight   = 10.0
	secondaryWeight = 3.0
	fuzzyFactor     = 0.7
	fuzzyMinSim     = 0.70

	// assumedMaxScore normalizes the winning score to 0-100. It is a fixed
	// constant, not the per-type keyword-weight sum, so types with few
	// keywords can never reach 100.
	assumedMaxScore = 40.0

	// Acceptance thresholds, relaxed as OCR quality degrades so poor scans
	// get a lenient classification instead of defaulting to UNKNOWN.
	baseThreshold   = 25.0
	midOCRThreshold = 20.0 // OCR confidence 60-75
	lowOCRThreshold = 15.0 // OCR confidence < 60
	lowOCRBound     = 60.0
	midOCRBound     = 75.0

	maxAlternatives = 3
)

// Alternative is a runner-up classification kept for diagnostics.
type Alternative struct {
	Type       models.DocumentType `json:"type"`
	Confidence float64             `json:"confidence"`
}

// Classification is the classifier output for one document.
type Classification struct {
	DetectedType    models.DocumentType `json:"detectedType"`
	Confidence      float64             `json:"confidence"` // 0-100
	MatchedKeywords []string            `json:"matchedKeywords,omitempty"`
	Alternatives    []Alternative       `json:"alternatives,omitempty"`
	Overridden      bool                `json:"overridden,omitempty"`
}

type keywordProfile struct {
	docType   models.DocumentType
	primary   []string
	secondary []string
}

// defaultProfiles are the per-type keyword sets scored against OCR text.
var defaultProfiles = []keywordProfile{
	{
		docType:   models.DocTypeInvoice,
		primary:   []string{"invoice", "tax invoice"},
		secondary: []string{"invoice no", "invoice number", "amount due", "bill to", "vat"},
	},
	{
		docType:   models.DocTypeRAR,
		primary:   []string{"receiving acknowledgment", "acknowledgment receipt"},
		secondary: []string{"rar no", "goods received", "receiving report"},
	},
	{
		docType:   models.DocTypeShipDocument,
		primary:   []string{"ship document", "delivery note"},
		secondary: []string{"carrier", "vehicle reg", "time in", "time out", "dispatch"},
	},
	{
		docType:   models.DocTypePalletNotificationLetter,
		primary:   []string{"pallet notification"},
		secondary: []string{"pallet account", "notification letter", "pallet transfer"},
	},
	{
		docType:   models.DocTypePalletExchange,
		primary:   []string{"pallet exchange"},
		secondary: []string{"sent by", "received by", "pallets exchanged"},
	},
	{
		docType:   models.DocTypePalletReceiving,
		primary:   []string{"pallet receiving"},
		secondary: []string{"pallets received", "pallet receipt"},
	},
}

// Classifier scores OCR text against per-type keyword sets. It is stateless:
// classification is a pure function of the text and the profiles.
type Classifier struct {
	profiles []keywordProfile
}

// NewClassifier creates a classifier with the default keyword profiles.
func NewClassifier() *Classifier {
	return &Classifier{profiles: defaultProfiles}
}

// Classify determines the document type for the given document. A manual
// override bypasses classification entirely and returns the stored
// classification unchanged; overrides are never silently reclassified.
func (c *Classifier) Classify(doc *models.Document) Classification {
	if doc.ManualOverride != nil {
		return Classification{
			DetectedType:    doc.ManualOverride.Type,
			Confidence:      sanitizeConfidence(doc.ClassificationConfidence),
			MatchedKeywords: doc.MatchedKeywords,
			Overridden:      true,
		}
	}
	return c.ClassifyText(doc.RawText, doc.OCRConfidence)
}

// ClassifyText scores the raw text against every profile and applies the
// tie-break and threshold rules. Empty or whitespace-only text yields
// UNKNOWN with confidence 0; no error is raised.
func (c *Classifier) ClassifyText(text string, ocrConfidence float64) Classification {
	if strings.TrimSpace(text) == "" {
		return Classification{DetectedType: models.DocTypeUnknown, Confidence: 0}
	}

	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	scores := make(map[models.DocumentType]float64, len(c.profiles))
	matched := make(map[models.DocumentType][]string, len(c.profiles))
	for _, p := range c.profiles {
		score, kws := scoreProfile(lower, tokens, p)
		scores[p.docType] = score
		matched[p.docType] = kws
	}

	winner := models.DocTypeUnknown
	best := 0.0
	for _, p := range c.profiles {
		if scores[p.docType] > best {
			best = scores[p.docType]
			winner = p.docType
		}
	}
	if winner == models.DocTypeUnknown {
		return Classification{DetectedType: models.DocTypeUnknown, Confidence: 0}
	}

	// Combined invoice+RAR paperwork must classify as the scarcer, more
	// validation-critical RAR type.
	if winner == models.DocTypeInvoice &&
		scores[models.DocTypeRAR] > 0 &&
		scores[models.DocTypeRAR] >= 0.5*scores[models.DocTypeInvoice] {
		winner = models.DocTypeRAR
		best = scores[models.DocTypeRAR]
	}

	confidence := normalizeScore(best)
	alternatives := rankAlternatives(scores, winner)

	if confidence < acceptanceThreshold(ocrConfidence) {
		// Keep the rejected candidates visible for diagnostics.
		alternatives = rankAlternatives(scores, models.DocTypeUnknown)
		return Classification{
			DetectedType: models.DocTypeUnknown,
			Confidence:   0,
			Alternatives: alternatives,
		}
	}

	return Classification{
		DetectedType:    winner,
		Confidence:      confidence,
		MatchedKeywords: matched[winner],
		Alternatives:    alternatives,
	}
}

// acceptanceThreshold returns the minimum confidence to accept a
// classification given the source OCR confidence.
func acceptanceThreshold(ocrConfidence float64) float64 {
	ocr := sanitizeConfidence(ocrConfidence)
	switch {
	case ocr < lowOCRBound:
		return lowOCRThreshold
	case ocr <= midOCRBound:
		return midOCRThreshold
	default:
		return baseThreshold
	}
}

func normalizeScore(score float64) float64 {
	conf := score / assumedMaxScore * 100
	if conf > 100 {
		conf = 100
	}
	return conf
}

func scoreProfile(lowerText string, tokens []string, p keywordProfile) (float64, []string) {
	var score float64
	var matched []string
	for _, kw := range p.primary {
		if w, ok := matchKeyword(lowerText, tokens, kw, primaryWeight); ok {
			score += w
			matched = append(matched, kw)
		}
	}
	for _, kw := range p.secondary {
		if w, ok := matchKeyword(lowerText, tokens, kw, secondaryWeight); ok {
			score += w
			matched = append(matched, kw)
		}
	}
	return score, matched
}

// matchKeyword returns the weight contributed by one keyword: full weight for
// an exact substring match, weight*fuzzyFactor when every keyword token has a
// text token with edit similarity >= fuzzyMinSim.
func matchKeyword(lowerText string, tokens []string, keyword string, weight float64) (float64, bool) {
	if strings.Contains(lowerText, keyword) {
		return weight, true
	}
	for _, kt := range strings.Fields(keyword) {
		if !anyTokenSimilar(tokens, kt) {
			return 0, false
		}
	}
	return weight * fuzzyFactor, true
}

func anyTokenSimilar(tokens []string, target string) bool {
	for _, tok := range tokens {
		if tokenSimilarity(tok, target) >= fuzzyMinSim {
			return true
		}
	}
	return false
}

func rankAlternatives(scores map[models.DocumentType]float64, winner models.DocumentType) []Alternative {
	var alts []Alternative
	for t, s := range scores {
		if t == winner || s <= 0 {
			continue
		}
		alts = append(alts, Alternative{Type: t, Confidence: normalizeScore(s)})
	}
	sort.Slice(alts, func(i, j int) bool {
		if alts[i].Confidence != alts[j].Confidence {
			return alts[i].Confidence > alts[j].Confidence
		}
		return alts[i].Type < alts[j].Type
	})
	if len(alts) > maxAlternatives {
		alts = alts[:maxAlternatives]
	}
	return alts
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// tokenSimilarity is 1 - levenshtein/maxLen, the token-level edit similarity.
func tokenSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
