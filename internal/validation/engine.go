package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/podflow/delivery-validation-service/internal/metrics"
	"github.com/podflow/delivery-validation-service/internal/models"
)

// ConfigSource supplies the active validation configuration for a client.
type ConfigSource interface {
	Get(ctx context.Context, clientID string) (models.ClientValidationConfig, error)
}

// DefaultClientConfig is the configuration applied when a client has none of
// its own: every standard check enabled with exact-match tolerance.
func DefaultClientConfig(clientID string) models.ClientValidationConfig {
	return models.ClientValidationConfig{
		ClientID:                 clientID,
		RequireDispatchStamp:     true,
		RequireDriverSignature:   true,
		RequireCustomerSignature: true,
		CheckPalletDocuments:     true,
		CheckTimeInOut:           true,
		ComparePONumbers:         true,
		CompareTotalCases:        true,
		CompareLineItems:         true,
		AllowedVariancePercent:   0,
	}
}

// Engine orchestrates delivery validation: per-document processing fans out
// in parallel, delivery-level checks run strictly after every document result
// is in, and concurrent validation of the same delivery is serialized by a
// per-id lock.
type Engine struct {
	classifier *Classifier
	registry   *Registry
	configs    ConfigSource
	logger     *slog.Logger

	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewEngine wires a validation engine. configs may be nil, in which case the
// default configuration is used for every client.
func NewEngine(registry *Registry, configs ConfigSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier: NewClassifier(),
		registry:   registry,
		configs:    configs,
		logger:     logger,
	}
}

// ProcessDocument classifies one document and derives its stamps and
// signatures, mutating the document in place. Re-processing re-derives every
// field; nothing is appended. Documents are independent, so callers may run
// this concurrently across the documents of one delivery.
func (e *Engine) ProcessDocument(doc *models.Document) {
	cls := e.classifier.Classify(doc)
	doc.DetectedType = cls.DetectedType
	doc.ClassificationConfidence = cls.Confidence
	doc.MatchedKeywords = cls.MatchedKeywords

	docType := doc.EffectiveType()
	doc.Stamps = DetectStamps(docType, doc.RawText)
	doc.Signatures = MergeSignatures(DetectSignatures(docType, doc.RawText), doc.ImageSignature)

	now := time.Now().UTC()
	doc.ProcessedAt = &now

	metrics.ObserveClassification(string(docType))
}

// ValidateDelivery runs the full validation pipeline for one delivery:
// fan-out per-document processing, a barrier, then the client policy's
// delivery-level checks. The delivery's status, checklist and denormalized
// document types are updated on success.
//
// An unexpected policy failure is recorded on the delivery as an overall FAIL
// with an explanatory summary and the error is still returned, so the caller
// can mark the job failed and retry. A partial checklist is never left behind
// as final.
func (e *Engine) ValidateDelivery(ctx context.Context, delivery *models.Delivery, docs []*models.Document) (*models.DeliveryValidationChecklist, error) {
	lock := e.deliveryLock(delivery)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	// Fan out: per-document work shares no mutable state across documents.
	g, _ := errgroup.WithContext(ctx)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			e.ProcessDocument(doc)
			return nil
		})
	}
	// Barrier: delivery-level checks need every per-document result.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		delivery.SyncDocument(doc)
	}

	cfg := e.clientConfig(ctx, delivery.ClientID)
	policy := e.registry.GetValidator(delivery.ClientID)

	checklist, err := e.runPolicy(policy, docs, cfg)
	if err != nil {
		checklist = &models.DeliveryValidationChecklist{
			OverallStatus: models.StatusFail,
			Summary:       fmt.Sprintf("validation aborted: %v", err),
		}
		e.applyResult(delivery, checklist)
		metrics.ObserveValidation(delivery.ClientID, string(models.StatusFail), time.Since(start))
		e.logger.Error("delivery validation failed",
			"delivery_id", delivery.ID, "client_id", delivery.ClientID, "error", err)
		return checklist, err
	}

	e.applyResult(delivery, checklist)
	metrics.ObserveValidation(delivery.ClientID, string(checklist.OverallStatus), time.Since(start))
	e.logger.Info("delivery validated",
		"delivery_id", delivery.ID,
		"client_id", delivery.ClientID,
		"status", checklist.OverallStatus,
		"summary", checklist.Summary,
		"duration", time.Since(start))
	return checklist, nil
}

// runPolicy isolates policy execution so a panicking policy is converted into
// an error instead of taking the worker down with a half-built checklist.
func (e *Engine) runPolicy(policy Policy, docs []*models.Document, cfg models.ClientValidationConfig) (cl *models.DeliveryValidationChecklist, err error) {
	defer func() {
		if r := recover(); r != nil {
			cl = nil
			err = fmt.Errorf("policy %s panicked: %v", policy.ClientID(), r)
		}
	}()
	return policy.Validate(docs, cfg)
}

func (e *Engine) applyResult(delivery *models.Delivery, checklist *models.DeliveryValidationChecklist) {
	now := time.Now().UTC()
	delivery.Checklist = checklist
	delivery.Status = checklist.OverallStatus
	delivery.ValidatedAt = &now
}

func (e *Engine) clientConfig(ctx context.Context, clientID string) models.ClientValidationConfig {
	if e.configs == nil {
		return DefaultClientConfig(clientID)
	}
	cfg, err := e.configs.Get(ctx, clientID)
	if err != nil {
		e.logger.Warn("client config unavailable, using defaults",
			"client_id", clientID, "error", err)
		return DefaultClientConfig(clientID)
	}
	return cfg
}

func (e *Engine) deliveryLock(delivery *models.Delivery) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(delivery.ID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
