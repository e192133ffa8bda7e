package validation

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/podflow/delivery-validation-service/internal/models"
)

// Policy is one customer's validation implementation. Adding a customer means
// registering a new Policy at process start, never touching the engine.
type Policy interface {
	ClientID() string
	Validate(docs []*models.Document, cfg models.ClientValidationConfig) (*models.DeliveryValidationChecklist, error)
}

// Registry maps normalized client identifiers to policies with one designated
// default. A delivery must always be validatable, even for an unconfigured
// customer, so lookups never fail.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	fallback Policy
	logger   *slog.Logger
}

// NewRegistry creates a registry with the given default policy.
func NewRegistry(fallback Policy, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		policies: make(map[string]Policy),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a policy under its normalized client id.
func (r *Registry) Register(p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[normalizeClientID(p.ClientID())] = p
}

// GetValidator returns the policy for the client id, falling back to the
// default for empty or unregistered ids. The fallback is logged, never an
// error.
func (r *Registry) GetValidator(clientID string) Policy {
	id := normalizeClientID(clientID)
	if id == "" {
		return r.fallback
	}
	r.mu.RLock()
	p, ok := r.policies[id]
	r.mu.RUnlock()
	if !ok {
		r.logger.Info("no validator registered for client, using default", "client_id", id)
		return r.fallback
	}
	return p
}

func normalizeClientID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// StandardPolicy is the default validation policy: the plain checklist build
// with no customer-specific heuristics.
type StandardPolicy struct{}

func (StandardPolicy) ClientID() string { return "standard" }

func (StandardPolicy) Validate(docs []*models.Document, cfg models.ClientValidationConfig) (*models.DeliveryValidationChecklist, error) {
	return BuildChecklist(docs, cfg, BuildOptions{}), nil
}

// MeridianPolicy is the policy for the Meridian Foods account. Their drivers
// routinely submit ship documents that scan badly enough to classify as
// UNKNOWN, so this policy enables the bounded ship-document inference. The
// heuristic is tied to this customer's document mix and deliberately not
// promoted to an engine-wide default.
type MeridianPolicy struct{}

func (MeridianPolicy) ClientID() string { return "meridian" }

func (MeridianPolicy) Validate(docs []*models.Document, cfg models.ClientValidationConfig) (*models.DeliveryValidationChecklist, error) {
	return BuildChecklist(docs, cfg, BuildOptions{InferUnknownShipDocument: true}), nil
}

// NewDefaultRegistry builds the registry with every known customer policy
// registered and StandardPolicy as the fallback.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(StandardPolicy{}, logger)
	r.Register(StandardPolicy{})
	r.Register(MeridianPolicy{})
	return r
}
