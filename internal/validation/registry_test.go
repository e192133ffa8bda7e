package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/podflow/delivery-validation-service/internal/models"
)

type namedPolicy struct{ id string }

func (p namedPolicy) ClientID() string { return p.id }
func (p namedPolicy) Validate(docs []*models.Document, cfg models.ClientValidationConfig) (*models.DeliveryValidationChecklist, error) {
	return BuildChecklist(docs, cfg, BuildOptions{}), nil
}

func TestRegistry_FallbackForUnknownClient(t *testing.T) {
	r := NewRegistry(StandardPolicy{}, nil)

	assert.Equal(t, "standard", r.GetValidator("nobody").ClientID())
	assert.Equal(t, "standard", r.GetValidator("").ClientID())
	assert.Equal(t, "standard", r.GetValidator("   ").ClientID())
}

func TestRegistry_LookupIsNormalized(t *testing.T) {
	r := NewRegistry(StandardPolicy{}, nil)
	r.Register(namedPolicy{id: "Acme"})

	assert.Equal(t, "Acme", r.GetValidator("acme").ClientID())
	assert.Equal(t, "Acme", r.GetValidator("  ACME  ").ClientID())
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(nil)

	assert.Equal(t, "meridian", r.GetValidator("Meridian").ClientID())
	assert.Equal(t, "standard", r.GetValidator("standard").ClientID())
	assert.Equal(t, "standard", r.GetValidator("someone-else").ClientID())
}

func TestMeridianPolicy_EnablesShipDocumentInference(t *testing.T) {
	docs := inferenceDocSet(90)

	standard, err := StandardPolicy{}.Validate(docs, DefaultClientConfig("standard"))
	assert.NoError(t, err)
	assert.Equal(t, models.CheckFailed, findItem(t, standard, CheckShipDocumentPresent).Status)

	meridian, err := MeridianPolicy{}.Validate(docs, DefaultClientConfig("meridian"))
	assert.NoError(t, err)
	assert.Equal(t, models.CheckWarning, findItem(t, meridian, CheckShipDocumentPresent).Status)
}
