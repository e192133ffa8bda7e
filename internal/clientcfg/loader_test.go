package clientcfg

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podflow/delivery-validation-service/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfigFile(t *testing.T, dir, id, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".yaml"), []byte(content), 0644))
}

const acmeYAML = `client_id: acme
require_dispatch_stamp: true
require_driver_signature: true
compare_total_cases: true
allowed_variance_percent: 5
`

func TestLoader_Get(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "acme", acmeYAML)
	l := NewLoader(dir, time.Minute, testLogger())

	cfg, err := l.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.ClientID)
	assert.True(t, cfg.RequireDispatchStamp)
	assert.False(t, cfg.RequireWarehouseStamp)
	assert.Equal(t, 5.0, cfg.AllowedVariancePercent)
}

func TestLoader_GetNormalizesClientID(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "acme", acmeYAML)
	l := NewLoader(dir, time.Minute, testLogger())

	cfg, err := l.Get(context.Background(), "  ACME  ")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.ClientID)
}

func TestLoader_MissingFileYieldsDefaults(t *testing.T) {
	l := NewLoader(t.TempDir(), time.Minute, testLogger())

	cfg, err := l.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", cfg.ClientID)
	// Engine defaults: the full standard check set.
	assert.True(t, cfg.RequireDispatchStamp)
	assert.True(t, cfg.CompareTotalCases)
	assert.Equal(t, 0.0, cfg.AllowedVariancePercent)
}

func TestLoader_InvalidYAMLIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "acme", "\tnot yaml")
	l := NewLoader(dir, time.Minute, testLogger())

	_, err := l.Get(context.Background(), "acme")
	assert.Error(t, err)
}

func TestLoader_InvalidValuesRejected(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "acme", "client_id: acme\nallowed_variance_percent: 250\n")
	l := NewLoader(dir, time.Minute, testLogger())

	_, err := l.Get(context.Background(), "acme")
	assert.Error(t, err)
}

func TestLoader_CacheServesWithinTTL(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "acme", acmeYAML)

	l := NewLoader(dir, time.Minute, testLogger())
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	cfg, err := l.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.AllowedVariancePercent)

	// A file change is invisible while the cached entry is fresh.
	writeConfigFile(t, dir, "acme", "client_id: acme\nallowed_variance_percent: 10\n")
	cfg, err = l.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.AllowedVariancePercent)

	// Past the TTL the entry is reloaded.
	clock = clock.Add(2 * time.Minute)
	cfg, err = l.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 10.0, cfg.AllowedVariancePercent)
}

func TestLoader_SaveInvalidatesSynchronously(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "acme", acmeYAML)
	l := NewLoader(dir, time.Hour, testLogger())

	cfg, err := l.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.AllowedVariancePercent)

	cfg.AllowedVariancePercent = 15
	require.NoError(t, l.Save(context.Background(), cfg))

	// No TTL wait: the next read observes the update immediately.
	got, err := l.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.AllowedVariancePercent)
}

func TestLoader_SaveRejectsInvalidConfig(t *testing.T) {
	l := NewLoader(t.TempDir(), time.Hour, testLogger())

	err := l.Save(context.Background(), models.ClientValidationConfig{
		ClientID:               "acme",
		AllowedVariancePercent: -1,
	})
	assert.Error(t, err)

	err = l.Save(context.Background(), models.ClientValidationConfig{})
	assert.Error(t, err, "client id is required")
}

func TestLoader_SaveNormalizesClientID(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir, time.Hour, testLogger())

	require.NoError(t, l.Save(context.Background(), models.ClientValidationConfig{ClientID: "  ACME  "}))
	_, err := os.Stat(filepath.Join(dir, "acme.yaml"))
	assert.NoError(t, err)
}
