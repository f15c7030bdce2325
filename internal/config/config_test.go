package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SAP-F-2025/integrity-service/internal/errors"
	"github.com/SAP-F-2025/integrity-service/internal/events"
	"github.com/SAP-F-2025/integrity-service/internal/rules"
	"github.com/SAP-F-2025/integrity-service/internal/verdict"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDetectionConfigDefaults(t *testing.T) {
	cfg, err := LoadDetectionConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, rules.DefaultThresholds(), cfg.Rules)
	assert.Equal(t, verdict.DefaultBands(), cfg.Bands)
	assert.Equal(t, 5, cfg.TopFactors)
	assert.Equal(t, 10*time.Minute, cfg.Trainer.LockTTL)
	assert.Equal(t, 120, cfg.Trainer.Params.Trees)
}

func TestLoadDetectionConfigShippedFile(t *testing.T) {
	cfg, err := LoadDetectionConfig(filepath.Join("..", "..", "config", "detection.yaml"))
	require.NoError(t, err)
	assert.Equal(t, rules.DefaultThresholds(), cfg.Rules)
	assert.Equal(t, verdict.DefaultBands(), cfg.Bands)
	assert.False(t, cfg.ExplainRuleVerdicts)
}

func TestLoadDetectionConfigFileAndEnv(t *testing.T) {
	path := writeYAML(t, `
rules:
  tab_switches: 4
explain_rule_verdicts: true
trainer:
  lock_ttl: 30s
`)
	t.Setenv("INTEGRITY_RULES_ESC_PRESSES", "7")

	cfg, err := LoadDetectionConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Rules.TabSwitches)
	assert.Equal(t, 7, cfg.Rules.EscPresses)
	assert.True(t, cfg.ExplainRuleVerdicts)
	assert.Equal(t, 30*time.Second, cfg.Trainer.LockTTL)
	// untouched keys keep their defaults
	assert.Equal(t, 0.6, cfg.Rules.OffscreenRatio)

	opts := cfg.ComposerOptions()
	assert.True(t, opts.ExplainRuleVerdicts)
	assert.Equal(t, cfg.Bands, opts.Bands)
}

func TestLoadDetectionConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"band order", "bands:\n  clean_max: 0.8\n", "bands"},
		{"band range", "bands:\n  confident_high: 1.5\n", "bands.confident_high"},
		{"top factors", "top_factors: 0\n", "top_factors"},
		{"test fraction", "trainer:\n  test_fraction: 1\n", "trainer.test_fraction"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadDetectionConfig(writeYAML(t, tc.body))
			var ve apperrors.ValidationErrors
			require.ErrorAs(t, err, &ve)

			var fields []string
			for _, e := range ve {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestLoadDetectionConfigMalformedYAML(t *testing.T) {
	_, err := LoadDetectionConfig(writeYAML(t, "rules: [oops"))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RETRAIN_SCHEDULE", "*/30 * * * *")
	t.Setenv("WATCH_MODEL", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CORS_ORIGINS", "https://proctor.example.edu, https://admin.example.edu")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.WatchModel)
	assert.Equal(t, []string{"https://proctor.example.edu", "https://admin.example.edu"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.GetKafkaBrokers())
	assert.Equal(t, "integrity.commands", cfg.Events.Topics().Commands)
}

func TestLoadConfigRejectsBadSchedule(t *testing.T) {
	t.Setenv("RETRAIN_SCHEDULE", "every night")
	_, err := LoadConfig()
	var ve apperrors.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cron", ve[0].Rule)
}

func TestCreateEventBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	disabled := EventConfig{Enabled: false}
	bus, err := disabled.CreateEventBus(logger)
	require.NoError(t, err)
	assert.IsType(t, &events.MockEventPublisher{}, bus.Publisher)
	assert.Nil(t, bus.Subscriber)

	memory := EventConfig{Enabled: true, Publisher: "memory", VerdictTopic: "v", CommandTopic: "c"}
	bus, err = memory.CreateEventBus(logger)
	require.NoError(t, err)
	assert.IsType(t, &events.WatermillEventPublisher{}, bus.Publisher)
	assert.NotNil(t, bus.Subscriber)
	assert.NoError(t, bus.Close())
}
