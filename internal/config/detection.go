package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	apperrors "github.com/SAP-F-2025/integrity-service/internal/errors"
	"github.com/SAP-F-2025/integrity-service/internal/rules"
	"github.com/SAP-F-2025/integrity-service/internal/trainer"
	"github.com/SAP-F-2025/integrity-service/internal/validator"
	"github.com/SAP-F-2025/integrity-service/internal/verdict"
)

const envPrefix = "INTEGRITY"

// DetectionConfig holds every tunable of the detection pipeline.
type DetectionConfig struct {
	Rules               rules.Thresholds `mapstructure:"rules"`
	Bands               verdict.Bands    `mapstructure:"bands"`
	TopFactors          int              `mapstructure:"top_factors" validate:"gte=1,lte=20"`
	VoiceOnlySeconds    float64          `mapstructure:"voice_only_seconds" validate:"gt=0"`
	ExplainRuleVerdicts bool             `mapstructure:"explain_rule_verdicts"`
	Trainer             trainer.Config   `mapstructure:"trainer"`
}

// ComposerOptions returns the verdict composer settings.
func (d *DetectionConfig) ComposerOptions() verdict.Options {
	return verdict.Options{
		Bands:               d.Bands,
		VoiceOnlySeconds:    d.VoiceOnlySeconds,
		ExplainRuleVerdicts: d.ExplainRuleVerdicts,
	}
}

// LoadDetectionConfig reads the YAML file at path, then applies
// INTEGRITY_* environment overrides (INTEGRITY_RULES_TAB_SWITCHES=3).
// A missing file leaves the defaults in place.
func LoadDetectionConfig(path string) (*DetectionConfig, error) {
	v := viper.New()
	setDetectionDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read detection config: %w", err)
			}
		}
	}

	var cfg DetectionConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode detection config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks tag constraints and the cross-field limits tags cannot express.
func (d *DetectionConfig) Validate() error {
	var errs apperrors.ValidationErrors
	if err := validator.New().Validate(d); err != nil {
		var ve apperrors.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		errs = append(errs, ve...)
	}

	b := d.Bands
	for name, p := range map[string]float64{
		"bands.clean_max":      b.CleanMax,
		"bands.uncertain_max":  b.UncertainMax,
		"bands.confident_low":  b.ConfidentLow,
		"bands.confident_high": b.ConfidentHigh,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, apperrors.ValidationError{Field: name, Message: "must be between 0 and 1", Value: p, Rule: "probability"})
		}
	}
	if !(b.ConfidentLow <= b.CleanMax && b.CleanMax <= b.UncertainMax && b.UncertainMax <= b.ConfidentHigh) {
		errs = append(errs, apperrors.ValidationError{
			Field:   "bands",
			Message: "must satisfy confident_low <= clean_max <= uncertain_max <= confident_high",
			Rule:    "band_order",
		})
	}

	t := d.Trainer
	if t.TestFraction <= 0 || t.TestFraction >= 1 {
		errs = append(errs, apperrors.ValidationError{Field: "trainer.test_fraction", Message: "must be between 0 and 1 exclusive", Value: t.TestFraction, Rule: "range"})
	}
	if t.MinSamples < 2 {
		errs = append(errs, apperrors.ValidationError{Field: "trainer.min_samples", Message: "must be at least 2", Value: t.MinSamples, Rule: "gte"})
	}
	if t.Params.Trees < 1 || t.Params.MaxDepth < 1 || t.Params.LearningRate <= 0 {
		errs = append(errs, apperrors.ValidationError{Field: "trainer.params", Message: "need trees >= 1, max_depth >= 1 and learning_rate > 0", Rule: "range"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func setDetectionDefaults(v *viper.Viper) {
	th := rules.DefaultThresholds()
	v.SetDefault("rules.offscreen_ratio", th.OffscreenRatio)
	v.SetDefault("rules.offscreen_ratio_no_writing", th.OffscreenRatioNoWriting)
	v.SetDefault("rules.mobile_detections", th.MobileDetections)
	v.SetDefault("rules.multiple_faces", th.MultipleFaces)
	v.SetDefault("rules.face_mismatches", th.FaceMismatches)
	v.SetDefault("rules.voiced_ratio", th.VoicedRatio)
	v.SetDefault("rules.gaze_down", th.GazeDown)
	v.SetDefault("rules.reading_aloud_requires_writing", th.ReadingAloudNeedsWriting)
	v.SetDefault("rules.paste_chars_per_minute", th.PasteCharsPerMinute)
	v.SetDefault("rules.paste_max_key_presses", th.PasteMaxKeyPresses)
	v.SetDefault("rules.tab_switches", th.TabSwitches)
	v.SetDefault("rules.esc_presses", th.EscPresses)

	bands := verdict.DefaultBands()
	v.SetDefault("bands.clean_max", bands.CleanMax)
	v.SetDefault("bands.uncertain_max", bands.UncertainMax)
	v.SetDefault("bands.confident_low", bands.ConfidentLow)
	v.SetDefault("bands.confident_high", bands.ConfidentHigh)

	v.SetDefault("top_factors", classifier.DefaultTopFactors)
	v.SetDefault("voice_only_seconds", classifier.DefaultVoiceOnlySeconds)
	v.SetDefault("explain_rule_verdicts", false)

	tc := trainer.DefaultConfig()
	v.SetDefault("trainer.model_path", tc.ModelPath)
	v.SetDefault("trainer.versions_dir", tc.VersionsDir)
	v.SetDefault("trainer.min_samples", tc.MinSamples)
	v.SetDefault("trainer.test_fraction", tc.TestFraction)
	v.SetDefault("trainer.smote_k", tc.SmoteK)
	v.SetDefault("trainer.seed", tc.Seed)
	v.SetDefault("trainer.lock_ttl", tc.LockTTL)
	v.SetDefault("trainer.params.trees", tc.Params.Trees)
	v.SetDefault("trainer.params.max_depth", tc.Params.MaxDepth)
	v.SetDefault("trainer.params.learning_rate", tc.Params.LearningRate)
	v.SetDefault("trainer.params.lambda", tc.Params.Lambda)
	v.SetDefault("trainer.params.min_child_weight", tc.Params.MinChildWeight)
	v.SetDefault("trainer.params.gamma", tc.Params.Gamma)
}
