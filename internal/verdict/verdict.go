// Package verdict combines modality gating, the rule engine and the classifier
// into the final per-attempt decision.
package verdict

import (
	"fmt"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	"github.com/SAP-F-2025/integrity-service/internal/features"
	"github.com/SAP-F-2025/integrity-service/internal/models"
	"github.com/SAP-F-2025/integrity-service/internal/rules"
)

type Certainty string

const (
	CertaintyLow     Certainty = "low"
	CertaintyMedium  Certainty = "medium"
	CertaintyHigh    Certainty = "high"
	CertaintyUnknown Certainty = "unknown"
)

const (
	ReasonUnsupported   = "AI evaluation unsupported"
	ReasonCleanSession  = "no suspicious signal recorded"
	ReasonVoiceOnly     = "voice detected but no other suspicious behavior"
	ReasonNotConfident  = "model not confident enough"
	reasonModelClean    = "model found no significant cheating pattern"
	reasonModelCheating = "model detected a cheating pattern"
	reasonModelUnsure   = "model leans towards cheating but below decision threshold"
)

// Verdict is the decision for one attempt.
type Verdict struct {
	Cheating      bool                `json:"cheating"`
	Probability   *float64            `json:"probability"`
	Certainty     Certainty           `json:"certainty"`
	RuleTriggered bool                `json:"rule_triggered"`
	Reason        string              `json:"reason"`
	TopFactors    []classifier.Factor `json:"top_factors"`
	ModelVersion  string              `json:"model_version,omitempty"`
}

// Bands are the probability cut points used once the model has spoken.
type Bands struct {
	CleanMax      float64 `mapstructure:"clean_max" json:"clean_max"`
	UncertainMax  float64 `mapstructure:"uncertain_max" json:"uncertain_max"`
	ConfidentLow  float64 `mapstructure:"confident_low" json:"confident_low"`
	ConfidentHigh float64 `mapstructure:"confident_high" json:"confident_high"`
}

func DefaultBands() Bands {
	return Bands{CleanMax: 0.4, UncertainMax: 0.55, ConfidentLow: 0.2, ConfidentHigh: 0.7}
}

// Classifier is the model side of the composer.
type Classifier interface {
	Predict(v features.Vector) (classifier.Prediction, error)
}

// RuleEngine is the deterministic side of the composer.
type RuleEngine interface {
	Evaluate(v features.Vector, c rules.Context) rules.Result
}

type Options struct {
	Bands            Bands
	VoiceOnlySeconds float64
	// ExplainRuleVerdicts runs the explainer on rule verdicts when a model is
	// loaded, listing the triggering rule's own features first.
	ExplainRuleVerdicts bool
}

// Composer is stateless across calls and safe for concurrent use.
type Composer struct {
	rules      RuleEngine
	classifier Classifier
	opts       Options
}

func NewComposer(r RuleEngine, c Classifier, opts Options) *Composer {
	if opts.Bands == (Bands{}) {
		opts.Bands = DefaultBands()
	}
	if opts.VoiceOnlySeconds <= 0 {
		opts.VoiceOnlySeconds = classifier.DefaultVoiceOnlySeconds
	}
	return &Composer{rules: r, classifier: c, opts: opts}
}

// Compose decides one attempt. The only error it returns comes from the
// classifier, e.g. classifier.ErrModelNotLoaded.
func (c *Composer) Compose(modality models.ModalityFlags, v features.Vector, events []models.ActivityEvent) (Verdict, error) {
	if !modality.Any() {
		return Verdict{Cheating: false, Certainty: CertaintyUnknown, Reason: ReasonUnsupported, TopFactors: []classifier.Factor{}}, nil
	}

	if r := c.rules.Evaluate(v, rules.Context{ProctoringEnabled: modality.ProctoringEnabled}); r.Triggered {
		return c.ruleVerdict(v, r), nil
	}

	if features.IsCleanSession(features.GatedEvents(events, modality)) {
		return Verdict{Cheating: false, Certainty: CertaintyHigh, Reason: ReasonCleanSession, TopFactors: []classifier.Factor{}}, nil
	}

	pred, err := c.classifier.Predict(v)
	if err != nil {
		return Verdict{}, fmt.Errorf("classify attempt: %w", err)
	}
	return c.modelVerdict(v, pred), nil
}

func (c *Composer) ruleVerdict(v features.Vector, r rules.Result) Verdict {
	one := 1.0
	out := Verdict{
		Cheating:      true,
		Probability:   &one,
		Certainty:     CertaintyHigh,
		RuleTriggered: true,
		Reason:        r.Reason,
		TopFactors:    []classifier.Factor{},
	}
	if c.opts.ExplainRuleVerdicts && r.Rule != nil {
		// explanation is best effort here; the rule alone decides
		if pred, err := c.classifier.Predict(v); err == nil {
			out.TopFactors = pinFactors(r.Rule.Features, pred.TopFactors)
			out.ModelVersion = pred.ModelVersion
		}
	}
	return out
}

// pinFactors puts the rule's features first, keeping their attributions when
// the explainer ranked them, followed by the remaining ranked factors.
func pinFactors(pinned []string, ranked []classifier.Factor) []classifier.Factor {
	byName := make(map[string]float64, len(ranked))
	for _, f := range ranked {
		byName[f.Feature] = f.Attribution
	}
	seen := make(map[string]bool, len(pinned))
	out := make([]classifier.Factor, 0, len(pinned)+len(ranked))
	for _, name := range pinned {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, classifier.Factor{Feature: name, Attribution: byName[name]})
	}
	for _, f := range ranked {
		if !seen[f.Feature] {
			out = append(out, f)
		}
	}
	return out
}

func (c *Composer) modelVerdict(v features.Vector, pred classifier.Prediction) Verdict {
	p := pred.Probability
	out := Verdict{
		Probability:  &p,
		TopFactors:   pred.TopFactors,
		ModelVersion: pred.ModelVersion,
	}
	if out.TopFactors == nil {
		out.TopFactors = []classifier.Factor{}
	}

	if pred.Cheating && classifier.VoiceOnly(v, c.opts.VoiceOnlySeconds) {
		out.Cheating = false
		out.Certainty = CertaintyLow
		out.Reason = ReasonVoiceOnly
		return out
	}

	b := c.opts.Bands
	switch {
	case p <= b.CleanMax:
		out.Reason = reasonModelClean
		out.Certainty = CertaintyMedium
		if p < b.ConfidentLow {
			out.Certainty = CertaintyHigh
		}
	case p <= b.UncertainMax:
		out.Certainty = CertaintyLow
		out.Reason = ReasonNotConfident
	default:
		out.Cheating = pred.Cheating
		out.Certainty = CertaintyMedium
		if p >= b.ConfidentHigh {
			out.Certainty = CertaintyHigh
		}
		out.Reason = reasonModelCheating
		if !pred.Cheating {
			out.Reason = reasonModelUnsure
		}
	}
	return out
}
