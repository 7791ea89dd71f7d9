package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/marketplace"
	"github.com/kcb43/profitorbit.io-sub006/internal/util"

	"go.uber.org/zap"
)

// Patch targets for a validation issue
const (
	PatchTargetGeneral     = "general"
	PatchTargetMarketplace = "marketplace"
)

// DefaultAutoFillConfidence is the confidence a suggestion must clear before
// apply-only mode applies it without surfacing the issue
const DefaultAutoFillConfidence = 0.9

// FieldValue is a form field value. Category-like fields carry an id
// alongside the display label.
type FieldValue struct {
	Label string `json:"label"`
	ID    string `json:"id,omitempty"`
}

// ValidationIssue is one missing or invalid field found during preflight
type ValidationIssue struct {
	Marketplace    string     `json:"marketplace"`
	Field          string     `json:"field"`
	PatchTarget    string     `json:"patch_target"`
	SuggestedValue FieldValue `json:"suggested_value,omitempty"`
	Confidence     float64    `json:"confidence"`
	Reasoning      string     `json:"reasoning,omitempty"`
}

// PreflightResult partitions the selected marketplaces into ready and an
// ordered list of issues. It is recomputed on every pass, never persisted.
type PreflightResult struct {
	Ready       []string          `json:"ready"`
	FixesNeeded []ValidationIssue `json:"fixes_needed"`
}

// Suggestion is one fill-oracle proposal for a missing field
type Suggestion struct {
	Value      FieldValue `json:"value"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
}

// FillOracle proposes values for missing fields. Optional; a nil oracle
// yields issues without suggestions.
type FillOracle interface {
	Suggest(ctx context.Context, mkt string, missingFields []string, itemContext map[string]string) (map[string]Suggestion, error)
}

// PatchFunc receives fixes in apply-only mode. It must not trigger a new
// validation pass; Validate rejects re-entry while a pass is running.
type PatchFunc func(issue ValidationIssue, value FieldValue)

// PreflightInput is everything one validation pass looks at
type PreflightInput struct {
	Marketplaces       []string                     `json:"marketplaces"`
	GeneralForm        map[string]string            `json:"general_form"`
	MarketplaceForms   map[string]map[string]string `json:"marketplace_forms"`
	Defaults           map[string]map[string]string `json:"defaults,omitempty"`
	FulfillmentProfile map[string]string            `json:"fulfillment_profile,omitempty"`
	AutoFill           bool                         `json:"auto_fill"`
}

// PreflightValidator determines per-marketplace readiness before dispatch
type PreflightValidator struct {
	oracle    FillOracle
	threshold float64
	logger    *zap.Logger
	running   atomic.Bool
}

// NewPreflightValidator creates a validator. threshold values outside (0, 1]
// fall back to the default.
func NewPreflightValidator(oracle FillOracle, threshold float64) *PreflightValidator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultAutoFillConfidence
	}
	return &PreflightValidator{
		oracle:    oracle,
		threshold: threshold,
		logger:    util.GetLogger(),
	}
}

// Validate runs one preflight pass. In apply-only mode (input.AutoFill with a
// non-nil applyFix), issues whose suggestion clears the confidence threshold
// are handed to applyFix instead of being surfaced. Validate refuses to run
// re-entrantly so a patch callback cannot spiral into recursive validation.
func (v *PreflightValidator) Validate(ctx context.Context, in PreflightInput, applyFix PatchFunc) (*PreflightResult, error) {
	if !v.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("validation pass already running")
	}
	defer v.running.Store(false)

	start := time.Now()
	defer func() {
		util.PreflightLatency.Observe(time.Since(start).Seconds())
	}()

	result := &PreflightResult{
		Ready:       []string{},
		FixesNeeded: []ValidationIssue{},
	}

	for _, mkt := range in.Marketplaces {
		issues := v.validateMarketplace(mkt, in)

		suggestions := v.suggest(ctx, mkt, issues, in)
		surfaced := 0
		for i := range issues {
			issue := &issues[i]
			if s, ok := suggestions[issue.Field]; ok {
				issue.SuggestedValue = s.Value
				issue.Confidence = s.Confidence
				issue.Reasoning = s.Reasoning
			}

			if in.AutoFill && applyFix != nil &&
				issue.Confidence >= v.threshold && issue.SuggestedValue.Label != "" {
				applyFix(*issue, issue.SuggestedValue)
				util.PreflightAutoFixesTotal.WithLabelValues(mkt).Inc()
				continue
			}

			result.FixesNeeded = append(result.FixesNeeded, *issue)
			util.PreflightIssuesTotal.WithLabelValues(mkt).Inc()
			surfaced++
		}

		if surfaced == 0 {
			result.Ready = append(result.Ready, mkt)
		}
	}

	return result, nil
}

// validateMarketplace checks one marketplace's required fields, in schema
// order, against the layered forms
func (v *PreflightValidator) validateMarketplace(mkt string, in PreflightInput) []ValidationIssue {
	var issues []ValidationIssue
	for _, field := range marketplace.RequiredFields(mkt) {
		value := effectiveValue(in, mkt, field)
		if fieldValid(field, value) {
			continue
		}
		issues = append(issues, ValidationIssue{
			Marketplace: mkt,
			Field:       field,
			PatchTarget: patchTargetFor(field),
		})
	}
	return issues
}

// suggest asks the fill oracle once per marketplace for all missing fields
func (v *PreflightValidator) suggest(ctx context.Context, mkt string, issues []ValidationIssue, in PreflightInput) map[string]Suggestion {
	if v.oracle == nil || len(issues) == 0 {
		return nil
	}

	missing := make([]string, 0, len(issues))
	for _, issue := range issues {
		missing = append(missing, issue.Field)
	}

	suggestions, err := v.oracle.Suggest(ctx, mkt, missing, in.GeneralForm)
	if err != nil {
		v.logger.Warn("Fill oracle failed",
			zap.String("marketplace", mkt),
			zap.Error(err))
		return nil
	}
	return suggestions
}

// effectiveValue resolves a field through the layered sources: the
// marketplace draft form wins, then marketplace saved defaults, then the
// general form, then the fulfillment profile.
func effectiveValue(in PreflightInput, mkt, field string) string {
	if form, ok := in.MarketplaceForms[mkt]; ok {
		if val, ok := form[field]; ok && strings.TrimSpace(val) != "" {
			return val
		}
	}
	if defaults, ok := in.Defaults[mkt]; ok {
		if val, ok := defaults[field]; ok && strings.TrimSpace(val) != "" {
			return val
		}
	}
	if val, ok := in.GeneralForm[field]; ok && strings.TrimSpace(val) != "" {
		return val
	}
	if val, ok := in.FulfillmentProfile[field]; ok && strings.TrimSpace(val) != "" {
		return val
	}
	return ""
}

func fieldValid(field, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if field == "price" {
		price, err := strconv.ParseFloat(value, 64)
		return err == nil && price > 0
	}
	return true
}

// patchTargetFor tags whether a fix for the field lands on the general form
// or on one marketplace's draft form
func patchTargetFor(field string) string {
	switch field {
	case "shipping_profile", "size":
		return PatchTargetMarketplace
	default:
		return PatchTargetGeneral
	}
}
