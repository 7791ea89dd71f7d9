package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/marketplace"
	"github.com/kcb43/profitorbit.io-sub006/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModalState is the smart listing flow's state
type ModalState string

const (
	StateIdle       ModalState = "idle"
	StateValidating ModalState = "validating"
	StateReady      ModalState = "ready"
	StateFixes      ModalState = "fixes"
	StateListing    ModalState = "listing"
)

// validTransitions is the exhaustive transition table. Re-validation is
// reachable from ready and fixes (fix application re-runs the validator);
// listing falls back to ready or fixes on partial failure, never to idle.
var validTransitions = map[ModalState][]ModalState{
	StateIdle:       {StateValidating},
	StateValidating: {StateReady, StateFixes},
	StateReady:      {StateValidating, StateListing},
	StateFixes:      {StateValidating, StateListing},
	StateListing:    {StateIdle, StateReady, StateFixes},
}

// Auto-fill modes
const (
	AutoFillAuto   = "auto"
	AutoFillManual = "manual"
)

// SmartListingSession is the ephemeral state of one listing flow. It is
// created when the user opens the flow and discarded on close or full
// success.
type SmartListingSession struct {
	ID                   string                       `json:"id"`
	InventoryItemID      string                       `json:"inventory_item_id"`
	ModalOpen            bool                         `json:"modal_open"`
	ModalState           ModalState                   `json:"modal_state"`
	SelectedMarketplaces []string                     `json:"selected_marketplaces"`
	AutoFillMode         string                       `json:"auto_fill_mode"`
	PreflightResult      *PreflightResult             `json:"preflight_result,omitempty"`
	GeneralForm          map[string]string            `json:"general_form"`
	MarketplaceForms     map[string]map[string]string `json:"marketplace_forms"`
	Defaults             map[string]map[string]string `json:"defaults,omitempty"`
	FulfillmentProfile   map[string]string            `json:"fulfillment_profile,omitempty"`
	CreatedAt            time.Time                    `json:"created_at"`
}

// NewSession creates an idle, closed session for an item's draft forms
func NewSession(inventoryItemID string, generalForm map[string]string) *SmartListingSession {
	if generalForm == nil {
		generalForm = map[string]string{}
	}
	return &SmartListingSession{
		ID:                   uuid.New().String(),
		InventoryItemID:      inventoryItemID,
		ModalState:           StateIdle,
		SelectedMarketplaces: []string{},
		AutoFillMode:         AutoFillAuto,
		GeneralForm:          generalForm,
		MarketplaceForms:     map[string]map[string]string{},
		CreatedAt:            time.Now(),
	}
}

// transitionTo moves the session along the transition table, rejecting
// anything the table does not allow
func (s *SmartListingSession) transitionTo(to ModalState) error {
	for _, allowed := range validTransitions[s.ModalState] {
		if allowed == to {
			s.ModalState = to
			return nil
		}
	}
	return fmt.Errorf("illegal state transition: %s -> %s", s.ModalState, to)
}

// SubmitFunc dispatches one marketplace's listing for a session
type SubmitFunc func(ctx context.Context, session *SmartListingSession, mkt string) error

// SuccessFunc receives the marketplaces that were listed after a fully
// successful dispatch, so callers can refresh their baseline
type SuccessFunc func(marketplaces []string)

// ListNowResult reports one dispatch attempt
type ListNowResult struct {
	Listed []string           `json:"listed"`
	Failed []MarketplaceError `json:"failed"`
}

// SmartListingController sequences validate -> fix -> list. It owns no
// business rules beyond sequencing; validation lives in the
// PreflightValidator and dispatch in the submit handler.
type SmartListingController struct {
	validator *PreflightValidator
	submit    SubmitFunc
	onSuccess SuccessFunc
	logger    *zap.Logger
}

// NewSmartListingController creates a controller
func NewSmartListingController(validator *PreflightValidator, submit SubmitFunc, onSuccess SuccessFunc) *SmartListingController {
	return &SmartListingController{
		validator: validator,
		submit:    submit,
		onSuccess: onSuccess,
		logger:    util.GetLogger(),
	}
}

// OpenModal opens the listing flow. A cheap gate checks title, condition and
// price before the expensive validator runs; a gate failure leaves the
// session idle and closed.
func (c *SmartListingController) OpenModal(ctx context.Context, s *SmartListingSession) error {
	if err := gate(s.GeneralForm); err != nil {
		c.logger.Info("Listing flow gate failed",
			zap.String("item_id", s.InventoryItemID),
			zap.String("reason", err.Error()))
		return err
	}

	s.ModalOpen = true
	return c.HandleStartListing(ctx, s)
}

// gate is the fail-fast check run before any validation
func gate(form map[string]string) error {
	if strings.TrimSpace(form["title"]) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(form["condition"]) == "" {
		return fmt.Errorf("condition is required")
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(form["price"]), 64)
	if err != nil || price <= 0 {
		return fmt.Errorf("a valid positive price is required")
	}
	return nil
}

// HandleStartListing runs a validation pass and branches on its outcome:
// no issues moves the session to ready, any issue to fixes
func (c *SmartListingController) HandleStartListing(ctx context.Context, s *SmartListingSession) error {
	if err := s.transitionTo(StateValidating); err != nil {
		return err
	}
	return c.runValidation(ctx, s)
}

// runValidation executes the validator and publishes the result into the
// session. Auto-applied fixes patch the session directly through
// ApplyFixOnly, which never re-validates.
func (c *SmartListingController) runValidation(ctx context.Context, s *SmartListingSession) error {
	in := PreflightInput{
		Marketplaces:       s.SelectedMarketplaces,
		GeneralForm:        s.GeneralForm,
		MarketplaceForms:   s.MarketplaceForms,
		Defaults:           s.Defaults,
		FulfillmentProfile: s.FulfillmentProfile,
		AutoFill:           s.AutoFillMode == AutoFillAuto,
	}

	result, err := c.validator.Validate(ctx, in, func(issue ValidationIssue, value FieldValue) {
		c.ApplyFixOnly(s, issue, value)
	})
	if err != nil {
		return fmt.Errorf("preflight validation failed: %w", err)
	}

	s.PreflightResult = result

	if len(result.FixesNeeded) == 0 {
		return s.transitionTo(StateReady)
	}
	return s.transitionTo(StateFixes)
}

// ToggleMarketplace flips a marketplace in or out of the selection. Pure
// session mutation, no re-validation.
func (c *SmartListingController) ToggleMarketplace(s *SmartListingSession, mkt string) {
	for i, selected := range s.SelectedMarketplaces {
		if selected == mkt {
			s.SelectedMarketplaces = append(s.SelectedMarketplaces[:i], s.SelectedMarketplaces[i+1:]...)
			return
		}
	}
	s.SelectedMarketplaces = append(s.SelectedMarketplaces, mkt)
}

// ToggleAutoFillMode flips between auto and manual fix application
func (c *SmartListingController) ToggleAutoFillMode(s *SmartListingSession) {
	if s.AutoFillMode == AutoFillAuto {
		s.AutoFillMode = AutoFillManual
	} else {
		s.AutoFillMode = AutoFillAuto
	}
}

// ApplyFixOnly patches the issue's target form field and nothing else.
// Re-validation is the caller's responsibility; running it here would
// recurse into the validator from its own apply-only callback.
func (c *SmartListingController) ApplyFixOnly(s *SmartListingSession, issue ValidationIssue, value FieldValue) {
	var form map[string]string
	if issue.PatchTarget == PatchTargetMarketplace {
		if s.MarketplaceForms[issue.Marketplace] == nil {
			s.MarketplaceForms[issue.Marketplace] = map[string]string{}
		}
		form = s.MarketplaceForms[issue.Marketplace]
	} else {
		form = s.GeneralForm
	}

	form[issue.Field] = value.Label
	if marketplace.CategoryLike(issue.Field) && value.ID != "" {
		form[issue.Field+"_id"] = value.ID
	}
}

// HandleApplyFix is the user-triggered single-fix path: patch the field,
// then re-run validation once the session mutation is committed
func (c *SmartListingController) HandleApplyFix(ctx context.Context, s *SmartListingSession, issue ValidationIssue, value FieldValue) error {
	c.ApplyFixOnly(s, issue, value)

	if err := s.transitionTo(StateValidating); err != nil {
		return err
	}
	return c.runValidation(ctx, s)
}

// HandleListNow dispatches the selected marketplaces sequentially. A fully
// successful run resets the session to idle and fires the success callback;
// any failure returns the session to its pre-dispatch state with selections
// and issues intact so the failed marketplaces can be retried. Marketplaces
// that succeeded in a partially failed call are not rolled back.
func (c *SmartListingController) HandleListNow(ctx context.Context, s *SmartListingSession, marketplaces []string) (*ListNowResult, error) {
	targets := marketplaces
	if len(targets) == 0 {
		if s.PreflightResult != nil {
			targets = s.PreflightResult.Ready
		} else {
			targets = s.SelectedMarketplaces
		}
	}

	prior := s.ModalState
	if err := s.transitionTo(StateListing); err != nil {
		return nil, err
	}

	result := &ListNowResult{
		Listed: []string{},
		Failed: []MarketplaceError{},
	}

	for _, mkt := range targets {
		if err := c.submit(ctx, s, mkt); err != nil {
			c.logger.Warn("Listing dispatch failed",
				zap.String("item_id", s.InventoryItemID),
				zap.String("marketplace", mkt),
				zap.Error(err))
			result.Failed = append(result.Failed, MarketplaceError{
				Marketplace: mkt,
				Error:       err.Error(),
			})
			continue
		}
		result.Listed = append(result.Listed, mkt)
	}

	if len(result.Failed) == 0 && len(result.Listed) > 0 {
		s.ModalOpen = false
		s.SelectedMarketplaces = []string{}
		s.PreflightResult = nil
		s.ModalState = StateIdle
		if c.onSuccess != nil {
			c.onSuccess(result.Listed)
		}
		return result, nil
	}

	s.ModalState = prior
	return result, nil
}

// CloseModal discards the flow's ephemeral state
func (c *SmartListingController) CloseModal(s *SmartListingSession) {
	s.ModalOpen = false
	s.SelectedMarketplaces = []string{}
	s.PreflightResult = nil
	s.ModalState = StateIdle
}
