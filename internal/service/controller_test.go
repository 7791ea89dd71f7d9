package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeGeneralForm() map[string]string {
	return map[string]string{
		"title":     "Vintage denim jacket",
		"condition": "good",
		"price":     "45.00",
		"category":  "jackets",
	}
}

func newTestController(submit SubmitFunc, onSuccess SuccessFunc) *SmartListingController {
	return NewSmartListingController(NewPreflightValidator(nil, 0), submit, onSuccess)
}

func TestOpenModalGateFailureLeavesSessionIdle(t *testing.T) {
	tests := []struct {
		name string
		form map[string]string
	}{
		{"missing title", map[string]string{"condition": "good", "price": "10"}},
		{"missing condition", map[string]string{"title": "Jacket", "price": "10"}},
		{"missing price", map[string]string{"title": "Jacket", "condition": "good"}},
		{"zero price", map[string]string{"title": "Jacket", "condition": "good", "price": "0"}},
		{"garbage price", map[string]string{"title": "Jacket", "condition": "good", "price": "abc"}},
	}

	ctrl := newTestController(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession("item-1", tt.form)
			err := ctrl.OpenModal(context.Background(), session)
			require.Error(t, err)
			assert.False(t, session.ModalOpen)
			assert.Equal(t, StateIdle, session.ModalState)
			assert.Nil(t, session.PreflightResult)
		})
	}
}

func TestOpenModalValidationBranchesToReady(t *testing.T) {
	ctrl := newTestController(nil, nil)
	session := NewSession("item-1", completeGeneralForm())
	session.SelectedMarketplaces = []string{"facebook"}

	err := ctrl.OpenModal(context.Background(), session)
	require.NoError(t, err)

	assert.True(t, session.ModalOpen)
	assert.Equal(t, StateReady, session.ModalState)
	require.NotNil(t, session.PreflightResult)
	assert.Equal(t, []string{"facebook"}, session.PreflightResult.Ready)
	assert.Empty(t, session.PreflightResult.FixesNeeded)
}

func TestOpenModalValidationBranchesToFixes(t *testing.T) {
	ctrl := newTestController(nil, nil)
	session := NewSession("item-1", completeGeneralForm())
	// ebay additionally requires a shipping profile, which nothing supplies.
	session.SelectedMarketplaces = []string{"ebay", "facebook"}

	err := ctrl.OpenModal(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, StateFixes, session.ModalState)
	require.NotNil(t, session.PreflightResult)
	assert.Equal(t, []string{"facebook"}, session.PreflightResult.Ready)
	require.Len(t, session.PreflightResult.FixesNeeded, 1)
	issue := session.PreflightResult.FixesNeeded[0]
	assert.Equal(t, "ebay", issue.Marketplace)
	assert.Equal(t, "shipping_profile", issue.Field)
	assert.Equal(t, PatchTargetMarketplace, issue.PatchTarget)
}

func TestHandleApplyFixPatchesThenRevalidates(t *testing.T) {
	ctrl := newTestController(nil, nil)
	session := NewSession("item-1", completeGeneralForm())
	session.SelectedMarketplaces = []string{"ebay"}

	require.NoError(t, ctrl.OpenModal(context.Background(), session))
	require.Equal(t, StateFixes, session.ModalState)
	issue := session.PreflightResult.FixesNeeded[0]

	err := ctrl.HandleApplyFix(context.Background(), session, issue, FieldValue{Label: "USPS Ground"})
	require.NoError(t, err)

	assert.Equal(t, "USPS Ground", session.MarketplaceForms["ebay"]["shipping_profile"])
	assert.Equal(t, StateReady, session.ModalState)
	assert.Equal(t, []string{"ebay"}, session.PreflightResult.Ready)
}

func TestApplyFixOnlyStoresCategoryID(t *testing.T) {
	ctrl := newTestController(nil, nil)
	session := NewSession("item-1", map[string]string{})

	issue := ValidationIssue{
		Marketplace: "ebay",
		Field:       "category",
		PatchTarget: PatchTargetGeneral,
	}
	ctrl.ApplyFixOnly(session, issue, FieldValue{Label: "Clothing > Jackets", ID: "57988"})

	assert.Equal(t, "Clothing > Jackets", session.GeneralForm["category"])
	assert.Equal(t, "57988", session.GeneralForm["category_id"])
}

func TestToggleMarketplace(t *testing.T) {
	ctrl := newTestController(nil, nil)
	session := NewSession("item-1", nil)

	ctrl.ToggleMarketplace(session, "ebay")
	ctrl.ToggleMarketplace(session, "mercari")
	assert.Equal(t, []string{"ebay", "mercari"}, session.SelectedMarketplaces)

	ctrl.ToggleMarketplace(session, "ebay")
	assert.Equal(t, []string{"mercari"}, session.SelectedMarketplaces)
}

func TestToggleAutoFillMode(t *testing.T) {
	ctrl := newTestController(nil, nil)
	session := NewSession("item-1", nil)

	assert.Equal(t, AutoFillAuto, session.AutoFillMode)
	ctrl.ToggleAutoFillMode(session)
	assert.Equal(t, AutoFillManual, session.AutoFillMode)
	ctrl.ToggleAutoFillMode(session)
	assert.Equal(t, AutoFillAuto, session.AutoFillMode)
}

func TestHandleListNowFullSuccessResetsSession(t *testing.T) {
	var submitted []string
	var reported []string
	ctrl := newTestController(
		func(_ context.Context, _ *SmartListingSession, mkt string) error {
			submitted = append(submitted, mkt)
			return nil
		},
		func(marketplaces []string) {
			reported = marketplaces
		},
	)

	session := NewSession("item-1", completeGeneralForm())
	session.SelectedMarketplaces = []string{"facebook", "mercari"}
	session.MarketplaceForms["mercari"] = map[string]string{"shipping_profile": "Prepaid label"}
	require.NoError(t, ctrl.OpenModal(context.Background(), session))
	require.Equal(t, StateReady, session.ModalState)

	result, err := ctrl.HandleListNow(context.Background(), session, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"facebook", "mercari"}, result.Listed)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"facebook", "mercari"}, submitted)
	assert.Equal(t, []string{"facebook", "mercari"}, reported)

	// Full success discards the flow's ephemeral state.
	assert.Equal(t, StateIdle, session.ModalState)
	assert.False(t, session.ModalOpen)
	assert.Empty(t, session.SelectedMarketplaces)
	assert.Nil(t, session.PreflightResult)
}

func TestHandleListNowPartialFailureRetainsSession(t *testing.T) {
	successCalled := false
	ctrl := newTestController(
		func(_ context.Context, _ *SmartListingSession, mkt string) error {
			if mkt == "mercari" {
				return errors.New("mercari: internal server error")
			}
			return nil
		},
		func([]string) { successCalled = true },
	)

	session := NewSession("item-1", completeGeneralForm())
	session.SelectedMarketplaces = []string{"facebook", "mercari"}
	session.MarketplaceForms["mercari"] = map[string]string{"shipping_profile": "Prepaid label"}
	require.NoError(t, ctrl.OpenModal(context.Background(), session))
	require.Equal(t, StateReady, session.ModalState)
	priorResult := session.PreflightResult

	result, err := ctrl.HandleListNow(context.Background(), session, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"facebook"}, result.Listed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "mercari", result.Failed[0].Marketplace)

	// The session survives for a retry: state, selections and issues intact,
	// and the success callback never fires.
	assert.Equal(t, StateReady, session.ModalState)
	assert.True(t, session.ModalOpen)
	assert.Equal(t, []string{"facebook", "mercari"}, session.SelectedMarketplaces)
	assert.Same(t, priorResult, session.PreflightResult)
	assert.False(t, successCalled)
}

func TestHandleListNowRejectedFromIdle(t *testing.T) {
	ctrl := newTestController(nil, nil)
	session := NewSession("item-1", completeGeneralForm())

	_, err := ctrl.HandleListNow(context.Background(), session, []string{"ebay"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal state transition")
	assert.Equal(t, StateIdle, session.ModalState)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    ModalState
		to      ModalState
		allowed bool
	}{
		{StateIdle, StateValidating, true},
		{StateIdle, StateListing, false},
		{StateValidating, StateReady, true},
		{StateValidating, StateFixes, true},
		{StateValidating, StateIdle, false},
		{StateReady, StateListing, true},
		{StateFixes, StateListing, true},
		{StateListing, StateReady, true},
		{StateListing, StateFixes, true},
		{StateListing, StateValidating, false},
	}

	for _, tt := range tests {
		s := &SmartListingSession{ModalState: tt.from}
		err := s.transitionTo(tt.to)
		if tt.allowed {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
			assert.Equal(t, tt.to, s.ModalState)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
			assert.Equal(t, tt.from, s.ModalState)
		}
	}
}

func TestCloseModalDiscardsState(t *testing.T) {
	ctrl := newTestController(nil, nil)
	session := NewSession("item-1", completeGeneralForm())
	session.SelectedMarketplaces = []string{"facebook"}
	require.NoError(t, ctrl.OpenModal(context.Background(), session))

	ctrl.CloseModal(session)

	assert.False(t, session.ModalOpen)
	assert.Equal(t, StateIdle, session.ModalState)
	assert.Empty(t, session.SelectedMarketplaces)
	assert.Nil(t, session.PreflightResult)
}
