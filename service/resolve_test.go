package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanvince/mangxia/events"
	"github.com/oceanvince/mangxia/model"
	"github.com/oceanvince/mangxia/util"
)

func TestResolvePlan_ConfirmAdoptsSuggestion(t *testing.T) {
	f := newFixture(t)
	patient := f.registerWithDose(t, "Zhang San", 2.0, 2.0)
	pending := f.submitINR(t, patient.ID, 3.0).Plan

	plan, err := f.w.ResolvePlan(context.Background(), Resolution{
		PlanID: pending.ID,
		Status: model.PlanActive,
		Actor:  "doctor-1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PlanActive, plan.Status)
	require.NotNil(t, plan.DoctorSuggestedDosage)
	assert.Equal(t, 1.75, *plan.DoctorSuggestedDosage)
	assert.Equal(t, *plan.SystemSuggestedDosage, *plan.DoctorSuggestedDosage)
	assert.Nil(t, plan.PendingKey)
	assert.Equal(t, "doctor-1", plan.ResolvedBy)
	assert.True(t, plan.UpdatedAt.After(plan.CreatedAt))
	require.NotNil(t, plan.Measurement)
	assert.Equal(t, 3.0, plan.Measurement.Value)

	status, err := f.w.GetCurrentStatus(context.Background(), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanActive, status.Status)
	assert.Equal(t, plan.ID, status.PlanID)
	assert.Equal(t, 1.75, *status.CurrentDose)

	assert.Equal(t, int64(1), f.countRows(t, &model.PlanAuditLog{}, "event_type = ? AND actor = ?", string(util.EventPlanConfirmed), "doctor-1"))
	assert.Contains(t, f.pub.Types(), events.PlanConfirmed)

	// the confirmed dose feeds the next suggestion
	next := f.submitINR(t, patient.ID, 1.0).Plan
	assert.Equal(t, 1.75, *next.PreviousDosage)
	assert.Equal(t, 2.0, *next.SystemSuggestedDosage)
}

func TestResolvePlan_ConfirmWithOverride(t *testing.T) {
	f := newFixture(t)
	patient := f.seedPatient(t, "Li Si")
	pending := f.submitINR(t, patient.ID, 2.0).Plan

	plan, err := f.w.ResolvePlan(context.Background(), Resolution{
		PlanID:     pending.ID,
		Status:     model.PlanActive,
		DoctorDose: ptr(2.5),
		Remarks:    ptr("hold vitamin K rich food"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2.5, *plan.DoctorSuggestedDosage)
	assert.Equal(t, 0.75, *plan.SystemSuggestedDosage)
	assert.Equal(t, "hold vitamin K rich food", plan.Remarks)
}

func TestResolvePlan_RejectLeavesPreviousDoseInEffect(t *testing.T) {
	f := newFixture(t)
	patient := f.registerWithDose(t, "Wang Wu", 2.0, 2.0)
	pending := f.submitINR(t, patient.ID, 1.6).Plan

	plan, err := f.w.ResolvePlan(context.Background(), Resolution{
		PlanID:     pending.ID,
		Status:     model.PlanRejected,
		DoctorDose: ptr(9.0),
	})
	require.NoError(t, err)
	assert.Equal(t, model.PlanRejected, plan.Status)
	assert.Nil(t, plan.DoctorSuggestedDosage)
	assert.Equal(t, 2.0, *plan.SystemSuggestedDosage)

	status, err := f.w.GetCurrentStatus(context.Background(), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanActive, status.Status)
	assert.Equal(t, 2.0, *status.CurrentDose)
	assert.Contains(t, f.pub.Types(), events.PlanRejected)

	// a new reading is accepted once the pending plan is closed
	f.submitINR(t, patient.ID, 1.7)
}

func TestResolvePlan_KeepsRemarksWhenOmitted(t *testing.T) {
	f := newFixture(t)
	patient := f.seedPatient(t, "Zhao Liu")
	pending := f.submitINR(t, patient.ID, 2.0).Plan
	require.NoError(t, f.db.Model(&model.MedicationPlan{}).Where("id = ?", pending.ID).Update("remarks", "call patient").Error)

	plan, err := f.w.ResolvePlan(context.Background(), Resolution{PlanID: pending.ID, Status: model.PlanRejected})
	require.NoError(t, err)
	assert.Equal(t, "call patient", plan.Remarks)
}

func TestResolvePlan_TerminalStatesDoNotMove(t *testing.T) {
	f := newFixture(t)
	patient := f.seedPatient(t, "Qian Qi")
	pending := f.submitINR(t, patient.ID, 2.0).Plan

	_, err := f.w.ResolvePlan(context.Background(), Resolution{PlanID: pending.ID, Status: model.PlanActive})
	require.NoError(t, err)

	for _, status := range []model.PlanStatus{model.PlanActive, model.PlanRejected} {
		_, err := f.w.ResolvePlan(context.Background(), Resolution{PlanID: pending.ID, Status: status, DoctorDose: ptr(3.0)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		assert.Contains(t, err.Error(), "already active")
	}

	var stored model.MedicationPlan
	require.NoError(t, f.db.First(&stored, "id = ?", pending.ID).Error)
	assert.Equal(t, model.PlanActive, stored.Status)
	assert.Equal(t, 0.75, *stored.DoctorSuggestedDosage)
}

func TestResolvePlan_Errors(t *testing.T) {
	f := newFixture(t)
	patient := f.seedPatient(t, "Sun Ba")
	pending := f.submitINR(t, patient.ID, 2.0).Plan

	tests := []struct {
		name string
		r    Resolution
		want error
	}{
		{"unknown plan", Resolution{PlanID: uuid.New(), Status: model.PlanActive}, ErrNotFound},
		{"missing plan id", Resolution{Status: model.PlanActive}, ErrValidation},
		{"pending is not a decision", Resolution{PlanID: pending.ID, Status: model.PlanPending}, ErrValidation},
		{"unknown status", Resolution{PlanID: pending.ID, Status: "paused"}, ErrValidation},
		{"negative dose", Resolution{PlanID: pending.ID, Status: model.PlanActive, DoctorDose: ptr(-0.5)}, ErrValidation},
		{"infinite dose", Resolution{PlanID: pending.ID, Status: model.PlanActive, DoctorDose: ptr(math.Inf(1))}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.w.ResolvePlan(context.Background(), tt.r)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var stored model.MedicationPlan
	require.NoError(t, f.db.First(&stored, "id = ?", pending.ID).Error)
	assert.Equal(t, model.PlanPending, stored.Status)
}

func TestResolvePlan_ConfirmZeroDose(t *testing.T) {
	f := newFixture(t)
	patient := f.seedPatient(t, "Zhou Jiu")
	pending := f.submitINR(t, patient.ID, 4.0).Plan

	plan, err := f.w.ResolvePlan(context.Background(), Resolution{PlanID: pending.ID, Status: model.PlanActive, DoctorDose: ptr(0.0)})
	require.NoError(t, err)
	require.NotNil(t, plan.DoctorSuggestedDosage)
	assert.Equal(t, 0.0, *plan.DoctorSuggestedDosage)
}

func TestResolvePlan_ConcurrentResolutionsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	patient := f.seedPatient(t, "Wu Shi")
	pending := f.submitINR(t, patient.ID, 2.0).Plan

	decisions := []model.PlanStatus{model.PlanActive, model.PlanRejected, model.PlanActive, model.PlanRejected}
	errs := make([]error, len(decisions))
	var wg sync.WaitGroup
	for i, d := range decisions {
		wg.Add(1)
		go func(i int, d model.PlanStatus) {
			defer wg.Done()
			_, errs[i] = f.w.ResolvePlan(context.Background(), Resolution{PlanID: pending.ID, Status: d})
		}(i, d)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(1), f.countRows(t, &model.PlanAuditLog{}, "plan_id = ? AND event_type IN ?", pending.ID.String(),
		[]string{string(util.EventPlanConfirmed), string(util.EventPlanRejected)}))
}
