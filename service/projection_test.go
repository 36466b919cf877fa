package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanvince/mangxia/model"
)

func TestGetCurrentStatus_NoPlans(t *testing.T) {
	f := newFixture(t)
	patient := f.seedPatient(t, "Zhang San")

	_, err := f.w.GetCurrentStatus(context.Background(), patient.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.w.GetCurrentStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCurrentStatus_PendingTakesPriority(t *testing.T) {
	f := newFixture(t)
	patient := f.registerWithDose(t, "Li Si", 2.0, 2.0)
	pending := f.submitINR(t, patient.ID, 3.0).Plan

	status, err := f.w.GetCurrentStatus(context.Background(), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, status.PlanID)
	assert.Equal(t, model.PlanPending, status.Status)
	assert.Equal(t, 2.0, *status.CurrentDose)
	assert.Equal(t, 1.75, *status.SuggestedDose)
	require.NotNil(t, status.Metric)
	assert.Equal(t, 3.0, status.Metric.Value)
	assert.Equal(t, "Li Si", status.PatientName)
}

func TestGetLatestPlans(t *testing.T) {
	f := newFixture(t)
	patient := f.registerWithDose(t, "Wang Wu", 2.0, 2.0)

	var confirmed []uuid.UUID
	for _, v := range []float64{3.0, 1.2, 1.6} {
		p := f.submitINR(t, patient.ID, v).Plan
		_, err := f.w.ResolvePlan(context.Background(), Resolution{PlanID: p.ID, Status: model.PlanActive})
		require.NoError(t, err)
		confirmed = append(confirmed, p.ID)
	}
	rejected := f.submitINR(t, patient.ID, 2.0).Plan
	_, err := f.w.ResolvePlan(context.Background(), Resolution{PlanID: rejected.ID, Status: model.PlanRejected})
	require.NoError(t, err)
	pending := f.submitINR(t, patient.ID, 2.0).Plan

	plans, err := f.w.GetLatestPlans(context.Background(), patient.ID, 0)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, pending.ID, plans[0].ID)
	assert.Equal(t, confirmed[2], plans[1].ID)
	assert.Equal(t, confirmed[1], plans[2].ID)
	for _, p := range plans {
		assert.NotEqual(t, model.PlanRejected, p.Status)
		assert.NotNil(t, p.Measurement)
	}

	plans, err = f.w.GetLatestPlans(context.Background(), patient.ID, 10)
	require.NoError(t, err)
	assert.Len(t, plans, 5)

	_, err = f.w.GetLatestPlans(context.Background(), uuid.New(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLatestPlans_EmptyHistory(t *testing.T) {
	f := newFixture(t)
	patient := f.seedPatient(t, "Zhao Liu")

	plans, err := f.w.GetLatestPlans(context.Background(), patient.ID, 3)
	require.NoError(t, err)
	assert.NotNil(t, plans)
	assert.Empty(t, plans)
}

func TestListPatients_Ordering(t *testing.T) {
	f := newFixture(t)
	c := f.registerWithDose(t, "C", 2.0, 1.5)
	b := f.registerWithDose(t, "B", 2.0, 2.5)
	a := f.registerWithDose(t, "A", 2.0, 2.0)
	f.submitINR(t, a.ID, 3.0)

	ctx := context.Background()
	e, err := f.w.RegisterPatient(ctx, Registration{Name: "E"})
	require.NoError(t, err)
	d, err := f.w.RegisterPatient(ctx, Registration{Name: "D"})
	require.NoError(t, err)

	list, err := f.w.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)

	var order []uuid.UUID
	for _, s := range list {
		order = append(order, s.PatientID)
	}
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID, d.Patient.ID, e.Patient.ID}, order)

	first := list[0]
	require.NotNil(t, first.LatestPlanStatus)
	assert.Equal(t, model.PlanPending, *first.LatestPlanStatus)
	assert.Equal(t, 3.0, *first.LatestINR)
	assert.Equal(t, 2.0, *first.CurrentDose)
	assert.Equal(t, 1.75, *first.SuggestedDose)

	assert.Equal(t, model.PlanActive, *list[1].LatestPlanStatus)
	assert.Equal(t, 2.5, *list[1].CurrentDose)

	assert.Nil(t, list[3].LatestPlanStatus)
	assert.Nil(t, list[3].CurrentDose)
	assert.Nil(t, list[3].LatestINR)
}

func TestGetPatientDetail(t *testing.T) {
	f := newFixture(t)
	patient := f.registerWithDose(t, "Zhou Jiu", 2.0, 2.0)
	p := f.submitINR(t, patient.ID, 1.9).Plan
	_, err := f.w.ResolvePlan(context.Background(), Resolution{PlanID: p.ID, Status: model.PlanRejected})
	require.NoError(t, err)

	detail, err := f.w.GetPatientDetail(context.Background(), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zhou Jiu", detail.Name)
	assert.Equal(t, "unassigned", detail.DoctorName)
	assert.Equal(t, "N/A", detail.DoctorHospital)
	assert.False(t, detail.AccountLinked)
	require.Len(t, detail.MedicationPlans, 2)
	assert.Equal(t, model.PlanRejected, detail.MedicationPlans[0].Status)
	assert.Equal(t, model.PlanActive, detail.MedicationPlans[1].Status)
	require.Len(t, detail.HealthMetrics, 2)
	assert.Equal(t, 1.9, detail.HealthMetrics[0].Value)

	_, err = f.w.GetPatientDetail(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPatientDetail_DoctorAndAccount(t *testing.T) {
	f := newFixture(t)
	doctor := model.Doctor{Name: "Dr. Lin", Hospital: "Ruijin Hospital"}
	require.NoError(t, f.db.Create(&doctor).Error)

	res, err := f.w.RegisterPatient(context.Background(), Registration{Name: "Wu Shi", DoctorID: &doctor.ID})
	require.NoError(t, err)
	pid := res.Patient.ID
	require.NoError(t, f.db.Create(&model.Account{WechatID: "wx-1", ProfileID: &pid}).Error)

	detail, err := f.w.GetPatientDetail(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Lin", detail.DoctorName)
	assert.Equal(t, "Ruijin Hospital", detail.DoctorHospital)
	assert.True(t, detail.AccountLinked)
	assert.Empty(t, detail.MedicationPlans)
}

func TestGetPatientProfileAndMeasurements(t *testing.T) {
	f := newFixture(t)
	patient := f.registerWithDose(t, "Feng Er", 2.0, 2.0)
	f.submitINR(t, patient.ID, 2.4)

	profile, err := f.w.GetPatientProfile(context.Background(), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "Feng Er", profile.Name)

	metrics, err := f.w.ListMeasurements(context.Background(), patient.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, 2.4, metrics[0].Value)
	assert.True(t, metrics[0].MeasuredAt.After(metrics[1].MeasuredAt))

	_, err = f.w.GetPatientProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.w.ListMeasurements(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlanBefore(t *testing.T) {
	f := newFixture(t)
	t0 := f.clock.Now()
	t1 := f.clock.Now()

	// measured: -1 none, 0 at t0, 1 at t1; created: 0 at t0, 1 at t1
	withMetric := func(status model.PlanStatus, measured, created int) model.MedicationPlan {
		p := model.MedicationPlan{Status: status, CreatedAt: t0}
		if created == 1 {
			p.CreatedAt = t1
		}
		if measured >= 0 {
			at := t0
			if measured == 1 {
				at = t1
			}
			p.Measurement = &model.Measurement{MeasuredAt: at}
		}
		return p
	}

	pending := withMetric(model.PlanPending, 0, 0)
	newer := withMetric(model.PlanActive, 1, 0)
	older := withMetric(model.PlanActive, 0, 1)
	bare := withMetric(model.PlanActive, -1, 1)

	assert.True(t, planBefore(&pending, &newer))
	assert.True(t, planBefore(&newer, &older))
	assert.True(t, planBefore(&older, &bare))
	assert.False(t, planBefore(&bare, &older))

	got := latestPlan([]model.MedicationPlan{bare, older, newer, pending})
	require.NotNil(t, got)
	assert.Equal(t, model.PlanPending, got.Status)
	assert.Nil(t, latestPlan(nil))
}

func TestCurrentDose_BackdatedReadingConfirmedLast(t *testing.T) {
	f := newFixture(t)
	patient := f.registerWithDose(t, "Qian Shi", 2.1, 2.0)

	// a reading taken two days ago is entered after the registration INR
	past := f.clock.Peek().Add(-48 * time.Hour)
	res, err := f.w.SubmitMeasurement(context.Background(), MeasurementInput{
		PatientID:  patient.ID,
		Value:      3.0,
		MeasuredAt: &past,
	})
	require.NoError(t, err)
	require.Equal(t, 1.75, *res.Plan.SystemSuggestedDosage)

	_, err = f.w.ResolvePlan(context.Background(), Resolution{PlanID: res.Plan.ID, Status: model.PlanActive})
	require.NoError(t, err)

	status, err := f.w.GetCurrentStatus(context.Background(), patient.ID)
	require.NoError(t, err)
	require.NotNil(t, status.CurrentDose)
	assert.Equal(t, 1.75, *status.CurrentDose)

	next := f.submitINR(t, patient.ID, 1.6).Plan
	assert.Equal(t, 1.75, *next.PreviousDosage)
	assert.Equal(t, 1.75, *next.SystemSuggestedDosage)
}

func TestNewestPlan(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	early := model.MedicationPlan{Remarks: "early", CreatedAt: t0, UpdatedAt: t1,
		Measurement: &model.Measurement{MeasuredAt: t1}}
	late := model.MedicationPlan{Remarks: "late", CreatedAt: t1, UpdatedAt: t1,
		Measurement: &model.Measurement{MeasuredAt: t0}}

	got := newestPlan([]model.MedicationPlan{early, late})
	require.NotNil(t, got)
	assert.Equal(t, "late", got.Remarks)
	assert.Nil(t, newestPlan(nil))

	// equal creation times fall back to the later update
	touched := model.MedicationPlan{Remarks: "touched", CreatedAt: t1, UpdatedAt: t1.Add(time.Second)}
	got = newestPlan([]model.MedicationPlan{late, touched})
	assert.Equal(t, "touched", got.Remarks)
}
