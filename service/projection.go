package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oceanvince/mangxia/model"
)

const (
	unassignedDoctor = "unassigned"
	unknownHospital  = "N/A"
)

// MetricSummary is the reading behind a plan.
type MetricSummary struct {
	Value      float64   `json:"value"`
	MeasuredAt time.Time `json:"measured_at"`
}

// CurrentStatus answers "what should the patient take now".
type CurrentStatus struct {
	PatientID     uuid.UUID        `json:"patient_id"`
	PatientName   string           `json:"patient_name"`
	Phone         string           `json:"phone"`
	PlanID        uuid.UUID        `json:"plan_id"`
	CurrentDose   *float64         `json:"current_dosage"`
	SuggestedDose *float64         `json:"system_suggested_dosage"`
	Metric        *MetricSummary   `json:"metric"`
	Status        model.PlanStatus `json:"status"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PatientSummary is one row of the patient list.
type PatientSummary struct {
	PatientID        uuid.UUID         `json:"patient_id"`
	PatientName      string            `json:"patient_name"`
	PhoneNumber      string            `json:"phone_number"`
	Gender           string            `json:"gender"`
	SurgeryType      string            `json:"operation_type"`
	OperationDate    *time.Time        `json:"operation_date"`
	DischargeDate    *time.Time        `json:"discharge_date"`
	LatestINR        *float64          `json:"latest_inr"`
	LatestINRDate    *time.Time        `json:"latest_inr_date"`
	SuggestedDose    *float64          `json:"suggested_dose"`
	CurrentDose      *float64          `json:"current_dose"`
	LatestPlanStatus *model.PlanStatus `json:"latest_plan_status"`
	LatestPlanID     *uuid.UUID        `json:"latest_plan_id"`

	createdAt time.Time
}

// PatientDetail is the full record shown to clinicians.
type PatientDetail struct {
	model.Patient
	DoctorName      string                 `json:"doctor_name"`
	DoctorHospital  string                 `json:"doctor_hospital"`
	AccountLinked   bool                   `json:"account_linked"`
	MedicationPlans []model.MedicationPlan `json:"medication_plans"`
	HealthMetrics   []model.Measurement    `json:"health_metrics"`
}

func measuredAt(p *model.MedicationPlan) *time.Time {
	if p.Measurement == nil {
		return nil
	}
	return &p.Measurement.MeasuredAt
}

// planBefore orders plans by relevance: pending first, then newest measurement
// (plans without one last), then newest creation.
func planBefore(a, b *model.MedicationPlan) bool {
	if (a.Status == model.PlanPending) != (b.Status == model.PlanPending) {
		return a.Status == model.PlanPending
	}
	ma, mb := measuredAt(a), measuredAt(b)
	switch {
	case ma != nil && mb == nil:
		return true
	case ma == nil && mb != nil:
		return false
	case ma != nil && mb != nil && !ma.Equal(*mb):
		return ma.After(*mb)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// latestPlan picks the most relevant plan, or nil for an empty slice.
func latestPlan(plans []model.MedicationPlan) *model.MedicationPlan {
	var best *model.MedicationPlan
	for i := range plans {
		if best == nil || planBefore(&plans[i], best) {
			best = &plans[i]
		}
	}
	return best
}

// newestPlan returns the plan created last, or nil for an empty slice.
func newestPlan(plans []model.MedicationPlan) *model.MedicationPlan {
	var best *model.MedicationPlan
	for i := range plans {
		p := &plans[i]
		if best == nil || p.CreatedAt.After(best.CreatedAt) ||
			(p.CreatedAt.Equal(best.CreatedAt) && p.UpdatedAt.After(best.UpdatedAt)) {
			best = p
		}
	}
	return best
}

// currentDose is the confirmed dose of the most recently created active plan,
// falling back to the dose carried by a pending plan when nothing was ever confirmed.
func currentDose(plans []model.MedicationPlan) *float64 {
	var active []model.MedicationPlan
	var pending *model.MedicationPlan
	for i := range plans {
		switch plans[i].Status {
		case model.PlanActive:
			active = append(active, plans[i])
		case model.PlanPending:
			pending = &plans[i]
		}
	}
	if latest := newestPlan(active); latest != nil && latest.DoctorSuggestedDosage != nil {
		return latest.DoctorSuggestedDosage
	}
	if pending != nil {
		return pending.PreviousDosage
	}
	return nil
}

func openPlans(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Measurement").
		Where("status IN ?", []model.PlanStatus{model.PlanActive, model.PlanPending})
}

func (w *Workflow) loadPatient(db *gorm.DB, patientID uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	if err := db.First(&patient, "id = ?", patientID).Error; err != nil {
		return nil, classify(err, "patient not found")
	}
	return &patient, nil
}

// GetCurrentStatus reduces the patient's open plans to the one that matters now.
// A pending plan wins over active ones.
func (w *Workflow) GetCurrentStatus(ctx context.Context, patientID uuid.UUID) (*CurrentStatus, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	db := w.db.WithContext(ctx)

	patient, err := w.loadPatient(db, patientID)
	if err != nil {
		return nil, err
	}

	var plans []model.MedicationPlan
	if err := openPlans(db).Where("patient_id = ?", patientID).Find(&plans).Error; err != nil {
		return nil, classify(err, "failed to load medication plans")
	}
	plan := latestPlan(plans)
	if plan == nil {
		return nil, newError(KindNotFound, "no medication plan found for patient", nil)
	}

	status := &CurrentStatus{
		PatientID:     patient.ID,
		PatientName:   patient.Name,
		Phone:         patient.Phone,
		PlanID:        plan.ID,
		CurrentDose:   currentDose(plans),
		SuggestedDose: plan.SystemSuggestedDosage,
		Status:        plan.Status,
		UpdatedAt:     plan.UpdatedAt,
	}
	if plan.Measurement != nil {
		status.Metric = &MetricSummary{Value: plan.Measurement.Value, MeasuredAt: plan.Measurement.MeasuredAt}
	}
	return status, nil
}

// GetLatestPlans returns up to limit active or pending plans, newest first.
// A non-positive limit means 3.
func (w *Workflow) GetLatestPlans(ctx context.Context, patientID uuid.UUID, limit int) ([]model.MedicationPlan, error) {
	if limit <= 0 {
		limit = defaultLatestLimit
	}
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	db := w.db.WithContext(ctx)

	if _, err := w.loadPatient(db, patientID); err != nil {
		return nil, err
	}

	plans := make([]model.MedicationPlan, 0, limit)
	err := openPlans(db).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&plans).Error
	if err != nil {
		return nil, classify(err, "failed to load medication plans")
	}
	return plans, nil
}

// ListPatients returns every patient with its most relevant open plan. Patients
// with a pending plan come first, then by latest measurement, then newest registration.
func (w *Workflow) ListPatients(ctx context.Context) ([]PatientSummary, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	db := w.db.WithContext(ctx)

	var patients []model.Patient
	if err := db.Find(&patients).Error; err != nil {
		return nil, classify(err, "failed to load patients")
	}
	var plans []model.MedicationPlan
	if err := openPlans(db).Find(&plans).Error; err != nil {
		return nil, classify(err, "failed to load medication plans")
	}

	byPatient := make(map[uuid.UUID][]model.MedicationPlan, len(patients))
	for _, p := range plans {
		byPatient[p.PatientID] = append(byPatient[p.PatientID], p)
	}

	summaries := make([]PatientSummary, 0, len(patients))
	latest := make(map[uuid.UUID]*model.MedicationPlan, len(patients))
	for _, patient := range patients {
		s := PatientSummary{
			PatientID:     patient.ID,
			PatientName:   patient.Name,
			PhoneNumber:   patient.Phone,
			Gender:        patient.Gender,
			SurgeryType:   patient.SurgeryType,
			OperationDate: patient.OperationDate,
			DischargeDate: patient.DischargeDate,
			createdAt:     patient.CreatedAt,
		}
		own := byPatient[patient.ID]
		if plan := latestPlan(own); plan != nil {
			latest[patient.ID] = plan
			status := plan.Status
			id := plan.ID
			s.LatestPlanStatus = &status
			s.LatestPlanID = &id
			s.SuggestedDose = plan.SystemSuggestedDosage
			s.CurrentDose = currentDose(own)
			if plan.Measurement != nil {
				v, at := plan.Measurement.Value, plan.Measurement.MeasuredAt
				s.LatestINR = &v
				s.LatestINRDate = &at
			}
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := latest[summaries[i].PatientID], latest[summaries[j].PatientID]
		aPending := a != nil && a.Status == model.PlanPending
		bPending := b != nil && b.Status == model.PlanPending
		if aPending != bPending {
			return aPending
		}
		ta, tb := summaries[i].LatestINRDate, summaries[j].LatestINRDate
		switch {
		case ta != nil && tb == nil:
			return true
		case ta == nil && tb != nil:
			return false
		case ta != nil && tb != nil && !ta.Equal(*tb):
			return ta.After(*tb)
		}
		return summaries[i].createdAt.After(summaries[j].createdAt)
	})
	return summaries, nil
}

// GetPatientDetail returns the patient with its doctor, account link, every plan
// (rejected ones included) and every measurement, newest first.
func (w *Workflow) GetPatientDetail(ctx context.Context, patientID uuid.UUID) (*PatientDetail, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	db := w.db.WithContext(ctx)

	var patient model.Patient
	if err := db.Preload("Doctor").First(&patient, "id = ?", patientID).Error; err != nil {
		return nil, classify(err, "patient not found")
	}

	detail := &PatientDetail{
		Patient:        patient,
		DoctorName:     unassignedDoctor,
		DoctorHospital: unknownHospital,
	}
	if patient.Doctor != nil {
		detail.DoctorName = patient.Doctor.Name
		if patient.Doctor.Hospital != "" {
			detail.DoctorHospital = patient.Doctor.Hospital
		}
	}

	var linked int64
	if err := db.Model(&model.Account{}).Where("profile_id = ?", patientID).Count(&linked).Error; err != nil {
		return nil, classify(err, "failed to load account link")
	}
	detail.AccountLinked = linked > 0

	if err := db.Preload("Measurement").
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&detail.MedicationPlans).Error; err != nil {
		return nil, classify(err, "failed to load medication plans")
	}
	if err := db.Where("patient_id = ?", patientID).
		Order("measured_at DESC").
		Find(&detail.HealthMetrics).Error; err != nil {
		return nil, classify(err, "failed to load measurements")
	}
	return detail, nil
}

// GetPatientProfile returns the demographic record only.
func (w *Workflow) GetPatientProfile(ctx context.Context, patientID uuid.UUID) (*model.Patient, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	return w.loadPatient(w.db.WithContext(ctx), patientID)
}

// ListMeasurements returns the patient's readings, newest first.
func (w *Workflow) ListMeasurements(ctx context.Context, patientID uuid.UUID) ([]model.Measurement, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	db := w.db.WithContext(ctx)

	if _, err := w.loadPatient(db, patientID); err != nil {
		return nil, err
	}
	measurements := []model.Measurement{}
	if err := db.Where("patient_id = ?", patientID).Order("measured_at DESC").Find(&measurements).Error; err != nil {
		return nil, classify(err, "failed to load measurements")
	}
	return measurements, nil
}
