package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oceanvince/mangxia/events"
	"github.com/oceanvince/mangxia/model"
	"github.com/oceanvince/mangxia/util"
)

// Registration is a new patient record with an optional initial INR and prescribed dose.
type Registration struct {
	Name          string
	Gender        string
	Phone         string
	DateOfBirth   *time.Time
	SurgeryType   string
	OperationDate *time.Time
	DischargeDate *time.Time
	DoctorID      *uuid.UUID
	MetricValue   *float64
	DoctorDose    *float64
	Remarks       string
}

// RegistrationResult holds what registration created. Measurement and Plan are nil
// when no initial INR or dose was given.
type RegistrationResult struct {
	Patient     model.Patient         `json:"patient"`
	Measurement *model.Measurement    `json:"metric,omitempty"`
	Plan        *model.MedicationPlan `json:"plan,omitempty"`
}

func validateRegistration(r *Registration) error {
	r.Name = util.NormalizeName(r.Name)
	if r.Name == "" {
		return validationError("patient name is required")
	}
	r.Phone = strings.TrimSpace(r.Phone)
	r.Gender = strings.TrimSpace(r.Gender)
	r.SurgeryType = strings.TrimSpace(r.SurgeryType)
	if r.OperationDate != nil && r.DischargeDate != nil && r.DischargeDate.Before(*r.OperationDate) {
		return validationError("discharge date cannot be before operation date")
	}
	if r.MetricValue != nil {
		if err := validateMetricValue(*r.MetricValue); err != nil {
			return err
		}
	}
	return validateDose(r.DoctorDose, "doctor suggested dosage")
}

// RegisterPatient creates the patient, the initial INR measurement and an active
// plan carrying the prescribed dose, all in one transaction. The initial plan
// skips the pending state.
func (w *Workflow) RegisterPatient(ctx context.Context, r Registration) (*RegistrationResult, error) {
	if err := validateRegistration(&r); err != nil {
		return nil, err
	}

	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	now := w.now()
	var result RegistrationResult
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.DoctorID != nil {
			var doctor model.Doctor
			if err := tx.Select("id").First(&doctor, "id = ?", *r.DoctorID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return validationError("assigned doctor does not exist")
				}
				return err
			}
		}

		patient := model.Patient{
			Name:          r.Name,
			Phone:         r.Phone,
			Gender:        r.Gender,
			DateOfBirth:   r.DateOfBirth,
			SurgeryType:   r.SurgeryType,
			OperationDate: r.OperationDate,
			DischargeDate: r.DischargeDate,
			DoctorID:      r.DoctorID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(&patient).Error; err != nil {
			return err
		}
		result.Patient = patient

		if r.MetricValue != nil {
			m := model.Measurement{
				PatientID:  patient.ID,
				MetricType: model.MetricINR,
				Value:      *r.MetricValue,
				MeasuredAt: now,
				CreatedAt:  now,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			result.Measurement = &m
		}

		if r.DoctorDose != nil {
			dose := *r.DoctorDose
			plan := model.MedicationPlan{
				PatientID:             patient.ID,
				DoctorSuggestedDosage: &dose,
				Remarks:               r.Remarks,
				Status:                model.PlanActive,
				ResolvedBy:            "registration",
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			if result.Measurement != nil {
				plan.MeasurementID = &result.Measurement.ID
				plan.Measurement = result.Measurement
			}
			if err := tx.Create(&plan).Error; err != nil {
				return err
			}
			result.Plan = &plan
		}

		details := map[string]interface{}{"has_metric": result.Measurement != nil}
		planID := ""
		if result.Plan != nil {
			planID = result.Plan.ID.String()
			details["doctor_suggested_dosage"] = *result.Plan.DoctorSuggestedDosage
		}
		return util.RecordAuditEvent(tx, util.AuditEvent{
			EventType: util.EventPatientRegistered,
			PatientID: patient.ID.String(),
			PlanID:    planID,
			Actor:     "registration",
			Message:   "patient registered",
			Details:   details,
		})
	})
	if err != nil {
		return nil, classify(err, "failed to register patient")
	}

	if result.Plan != nil {
		w.publish(events.Event{
			Type:       events.PlanCreated,
			PlanID:     result.Plan.ID.String(),
			PatientID:  result.Patient.ID.String(),
			Status:     string(result.Plan.Status),
			Dosage:     result.Plan.DoctorSuggestedDosage,
			OccurredAt: now,
		})
	}
	return &result, nil
}
