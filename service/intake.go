package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oceanvince/mangxia/events"
	"github.com/oceanvince/mangxia/model"
	"github.com/oceanvince/mangxia/storage"
	"github.com/oceanvince/mangxia/util"
)

const maxMetricValue = 10

// ImageUpload is an optional lab-report picture sent with a measurement.
type ImageUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MeasurementInput is a new reading for a patient. A nil MeasuredAt means "now".
type MeasurementInput struct {
	PatientID  uuid.UUID
	MetricType string
	Value      float64
	Unit       string
	MeasuredAt *time.Time
	Image      *ImageUpload
}

// PlanCreationResult is what intake persisted: the measurement and the pending plan it triggered.
type PlanCreationResult struct {
	Measurement model.Measurement    `json:"metric"`
	Plan        model.MedicationPlan `json:"plan"`
}

func validateMetricValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > maxMetricValue {
		return validationError(fmt.Sprintf("metric value must be greater than 0 and at most %d", maxMetricValue))
	}
	return nil
}

func validateDose(d *float64, field string) error {
	if d == nil {
		return nil
	}
	if math.IsNaN(*d) || math.IsInf(*d, 0) || *d < 0 {
		return validationError(field + " must be a non-negative number")
	}
	return nil
}

func (w *Workflow) validateMeasurement(in *MeasurementInput, now time.Time) error {
	if in.PatientID == uuid.Nil {
		return validationError("patient id is required")
	}
	if err := validateMetricValue(in.Value); err != nil {
		return err
	}
	in.MetricType = strings.ToUpper(strings.TrimSpace(in.MetricType))
	if in.MetricType == "" {
		in.MetricType = model.MetricINR
	}
	if in.MeasuredAt != nil && in.MeasuredAt.After(now) {
		return validationError("measured at cannot be in the future")
	}
	if in.Image != nil {
		if err := storage.ValidateImage(in.Image.ContentType, in.Image.Size, w.imageMaxBytes); err != nil {
			return newError(KindValidation, err.Error(), err)
		}
	}
	return nil
}

// lastConfirmedDose returns the doctor dose of the patient's most recently created
// active plan, or nil when that plan carries no positive dose.
func lastConfirmedDose(tx *gorm.DB, patientID uuid.UUID) (*float64, error) {
	var plans []model.MedicationPlan
	err := tx.Where("patient_id = ? AND status = ?", patientID, model.PlanActive).
		Order("created_at DESC").
		Order("updated_at DESC").
		Limit(1).
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	latest := newestPlan(plans)
	if latest == nil || latest.DoctorSuggestedDosage == nil || *latest.DoctorSuggestedDosage <= 0 {
		return nil, nil
	}
	return latest.DoctorSuggestedDosage, nil
}

func ensurePatient(tx *gorm.DB, patientID uuid.UUID) error {
	var patient model.Patient
	err := tx.Select("id").First(&patient, "id = ?", patientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindNotFound, "patient not found", err)
	}
	return err
}

func hasPendingPlan(tx *gorm.DB, patientID uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&model.MedicationPlan{}).
		Where("patient_id = ? AND status = ?", patientID, model.PlanPending).
		Count(&n).Error
	return n > 0, err
}

// SubmitMeasurement records a reading and opens a pending plan with the policy's
// suggestion. It fails with a conflict while another plan of the patient is pending.
// The measurement, the plan and the audit entry are written in one transaction.
func (w *Workflow) SubmitMeasurement(ctx context.Context, in MeasurementInput) (*PlanCreationResult, error) {
	now := w.now()
	if err := w.validateMeasurement(&in, now); err != nil {
		return nil, err
	}
	measuredAt := now
	if in.MeasuredAt != nil {
		measuredAt = in.MeasuredAt.UTC()
	}

	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	release, err := w.locker.Lock(ctx, in.PatientID.String())
	defer release()
	if errors.Is(err, util.ErrPatientLocked) {
		return nil, newError(KindConflict, msgPendingExists, err)
	}
	if err != nil {
		w.log.Warn().Err(err).Str("patient_id", in.PatientID.String()).Msg("patient lock unavailable, relying on store constraint")
	}

	// Fail fast before uploading anything; the transaction repeats both checks.
	db := w.db.WithContext(ctx)
	if err := ensurePatient(db, in.PatientID); err != nil {
		return nil, classify(err, "failed to load patient")
	}
	if pending, err := hasPendingPlan(db, in.PatientID); err != nil {
		return nil, classify(err, "failed to check pending plans")
	} else if pending {
		return nil, newError(KindConflict, msgPendingExists, nil)
	}

	var imageRef string
	if in.Image != nil {
		if w.images == nil {
			return nil, validationError("image attachments are not enabled")
		}
		imageRef, err = w.images.Put(ctx, in.Image.Name, in.Image.ContentType, in.Image.Body, in.Image.Size)
		if err != nil {
			return nil, classify(err, "failed to store image")
		}
	}

	var result PlanCreationResult
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ensurePatient(tx, in.PatientID); err != nil {
			return err
		}
		pending, err := hasPendingPlan(tx, in.PatientID)
		if err != nil {
			return err
		}
		if pending {
			return newError(KindConflict, msgPendingExists, nil)
		}

		previous := w.policy.DefaultDose()
		if last, err := lastConfirmedDose(tx, in.PatientID); err != nil {
			return err
		} else if last != nil {
			previous = *last
		}
		suggested := w.policy.Suggest(previous, in.Value)

		measurement := model.Measurement{
			PatientID:  in.PatientID,
			MetricType: in.MetricType,
			Value:      in.Value,
			Unit:       in.Unit,
			MeasuredAt: measuredAt,
			ImageRef:   imageRef,
			CreatedAt:  now,
		}
		if err := tx.Create(&measurement).Error; err != nil {
			return err
		}

		plan := model.MedicationPlan{
			PatientID:             in.PatientID,
			MeasurementID:         &measurement.ID,
			PreviousDosage:        &previous,
			SystemSuggestedDosage: &suggested,
			Status:                model.PlanPending,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		plan.Measurement = &measurement

		if err := util.RecordAuditEvent(tx, util.AuditEvent{
			EventType: util.EventPlanCreated,
			PatientID: in.PatientID.String(),
			PlanID:    plan.ID.String(),
			Actor:     "intake",
			Message:   "pending plan created from new measurement",
			Details: map[string]interface{}{
				"metric_type":             measurement.MetricType,
				"metric_value":            measurement.Value,
				"previous_dosage":         previous,
				"system_suggested_dosage": suggested,
			},
		}); err != nil {
			return err
		}

		result = PlanCreationResult{Measurement: measurement, Plan: plan}
		return nil
	})
	if err != nil {
		w.discardImage(imageRef)
		return nil, classify(err, "failed to record measurement")
	}

	w.publish(events.Event{
		Type:       events.PlanCreated,
		PlanID:     result.Plan.ID.String(),
		PatientID:  in.PatientID.String(),
		Status:     string(result.Plan.Status),
		Dosage:     result.Plan.SystemSuggestedDosage,
		OccurredAt: now,
	})
	return &result, nil
}

// discardImage removes an image whose measurement never committed.
func (w *Workflow) discardImage(ref string) {
	if ref == "" || w.images == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := w.images.Delete(ctx, ref); err != nil {
		w.log.Warn().Err(err).Str("image_ref", ref).Msg("failed to delete orphaned image")
	}
}
