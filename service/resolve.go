package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oceanvince/mangxia/events"
	"github.com/oceanvince/mangxia/model"
	"github.com/oceanvince/mangxia/util"
)

// Resolution is a clinician decision on a pending plan. A nil DoctorDose on
// confirm adopts the system suggestion; a nil Remarks keeps the stored remarks.
// DoctorDose is ignored on reject.
type Resolution struct {
	PlanID     uuid.UUID
	Status     model.PlanStatus
	DoctorDose *float64
	Remarks    *string
	Actor      string
}

// ResolvePlan confirms or rejects a pending plan. The status change is a
// conditional update on status = pending, so of two concurrent resolutions of
// the same plan exactly one succeeds and the other gets an invalid state error.
func (w *Workflow) ResolvePlan(ctx context.Context, r Resolution) (*model.MedicationPlan, error) {
	if r.PlanID == uuid.Nil {
		return nil, validationError("plan id is required")
	}
	event, err := model.EventForStatus(r.Status)
	if err != nil {
		return nil, newError(KindValidation, "status must be active or rejected", err)
	}
	if event == model.EventConfirm {
		if err := validateDose(r.DoctorDose, "doctor suggested dosage"); err != nil {
			return nil, err
		}
	}
	target, _ := model.PlanPending.Next(event)

	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	now := w.now()
	var plan model.MedicationPlan
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":      target,
			"pending_key": nil,
			"resolved_by": r.Actor,
			"updated_at":  now,
		}
		if event == model.EventConfirm {
			if r.DoctorDose != nil {
				updates["doctor_suggested_dosage"] = *r.DoctorDose
			} else {
				updates["doctor_suggested_dosage"] = gorm.Expr("system_suggested_dosage")
			}
		}
		if r.Remarks != nil {
			updates["remarks"] = *r.Remarks
		}

		res := tx.Model(&model.MedicationPlan{}).
			Where("id = ? AND status = ?", r.PlanID, model.PlanPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return explainUnresolvable(tx, r.PlanID, event)
		}

		if err := tx.Preload("Measurement").First(&plan, "id = ?", r.PlanID).Error; err != nil {
			return err
		}

		auditType := util.EventPlanConfirmed
		if event == model.EventReject {
			auditType = util.EventPlanRejected
		}
		details := map[string]interface{}{"status": string(plan.Status)}
		if plan.DoctorSuggestedDosage != nil {
			details["doctor_suggested_dosage"] = *plan.DoctorSuggestedDosage
		}
		return util.RecordAuditEvent(tx, util.AuditEvent{
			EventType: auditType,
			PatientID: plan.PatientID.String(),
			PlanID:    plan.ID.String(),
			Actor:     r.Actor,
			Message:   fmt.Sprintf("plan %s", plan.Status),
			Details:   details,
		})
	})
	if err != nil {
		return nil, classify(err, "failed to update medication plan")
	}

	eventType := events.PlanConfirmed
	if event == model.EventReject {
		eventType = events.PlanRejected
	}
	w.publish(events.Event{
		Type:       eventType,
		PlanID:     plan.ID.String(),
		PatientID:  plan.PatientID.String(),
		Status:     string(plan.Status),
		Dosage:     plan.DoctorSuggestedDosage,
		Actor:      r.Actor,
		OccurredAt: now,
	})
	return &plan, nil
}

// explainUnresolvable reports why the conditional update matched nothing.
func explainUnresolvable(tx *gorm.DB, planID uuid.UUID, event model.PlanEvent) error {
	var current model.MedicationPlan
	err := tx.Select("id", "status").First(&current, "id = ?", planID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindNotFound, "medication plan not found", err)
	}
	if err != nil {
		return err
	}
	_, terr := current.Status.Next(event)
	if terr == nil {
		// status was pending when re-read: the row changed under us
		terr = fmt.Errorf("%w: concurrent update", model.ErrInvalidTransition)
	}
	return newError(KindInvalidState, fmt.Sprintf("medication plan is already %s", current.Status), terr)
}
