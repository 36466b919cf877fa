package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultMedication is the drug every plan doses.
const DefaultMedication = "warfarin"

// PlanStatus is the lifecycle state of a MedicationPlan.
type PlanStatus string

const (
	// PlanPending awaits a clinician decision.
	PlanPending PlanStatus = "pending"
	// PlanActive is confirmed; its doctor dose is in effect.
	PlanActive PlanStatus = "active"
	// PlanRejected was turned down; its dose is never adopted.
	PlanRejected PlanStatus = "rejected"
)

// PlanEvent is a clinician decision applied to a plan.
type PlanEvent string

const (
	EventConfirm PlanEvent = "confirm"
	EventReject  PlanEvent = "reject"
)

// ErrInvalidTransition is returned for any (status, event) pair the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid plan status transition")

// Valid reports whether s is one of the three plan states.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanPending, PlanActive, PlanRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s PlanStatus) Terminal() bool {
	return s == PlanActive || s == PlanRejected
}

// Next returns the state reached by applying e to s. Only pending plans move:
// pending+confirm -> active, pending+reject -> rejected.
func (s PlanStatus) Next(e PlanEvent) (PlanStatus, error) {
	if s == PlanPending {
		switch e {
		case EventConfirm:
			return PlanActive, nil
		case EventReject:
			return PlanRejected, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s plan", ErrInvalidTransition, e, s)
}

// EventForStatus maps a requested target status to the decision that reaches it.
func EventForStatus(target PlanStatus) (PlanEvent, error) {
	switch target {
	case PlanActive:
		return EventConfirm, nil
	case PlanRejected:
		return EventReject, nil
	}
	return "", fmt.Errorf("%w: cannot resolve a plan to %q", ErrInvalidTransition, target)
}

// MedicationPlan is one dosing cycle for a patient.
//
// PendingKey holds the patient id while the plan is pending and NULL once it is
// resolved; its unique index keeps at most one pending plan per patient at the
// storage layer.
// @Description Medication plan
type MedicationPlan struct {
	ID                    uuid.UUID  `json:"plan_id" gorm:"type:varchar(36);primaryKey"`
	PatientID             uuid.UUID  `json:"patient_id" gorm:"type:varchar(36);not null;index:idx_plan_patient_created,priority:1"`
	MeasurementID         *uuid.UUID `json:"metric_id" gorm:"column:metric_id;type:varchar(36);index"`
	MedicationName        string     `json:"medication_name" gorm:"type:varchar(64);not null" example:"warfarin"`
	PreviousDosage        *float64   `json:"previous_dosage" example:"2"`
	SystemSuggestedDosage *float64   `json:"system_suggested_dosage" example:"1.75"`
	DoctorSuggestedDosage *float64   `json:"doctor_suggested_dosage" example:"1.75"`
	Remarks               string     `json:"remarks" gorm:"type:text"`
	Status                PlanStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	PendingKey            *string    `json:"-" gorm:"type:varchar(36);uniqueIndex:uq_plan_pending_patient"`
	ResolvedBy            string     `json:"resolved_by,omitempty" gorm:"type:varchar(64)"`
	CreatedAt             time.Time  `json:"created_at" gorm:"index:idx_plan_patient_created,priority:2"`
	UpdatedAt             time.Time  `json:"updated_at"`

	Measurement *Measurement `json:"metric,omitempty" gorm:"foreignKey:MeasurementID"`
}

func (p *MedicationPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.MedicationName == "" {
		p.MedicationName = DefaultMedication
	}
	p.PendingKey = nil
	if p.Status == PlanPending {
		key := p.PatientID.String()
		p.PendingKey = &key
	}
	return nil
}

// EffectiveDose is the dose this plan contributes to "what the patient takes now":
// the confirmed dose for an active plan, the carried-over dose for a pending one.
func (p *MedicationPlan) EffectiveDose() *float64 {
	switch p.Status {
	case PlanActive:
		return p.DoctorSuggestedDosage
	case PlanPending:
		return p.PreviousDosage
	}
	return nil
}

// Models lists every table the service migrates.
var Models = []interface{}{
	&Doctor{},
	&Patient{},
	&Account{},
	&Measurement{},
	&MedicationPlan{},
	&PlanAuditLog{},
}
