package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanAuditLog is a persisted lifecycle event for a patient's medication plans.
type PlanAuditLog struct {
	gorm.Model
	EventType string         `json:"event_type" gorm:"column:event_type;type:varchar(64);index"`
	PatientID string         `json:"patient_id" gorm:"column:patient_id;type:varchar(36);index"`
	PlanID    string         `json:"plan_id" gorm:"column:plan_id;type:varchar(36);index"`
	Actor     string         `json:"actor" gorm:"column:actor;type:varchar(64)"`
	Message   string         `json:"message" gorm:"column:message;type:text"`
	Details   datatypes.JSON `json:"details" gorm:"column:details;type:json"`
}
