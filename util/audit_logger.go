package util

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/oceanvince/mangxia/model"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEventType names a lifecycle event in the medication workflow.
type AuditEventType string

const (
	EventPatientRegistered   AuditEventType = "PATIENT_REGISTERED"
	EventMeasurementRecorded AuditEventType = "MEASUREMENT_RECORDED"
	EventPlanCreated         AuditEventType = "PLAN_CREATED"
	EventPlanConfirmed       AuditEventType = "PLAN_CONFIRMED"
	EventPlanRejected        AuditEventType = "PLAN_REJECTED"
)

// AuditEvent is one entry of the plan audit trail.
type AuditEvent struct {
	EventType AuditEventType
	PatientID string
	PlanID    string
	Actor     string
	Message   string
	Details   map[string]interface{}
}

var auditLogger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "audit").Logger()

// SetAuditLogger replaces the logger audit events are echoed to.
func SetAuditLogger(l zerolog.Logger) {
	auditLogger = l.With().Str("component", "audit").Logger()
}

// sanitizeLogValue removes newlines and other characters that could break log parsing
func sanitizeLogValue(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")
	if len(value) > 200 {
		value = value[:200] + "..."
	}
	return value
}

// RecordAuditEvent writes the event through tx, so it commits or rolls back together
// with the change it describes, and echoes it to the audit logger.
func RecordAuditEvent(tx *gorm.DB, event AuditEvent) error {
	var details datatypes.JSON
	if len(event.Details) > 0 {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return err
		}
		details = datatypes.JSON(b)
	}

	entry := model.PlanAuditLog{
		EventType: string(event.EventType),
		PatientID: event.PatientID,
		PlanID:    event.PlanID,
		Actor:     sanitizeLogValue(event.Actor),
		Message:   sanitizeLogValue(event.Message),
		Details:   details,
	}
	if err := tx.Create(&entry).Error; err != nil {
		auditLogger.Error().Err(err).Str("event", string(event.EventType)).Msg("failed to persist audit event")
		return err
	}

	auditLogger.Info().
		Str("event", string(event.EventType)).
		Str("patient_id", event.PatientID).
		Str("plan_id", event.PlanID).
		Str("actor", entry.Actor).
		Int("details", len(event.Details)).
		Msg(entry.Message)
	return nil
}
