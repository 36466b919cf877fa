package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanAuditLogModel_Create(t *testing.T) {
	db := setupTestDB(t, "audit_create", &PlanAuditLog{})

	entry := PlanAuditLog{
		EventType: "PLAN_CONFIRMED",
		PatientID: "p-1",
		PlanID:    "plan-1",
		Actor:     "doctor-7",
		Message:   "plan confirmed",
		Details:   []byte(`{"doctor_suggested_dosage":1.75}`),
	}
	require.NoError(t, db.Create(&entry).Error)
	assert.NotZero(t, entry.ID)

	var found PlanAuditLog
	require.NoError(t, db.First(&found, entry.ID).Error)
	assert.Equal(t, "PLAN_CONFIRMED", found.EventType)
	assert.Equal(t, "plan-1", found.PlanID)
	assert.Equal(t, "doctor-7", found.Actor)
	assert.JSONEq(t, `{"doctor_suggested_dosage":1.75}`, string(found.Details))
}
