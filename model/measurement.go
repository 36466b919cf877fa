package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MetricINR is the metric type that drives dosage suggestions.
const MetricINR = "INR"

// Measurement is a single health metric reading. It is immutable: a correction
// is recorded as a new measurement.
// @Description Health metric reading
type Measurement struct {
	ID         uuid.UUID `json:"metric_id" gorm:"type:varchar(36);primaryKey"`
	PatientID  uuid.UUID `json:"patient_id" gorm:"type:varchar(36);not null;index"`
	MetricType string    `json:"metric_type" gorm:"type:varchar(32);not null" example:"INR"`
	Value      float64   `json:"metric_value" gorm:"column:metric_value;not null" example:"2.1"`
	Unit       string    `json:"unit" gorm:"type:varchar(16)"`
	MeasuredAt time.Time `json:"measured_at" gorm:"not null;index"`
	ImageRef   string    `json:"image_ref,omitempty" gorm:"type:varchar(512)"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m *Measurement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
