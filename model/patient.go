package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient is the demographic and surgical record of a patient on anticoagulation.
// Patients are never deleted.
// @Description Patient information
type Patient struct {
	ID            uuid.UUID  `json:"patient_id" gorm:"type:varchar(36);primaryKey"`
	Name          string     `json:"patient_name" gorm:"type:varchar(100);not null" example:"Zhang San"`
	Phone         string     `json:"phone_number" gorm:"type:varchar(32);index" example:"13800000000"`
	Gender        string     `json:"gender" gorm:"type:varchar(16)" example:"male"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	SurgeryType   string     `json:"surgery_type" gorm:"column:operation_type;type:varchar(100)" example:"Mechanical valve replacement"`
	OperationDate *time.Time `json:"operation_date"`
	DischargeDate *time.Time `json:"discharge_date"`
	DoctorID      *uuid.UUID `json:"primary_doctor_id,omitempty" gorm:"column:primary_doctor_id;type:varchar(36);index"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Doctor *Doctor `json:"doctor,omitempty" gorm:"foreignKey:DoctorID"`
}

// BeforeCreate assigns a random identifier when none was set.
func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
