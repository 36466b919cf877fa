package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Doctor is a clinician patients can be assigned to.
type Doctor struct {
	ID        uuid.UUID `json:"doctor_id" gorm:"type:varchar(36);primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Hospital  string    `json:"hospital" gorm:"type:varchar(200)"`
	CreatedAt time.Time `json:"created_at"`
}

func (d *Doctor) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
