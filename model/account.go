package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a login identity (mini-app or admin). ProfileID links it to at most
// one Patient; binding and unbinding are handled outside this service.
type Account struct {
	ID          uuid.UUID  `json:"account_id" gorm:"type:varchar(36);primaryKey"`
	AccountType string     `json:"account_type" gorm:"type:varchar(16);not null;default:patient"`
	WechatID    string     `json:"wechat_id" gorm:"type:varchar(64);uniqueIndex"`
	ProfileID   *uuid.UUID `json:"profile_id" gorm:"type:varchar(36);uniqueIndex"`
	Status      string     `json:"status" gorm:"type:varchar(16);default:active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
