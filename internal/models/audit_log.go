package models

import (
	"time"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`           // Nullable for failed logins and deleted accounts
	Action    string    `gorm:"size:50;not null" json:"action"` // e.g., "LOGIN", "ADD_FAVORITE", "DELETE_ACCOUNT"
	EntityID  string    `gorm:"size:100" json:"entity_id"`      // User name, song id or relation key
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	Timestamp time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"timestamp"`
}

// All lists every model owned by the application, in migration order.
func All() []interface{} {
	return []interface{}{&User{}, &Song{}, &Favorite{}, &AuditLog{}}
}
