package models

import (
	"time"
)

type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"unique;not null;size:100" json:"name"`
	PasswordHash   string    `gorm:"not null;size:255" json:"-"`
	ExternalID     string    `gorm:"unique;not null;size:36;<-:create" json:"external_id"`
	DateRegistered time.Time `gorm:"type:date" json:"date_registered"`

	Favorites []Favorite `gorm:"foreignKey:UserID" json:"favorites,omitempty"`
}

func (User) TableName() string {
	return "users"
}
