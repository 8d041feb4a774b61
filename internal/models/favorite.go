package models

import (
	"cancionero/pkg/utils"

	"gorm.io/gorm"
)

// Favorite links one User to one Song. A user can hold a given song only once.
type Favorite struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index;uniqueIndex:idx_user_song" json:"user_id"`
	SongID      uint   `gorm:"not null;index;uniqueIndex:idx_user_song" json:"song_id"`
	RelationKey string `gorm:"unique;not null;size:100" json:"relation_key"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Song *Song `gorm:"foreignKey:SongID" json:"song,omitempty"`
}

func (Favorite) TableName() string {
	return "favorites"
}

// BeforeCreate assigns a relation key when the caller did not provide one.
func (f *Favorite) BeforeCreate(tx *gorm.DB) error {
	if f.RelationKey == "" {
		f.RelationKey = utils.NewRelationKey()
	}
	return nil
}
