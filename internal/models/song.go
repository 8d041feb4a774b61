package models

import (
	"time"
)

const DefaultSongTitle = "Untitled"

// Song is a global row shared by every user who favorites it. Artist and
// Album are empty when unknown so they can take part in the dedup index.
type Song struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null;default:'Untitled';uniqueIndex:idx_song_dedup" json:"title"`
	Artist      string    `gorm:"size:100;not null;default:'';uniqueIndex:idx_song_dedup" json:"artist"`
	Album       string    `gorm:"size:100;not null;default:'';uniqueIndex:idx_song_dedup" json:"album"`
	ReleaseYear *int      `json:"release_year"`
	IsPublic    bool      `gorm:"default:false;index" json:"is_public"`
	DateAdded   time.Time `gorm:"type:date" json:"date_added"`

	Favorites []Favorite `gorm:"foreignKey:SongID" json:"-"`
}

func (Song) TableName() string {
	return "songs"
}

// Today truncates t to the start of its day, used for the date-only columns.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
