package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cancionero/internal/models"
	"cancionero/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateName      = errors.New("user name already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyFavorited   = errors.New("song already in favorites")
	ErrDuplicateSong      = errors.New("a song with the same title, artist and album already exists")
)

// Store is the entity store for users, songs and favorites.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Transaction runs fn against a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, now: s.now})
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}

// Users

func (s *Store) CreateUser(ctx context.Context, name, password string) (*models.User, error) {
	if _, err := s.FindUser(ctx, name); err == nil {
		return nil, ErrDuplicateName
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Name:           name,
		PasswordHash:   hash,
		ExternalID:     utils.NewExternalID(),
		DateRegistered: models.Today(s.now()),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create user %q: %w", name, err)
	}
	return &user, nil
}

func (s *Store) FindUser(ctx context.Context, name string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate matches the name exactly; an unknown name and a wrong password
// are reported the same way.
func (s *Store) Authenticate(ctx context.Context, name, password string) (*models.User, error) {
	user, err := s.FindUser(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// DeleteUser removes the user and its favorites, then every song those
// favorites pointed at that no other user still holds. It returns the ids of
// the removed songs.
func (s *Store) DeleteUser(ctx context.Context, user *models.User) (removed []uint, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var songIDs []uint
		if err := tx.Model(&models.Favorite{}).Where("user_id = ?", user.ID).Pluck("song_id", &songIDs).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.User{}, user.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if len(songIDs) == 0 {
			return nil
		}

		if err := tx.Model(&models.Song{}).
			Where("id IN ?", songIDs).
			Where("NOT EXISTS (SELECT 1 FROM favorites WHERE favorites.song_id = songs.id)").
			Pluck("id", &removed).Error; err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		return tx.Where("id IN ?", removed).Delete(&models.Song{}).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Songs

// SongDefaults are applied only when GetOrCreateSong inserts a new row.
type SongDefaults struct {
	ReleaseYear *int
	IsPublic    bool
}

// GetOrCreateSong looks a song up by its dedup key. An existing row is
// returned unmodified. When two callers race on the same key, the loser of
// the insert reads back the winner's row.
func (s *Store) GetOrCreateSong(ctx context.Context, title, artist, album string, defaults SongDefaults) (*models.Song, bool, error) {
	db := s.db.WithContext(ctx)

	var song models.Song
	err := db.Where("title = ? AND artist = ? AND album = ?", title, artist, album).First(&song).Error
	if err == nil {
		return &song, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	song = models.Song{
		Title:       title,
		Artist:      artist,
		Album:       album,
		ReleaseYear: defaults.ReleaseYear,
		IsPublic:    defaults.IsPublic,
		DateAdded:   models.Today(s.now()),
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&song)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &song, true, nil
	}

	var existing models.Song
	if err := db.Where("title = ? AND artist = ? AND album = ?", title, artist, album).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (s *Store) FindSong(ctx context.Context, id uint) (*models.Song, error) {
	var song models.Song
	if err := s.db.WithContext(ctx).First(&song, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &song, nil
}

// FindPublicSong reports private and missing songs alike as ErrNotFound.
func (s *Store) FindPublicSong(ctx context.Context, id uint) (*models.Song, error) {
	var song models.Song
	if err := s.db.WithContext(ctx).Where("id = ? AND is_public = ?", id, true).First(&song).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &song, nil
}

// SetSongDetails overwrites release year and visibility, zero values included.
func (s *Store) SetSongDetails(ctx context.Context, song *models.Song, year *int, public bool) error {
	if err := s.db.WithContext(ctx).Model(song).
		Select("release_year", "is_public").
		Updates(models.Song{ReleaseYear: year, IsPublic: public}).Error; err != nil {
		return err
	}
	song.ReleaseYear = year
	song.IsPublic = public
	return nil
}

// UpdateSong writes the editable columns of song in place.
func (s *Store) UpdateSong(ctx context.Context, song *models.Song) error {
	err := s.db.WithContext(ctx).Model(song).
		Select("title", "artist", "album", "release_year", "is_public").
		Updates(song).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateSong
	}
	return err
}

func (s *Store) ListPublicSongs(ctx context.Context) ([]models.Song, error) {
	songs := make([]models.Song, 0)
	err := s.db.WithContext(ctx).Where("is_public = ?", true).Order("title asc").Order("id asc").Find(&songs).Error
	return songs, err
}

// Favorites

// FavoriteEntry is one row of a user's list, keyed by the relation key.
type FavoriteEntry struct {
	RelationKey string       `json:"relation_key"`
	Song        *models.Song `json:"song"`
}

func (s *Store) AddFavorite(ctx context.Context, user *models.User, song *models.Song) (*models.Favorite, error) {
	fav := models.Favorite{UserID: user.ID, SongID: song.ID}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrAlreadyFavorited
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyFavorited
	}
	fav.Song = song
	return &fav, nil
}

// RemoveFavorite deletes the relation only; the song stays.
func (s *Store) RemoveFavorite(ctx context.Context, user *models.User, song *models.Song) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND song_id = ?", user.ID, song.ID).Delete(&models.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindFavorite resolves songID through the user's own favorites.
func (s *Store) FindFavorite(ctx context.Context, user *models.User, songID uint) (*models.Favorite, error) {
	var fav models.Favorite
	err := s.db.WithContext(ctx).Preload("Song").
		Where("user_id = ? AND song_id = ?", user.ID, songID).
		First(&fav).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &fav, nil
}

// ListFavorites returns the user's favorites in insertion order.
func (s *Store) ListFavorites(ctx context.Context, user *models.User) ([]FavoriteEntry, error) {
	var favs []models.Favorite
	if err := s.db.WithContext(ctx).Preload("Song").
		Where("user_id = ?", user.ID).
		Order("id asc").
		Find(&favs).Error; err != nil {
		return nil, err
	}

	entries := make([]FavoriteEntry, 0, len(favs))
	for _, f := range favs {
		entries = append(entries, FavoriteEntry{RelationKey: f.RelationKey, Song: f.Song})
	}
	return entries, nil
}

// HasFavoriteTitle reports whether the user already holds a song with this
// exact title, ignoring exceptSongID (0 ignores nothing).
func (s *Store) HasFavoriteTitle(ctx context.Context, user *models.User, title string, exceptSongID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Favorite{}).
		Joins("JOIN songs ON songs.id = favorites.song_id").
		Where("favorites.user_id = ? AND songs.title = ? AND songs.id <> ?", user.ID, title, exceptSongID).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CountFavorites(ctx context.Context, user *models.User) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ?", user.ID).Count(&count).Error
	return count, err
}
