package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cancionero/internal/models"
	"cancionero/internal/repository"
)

const (
	MinReleaseYear  = 1900
	MaxTitleLength  = 200
	MaxArtistLength = 100
	MaxAlbumLength  = 100
)

// SongInput is the typed form of a create or edit submission. Year is kept
// as text so that malformed input can be reported back as typed.
type SongInput struct {
	Title    string
	Artist   string
	Album    string
	Year     string
	IsPublic bool

	IPAddress string // For Audit Log
}

type CreateResult struct {
	Song        *models.Song
	Favorite    *models.Favorite
	SongCreated bool
	// AlreadyFavorited is informational: the song was in the list already.
	AlreadyFavorited bool
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, songIDs ...uint)
}

type FavoriteService struct {
	store        *repository.Store
	catalog      cacheInvalidator
	auditService *AuditService
	logger       *slog.Logger
	locks        *keyedMutex
	now          func() time.Time
}

func NewFavoriteService(store *repository.Store, catalog cacheInvalidator, auditService *AuditService, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{
		store:        store,
		catalog:      catalog,
		auditService: auditService,
		logger:       logger,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", fmt.Errorf("%w: the song title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: the song title must be at most %d characters", ErrValidation, MaxTitleLength)
	}
	return title, nil
}

func validateOptional(raw, field string, max int) (string, error) {
	v := strings.TrimSpace(raw)
	if utf8.RuneCountInString(v) > max {
		return "", fmt.Errorf("%w: the %s must be at most %d characters", ErrValidation, field, max)
	}
	return v, nil
}

// parseYear returns nil for an empty year.
func (s *FavoriteService) parseYear(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: the release year must be a valid number", ErrValidation)
	}
	current := s.now().Year()
	if year < MinReleaseYear || year > current {
		return nil, fmt.Errorf("%w: the release year must be between %d and %d", ErrValidation, MinReleaseYear, current)
	}
	return &year, nil
}

func (s *FavoriteService) owner(ctx context.Context, session Session, ownerName string) (*models.User, error) {
	if err := RequireOwnership(session, ownerName); err != nil {
		return nil, err
	}
	return s.store.FindUser(ctx, ownerName)
}

// Create adds a song to the owner's favorites, reusing the global song row
// that matches the dedup key. A reused row gets the submitted release year
// and visibility, which every user holding it will see.
func (s *FavoriteService) Create(ctx context.Context, session Session, ownerName string, in SongInput) (*CreateResult, error) {
	if err := RequireOwnership(session, ownerName); err != nil {
		return nil, err
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	artist, err := validateOptional(in.Artist, "artist", MaxArtistLength)
	if err != nil {
		return nil, err
	}
	album, err := validateOptional(in.Album, "album", MaxAlbumLength)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindUser(ctx, ownerName)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	var result CreateResult
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		dup, err := tx.HasFavoriteTitle(ctx, user, title, 0)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: you already have a song called %q in your favorites", ErrDuplicate, title)
		}

		year, err := s.parseYear(in.Year)
		if err != nil {
			return err
		}

		song, created, err := tx.GetOrCreateSong(ctx, title, artist, album, repository.SongDefaults{
			ReleaseYear: year,
			IsPublic:    in.IsPublic,
		})
		if err != nil {
			return err
		}
		if !created {
			if err := tx.SetSongDetails(ctx, song, year, in.IsPublic); err != nil {
				return err
			}
		}
		result.Song = song
		result.SongCreated = created

		fav, err := tx.AddFavorite(ctx, user, song)
		if errors.Is(err, repository.ErrAlreadyFavorited) {
			result.AlreadyFavorited = true
			return nil
		}
		if err != nil {
			return err
		}
		result.Favorite = fav
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.catalog.Invalidate(ctx, result.Song.ID)

	if !result.AlreadyFavorited {
		s.auditService.LogAction(&user.ID, "ADD_FAVORITE", result.Favorite.RelationKey, map[string]interface{}{
			"song_id":      result.Song.ID,
			"title":        result.Song.Title,
			"song_created": result.SongCreated,
		}, in.IPAddress)
	}

	return &result, nil
}

// Edit rewrites the shared song row reached through the owner's favorite.
func (s *FavoriteService) Edit(ctx context.Context, session Session, ownerName string, songID uint, in SongInput) (*models.Song, error) {
	user, err := s.owner(ctx, session, ownerName)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	var song *models.Song
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		fav, err := tx.FindFavorite(ctx, user, songID)
		if err != nil {
			return err
		}

		title, err := validateTitle(in.Title)
		if err != nil {
			return err
		}
		artist, err := validateOptional(in.Artist, "artist", MaxArtistLength)
		if err != nil {
			return err
		}
		album, err := validateOptional(in.Album, "album", MaxAlbumLength)
		if err != nil {
			return err
		}

		dup, err := tx.HasFavoriteTitle(ctx, user, title, songID)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: you already have a song called %q in your favorites", ErrDuplicate, title)
		}

		year, err := s.parseYear(in.Year)
		if err != nil {
			return err
		}

		song = fav.Song
		song.Title = title
		song.Artist = artist
		song.Album = album
		song.ReleaseYear = year
		song.IsPublic = in.IsPublic
		if err := tx.UpdateSong(ctx, song); err != nil {
			if errors.Is(err, repository.ErrDuplicateSong) {
				return fmt.Errorf("%w: %v", ErrDuplicate, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.catalog.Invalidate(ctx, song.ID)
	s.auditService.LogAction(&user.ID, "EDIT_SONG", strconv.FormatUint(uint64(song.ID), 10), map[string]interface{}{
		"title": song.Title,
	}, in.IPAddress)

	return song, nil
}

// Remove drops the owner's favorite and returns the song, which is kept.
func (s *FavoriteService) Remove(ctx context.Context, session Session, ownerName string, songID uint, ip string) (*models.Song, error) {
	user, err := s.owner(ctx, session, ownerName)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	fav, err := s.store.FindFavorite(ctx, user, songID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveFavorite(ctx, user, fav.Song); err != nil {
		return nil, err
	}

	s.auditService.LogAction(&user.ID, "REMOVE_FAVORITE", fav.RelationKey, map[string]interface{}{
		"song_id": fav.SongID,
	}, ip)

	return fav.Song, nil
}

func (s *FavoriteService) List(ctx context.Context, session Session, ownerName string) ([]repository.FavoriteEntry, error) {
	user, err := s.owner(ctx, session, ownerName)
	if err != nil {
		return nil, err
	}
	return s.store.ListFavorites(ctx, user)
}

// View returns one of the owner's songs, used to fill the edit form.
func (s *FavoriteService) View(ctx context.Context, session Session, ownerName string, songID uint) (*models.Song, error) {
	user, err := s.owner(ctx, session, ownerName)
	if err != nil {
		return nil, err
	}
	fav, err := s.store.FindFavorite(ctx, user, songID)
	if err != nil {
		return nil, err
	}
	return fav.Song, nil
}
