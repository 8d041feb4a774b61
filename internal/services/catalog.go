package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cancionero/internal/models"
	"cancionero/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	publicListKey  = "songs:public"
	publicCacheTTL = time.Minute
)

func publicSongKey(id uint) string {
	return fmt.Sprintf("song:public:%d", id)
}

// CatalogService serves public songs without authentication. Reads go
// through redis when a client is configured; any redis failure falls back
// to the database.
type CatalogService struct {
	store  *repository.Store
	rdb    *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewCatalogService(store *repository.Store, rdb *redis.Client, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:  store,
		rdb:    rdb,
		logger: logger,
		ttl:    publicCacheTTL,
	}
}

func (s *CatalogService) ListPublic(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	if s.cacheGet(ctx, publicListKey, &songs) {
		return songs, nil
	}

	songs, err := s.store.ListPublicSongs(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, publicListKey, songs)
	return songs, nil
}

// GetPublicDetail reports a private song exactly like a missing one.
func (s *CatalogService) GetPublicDetail(ctx context.Context, id uint) (*models.Song, error) {
	var song models.Song
	if s.cacheGet(ctx, publicSongKey(id), &song) {
		return &song, nil
	}

	found, err := s.store.FindPublicSong(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, publicSongKey(id), found)
	return found, nil
}

// Invalidate drops cached entries for the given songs and the public list.
func (s *CatalogService) Invalidate(ctx context.Context, songIDs ...uint) {
	if s.rdb == nil {
		return
	}
	keys := make([]string, 0, len(songIDs)+1)
	keys = append(keys, publicListKey)
	for _, id := range songIDs {
		keys = append(keys, publicSongKey(id))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", "error", err, "keys", keys)
	}
}

func (s *CatalogService) cacheGet(ctx context.Context, key string, dst interface{}) bool {
	if s.rdb == nil {
		return false
	}
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("Catalog cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		s.logger.Warn("Discarding malformed catalog cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *CatalogService) cacheSet(ctx context.Context, key string, v interface{}) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Debug("Catalog cache write failed", "key", key, "error", err)
	}
}
