package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"cancionero/internal/models"
	"cancionero/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db        *gorm.DB
	store     *repository.Store
	catalog   *CatalogService
	audit     *AuditService
	favorites *FavoriteService
	accounts  *AccountService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.AutoMigrate(db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewStore(db)
	catalog := NewCatalogService(store, nil, logger)
	audit := NewAuditService(db, logger)

	favorites := NewFavoriteService(store, catalog, audit, logger)
	favorites.now = func() time.Time { return fixedNow }

	return &testEnv{
		db:        db,
		store:     store,
		catalog:   catalog,
		audit:     audit,
		favorites: favorites,
		accounts:  NewAccountService(store, catalog, audit, logger),
	}
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), name, "secret")
	require.NoError(t, err)
	return u
}

func (e *testEnv) create(t *testing.T, owner string, in SongInput) *CreateResult {
	t.Helper()
	res, err := e.favorites.Create(context.Background(), loggedInAs(owner), owner, in)
	require.NoError(t, err)
	return res
}

func TestFavoriteService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("New song", func(t *testing.T) {
		env := setupTestEnv(t)
		alice := env.user(t, "alice")

		res := env.create(t, "alice", SongInput{Title: "  Hey Jude ", Artist: "The Beatles", Year: "1968", IsPublic: true})
		assert.True(t, res.SongCreated)
		assert.False(t, res.AlreadyFavorited)
		assert.Equal(t, "Hey Jude", res.Song.Title)
		require.NotNil(t, res.Song.ReleaseYear)
		assert.Equal(t, 1968, *res.Song.ReleaseYear)
		assert.NotEmpty(t, res.Favorite.RelationKey)

		count, err := env.store.CountFavorites(ctx, alice)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("Ownership enforced", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")
		env.user(t, "bob")

		_, err := env.favorites.Create(ctx, loggedInAs("alice"), "bob", SongInput{Title: "X"})
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = env.favorites.Create(ctx, newMemorySession(), "bob", SongInput{Title: "X"})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("Title validation", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")

		_, err := env.favorites.Create(ctx, loggedInAs("alice"), "alice", SongInput{Title: "   "})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = env.favorites.Create(ctx, loggedInAs("alice"), "alice", SongInput{Title: strings.Repeat("a", MaxTitleLength+1)})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = env.favorites.Create(ctx, loggedInAs("alice"), "alice", SongInput{Title: "ok", Artist: strings.Repeat("b", MaxArtistLength+1)})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Release year boundaries", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")

		cases := []struct {
			year    string
			wantErr bool
			want    *int
		}{
			{year: "1899", wantErr: true},
			{year: "1900", want: intPtr(1900)},
			{year: "2024", want: intPtr(2024)},
			{year: "2025", wantErr: true},
			{year: "nineteen", wantErr: true},
			{year: "", want: nil},
		}
		for _, tc := range cases {
			t.Run("year "+tc.year, func(t *testing.T) {
				res, err := env.favorites.Create(ctx, loggedInAs("alice"), "alice", SongInput{Title: "Year " + tc.year, Year: tc.year})
				if tc.wantErr {
					assert.ErrorIs(t, err, ErrValidation)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tc.want, res.Song.ReleaseYear)
			})
		}
	})

	t.Run("Duplicate title for the same owner", func(t *testing.T) {
		env := setupTestEnv(t)
		alice := env.user(t, "alice")
		env.create(t, "alice", SongInput{Title: "Yesterday", Artist: "The Beatles"})

		_, err := env.favorites.Create(ctx, loggedInAs("alice"), "alice", SongInput{Title: "Yesterday", Artist: "Someone Else"})
		assert.ErrorIs(t, err, ErrDuplicate)

		count, err := env.store.CountFavorites(ctx, alice)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("Shared song is reused and overwritten", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")
		env.user(t, "bob")

		first := env.create(t, "alice", SongInput{Title: "Imagine", Artist: "John Lennon", Year: "1971", IsPublic: true})
		second := env.create(t, "bob", SongInput{Title: "Imagine", Artist: "John Lennon", Year: "", IsPublic: false})

		assert.False(t, second.SongCreated)
		assert.Equal(t, first.Song.ID, second.Song.ID)
		assert.NotEqual(t, first.Favorite.RelationKey, second.Favorite.RelationKey)

		song, err := env.store.FindSong(ctx, first.Song.ID)
		require.NoError(t, err)
		assert.Nil(t, song.ReleaseYear)
		assert.False(t, song.IsPublic)
	})

	t.Run("Concurrent creates keep one favorite per title", func(t *testing.T) {
		env := setupTestEnv(t)
		alice := env.user(t, "alice")

		var wg sync.WaitGroup
		errs := make([]error, 6)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.favorites.Create(ctx, loggedInAs("alice"), "alice", SongInput{Title: "Race"})
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, ErrDuplicate)
			}
		}
		assert.Equal(t, 1, ok)

		count, err := env.store.CountFavorites(ctx, alice)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func TestFavoriteService_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("Edit rewrites the shared song", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")
		env.user(t, "bob")
		res := env.create(t, "alice", SongInput{Title: "Let It Be", Artist: "Beatles"})
		env.create(t, "bob", SongInput{Title: "Let It Be", Artist: "Beatles"})

		song, err := env.favorites.Edit(ctx, loggedInAs("alice"), "alice", res.Song.ID, SongInput{
			Title: "Let It Be", Artist: "The Beatles", Album: "Let It Be", Year: "1970", IsPublic: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "The Beatles", song.Artist)

		bobsView, err := env.favorites.View(ctx, loggedInAs("bob"), "bob", res.Song.ID)
		require.NoError(t, err)
		assert.Equal(t, "The Beatles", bobsView.Artist)
		assert.True(t, bobsView.IsPublic)
	})

	t.Run("Keeping the same title is allowed", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")
		res := env.create(t, "alice", SongInput{Title: "Help!"})

		_, err := env.favorites.Edit(ctx, loggedInAs("alice"), "alice", res.Song.ID, SongInput{Title: "Help!", Year: "1965"})
		assert.NoError(t, err)
	})

	t.Run("Title taken by another favorite", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")
		env.create(t, "alice", SongInput{Title: "Something"})
		res := env.create(t, "alice", SongInput{Title: "Anything"})

		_, err := env.favorites.Edit(ctx, loggedInAs("alice"), "alice", res.Song.ID, SongInput{Title: "Something"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("Collision with another dedup key", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")
		env.user(t, "bob")
		env.create(t, "bob", SongInput{Title: "Blackbird", Artist: "Beatles"})
		res := env.create(t, "alice", SongInput{Title: "Blackbird", Artist: "Other"})

		_, err := env.favorites.Edit(ctx, loggedInAs("alice"), "alice", res.Song.ID, SongInput{Title: "Blackbird", Artist: "Beatles"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("Song outside the owner's list", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")
		env.user(t, "bob")
		res := env.create(t, "bob", SongInput{Title: "Bob's song"})

		_, err := env.favorites.Edit(ctx, loggedInAs("alice"), "alice", res.Song.ID, SongInput{Title: "Mine now"})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = env.favorites.Edit(ctx, loggedInAs("alice"), "alice", 9999, SongInput{Title: ""})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Invalid year leaves the song untouched", func(t *testing.T) {
		env := setupTestEnv(t)
		env.user(t, "alice")
		res := env.create(t, "alice", SongInput{Title: "Girl", Year: "1965"})

		_, err := env.favorites.Edit(ctx, loggedInAs("alice"), "alice", res.Song.ID, SongInput{Title: "Girl!", Year: "3000"})
		assert.ErrorIs(t, err, ErrValidation)

		song, err := env.store.FindSong(ctx, res.Song.ID)
		require.NoError(t, err)
		assert.Equal(t, "Girl", song.Title)
	})
}

func TestFavoriteService_RemoveAndList(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.user(t, "alice")

	a := env.create(t, "alice", SongInput{Title: "A"})
	b := env.create(t, "alice", SongInput{Title: "B"})

	list, err := env.favorites.List(ctx, loggedInAs("alice"), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.Favorite.RelationKey, list[0].RelationKey)
	assert.Equal(t, b.Favorite.RelationKey, list[1].RelationKey)

	_, err = env.favorites.List(ctx, loggedInAs("bob"), "alice")
	assert.ErrorIs(t, err, ErrForbidden)

	removed, err := env.favorites.Remove(ctx, loggedInAs("alice"), "alice", a.Song.ID, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "A", removed.Title)

	_, err = env.favorites.Remove(ctx, loggedInAs("alice"), "alice", a.Song.ID, "127.0.0.1")
	assert.ErrorIs(t, err, ErrNotFound)

	// the song row survives removal
	_, err = env.store.FindSong(ctx, a.Song.ID)
	assert.NoError(t, err)

	list, err = env.favorites.List(ctx, loggedInAs("alice"), "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func intPtr(v int) *int { return &v }
