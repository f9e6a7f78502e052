package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/clipbatch/internal/config"
	"github.com/iconidentify/clipbatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type storeFactory func(t *testing.T) Store

func newSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRedis(t *testing.T) Store {
	t.Helper()
	url := os.Getenv("CLIPBATCH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CLIPBATCH_TEST_REDIS_URL not set")
	}
	s, err := NewRedisStore(context.Background(), url, time.Minute, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewInMemoryStore() },
		"sqlite": newSQLite,
		"redis":  newRedis,
	}
}

// uniqueSession keeps tests independent on shared backends such as Redis.
func uniqueSession(name string) domain.SessionID {
	return domain.SessionID(name + "-" + uuid.New().String())
}

func outcome(session domain.SessionID, index int, url string, ok bool) domain.Outcome {
	id := domain.OutcomeID(uuid.New().String())
	if ok {
		return domain.NewSuccessOutcome(id, session, "B1", url, index, []string{fmt.Sprintf("file%d.mp4", index)})
	}
	return domain.NewFailedOutcome(id, session, "B1", url, index, domain.ErrFetchFailed)
}

func TestStores(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("OutcomesRoundTrip", func(t *testing.T) { testOutcomesRoundTrip(t, factory(t)) })
			t.Run("OutcomesSessionScoped", func(t *testing.T) { testOutcomesSessionScoped(t, factory(t)) })
			t.Run("ClearOutcomes", func(t *testing.T) { testClearOutcomes(t, factory(t)) })
			t.Run("ConcurrentInserts", func(t *testing.T) { testConcurrentInserts(t, factory(t)) })
			t.Run("ReplaceLinks", func(t *testing.T) { testReplaceLinks(t, factory(t)) })
			t.Run("Ping", func(t *testing.T) { assert.NoError(t, factory(t).Ping(context.Background())) })
		})
	}
}

func testOutcomesRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	session := uniqueSession("S1")

	first := outcome(session, 1, "https://youtu.be/a", true)
	second := outcome(session, 2, "https://x.com/b", false)
	require.NoError(t, s.InsertOutcome(ctx, first))
	require.NoError(t, s.InsertOutcome(ctx, second))

	got, err := s.ListOutcomes(ctx, session)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, first.URL, got[0].URL)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, domain.PlatformYouTube, got[0].Platform)
	assert.Equal(t, domain.OutcomeSuccess, got[0].Status)
	assert.Equal(t, []string{"file1.mp4"}, got[0].Files)
	assert.True(t, first.CreatedAt.Equal(got[0].CreatedAt))

	assert.Equal(t, domain.OutcomeFailed, got[1].Status)
	assert.Equal(t, domain.ErrFetchFailed.Error(), got[1].Error)
	assert.Empty(t, got[1].Files)
	assert.Equal(t, session, got[1].SessionID)
	assert.Equal(t, domain.BatchID("B1"), got[1].BatchID)
}

func testOutcomesSessionScoped(t *testing.T, s Store) {
	ctx := context.Background()
	a := uniqueSession("A")
	b := uniqueSession("B")

	require.NoError(t, s.InsertOutcome(ctx, outcome(a, 1, "https://youtu.be/a", true)))

	got, err := s.ListOutcomes(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testClearOutcomes(t *testing.T, s Store) {
	ctx := context.Background()
	a := uniqueSession("A")
	b := uniqueSession("B")

	require.NoError(t, s.InsertOutcome(ctx, outcome(a, 1, "https://youtu.be/a", true)))
	require.NoError(t, s.InsertOutcome(ctx, outcome(b, 1, "https://youtu.be/b", true)))

	require.NoError(t, s.ClearOutcomes(ctx, a))

	got, err := s.ListOutcomes(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ListOutcomes(ctx, b)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Clearing an empty history is not an error.
	assert.NoError(t, s.ClearOutcomes(ctx, uniqueSession("empty")))
}

func testConcurrentInserts(t *testing.T, s Store) {
	ctx := context.Background()
	session := uniqueSession("C")

	const n = 20
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.InsertOutcome(ctx, outcome(session, i, fmt.Sprintf("https://youtu.be/%d", i), i%2 == 0)))
		}(i)
	}
	wg.Wait()

	got, err := s.ListOutcomes(ctx, session)
	require.NoError(t, err)
	assert.Len(t, got, n)

	seen := make(map[int]bool)
	for _, o := range got {
		seen[o.Index] = true
	}
	assert.Len(t, seen, n)
}

func testReplaceLinks(t *testing.T, s Store) {
	ctx := context.Background()
	session := uniqueSession("L")

	links, err := s.ListLinks(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, links)

	require.NoError(t, s.ReplaceLinks(ctx, session, []string{"https://youtu.be/1", "https://x.com/2", "https://youtu.be/1"}))
	links, err = s.ListLinks(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://youtu.be/1", "https://x.com/2", "https://youtu.be/1"}, links)

	require.NoError(t, s.ReplaceLinks(ctx, session, []string{"https://instagram.com/p/3"}))
	links, err = s.ListLinks(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://instagram.com/p/3"}, links)

	other, err := s.ListLinks(ctx, uniqueSession("other"))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	links := []string{"https://youtu.be/a"}
	require.NoError(t, s.ReplaceLinks(ctx, "S1", links))
	links[0] = "mutated"

	got, err := s.ListLinks(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://youtu.be/a"}, got)

	require.NoError(t, s.InsertOutcome(ctx, outcome("S1", 1, "https://youtu.be/a", true)))
	list, err := s.ListOutcomes(ctx, "S1")
	require.NoError(t, err)
	list[0].Files[0] = "mutated"

	again, err := s.ListOutcomes(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "file1.mp4", again[0].Files[0])
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.InsertOutcome(ctx, outcome("S1", 1, "https://youtu.be/a", true)))
	require.NoError(t, s.ReplaceLinks(ctx, "S1", []string{"https://youtu.be/a"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.ListOutcomes(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	links, err := s.ListLinks(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://youtu.be/a"}, links)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, config.StoreConfig{Driver: config.StoreMemory}, time.Hour, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, s)

	s, err = NewStore(ctx, config.StoreConfig{
		Driver:     config.StoreSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "factory.db"),
	}, time.Hour, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = NewStore(ctx, config.StoreConfig{Driver: "mongo"}, time.Hour, testLogger())
	assert.Error(t, err)

	_, err = NewStore(ctx, config.StoreConfig{Driver: config.StoreRedis, RedisURL: "not a url"}, time.Hour, testLogger())
	assert.Error(t, err)
}

func TestGetKey(t *testing.T) {
	assert.Equal(t, "clipbatch:outcomes:S1", getKey(keyOutcomes, "S1"))
	assert.Equal(t, "clipbatch:links:S1", getKey(keyLinks, "S1"))
}
