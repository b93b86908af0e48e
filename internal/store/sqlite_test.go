package store

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRemover struct {
	mu      sync.Mutex
	removed []string
	err     error
}

func (f *fakeRemover) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return f.err
}

func tempStore(t *testing.T, rm EvidenceRemover) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "violations.db"), rm, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestAddGetByIDRoundTrip(t *testing.T) {
	s := tempStore(t, nil)
	ctx := context.Background()

	in := Record{
		Timestamp:   "2026-03-04 10:11:12",
		Type:        "PHONE_DETECTED, EYE_MOVEMENT",
		Severity:    SeverityCritical,
		Description: "Mobile phone detected in frame",
		ImagePath:   strPtr("/tmp/violation_20260304_101112_000001.jpg"),
		Metadata: map[string]any{
			"person_count":   1,
			"frame_seq":      int64(42),
			"phone_detected": true,
			"reasons":        []string{"PHONE_DETECTED", "EYE_MOVEMENT"},
			"session_id":     "abc",
		},
	}
	id, err := s.Add(ctx, in)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, in.Timestamp, got.Timestamp)
	assert.Equal(t, in.Type, got.Type)
	assert.Equal(t, in.Severity, got.Severity)
	assert.Equal(t, in.Description, got.Description)
	require.NotNil(t, got.ImagePath)
	assert.Equal(t, *in.ImagePath, *got.ImagePath)
	assert.Equal(t, map[string]any{
		"person_count":   float64(1),
		"frame_seq":      float64(42),
		"phone_detected": true,
		"reasons":        []any{"PHONE_DETECTED", "EYE_MOVEMENT"},
		"session_id":     "abc",
	}, got.Metadata, "metadata reads back as generic JSON values")
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestAddWithoutEvidenceStoresNull(t *testing.T) {
	s := tempStore(t, nil)
	ctx := context.Background()

	id, err := s.Add(ctx, Record{Type: "NO_FACE", Severity: SeverityWarning, ImagePath: strPtr("")})
	require.NoError(t, err)
	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.ImagePath)
	assert.NotEmpty(t, got.Timestamp, "timestamp assigned when missing")
	assert.Equal(t, map[string]any{}, got.Metadata)
}

func TestGetByIDNotFound(t *testing.T) {
	s := tempStore(t, nil)
	_, err := s.GetByID(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMalformedMetadataDegradesToEmpty(t *testing.T) {
	s := tempStore(t, nil)
	ctx := context.Background()
	id, err := s.Add(ctx, Record{Type: "X", Severity: SeverityInfo})
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE violations SET metadata = '{not json' WHERE id = ?`, id)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got.Metadata)
}

func TestConcurrentAddMonotonicIDs(t *testing.T) {
	s := tempStore(t, nil)
	ctx := context.Background()

	const n = 40
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Add(ctx, Record{Type: "PHONE_DETECTED", Severity: SeverityCritical})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for i := 1; i < n; i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}

	// Sequential inserts return strictly increasing ids.
	a, err := s.Add(ctx, Record{Type: "A", Severity: SeverityInfo})
	require.NoError(t, err)
	b, err := s.Add(ctx, Record{Type: "B", Severity: SeverityInfo})
	require.NoError(t, err)
	assert.Greater(t, b, a)
	assert.Greater(t, a, ids[n-1])
}

func TestGetAllFilterAndOrder(t *testing.T) {
	s := tempStore(t, nil)
	ctx := context.Background()

	for _, sev := range []string{SeverityCritical, SeverityWarning, SeverityCritical, SeverityInfo} {
		_, err := s.Add(ctx, Record{Type: "T", Severity: sev})
		require.NoError(t, err)
	}

	all, err := s.GetAll(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].ID, all[i].ID, "newest first")
	}

	crit, err := s.GetAll(ctx, ListParams{Severity: SeverityCritical})
	require.NoError(t, err)
	assert.Len(t, crit, 2)
	for _, r := range crit {
		assert.Equal(t, SeverityCritical, r.Severity)
	}

	limited, err := s.GetAll(ctx, ListParams{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, all[0].ID, limited[0].ID)
}

func TestGetAllEmpty(t *testing.T) {
	s := tempStore(t, nil)
	all, err := s.GetAll(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestDeleteRemovesRecordAndEvidence(t *testing.T) {
	rm := &fakeRemover{}
	s := tempStore(t, rm)
	ctx := context.Background()

	keep, err := s.Add(ctx, Record{Type: "KEEP", Severity: SeverityInfo})
	require.NoError(t, err)
	id, err := s.Add(ctx, Record{Type: "PHONE_DETECTED", Severity: SeverityCritical, ImagePath: strPtr("/ev/a.jpg")})
	require.NoError(t, err)

	ok, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"/ev/a.jpg"}, rm.removed)

	all, err := s.GetAll(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep, all[0].ID)

	ok, err = s.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "deleting a missing id reports false")
	assert.Len(t, rm.removed, 1, "no side effects for a missing id")
}

func TestDeleteSucceedsWhenEvidenceRemovalFails(t *testing.T) {
	rm := &fakeRemover{err: errors.New("permission denied")}
	s := tempStore(t, rm)
	ctx := context.Background()

	id, err := s.Add(ctx, Record{Type: "X", Severity: SeverityCritical, ImagePath: strPtr("/ev/b.jpg")})
	require.NoError(t, err)
	ok, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = s.GetByID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrune(t *testing.T) {
	rm := &fakeRemover{}
	s := tempStore(t, rm)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Add(ctx, Record{Type: "T", Severity: SeverityCritical, ImagePath: strPtr("/ev/x.jpg")})
		require.NoError(t, err)
	}

	n, err := s.Prune(ctx, 36500)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, rm.removed, 3)

	all, err := s.GetAll(ctx, ListParams{})
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = s.Prune(ctx, -1)
	assert.Error(t, err)
}

func TestPruneRespectsAge(t *testing.T) {
	s := tempStore(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base.Add(-10 * 24 * time.Hour) }
	_, err := s.Add(ctx, Record{Type: "OLD", Severity: SeverityInfo})
	require.NoError(t, err)
	s.now = func() time.Time { return base }
	_, err = s.Add(ctx, Record{Type: "NEW", Severity: SeverityInfo})
	require.NoError(t, err)

	n, err := s.Prune(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.GetAll(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "NEW", all[0].Type)
}

func TestStatistics(t *testing.T) {
	s := tempStore(t, nil)
	ctx := context.Background()

	for _, r := range []Record{
		{Type: "PHONE_DETECTED", Severity: SeverityCritical},
		{Type: "PHONE_DETECTED", Severity: SeverityCritical},
		{Type: "EYE_MOVEMENT, HEAD_DOWN", Severity: SeverityWarning},
	} {
		_, err := s.Add(ctx, r)
		require.NoError(t, err)
	}

	st, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, map[string]int{SeverityCritical: 2, SeverityWarning: 1}, st.BySeverity)
	assert.Equal(t, 3, st.Last24h)
	require.Len(t, st.ByType, 2)
	assert.Equal(t, TypeCount{Type: "PHONE_DETECTED", Count: 2}, st.ByType[0])
}

func TestStatisticsTopTenAndWindow(t *testing.T) {
	s := tempStore(t, nil)
	ctx := context.Background()

	base := time.Now().UTC()
	s.now = func() time.Time { return base.Add(-48 * time.Hour) }
	_, err := s.Add(ctx, Record{Type: "OLD", Severity: SeverityInfo})
	require.NoError(t, err)
	s.now = func() time.Time { return base }
	for i := 0; i < 12; i++ {
		_, err := s.Add(ctx, Record{Type: string(rune('A' + i)), Severity: SeverityInfo})
		require.NoError(t, err)
	}

	st, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, st.Total)
	assert.Equal(t, 12, st.Last24h)
	assert.Len(t, st.ByType, topTypes)
}
