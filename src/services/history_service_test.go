package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Telepatic-Kodes/rei-os/src/internal/testhelpers"
	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

func newTestHistory(t *testing.T, now time.Time) (*HistoryService, string) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "history")
	h := NewHistoryService(base)
	h.SetClock(testhelpers.NewClock(now).Now)
	return h, base
}

func touchHistory(t *testing.T, base, metric, name string) string {
	t.Helper()
	path := filepath.Join(base, metric, name)
	writeRaw(t, path, "{}\n")
	return path
}

func TestHistoryService_AppendRotatesByMonth(t *testing.T) {
	h, base := newTestHistory(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))

	require.NoError(t, h.Append("tokens", map[string]int{"n": 1}, time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)))
	require.NoError(t, h.Append("tokens", map[string]int{"n": 2}, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, h.Append("tokens", map[string]int{"n": 3}, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))

	feb, err := os.ReadFile(filepath.Join(base, "tokens", "tokens-2026-02.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n", string(feb))

	mar, err := os.ReadFile(filepath.Join(base, "tokens", "tokens-2026-03.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":2}\n{\"n\":3}\n", string(mar))
}

func TestHistoryService_AppendRejectsEmptyMetric(t *testing.T) {
	h, _ := newTestHistory(t, time.Now())

	err := h.Append("", map[string]int{}, time.Now())

	assert.True(t, lib.IsErrorCode(err, lib.ErrCodeValidation))
}

func TestHistoryService_RejectsMetricOutsideHistory(t *testing.T) {
	h, base := newTestHistory(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	outside := filepath.Join(filepath.Dir(base), "elsewhere-2020-01.jsonl")
	writeRaw(t, outside, "{}\n")

	for _, metric := range []string{"..", "../..", "tokens/../..", "Tokens", "a b", ""} {
		t.Run(metric, func(t *testing.T) {
			_, err := h.Cleanup(metric, 1)
			assert.True(t, lib.IsErrorCode(err, lib.ErrCodeValidation))

			_, err = h.ListFiles(metric)
			assert.True(t, lib.IsErrorCode(err, lib.ErrCodeValidation))

			err = h.Append(metric, map[string]int{}, time.Now())
			assert.True(t, lib.IsErrorCode(err, lib.ErrCodeValidation))
		})
	}

	_, err := os.Stat(outside)
	assert.NoError(t, err, "files outside the history tree are never touched")
}

func TestHistoryService_Cleanup(t *testing.T) {
	// March 2026 with 6 months retention: cutoff is 2025-09-01.
	h, base := newTestHistory(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	old1 := touchHistory(t, base, "tokens", "tokens-2025-07.jsonl")
	old2 := touchHistory(t, base, "tokens", "tokens-2025-08.jsonl")
	boundary := touchHistory(t, base, "tokens", "tokens-2025-09.jsonl")
	current := touchHistory(t, base, "tokens", "tokens-2026-03.jsonl")
	foreign := touchHistory(t, base, "tokens", "notes.txt")
	badMonth := touchHistory(t, base, "tokens", "tokens-2020-13.jsonl")
	backup := touchHistory(t, base, "tokens", "backup-2020-01.jsonl")
	otherMetric := touchHistory(t, base, "tokens", "quality-2020-01.jsonl")

	deleted, err := h.Cleanup("tokens", 6)

	require.NoError(t, err)
	assert.Equal(t, []string{old1, old2}, deleted)
	for _, kept := range []string{boundary, current, foreign, badMonth, backup, otherMetric} {
		_, statErr := os.Stat(kept)
		assert.NoError(t, statErr, "%s should be kept", kept)
	}
}

func TestHistoryService_CleanupNeverDeletesCurrentMonth(t *testing.T) {
	now := time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC)
	h, base := newTestHistory(t, now)
	current := touchHistory(t, base, "quality", "quality-2026-01.jsonl")
	previous := touchHistory(t, base, "quality", "quality-2025-12.jsonl")
	older := touchHistory(t, base, "quality", "quality-2025-11.jsonl")

	deleted, err := h.Cleanup("quality", 1)

	require.NoError(t, err)
	assert.Equal(t, []string{older}, deleted)
	for _, kept := range []string{current, previous} {
		_, statErr := os.Stat(kept)
		assert.NoError(t, statErr)
	}
}

func TestHistoryService_CleanupMissingDirectory(t *testing.T) {
	h, _ := newTestHistory(t, time.Now())

	deleted, err := h.Cleanup("projects", 6)

	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestHistoryService_CleanupRejectsZeroRetention(t *testing.T) {
	h, _ := newTestHistory(t, time.Now())

	_, err := h.Cleanup("tokens", 0)

	assert.True(t, lib.IsErrorCode(err, lib.ErrCodeValidation))
}

func TestHistoryService_ListFilesSorted(t *testing.T) {
	h, base := newTestHistory(t, time.Now())
	b := touchHistory(t, base, "tokens", "tokens-2026-02.jsonl")
	a := touchHistory(t, base, "tokens", "tokens-2025-12.jsonl")
	touchHistory(t, base, "tokens", "README.md")

	files, err := h.ListFiles("tokens")

	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)
}

func TestHistoryService_Read(t *testing.T) {
	h, base := newTestHistory(t, time.Now())
	path := filepath.Join(base, "tokens", "tokens-2026-03.jsonl")
	writeRaw(t, path, "{\"n\":1}\n\n{\"n\":2}\n")

	records, err := h.Read(path)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"n":2}`, string(records[1]))
}

func TestHistoryService_ReadNamesBadLine(t *testing.T) {
	h, base := newTestHistory(t, time.Now())
	path := filepath.Join(base, "tokens", "tokens-2026-03.jsonl")
	writeRaw(t, path, "{\"n\":1}\n{broken\n")

	_, err := h.Read(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
