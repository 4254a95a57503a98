package services

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// metricNamePattern keeps metric names to a single path segment.
var metricNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// rotatedFilePattern matches "<metric>-YYYY-MM.jsonl" and captures the year
// and month.
func rotatedFilePattern(metric string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(metric) + `-(\d{4})-(\d{2})\.jsonl$`)
}

func validateMetric(metric string) error {
	if !metricNamePattern.MatchString(metric) {
		return lib.ValidationError(fmt.Sprintf("invalid history metric %q: use lowercase letters, digits, '-' or '_'", metric)).
			WithContext("metric", metric)
	}
	return nil
}

// HistoryService appends records to monthly-rotated JSONL files under
// <base>/<metric>/<metric>-YYYY-MM.jsonl and prunes old months.
type HistoryService struct {
	baseDir string
	logger  *lib.Logger
	now     func() time.Time
}

// NewHistoryService creates a HistoryService rooted at baseDir.
func NewHistoryService(baseDir string) *HistoryService {
	return &HistoryService{
		baseDir: baseDir,
		logger:  lib.NewLogger("history-service"),
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (h *HistoryService) SetClock(now func() time.Time) {
	h.now = now
}

// FilePath returns the rotation file for metric in the month of asOf (UTC).
func (h *HistoryService) FilePath(metric string, asOf time.Time) string {
	name := fmt.Sprintf("%s-%s.jsonl", metric, models.MonthKey(asOf))
	return filepath.Join(h.baseDir, metric, name)
}

// Append writes record as one line to the rotation file for asOf.
func (h *HistoryService) Append(metric string, record interface{}, asOf time.Time) error {
	if err := validateMetric(metric); err != nil {
		return err
	}
	return lib.AppendJSONL(h.FilePath(metric, asOf), record)
}

type rotatedFile struct {
	path  string
	month time.Time
}

func (h *HistoryService) rotatedFiles(metric string) ([]rotatedFile, error) {
	if err := validateMetric(metric); err != nil {
		return nil, err
	}

	dir := filepath.Join(h.baseDir, metric)
	pattern := rotatedFilePattern(metric)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, lib.WrapError(err, lib.ErrCodeStorage, "failed to list history").WithContext("dir", dir)
	}

	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (rotatedFile, bool) {
		if e.IsDir() {
			return rotatedFile{}, false
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			return rotatedFile{}, false
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return rotatedFile{}, false
		}
		return rotatedFile{
			path:  filepath.Join(dir, e.Name()),
			month: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC),
		}, true
	})
	return files, nil
}

// Cleanup deletes rotation files whose month is strictly before the first
// day of (current month - retentionMonths) and returns the deleted paths.
// Files not named <metric>-YYYY-MM.jsonl are left alone.
func (h *HistoryService) Cleanup(metric string, retentionMonths int) ([]string, error) {
	if retentionMonths < 1 {
		return nil, lib.ValidationError("retention must be at least one month").
			WithContext("retentionMonths", retentionMonths)
	}

	now := h.now().UTC()
	cutoff := time.Date(now.Year(), now.Month()-time.Month(retentionMonths), 1, 0, 0, 0, 0, time.UTC)

	files, err := h.rotatedFiles(metric)
	if err != nil {
		return nil, err
	}

	deleted := []string{}
	for _, f := range files {
		if !f.month.Before(cutoff) {
			continue
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return deleted, lib.WrapError(err, lib.ErrCodeStorage, "failed to delete history file").
				WithContext("path", f.path)
		}
		deleted = append(deleted, f.path)
	}

	if len(deleted) > 0 {
		h.logger.Info("Pruned history", map[string]interface{}{
			"metric":  metric,
			"cutoff":  cutoff.Format(models.MonthLayout),
			"deleted": len(deleted),
		})
	}
	slices.Sort(deleted)
	return deleted, nil
}

// ListFiles returns the rotation files for metric in chronological order.
func (h *HistoryService) ListFiles(metric string) ([]string, error) {
	files, err := h.rotatedFiles(metric)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(files, func(a, b rotatedFile) int { return a.month.Compare(b.month) })
	return lo.Map(files, func(f rotatedFile, _ int) string { return f.path }), nil
}

// Read decodes every line of a rotation file. Blank lines are skipped.
func (h *HistoryService) Read(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lib.WrapError(err, lib.ErrCodeStorage, "failed to open history file").WithContext("path", path)
	}
	defer f.Close()

	records := []json.RawMessage{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, lib.ValidationError(fmt.Sprintf("%s: line %d is not valid JSON", filepath.Base(path), lineNo)).
				WithContext("path", path).WithContext("line", lineNo)
		}
		records = append(records, json.RawMessage(bytes.Clone(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, lib.WrapError(err, lib.ErrCodeStorage, "failed to read history file").WithContext("path", path)
	}
	return records, nil
}
