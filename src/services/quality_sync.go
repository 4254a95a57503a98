package services

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

const (
	maxScanDepth = 3
	maxScanFiles = 200
)

var (
	issueMarker = regexp.MustCompile(`\bTODO\b|\bFIXME\b`)

	skippedScanDirs = []string{"node_modules", ".git", "dist", "build", "vendor"}
	scannedExts     = []string{".ts", ".tsx", ".js", ".jsx", ".go", ".py"}
)

// QualitySyncStep records a quality snapshot for every project directory.
type QualitySyncStep struct {
	store       *DataStore
	history     *HistoryService
	projectsDir string
	retention   int
	logger      *lib.Logger
	now         func() time.Time
}

// NewQualitySyncStep creates the quality step from config.
func NewQualitySyncStep(config *models.Config, store *DataStore, history *HistoryService) *QualitySyncStep {
	return &QualitySyncStep{
		store:       store,
		history:     history,
		projectsDir: config.ProjectsDir,
		retention:   config.RetentionMonths,
		logger:      lib.NewLogger("quality-sync"),
		now:         time.Now,
	}
}

// Name implements SyncStep.
func (s *QualitySyncStep) Name() string { return "quality" }

// SetClock replaces the time source.
func (s *QualitySyncStep) SetClock(now func() time.Time) { s.now = now }

// Run implements SyncStep. Entries are keyed by project and date, so a
// second scan on the same day replaces the first.
func (s *QualitySyncStep) Run(ctx context.Context) error {
	dirs, err := listProjectDirs(s.projectsDir)
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeStorage, "failed to list projects").WithContext("dir", s.projectsDir)
	}

	existing, err := s.store.LoadQuality()
	if IsNotExist(err) {
		existing = models.QualityEntries{}
	} else if err != nil {
		return err
	}

	now := s.now()
	today := now.UTC().Format(models.DateLayout)
	index := make(map[string]int, len(existing))
	for i, e := range existing {
		index[e.Key()] = i
	}

	scanned := make([]models.QualityEntry, 0, len(dirs))
	for _, name := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := scanQuality(filepath.Join(s.projectsDir, name), name, today)
		if i, ok := index[entry.Key()]; ok {
			existing[i] = entry
		} else {
			index[entry.Key()] = len(existing)
			existing = append(existing, entry)
		}
		scanned = append(scanned, entry)
	}

	if err := s.store.SaveQuality(existing); err != nil {
		return err
	}
	for _, entry := range scanned {
		if err := s.history.Append("quality", entry, now); err != nil {
			return err
		}
	}
	if _, err := s.history.Cleanup("quality", s.retention); err != nil {
		return err
	}

	s.logger.Info("Quality synced", map[string]interface{}{
		"scanned": len(scanned),
		"total":   len(existing),
	})
	return nil
}

func scanQuality(dir, name, today string) models.QualityEntry {
	coverage := readCoverage(dir)
	lighthouse := readLighthouse(dir)
	return models.QualityEntry{
		Project:         name,
		Date:            today,
		TestCoverage:    models.TestCoverage{Frontend: coverage, Backend: coverage},
		LighthouseScore: lighthouse,
		OpenIssues:      countIssueMarkers(dir),
		TechDebt:        models.RateTechDebt(coverage, lighthouse),
	}
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// readCoverage returns total line coverage from an istanbul summary, or 0.
func readCoverage(dir string) float64 {
	data, err := os.ReadFile(filepath.Join(dir, "coverage", "coverage-summary.json"))
	if err != nil {
		return 0
	}
	var summary struct {
		Total struct {
			Lines struct {
				Pct float64 `json:"pct"`
			} `json:"lines"`
		} `json:"total"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return 0
	}
	return clampPercent(summary.Total.Lines.Pct)
}

type lighthouseReport struct {
	Categories struct {
		Performance struct {
			Score *float64 `json:"score"`
		} `json:"performance"`
	} `json:"categories"`
}

func lighthouseScore(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var report lighthouseReport
	if err := json.Unmarshal(data, &report); err != nil || report.Categories.Performance.Score == nil {
		return 0, false
	}
	return clampPercent(math.Round(*report.Categories.Performance.Score * 100)), true
}

// readLighthouse checks lighthouse-report.json, then the first parseable
// report under .lighthouseci/.
func readLighthouse(dir string) float64 {
	if score, ok := lighthouseScore(filepath.Join(dir, "lighthouse-report.json")); ok {
		return score
	}

	ciDir := filepath.Join(dir, ".lighthouseci")
	entries, err := os.ReadDir(ciDir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if score, ok := lighthouseScore(filepath.Join(ciDir, e.Name())); ok {
			return score
		}
	}
	return 0
}

// countIssueMarkers counts TODO and FIXME markers in source files, walking
// at most maxScanDepth levels and maxScanFiles files.
func countIssueMarkers(root string) int {
	count, files := 0, 0

	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if depth > maxScanDepth || files >= maxScanFiles {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if files >= maxScanFiles {
				return
			}
			if slices.Contains(skippedScanDirs, e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if e.IsDir() {
				walk(path, depth+1)
				continue
			}
			if !e.Type().IsRegular() || !slices.Contains(scannedExts, filepath.Ext(e.Name())) {
				continue
			}
			files++
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			count += len(issueMarker.FindAllIndex(data, -1))
		}
	}

	walk(root, 0)
	return count
}
