package services

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// document is any on-disk JSON shape that can check itself.
type document interface {
	Validate() error
}

// DataPaths resolves the file layout under a data directory.
type DataPaths struct {
	Base string
}

func (p DataPaths) Tokens() string      { return filepath.Join(p.Base, "tokens.json") }
func (p DataPaths) Analytics() string   { return filepath.Join(p.Base, "analytics.json") }
func (p DataPaths) AlertState() string  { return filepath.Join(p.Base, "alert-state.json") }
func (p DataPaths) SyncStatus() string  { return filepath.Join(p.Base, "sync-status.json") }
func (p DataPaths) Quality() string     { return filepath.Join(p.Base, "quality.json") }
func (p DataPaths) Projects() string    { return filepath.Join(p.Base, "projects.json") }
func (p DataPaths) AlertConfig() string { return filepath.Join(p.Base, "config", "alerts.json") }
func (p DataPaths) Lock() string        { return filepath.Join(p.Base, ".sync-lock") }
func (p DataPaths) History() string     { return filepath.Join(p.Base, "history") }

// DataStore is the only place documents cross the disk boundary. Every read
// is decoded and validated; every write is validated and written atomically.
type DataStore struct {
	paths  DataPaths
	logger *lib.Logger
}

// NewDataStore creates a DataStore rooted at dataDir.
func NewDataStore(dataDir string) *DataStore {
	return &DataStore{
		paths:  DataPaths{Base: dataDir},
		logger: lib.NewLogger("data-store"),
	}
}

// Paths returns the file layout.
func (s *DataStore) Paths() DataPaths {
	return s.paths
}

// IsNotExist reports whether err means the document file is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func (s *DataStore) readDocument(path string, doc document) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeStorage, "failed to read "+filepath.Base(path)).
			WithContext("path", path)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return lib.WrapError(err, lib.ErrCodeValidation, filepath.Base(path)+" is not valid JSON").
			WithContext("path", path)
	}

	if err := doc.Validate(); err != nil {
		var appErr *lib.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("path", path)
		}
		return err
	}
	return nil
}

func (s *DataStore) writeDocument(path string, doc document) error {
	if err := doc.Validate(); err != nil {
		s.logger.Error("Refusing to write invalid document", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return err
	}
	return lib.AtomicWriteJSON(path, doc)
}

// LoadTokens reads the token ledger.
func (s *DataStore) LoadTokens() (*models.TokenData, error) {
	var data models.TokenData
	if err := s.readDocument(s.paths.Tokens(), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SaveTokens writes the token ledger.
func (s *DataStore) SaveTokens(data *models.TokenData) error {
	return s.writeDocument(s.paths.Tokens(), data)
}

// LoadAnalytics reads the derived analytics document.
func (s *DataStore) LoadAnalytics() (*models.Analytics, error) {
	var a models.Analytics
	if err := s.readDocument(s.paths.Analytics(), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAnalytics writes the derived analytics document.
func (s *DataStore) SaveAnalytics(a *models.Analytics) error {
	return s.writeDocument(s.paths.Analytics(), a)
}

// LoadAlertConfig reads config/alerts.json.
func (s *DataStore) LoadAlertConfig() (*models.AlertConfig, error) {
	var c models.AlertConfig
	if err := s.readDocument(s.paths.AlertConfig(), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveAlertConfig writes config/alerts.json.
func (s *DataStore) SaveAlertConfig(c *models.AlertConfig) error {
	return s.writeDocument(s.paths.AlertConfig(), c)
}

// LoadAlertState reads alert-state.json.
func (s *DataStore) LoadAlertState() (*models.AlertState, error) {
	var st models.AlertState
	if err := s.readDocument(s.paths.AlertState(), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveAlertState writes alert-state.json.
func (s *DataStore) SaveAlertState(st *models.AlertState) error {
	return s.writeDocument(s.paths.AlertState(), st)
}

// LoadSyncStatus reads sync-status.json.
func (s *DataStore) LoadSyncStatus() (*models.SyncStatus, error) {
	var st models.SyncStatus
	if err := s.readDocument(s.paths.SyncStatus(), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveSyncStatus writes sync-status.json.
func (s *DataStore) SaveSyncStatus(st *models.SyncStatus) error {
	return s.writeDocument(s.paths.SyncStatus(), st)
}

// LoadQuality reads quality.json.
func (s *DataStore) LoadQuality() (models.QualityEntries, error) {
	var q models.QualityEntries
	if err := s.readDocument(s.paths.Quality(), &q); err != nil {
		return nil, err
	}
	return q, nil
}

// SaveQuality writes quality.json.
func (s *DataStore) SaveQuality(q models.QualityEntries) error {
	if q == nil {
		q = models.QualityEntries{}
	}
	return s.writeDocument(s.paths.Quality(), q)
}

// LoadProjects reads projects.json.
func (s *DataStore) LoadProjects() (models.Projects, error) {
	var p models.Projects
	if err := s.readDocument(s.paths.Projects(), &p); err != nil {
		return nil, err
	}
	return p, nil
}

// SaveProjects writes projects.json.
func (s *DataStore) SaveProjects(p models.Projects) error {
	if p == nil {
		p = models.Projects{}
	}
	return s.writeDocument(s.paths.Projects(), p)
}
