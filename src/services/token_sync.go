package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

const (
	envAdminKey      = "ANTHROPIC_ADMIN_KEY"
	envOrgID         = "ANTHROPIC_ORG_ID"
	anthropicVersion = "2023-06-01"
	apiUsageProject  = "api-usage"
	maxErrorBody     = 512
)

// usageRow is one item of the usage API response.
type usageRow struct {
	Date         string  `json:"date"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Model        string  `json:"model"`
}

type usageResponse struct {
	Data []usageRow `json:"data"`
}

// TokenSyncStep pulls organization usage from the usage API and replaces
// the auto-sync rows of the ledger.
type TokenSyncStep struct {
	store     *DataStore
	history   *HistoryService
	client    *http.Client
	baseURL   string
	retention int
	getenv    func(string) string
	logger    *lib.Logger
	now       func() time.Time
}

// NewTokenSyncStep creates the token step from config.
func NewTokenSyncStep(config *models.Config, store *DataStore, history *HistoryService) *TokenSyncStep {
	return &TokenSyncStep{
		store:     store,
		history:   history,
		client:    &http.Client{Timeout: time.Duration(config.HTTPTimeout) * time.Second},
		baseURL:   strings.TrimRight(config.UsageAPIURL, "/"),
		retention: config.RetentionMonths,
		getenv:    os.Getenv,
		logger:    lib.NewLogger("token-sync"),
		now:       time.Now,
	}
}

// Name implements SyncStep.
func (s *TokenSyncStep) Name() string { return "tokens" }

// SetClock replaces the time source.
func (s *TokenSyncStep) SetClock(now func() time.Time) { s.now = now }

// SetGetenv replaces the environment lookup.
func (s *TokenSyncStep) SetGetenv(getenv func(string) string) { s.getenv = getenv }

// Run implements SyncStep. Missing credentials disable the step without
// error.
func (s *TokenSyncStep) Run(ctx context.Context) error {
	key, org := s.getenv(envAdminKey), s.getenv(envOrgID)
	if key == "" || org == "" {
		s.logger.Info("Usage API credentials not set, skipping token sync", map[string]interface{}{
			"env": []string{envAdminKey, envOrgID},
		})
		return nil
	}

	rows, err := s.fetch(ctx, key, org)
	if err != nil {
		return err
	}

	now := s.now()
	fetched := make([]models.TokenEntry, 0, len(rows))
	for i, row := range rows {
		entry := row.toEntry(now)
		if err := entry.Validate(); err != nil {
			return lib.WrapError(err, lib.ErrCodeUsageAPI, fmt.Sprintf("usage row %d is invalid", i))
		}
		fetched = append(fetched, entry)
	}

	data, err := s.store.LoadTokens()
	if IsNotExist(err) {
		data = models.DefaultTokenData()
	} else if err != nil {
		return err
	}

	manual := lo.Reject(data.Entries, func(e models.TokenEntry, _ int) bool { return e.IsAutoSync() })
	data.Entries = append(manual, fetched...)
	if err := s.store.SaveTokens(data); err != nil {
		return err
	}

	for _, entry := range fetched {
		if err := s.history.Append("tokens", entry, now); err != nil {
			return err
		}
	}
	if _, err := s.history.Cleanup("tokens", s.retention); err != nil {
		return err
	}

	s.logger.Info("Token usage synced", map[string]interface{}{
		"fetched": len(fetched),
		"manual":  len(manual),
	})
	return nil
}

func (s *TokenSyncStep) fetch(ctx context.Context, key, org string) ([]usageRow, error) {
	endpoint := fmt.Sprintf("%s/v1/organizations/%s/usage", s.baseURL, url.PathEscape(org))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, lib.WrapError(err, lib.ErrCodeUsageAPI, "failed to build usage request")
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, lib.WrapError(err, lib.ErrCodeUsageAPI, "usage request failed").WithContext("url", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, lib.UsageAPIError(fmt.Sprintf("usage API returned %s", resp.Status)).
			WithContext("status", resp.StatusCode).
			WithContext("body", string(body))
	}

	var parsed usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, lib.WrapError(err, lib.ErrCodeUsageAPI, "failed to decode usage response")
	}

	s.logger.Debug("Usage API responded", map[string]interface{}{
		"rows": len(parsed.Data),
	})
	return parsed.Data, nil
}

func (r usageRow) toEntry(now time.Time) models.TokenEntry {
	date := r.Date
	if len(date) > len(models.DateLayout) {
		date = date[:len(models.DateLayout)]
	}
	if date == "" {
		date = now.UTC().Format(models.DateLayout)
	}
	model := r.Model
	if model == "" {
		model = "unknown"
	}
	return models.TokenEntry{
		Date:      date,
		Project:   apiUsageProject,
		Session:   models.AutoSyncSession,
		TokensIn:  r.InputTokens,
		TokensOut: r.OutputTokens,
		Cost:      r.CostUSD,
		Model:     model,
	}
}
