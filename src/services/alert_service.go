package services

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// AlertService evaluates spend against the alert config.
//
// Evaluate is the stateful path feeding one-shot notifications: each alert
// key fires at most once per calendar month. Active is a pure query of what
// is currently breached and never touches alert state.
type AlertService struct {
	store  *DataStore
	logger *lib.Logger
	now    func() time.Time
}

// NewAlertService creates an AlertService over store.
func NewAlertService(store *DataStore) *AlertService {
	return &AlertService{
		store:  store,
		logger: lib.NewLogger("alert-service"),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (a *AlertService) SetClock(now func() time.Time) {
	a.now = now
}

// LoadConfig returns the alert config, or defaults when it is missing or
// invalid.
func (a *AlertService) LoadConfig() *models.AlertConfig {
	cfg, err := a.store.LoadAlertConfig()
	if err != nil {
		if !IsNotExist(err) {
			a.logger.Warn("Invalid alert config, using defaults", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return models.DefaultAlertConfig()
	}
	return cfg
}

// SaveConfig validates and writes the alert config.
func (a *AlertService) SaveConfig(cfg *models.AlertConfig) error {
	if cfg.PerProjectLimits == nil {
		cfg.PerProjectLimits = map[string]float64{}
	}
	if err := a.store.SaveAlertConfig(cfg); err != nil {
		return err
	}
	a.logger.Info("Alert config saved", map[string]interface{}{
		"globalBudget": cfg.GlobalBudget,
		"thresholds":   len(cfg.GlobalThresholds),
		"projects":     len(cfg.PerProjectLimits),
	})
	return nil
}

// LoadState returns the persisted alert state, or a fresh state for the
// current month when it is missing or invalid. The month is not rolled.
func (a *AlertService) LoadState() *models.AlertState {
	state, err := a.store.LoadAlertState()
	if err != nil {
		if !IsNotExist(err) {
			a.logger.Warn("Invalid alert state, starting fresh", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return models.NewAlertState(a.now())
	}
	return state
}

// Evaluate returns alerts that are breached and have not fired yet this
// month, records them as fired and persists the state.
func (a *AlertService) Evaluate() ([]models.AlertResult, error) {
	now := a.now()
	state := a.LoadState()
	rolled := state.MaybeRollMonth(now)
	if rolled {
		a.logger.Info("Alert month rolled over", map[string]interface{}{
			"month": state.Month,
		})
	}

	breached := a.breached(now)
	fresh := lo.Filter(breached, func(r models.AlertResult, _ int) bool {
		return !state.HasFired(r.AlertKey)
	})
	for _, r := range fresh {
		state.MarkFired(r.AlertKey)
	}

	if rolled || len(fresh) > 0 {
		if err := a.store.SaveAlertState(state); err != nil {
			return nil, lib.WrapError(err, lib.ErrCodeAlert, "failed to persist alert state")
		}
	}

	if len(fresh) > 0 {
		a.logger.Info("Alerts fired", map[string]interface{}{
			"keys":  lo.Map(fresh, func(r models.AlertResult, _ int) string { return r.AlertKey }),
			"month": state.Month,
		})
	}
	return fresh, nil
}

// Active returns every currently breached alert, ignoring fire-once state.
func (a *AlertService) Active() []models.AlertResult {
	return a.breached(a.now())
}

func (a *AlertService) breached(now time.Time) []models.AlertResult {
	cfg := a.LoadConfig()
	return buildAlerts(cfg, a.globalSpend(), a.projectSpend(now))
}

// globalSpend is the 30 day analytics total, or 0 when unreadable.
func (a *AlertService) globalSpend() float64 {
	doc, err := a.store.LoadAnalytics()
	if err != nil {
		a.logger.Debug("Analytics unavailable, global spend is 0", map[string]interface{}{
			"error": err.Error(),
		})
		return 0
	}
	return doc.Windows.Month.TotalCost
}

// projectSpend sums month-to-date ledger cost per project, or nothing when
// the ledger is unreadable.
func (a *AlertService) projectSpend(now time.Time) map[string]float64 {
	spend := map[string]float64{}
	ledger, err := a.store.LoadTokens()
	if err != nil {
		a.logger.Debug("Ledger unavailable, project spend is 0", map[string]interface{}{
			"error": err.Error(),
		})
		return spend
	}

	prefix := models.MonthKey(now) + "-"
	sums := map[string]decimal.Decimal{}
	for _, e := range ledger.Entries {
		if strings.HasPrefix(e.Date, prefix) {
			sums[e.Project] = sums[e.Project].Add(decimal.NewFromFloat(e.Cost))
		}
	}
	for project, sum := range sums {
		spend[project] = sum.InexactFloat64()
	}
	return spend
}

// buildAlerts applies the threshold rules. Global thresholds are checked in
// ascending percent order, then project limits in name order.
func buildAlerts(cfg *models.AlertConfig, globalSpend float64, projectSpend map[string]float64) []models.AlertResult {
	results := []models.AlertResult{}

	thresholds := slices.Clone(cfg.GlobalThresholds)
	slices.SortStableFunc(thresholds, func(x, y models.AlertThreshold) int {
		switch {
		case x.Percent < y.Percent:
			return -1
		case x.Percent > y.Percent:
			return 1
		}
		return 0
	})

	if cfg.GlobalBudget > 0 {
		pct := globalSpend / cfg.GlobalBudget * 100
		for _, th := range thresholds {
			if pct < th.Percent {
				continue
			}
			level := models.LevelWarning
			if th.Percent >= models.CriticalPercent {
				level = models.LevelCritical
			}
			label := th.Label
			if label == "" {
				label = string(level)
			}
			results = append(results, models.AlertResult{
				Type:     models.AlertTypeGlobal,
				Level:    level,
				Message:  fmt.Sprintf("Global spend is at %.1f%% of $%v budget (%s)", pct, cfg.GlobalBudget, label),
				AlertKey: fmt.Sprintf("global-%v", th.Percent),
			})
		}
	}

	names := lo.Keys(cfg.PerProjectLimits)
	slices.Sort(names)
	for _, name := range names {
		limit := cfg.PerProjectLimits[name]
		if limit <= 0 {
			continue
		}
		spent := projectSpend[name]
		if spent < limit {
			continue
		}
		results = append(results, models.AlertResult{
			Type:        models.AlertTypeProject,
			Level:       models.LevelCritical,
			Message:     fmt.Sprintf("Project %q has spent %s, exceeding $%v limit", name, models.FormatUSD(spent), limit),
			AlertKey:    fmt.Sprintf("project-%s-limit", name),
			ProjectName: name,
		})
	}

	return lo.UniqBy(results, func(r models.AlertResult) string { return r.AlertKey })
}
