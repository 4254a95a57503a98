package services

import (
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// AnalyticsService regenerates analytics.json from the token ledger.
type AnalyticsService struct {
	store  *DataStore
	logger *lib.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewAnalyticsService creates an AnalyticsService over store.
func NewAnalyticsService(store *DataStore) *AnalyticsService {
	return &AnalyticsService{
		store:  store,
		logger: lib.NewLogger("analytics-service"),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (a *AnalyticsService) SetClock(now func() time.Time) {
	a.now = now
}

// Generate rebuilds the 7, 30 and 90 day windows and writes analytics.json.
// A missing or invalid ledger produces an all-zero document instead of an
// error.
func (a *AnalyticsService) Generate() (*models.Analytics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()
	generatedAt := a.nextTimestamp(now)

	ledger, err := a.store.LoadTokens()
	if err != nil {
		a.logger.Warn("Token ledger unavailable, writing empty analytics", map[string]interface{}{
			"error": err.Error(),
		})
		doc := models.EmptyAnalytics(generatedAt)
		if err := a.store.SaveAnalytics(doc); err != nil {
			return nil, err
		}
		a.last = generatedAt
		return doc, nil
	}

	doc := models.EmptyAnalytics(generatedAt)
	for _, days := range models.WindowDays {
		if err := doc.Windows.Set(days, computeWindow(ledger.Entries, now, days)); err != nil {
			return nil, err
		}
	}

	if err := a.store.SaveAnalytics(doc); err != nil {
		return nil, err
	}
	a.last = generatedAt

	a.logger.Info("Analytics generated", map[string]interface{}{
		"entries":   len(ledger.Entries),
		"cost_7d":   doc.Windows.Week.TotalCost,
		"cost_30d":  doc.Windows.Month.TotalCost,
		"cost_90d":  doc.Windows.Quarter.TotalCost,
		"generated": generatedAt.Format(time.RFC3339Nano),
	})
	return doc, nil
}

// nextTimestamp returns now at millisecond precision, bumped past the
// previous generation when the clock has not advanced.
func (a *AnalyticsService) nextTimestamp(now time.Time) time.Time {
	prev := a.last
	if existing, err := a.store.LoadAnalytics(); err == nil && existing.GeneratedAt.After(prev) {
		prev = existing.GeneratedAt
	}

	ts := now.Truncate(time.Millisecond)
	if !prev.IsZero() && !ts.After(prev) {
		ts = prev.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return ts
}

type usageSum struct {
	cost      decimal.Decimal
	tokensIn  int64
	tokensOut int64
}

func (u *usageSum) add(e models.TokenEntry) {
	u.cost = u.cost.Add(decimal.NewFromFloat(e.Cost))
	u.tokensIn += e.TokensIn
	u.tokensOut += e.TokensOut
}

// computeWindow sums entries dated on or after today - days. Dates are
// compared as YYYY-MM-DD strings.
func computeWindow(entries []models.TokenEntry, now time.Time, days int) models.AnalyticsWindow {
	cutoff := now.UTC().AddDate(0, 0, -days).Format(models.DateLayout)
	inWindow := lo.Filter(entries, func(e models.TokenEntry, _ int) bool {
		return e.Date >= cutoff
	})

	var total usageSum
	byModel := map[string]*usageSum{}
	for _, e := range inWindow {
		total.add(e)
		sum, ok := byModel[e.Model]
		if !ok {
			sum = &usageSum{}
			byModel[e.Model] = sum
		}
		sum.add(e)
	}

	window := models.EmptyWindow()
	window.TotalCost = total.cost.InexactFloat64()
	window.TokensIn = total.tokensIn
	window.TokensOut = total.tokensOut
	window.BurnRate = window.TotalCost / float64(days)
	for model, sum := range byModel {
		window.ByModel[model] = models.ModelUsage{
			Cost:      sum.cost.InexactFloat64(),
			TokensIn:  sum.tokensIn,
			TokensOut: sum.tokensOut,
		}
	}
	return window
}
