package models

import (
	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

// TechDebt is a coarse rating derived from coverage and lighthouse scores.
type TechDebt string

const (
	TechDebtNone   TechDebt = "none"
	TechDebtLow    TechDebt = "low"
	TechDebtMedium TechDebt = "medium"
	TechDebtHigh   TechDebt = "high"
)

// RateTechDebt derives the rating. Projects reporting neither metric are
// rated none.
func RateTechDebt(coverage, lighthouse float64) TechDebt {
	switch {
	case coverage == 0 && lighthouse == 0:
		return TechDebtNone
	case coverage > 80 && lighthouse > 80:
		return TechDebtLow
	case coverage > 50 && lighthouse > 50:
		return TechDebtMedium
	default:
		return TechDebtHigh
	}
}

// TestCoverage holds line coverage percentages.
type TestCoverage struct {
	Frontend float64 `json:"frontend" validate:"between=0 100"`
	Backend  float64 `json:"backend" validate:"between=0 100"`
}

// QualityEntry is one project's quality snapshot for a day.
type QualityEntry struct {
	Project         string       `json:"project" validate:"notblank"`
	Date            string       `json:"date" validate:"datetime=2006-01-02"`
	TestCoverage    TestCoverage `json:"testCoverage"`
	LighthouseScore float64      `json:"lighthouseScore" validate:"between=0 100"`
	OpenIssues      int          `json:"openIssues" validate:"gte=0"`
	TechDebt        TechDebt     `json:"techDebt" validate:"oneof=none low medium high"`
}

// Key identifies the entry; a second scan on the same day replaces it.
func (q QualityEntry) Key() string {
	return q.Project + ":" + q.Date
}

// QualityEntries is the quality.json document.
type QualityEntries []QualityEntry

// Validate checks every entry.
func (qs QualityEntries) Validate() error {
	v := lib.NewValidator()
	for i, q := range qs {
		v.Index("", i).Struct(q)
	}
	return v.Err("quality")
}
