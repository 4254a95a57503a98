package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCompleted ProjectStatus = "completed"
)

// DefaultClient is assigned to projects discovered on disk.
const DefaultClient = "Internal"

// Project is one record of projects.json. ID is the directory name.
type Project struct {
	ID           string        `json:"id" validate:"notblank"`
	Name         string        `json:"name" validate:"notblank"`
	Client       string        `json:"client"`
	Status       ProjectStatus `json:"status" validate:"oneof=active paused completed"`
	Progress     float64       `json:"progress" validate:"between=0 100"`
	StartDate    string        `json:"startDate"`
	Deadline     string        `json:"deadline"`
	Stack        []string      `json:"stack" validate:"required"`
	LastCommit   string        `json:"lastCommit"`
	TasksTotal   int           `json:"tasksTotal" validate:"gte=0"`
	TasksDone    int           `json:"tasksDone" validate:"gte=0"`
	Description  string        `json:"description"`
	HealthScore  *float64      `json:"healthScore,omitempty" validate:"omitempty,between=0 100"`
	LastActivity string        `json:"lastActivity,omitempty"`
	Velocity     *float64      `json:"velocity,omitempty"`
}

// DisplayName turns a directory name like "acme_site-v2" into "Acme Site V2".
func DisplayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' || unicode.IsSpace(r) })
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	if len(words) == 0 {
		return id
	}
	return strings.Join(words, " ")
}

// NewProject returns a record for a freshly discovered directory.
func NewProject(id string, today time.Time) Project {
	return Project{
		ID:        id,
		Name:      DisplayName(id),
		Client:    DefaultClient,
		Status:    ProjectActive,
		StartDate: today.UTC().Format(DateLayout),
		Stack:     []string{},
	}
}

// Projects is the projects.json document.
type Projects []Project

// Validate checks every project.
func (ps Projects) Validate() error {
	v := lib.NewValidator()
	for i, p := range ps {
		v.Index("", i).Struct(p)
	}
	return v.Err("projects")
}
