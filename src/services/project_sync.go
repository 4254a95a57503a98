package services

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// ProjectSyncStep merges project directories into projects.json.
type ProjectSyncStep struct {
	store       *DataStore
	history     *HistoryService
	projectsDir string
	gitPath     string
	cmdTimeout  time.Duration
	retention   int
	logger      *lib.Logger
	now         func() time.Time
}

// NewProjectSyncStep creates the project step from config.
func NewProjectSyncStep(config *models.Config, store *DataStore, history *HistoryService) *ProjectSyncStep {
	return &ProjectSyncStep{
		store:       store,
		history:     history,
		projectsDir: config.ProjectsDir,
		gitPath:     "git",
		cmdTimeout:  time.Duration(config.CmdTimeout) * time.Second,
		retention:   config.RetentionMonths,
		logger:      lib.NewLogger("project-sync"),
		now:         time.Now,
	}
}

// Name implements SyncStep.
func (s *ProjectSyncStep) Name() string { return "projects" }

// SetClock replaces the time source.
func (s *ProjectSyncStep) SetClock(now func() time.Time) { s.now = now }

// SetGitPath overrides the git binary.
func (s *ProjectSyncStep) SetGitPath(path string) { s.gitPath = path }

// Run implements SyncStep. Known projects keep their hand-edited fields and
// only have discovered facts refreshed; new directories become new records.
func (s *ProjectSyncStep) Run(ctx context.Context) error {
	dirs, err := listProjectDirs(s.projectsDir)
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeStorage, "failed to list projects").WithContext("dir", s.projectsDir)
	}

	projects, err := s.store.LoadProjects()
	if IsNotExist(err) {
		projects = models.Projects{}
	} else if err != nil {
		return err
	}

	now := s.now()
	index := make(map[string]int, len(projects))
	for i, p := range projects {
		index[p.ID] = i
	}

	var added []models.Project
	updated := 0
	for _, name := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(s.projectsDir, name)
		lastCommit := s.lastCommit(ctx, dir)
		stack := detectStack(dir)
		description := detectDescription(dir)

		if i, ok := index[name]; ok {
			p := &projects[i]
			if lastCommit != "" {
				p.LastCommit = lastCommit
				p.LastActivity = lastCommit
			}
			if len(stack) > 0 {
				p.Stack = stack
			}
			if description != "" {
				p.Description = description
			}
			updated++
			continue
		}

		p := models.NewProject(name, now)
		p.LastCommit = lastCommit
		p.LastActivity = lastCommit
		if len(stack) > 0 {
			p.Stack = stack
		}
		p.Description = description
		index[name] = len(projects)
		projects = append(projects, p)
		added = append(added, p)
	}

	// Display names must be unique; the earliest record wins.
	deduped := models.Projects(lo.UniqBy(projects, func(p models.Project) string { return p.Name }))
	if dropped := len(projects) - len(deduped); dropped > 0 {
		s.logger.Warn("Dropped projects with duplicate names", map[string]interface{}{
			"dropped": dropped,
		})
	}

	kept := lo.KeyBy(deduped, func(p models.Project) string { return p.ID })
	added = lo.Filter(added, func(p models.Project, _ int) bool {
		_, ok := kept[p.ID]
		return ok
	})

	if err := s.store.SaveProjects(deduped); err != nil {
		return err
	}
	for _, p := range added {
		if err := s.history.Append("projects", p, now); err != nil {
			return err
		}
	}
	if _, err := s.history.Cleanup("projects", s.retention); err != nil {
		return err
	}

	s.logger.Info("Projects synced", map[string]interface{}{
		"updated": updated,
		"added":   len(added),
		"total":   len(deduped),
	})
	return nil
}

// lastCommit returns the committer date (YYYY-MM-DD) of HEAD, or "" when dir
// is not a git repository or git fails.
func (s *ProjectSyncStep) lastCommit(ctx context.Context, dir string) string {
	ctx, cancel := context.WithTimeout(ctx, s.cmdTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.gitPath, "-C", dir, "log", "-1", "--format=%cs") // #nosec G204 fixed arguments
	output, err := cmd.Output()
	if err != nil {
		s.logger.Debug("git log failed", map[string]interface{}{
			"dir":   dir,
			"error": err.Error(),
		})
		return ""
	}

	date := strings.TrimSpace(string(output))
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return ""
	}
	return date
}
