package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
	"golang.org/x/mod/modfile"
)

const maxStackItems = 5

// stackNames maps dependency names to the labels shown in project cards.
var stackNames = map[string]string{
	"react":          "React",
	"next":           "Next.js",
	"tailwindcss":    "Tailwind",
	"typescript":     "TypeScript",
	"vite":           "Vite",
	"prisma":         "Prisma",
	"zustand":        "Zustand",
	"convex":         "Convex",
	"tone":           "Tone.js",
	"sqlite3":        "SQLite",
	"better-sqlite3": "SQLite",
	"vue":            "Vue",
	"express":        "Express",
	"remotion":       "Remotion",
	"framer-motion":  "Framer Motion",
	"zod":            "Zod",

	"fastapi":    "FastAPI",
	"django":     "Django",
	"flask":      "Flask",
	"sqlalchemy": "SQLAlchemy",
	"pydantic":   "Pydantic",

	"github.com/spf13/cobra":             "Cobra",
	"github.com/gin-gonic/gin":           "Gin",
	"github.com/labstack/echo/v4":        "Echo",
	"github.com/charmbracelet/bubbletea": "Bubble Tea",
	"github.com/jackc/pgx/v5":            "Postgres",
	"modernc.org/sqlite":                 "SQLite",
}

// listProjectDirs returns the names of the subdirectories of root, sorted.
// A missing root yields no projects.
func listProjectDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if strings.HasPrefix(e.Name(), ".") {
			return "", false
		}
		if e.IsDir() {
			return e.Name(), true
		}
		// Follow symlinked project directories.
		info, err := os.Stat(filepath.Join(root, e.Name()))
		return e.Name(), err == nil && info.IsDir()
	}), nil
}

type packageJSON struct {
	Description     string            `json:"description"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func readPackageJSON(dir string) (*packageJSON, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, false
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, false
	}
	return &pkg, true
}

type pyProject struct {
	Project struct {
		Description  string   `toml:"description"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

// detectStack summarizes the technology stack of a project directory from
// package.json, go.mod and Python manifests. At most five labels are
// returned, in discovery order.
func detectStack(dir string) []string {
	var stack []string

	if pkg, ok := readPackageJSON(dir); ok {
		stack = append(stack, mapDeps(sortedKeys(pkg.Dependencies))...)
		stack = append(stack, mapDeps(sortedKeys(pkg.DevDependencies))...)
	}

	if requires, ok := goModRequires(filepath.Join(dir, "go.mod")); ok {
		stack = append(stack, "Go")
		stack = append(stack, mapDeps(requires)...)
	}

	if deps, ok := pythonDeps(dir); ok {
		stack = append(stack, "Python")
		stack = append(stack, mapDeps(deps)...)
	}

	stack = lo.Uniq(stack)
	if len(stack) > maxStackItems {
		stack = stack[:maxStackItems]
	}
	return stack
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

func mapDeps(deps []string) []string {
	return lo.FilterMap(deps, func(dep string, _ int) (string, bool) {
		name, ok := stackNames[strings.ToLower(dep)]
		return name, ok
	})
}

// goModRequires returns the module paths required by a go.mod file. A file
// that exists but does not parse still marks the project as Go.
func goModRequires(path string) ([]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return nil, true
	}
	return lo.Map(f.Require, func(r *modfile.Require, _ int) string {
		return r.Mod.Path
	}), true
}

// pythonDeps reads dependency names from pyproject.toml or requirements.txt.
func pythonDeps(dir string) ([]string, bool) {
	var py pyProject
	if _, err := toml.DecodeFile(filepath.Join(dir, "pyproject.toml"), &py); err == nil {
		return lo.Map(py.Project.Dependencies, func(spec string, _ int) string {
			return requirementName(spec)
		}), true
	}

	data, err := os.ReadFile(filepath.Join(dir, "requirements.txt"))
	if err != nil {
		return nil, false
	}
	var deps []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		deps = append(deps, requirementName(line))
	}
	return deps, true
}

// requirementName strips version specifiers and extras from a PEP 508
// requirement such as "fastapi[all]>=0.110".
func requirementName(spec string) string {
	end := strings.IndexAny(spec, "<>=!~;[ (")
	if end >= 0 {
		spec = spec[:end]
	}
	return strings.TrimSpace(spec)
}

const maxDescriptionLength = 200

// detectDescription takes the package.json description, then the
// pyproject.toml description, then the first paragraph of the README.
func detectDescription(dir string) string {
	if pkg, ok := readPackageJSON(dir); ok && strings.TrimSpace(pkg.Description) != "" {
		return strings.TrimSpace(pkg.Description)
	}

	var py pyProject
	if _, err := toml.DecodeFile(filepath.Join(dir, "pyproject.toml"), &py); err == nil {
		if d := strings.TrimSpace(py.Project.Description); d != "" {
			return d
		}
	}

	for _, name := range []string{"README.md", "README", "readme.md"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return firstParagraph(string(data))
		}
	}
	return ""
}

// firstParagraph returns the first run of prose lines, skipping headings,
// badges and code fences.
func firstParagraph(text string) string {
	var lines []string
	inFence := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if line == "" {
			if len(lines) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "![") || strings.HasPrefix(line, "[![") ||
			strings.HasPrefix(line, "<") {
			if len(lines) > 0 {
				break
			}
			continue
		}
		lines = append(lines, line)
	}

	paragraph := strings.Join(lines, " ")
	if runes := []rune(paragraph); len(runes) > maxDescriptionLength {
		paragraph = strings.TrimSpace(string(runes[:maxDescriptionLength-3])) + "..."
	}
	return paragraph
}
