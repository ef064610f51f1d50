package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// Store reads and writes ProjectMemory documents under a single
// directory, one JSON file per project.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("memory store dir is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Path returns the on-disk location for a project's memory file.
func (s *Store) Path(project string) string {
	return filepath.Join(s.dir, slug(project)+".json")
}

// Load returns the stored record for a project. A missing or corrupt
// file yields a fresh empty record rather than an error; workflow runs
// must not be blocked by damaged memory, and the next save overwrites
// the bad file.
func (s *Store) Load(ctx context.Context, project string) *ProjectMemory {
	path := s.Path(project)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn(ctx, "failed to read project memory, starting fresh",
				zap.String("project", project),
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return NewProjectMemory(project, "")
	}

	var mem ProjectMemory
	if err := json.Unmarshal(raw, &mem); err != nil {
		s.logger.Warn(ctx, "corrupt project memory, starting fresh",
			zap.String("project", project),
			zap.String("path", path),
			zap.Error(err),
		)
		return NewProjectMemory(project, "")
	}
	if mem.AgentSpecializations == nil {
		mem.AgentSpecializations = make(map[string]string)
	}
	if mem.ProjectName == "" {
		mem.ProjectName = project
	}
	return &mem
}

// Save writes the record atomically: marshal to a temp file in the same
// directory, then rename over the destination. Readers never observe a
// partial document.
func (s *Store) Save(ctx context.Context, mem *ProjectMemory) error {
	data, err := json.MarshalIndent(mem, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project memory %s: %w", mem.ProjectName, err)
	}

	path := s.Path(mem.ProjectName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write project memory %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename project memory %s: %w", path, err)
	}

	s.logger.Trace(ctx, "project memory saved",
		zap.String("project", mem.ProjectName),
		zap.String("path", path),
	)
	return nil
}

// List returns the project names with stored memory, derived from the
// file slugs on disk.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read memory dir %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

// slug maps a project name to a safe filename stem.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}
