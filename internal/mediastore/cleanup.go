package mediastore

import (
	"context"
	"path"
	"strings"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/logger"

	"github.com/spf13/afero"
)

// Referencer reports which blob filenames are still referenced by the
// catalog.
type Referencer interface {
	ReferencedFilenames(ctx context.Context) (map[string]struct{}, error)
}

// CleanupOrphans deletes directory entries no catalog row points at.
// It runs opportunistically (admin login/logout) and is best-effort:
// a failed delete is logged, not surfaced.
func (s *Store) CleanupOrphans(ctx context.Context, ref Referencer) error {
	valid, err := ref.ReferencedFilenames(ctx)
	if err != nil {
		return err
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return err
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := valid[name]; ok {
			continue
		}
		if err := s.fs.Remove(path.Join(s.dir, name)); err != nil {
			logger.Warn("failed to delete orphaned file", map[string]any{
				"file":  name,
				"error": err.Error(),
			})
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("orphaned media cleaned up", map[string]any{
			"removed": removed,
		})
	}
	return nil
}
