package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blockeditor/internal/persistence/indexdb"
	persistlog "blockeditor/internal/persistence/log"
	"blockeditor/internal/sim/editor"
)

type runtimeIndex interface {
	editor.EditLogger
	editor.Indexer
	Stats() indexdb.Stats
	Close() error
}

// openRuntimeIndex returns nil when indexing is disabled by flag or by
// BE_INDEX_BACKEND=none.
func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("BE_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "editor.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported BE_INDEX_BACKEND: %s", backend)
	}
}

type multiEditLogger struct {
	a editor.EditLogger
	b editor.EditLogger
}

func (m multiEditLogger) WriteEdit(entry persistlog.EditEntry) error {
	if m.a != nil {
		_ = m.a.WriteEdit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEdit(entry)
	}
	return nil
}
