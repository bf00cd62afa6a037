// Package archive keeps copies of map files before they are overwritten.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type RevisionMeta struct {
	MapID     string   `json:"map_id"`
	Source    string   `json:"source"`
	Revisions []string `json:"revisions"`
	UpdatedAt string   `json:"updated_at"`
}

// Dir is where revisions of path are kept under mapDir.
func Dir(mapDir, path string) string {
	base := filepath.Base(path)
	return filepath.Join(mapDir, "archives", strings.TrimSuffix(base, filepath.Ext(base)))
}

// ArchiveRevision copies the current file at path into Dir(mapDir, path),
// named by its modification time, and keeps only the newest keep copies.
// It returns archived=false when keep is not positive or path does not exist.
func ArchiveRevision(mapDir, path, mapID string, keep int) (archivedPath string, archived bool, err error) {
	if keep <= 0 {
		return "", false, nil
	}
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	dir := Dir(mapDir, path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	ext := filepath.Ext(path)
	dst := filepath.Join(dir, fmt.Sprintf("%020d%s", fi.ModTime().UnixNano(), ext))
	if err := copyFile(path, dst); err != nil {
		return "", false, err
	}

	revs, err := prune(dir, ext, keep)
	if err != nil {
		return dst, true, err
	}
	meta := RevisionMeta{
		MapID:     mapID,
		Source:    filepath.Base(path),
		Revisions: revs,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return dst, true, nil
}

// prune removes all but the newest keep revisions and returns the names kept,
// oldest first.
func prune(dir, ext string, keep int) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, err
	}
	// Zero-padded timestamps sort lexically.
	sort.Strings(matches)
	for len(matches) > keep {
		if err := os.Remove(matches[0]); err != nil {
			return nil, err
		}
		matches = matches[1:]
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
