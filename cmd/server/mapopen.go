package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"blockeditor/internal/persistence/snapshot"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/mapman"
)

type mapOpenOptions struct {
	MapPath     string
	SnapshotDir string
	// Snapshot, when set, is loaded instead of MapPath.
	Snapshot   string
	LoadLatest bool
	NewSize    string
}

// openMap loads the configured snapshot, else the map file, else creates a
// fresh map. With LoadLatest a snapshot of the same map that was saved after
// the map file replaces it. The returned string names the source.
func openMap(m *mapman.Map, opts mapOpenOptions) (string, error) {
	if opts.Snapshot != "" {
		if err := m.OpenFile(opts.Snapshot); err != nil {
			return "", err
		}
		return opts.Snapshot, nil
	}

	fi, err := os.Stat(opts.MapPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		w, h, l, err := parseSize(opts.NewSize)
		if err != nil {
			return "", err
		}
		m.NewMap(w, h, l)
		return "new", nil
	case err != nil:
		return "", err
	}

	if err := m.OpenFile(opts.MapPath); err != nil {
		return "", err
	}
	if !opts.LoadLatest {
		return opts.MapPath, nil
	}
	latest, ok := snapshot.Latest(opts.SnapshotDir, m.ID())
	if !ok {
		return opts.MapPath, nil
	}
	h, err := snapshot.ReadHeader(latest)
	if err != nil || !h.SavedAt.After(fi.ModTime()) {
		return opts.MapPath, nil
	}
	if err := m.OpenFile(latest); err != nil {
		return "", err
	}
	return latest, nil
}

// parseSize parses "WxHxL" with every dimension positive.
func parseSize(s string) (w, h, l int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("size %q: want WxHxL", s)
	}
	var dims [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return 0, 0, 0, fmt.Errorf("size %q: bad dimension %q", s, p)
		}
		dims[i] = n
	}
	if err := grid.CheckVolume(dims[0], dims[1], dims[2]); err != nil {
		return 0, 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	return dims[0], dims[1], dims[2], nil
}
