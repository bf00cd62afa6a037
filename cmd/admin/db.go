package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"blockeditor/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/editor.sqlite)")
	mapID := fs.String("map", "", "map id filter (snapshots, exports, edits)")
	limit := fs.Int("limit", 20, "result limit (edits)")
	_ = fs.Parse(args)

	q := "maps"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "editor.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runQuery(ctx, idx, q, strings.TrimSpace(*mapID), *limit, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runQuery(ctx context.Context, idx *indexdb.SQLiteIndex, q, mapID string, limit int, args []string) error {
	switch q {
	case "maps":
		rows, err := idx.Maps(ctx)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "snapshots":
		rows, err := idx.Snapshots(ctx, mapID)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "exports":
		rows, err := idx.Exports(ctx, mapID)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "edits":
		if limit <= 0 {
			limit = 20
		}
		rows, err := idx.Edits(ctx, mapID, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "args":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin db args SEQ")
		}
		seq, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad seq %q", args[1])
		}
		raw, err := idx.Args(ctx, seq)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		fmt.Println(string(raw))
	default:
		return fmt.Errorf("unknown query: %s\nusage: admin db [-data ./data|-db PATH] [-map ID] [-limit N] maps|snapshots|exports|edits|args SEQ", q)
	}
	return nil
}
