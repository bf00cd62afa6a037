package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "model":
			modelCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

type fileRow struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Size    string `json:"size"`
	ModTime string `json:"mod_time"`
}

// listCmd prints map files and snapshots under the data dir, newest first.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	rows, err := listFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

func listFiles(dataDir string) ([]fileRow, error) {
	var rows []fileRow
	walk := func(kind, dir, suffix string) error {
		return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, suffix) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rows = append(rows, fileRow{
				Kind:    kind,
				Path:    path,
				Size:    humanize.Bytes(uint64(info.Size())),
				ModTime: humanize.Time(info.ModTime()),
			})
			return nil
		})
	}
	if err := walk("map", filepath.Join(dataDir, "maps"), mapfile.Ext); err != nil {
		return nil, err
	}
	if err := walk("snapshot", filepath.Join(dataDir, "snapshots"), snapshot.Ext); err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Kind != rows[j].Kind {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Path > rows[j].Path
	})
	return rows, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
