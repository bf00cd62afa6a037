// Package settings loads the editor configuration file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	TexturesDir            string   `yaml:"textures_dir"`
	ShapesDir              string   `yaml:"shapes_dir"`
	UndoMax                int      `yaml:"undo_max"`
	MouseSensitivity       float32  `yaml:"mouse_sensitivity"`
	ExportSeparateGeometry bool     `yaml:"export_separate_geometry"`
	CullFaces              bool     `yaml:"cull_faces"`
	ExportFilePath         string   `yaml:"export_file_path"`
	DefaultTexturePath     string   `yaml:"default_texture_path"`
	DefaultShapePath       string   `yaml:"default_shape_path"`
	BackgroundColor        [3]uint8 `yaml:"background_color,flow"`
	AssetCacheMB           int      `yaml:"asset_cache_mb"`

	Server Server `yaml:"server"`
}

// Server configures the remote edit session.
type Server struct {
	Addr                 string `yaml:"addr"`
	DataDir              string `yaml:"data_dir"`
	SnapshotEverySeconds int    `yaml:"snapshot_every_seconds"`
	LogFile              string `yaml:"log_file"`
	LogLevel             string `yaml:"log_level"`
	MaxClients           int    `yaml:"max_clients"`
	KeepRevisions        int    `yaml:"keep_revisions"`
}

func Defaults() Settings {
	return Settings{
		TexturesDir:        "assets/textures/tiles/",
		ShapesDir:          "assets/models/shapes/",
		UndoMax:            30,
		MouseSensitivity:   0.5,
		CullFaces:          true,
		ExportFilePath:     "export.glb",
		DefaultTexturePath: "assets/textures/tiles/texel_checker.png",
		DefaultShapePath:   "assets/models/shapes/cube.obj",
		AssetCacheMB:       32,
		Server: Server{
			Addr:                 ":8090",
			DataDir:              "data",
			SnapshotEverySeconds: 60,
			LogLevel:             "info",
			MaxClients:           16,
			KeepRevisions:        5,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Settings, error) {
	s := Defaults()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("editor.yaml: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("editor.yaml: %w", err)
	}
	return s, nil
}

// LoadOrCreate loads path, writing the defaults there first if it does not exist.
func LoadOrCreate(path string) (Settings, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s := Defaults()
		return s, Save(path, s)
	}
	return Load(path)
}

func Save(path string, s Settings) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

func (s *Settings) Normalize() {
	if s == nil {
		return
	}
	s.TexturesDir = withSlash(s.TexturesDir)
	s.ShapesDir = withSlash(s.ShapesDir)
	if s.AssetCacheMB <= 0 {
		s.AssetCacheMB = 32
	}
	if s.Server.SnapshotEverySeconds < 0 {
		s.Server.SnapshotEverySeconds = 0
	}
	if s.Server.MaxClients <= 0 {
		s.Server.MaxClients = 16
	}
	if s.Server.KeepRevisions < 0 {
		s.Server.KeepRevisions = 0
	}
	s.Server.LogLevel = strings.ToLower(strings.TrimSpace(s.Server.LogLevel))
	if s.Server.LogLevel == "" {
		s.Server.LogLevel = "info"
	}
}

func withSlash(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" || strings.HasSuffix(dir, "/") {
		return dir
	}
	return dir + "/"
}

func (s Settings) Validate() error {
	if s.UndoMax < 0 {
		return fmt.Errorf("undo_max must be >= 0, got %d", s.UndoMax)
	}
	if s.MouseSensitivity <= 0 {
		return fmt.Errorf("mouse_sensitivity must be > 0, got %v", s.MouseSensitivity)
	}
	switch strings.ToLower(filepath.Ext(s.ExportFilePath)) {
	case "", ".gltf", ".glb":
	default:
		return fmt.Errorf("export_file_path must end in .gltf or .glb: %q", s.ExportFilePath)
	}
	switch s.Server.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("server.log_level %q is not a level", s.Server.LogLevel)
	}
	return nil
}

// CacheBytes is the asset geometry cache budget in bytes.
func (s Settings) CacheBytes() int64 { return int64(s.AssetCacheMB) << 20 }
