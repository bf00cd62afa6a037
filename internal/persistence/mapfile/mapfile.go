// Package mapfile reads and writes .te3 map documents.
package mapfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"blockeditor/internal/sim/entity"
)

const Ext = ".te3"

var ErrExtension = errors.New("te3: invalid file extension")

//go:embed te3.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("te3.schema.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("te3.schema.json")
	})
	return schema, schemaErr
}

// Tiles is the tile grid section. Data is the base64 tile blob, optimized or not.
type Tiles struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Length   int      `json:"length"`
	Spacing  float32  `json:"spacing"`
	Textures []string `json:"textures"`
	Shapes   []string `json:"shapes"`
	Data     string   `json:"data"`
}

type Document struct {
	ID    string       `json:"id,omitempty"`
	Tiles Tiles        `json:"tiles"`
	Ents  []entity.Ent `json:"ents"`
	// Angles are pitch, yaw, roll in radians.
	DefaultCameraPosition [3]float32 `json:"default_camera_position"`
	DefaultCameraAngles   [3]float32 `json:"default_camera_angles"`
}

func NewID() string { return uuid.NewString() }

// WithExt appends .te3 to paths that have no extension.
func WithExt(path string) string {
	if filepath.Ext(path) == "" {
		return path + Ext
	}
	return path
}

func Encode(w io.Writer, doc Document) error {
	if doc.Tiles.Textures == nil {
		doc.Tiles.Textures = []string{}
	}
	if doc.Tiles.Shapes == nil {
		doc.Tiles.Shapes = []string{}
	}
	if doc.Ents == nil {
		doc.Ents = []entity.Ent{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(doc)
}

// Decode validates the document against the te3 schema and decodes it.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	b, err := io.ReadAll(r)
	if err != nil {
		return doc, err
	}
	s, err := compiled()
	if err != nil {
		return doc, fmt.Errorf("te3 schema: %w", err)
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return doc, fmt.Errorf("te3: %w", err)
	}
	if err := s.Validate(raw); err != nil {
		return doc, fmt.Errorf("te3: %w", err)
	}
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&doc); err != nil {
		return doc, fmt.Errorf("te3: %w", err)
	}
	return doc, nil
}

// Write saves doc to path (adding .te3 when the path has no extension) and
// returns the path written. The file is replaced atomically.
func Write(path string, doc Document) (string, error) {
	path = WithExt(path)
	if filepath.Ext(path) != Ext {
		return path, fmt.Errorf("%w %q", ErrExtension, filepath.Ext(path))
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return path, err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return path, err
	}
	if err := Encode(f, doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return path, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return path, err
	}
	return path, os.Rename(tmp, path)
}

func Read(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return Decode(f)
}
