package render

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	_ "golang.org/x/image/bmp"
)

type CallKind int

const (
	CallMesh CallKind = iota
	CallInstanced
	CallLabel
)

type DrawCall struct {
	Kind       CallKind
	Mesh       *Mesh
	Material   Material
	Transforms []mgl32.Mat4
	Label      string
	X, Y       float32
}

// Recorder is a headless Renderer. It hands out handles, tracks what is
// resident and keeps every draw call until Reset.
type Recorder struct {
	next     uint32
	meshes   map[uint32]*Mesh
	textures map[uint32]Texture

	Uploads int
	Calls   []DrawCall
}

func NewRecorder() *Recorder {
	return &Recorder{
		meshes:   map[uint32]*Mesh{},
		textures: map[uint32]Texture{},
	}
}

func (r *Recorder) handle() uint32 {
	r.next++
	return r.next
}

func (r *Recorder) UploadMesh(m *Mesh) error {
	if m == nil {
		return fmt.Errorf("upload nil mesh")
	}
	if m.Handle != 0 {
		return nil
	}
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("mesh vertex array length %d is not a multiple of 3", len(m.Vertices))
	}
	m.Handle = r.handle()
	r.meshes[m.Handle] = m
	r.Uploads++
	return nil
}

func (r *Recorder) UnloadMesh(m *Mesh) {
	if m == nil || m.Handle == 0 {
		return
	}
	delete(r.meshes, m.Handle)
	m.Handle = 0
}

func (r *Recorder) LoadTexture(path string) (Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return Texture{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Texture{}, fmt.Errorf("decode %s: %w", path, err)
	}
	t := Texture{ID: r.handle(), Width: cfg.Width, Height: cfg.Height}
	r.textures[t.ID] = t
	return t, nil
}

func (r *Recorder) CreateTexture(img image.Image) (Texture, error) {
	if img == nil {
		return Texture{}, fmt.Errorf("create texture from nil image")
	}
	b := img.Bounds()
	t := Texture{ID: r.handle(), Width: b.Dx(), Height: b.Dy()}
	r.textures[t.ID] = t
	return t, nil
}

func (r *Recorder) UnloadTexture(t Texture) {
	delete(r.textures, t.ID)
}

func (r *Recorder) DrawMesh(m *Mesh, mat Material, transform mgl32.Mat4) {
	r.Calls = append(r.Calls, DrawCall{Kind: CallMesh, Mesh: m, Material: mat, Transforms: []mgl32.Mat4{transform}})
}

func (r *Recorder) DrawMeshInstanced(m *Mesh, mat Material, transforms []mgl32.Mat4) {
	cp := make([]mgl32.Mat4, len(transforms))
	copy(cp, transforms)
	r.Calls = append(r.Calls, DrawCall{Kind: CallInstanced, Mesh: m, Material: mat, Transforms: cp})
}

func (r *Recorder) DrawLabel(text string, x, y float32) {
	r.Calls = append(r.Calls, DrawCall{Kind: CallLabel, Label: text, X: x, Y: y})
}

// LiveMeshes is the number of uploaded meshes not yet unloaded.
func (r *Recorder) LiveMeshes() int { return len(r.meshes) }

func (r *Recorder) LiveTextures() int { return len(r.textures) }

func (r *Recorder) Reset() { r.Calls = r.Calls[:0] }

// Count returns how many recorded calls have the given kind.
func (r *Recorder) Count(kind CallKind) int {
	n := 0
	for _, c := range r.Calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Instances sums the transforms over all mesh and instanced calls.
func (r *Recorder) Instances() int {
	n := 0
	for _, c := range r.Calls {
		if c.Kind != CallLabel {
			n += len(c.Transforms)
		}
	}
	return n
}
