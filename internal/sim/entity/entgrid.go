package entity

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/render"
)

const (
	DefaultSpacing float32 = 2

	// Ents projecting nearer than this depth get their name label drawn.
	labelDepth = 0.9995
)

var ErrNoEnt = errors.New("no entity in cel")

// Resolver finds the loaded resources an ent draws with.
type Resolver interface {
	LookupModel(path string) (*render.Model, bool)
	LookupTexture(path string) (render.Texture, bool)
	SphereMesh() *render.Mesh
	QuadMesh() *render.Mesh
}

type Label struct {
	NDC  mgl32.Vec3
	Text string
}

// EntGrid stores at most one ent per cel. Empty cels hold an inactive ent.
type EntGrid struct {
	grid.Space
	ents   *grid.Grid[Ent]
	labels []Label
}

func NewGrid(width, height, length int) *EntGrid {
	return NewGridSpacing(width, height, length, DefaultSpacing)
}

// NewGridSpacing returns an empty grid whose cels match a tile grid of the same spacing.
func NewGridSpacing(width, height, length int, spacing float32) *EntGrid {
	g := grid.New(width, height, length, spacing, Ent{})
	return &EntGrid{Space: g.Space, ents: g}
}

// AddEnt places an active copy of e at p, replacing whatever was there. The
// ent's position is set to the cel center.
func (g *EntGrid) AddEnt(p grid.Pos, e Ent) error {
	e = e.Clone()
	e.Active = true
	e.Position = g.GridToWorldPos(p, true)
	return g.ents.SetCel(p, e)
}

func (g *EntGrid) RemoveEnt(p grid.Pos) error {
	return g.ents.SetCel(p, Ent{})
}

func (g *EntGrid) HasEnt(p grid.Pos) bool {
	e, err := g.ents.Cel(p)
	return err == nil && e.Active
}

func (g *EntGrid) GetEnt(p grid.Pos) (Ent, error) {
	e, err := g.ents.Cel(p)
	if err != nil {
		return Ent{}, err
	}
	if !e.Active {
		return Ent{}, fmt.Errorf("%w %v", ErrNoEnt, p)
	}
	return e.Clone(), nil
}

// CopyEnts pastes src at origin, clipped to this grid. Pasted ents are moved
// to their new cel centers.
func (g *EntGrid) CopyEnts(origin grid.Pos, src *EntGrid) error {
	if err := g.ents.CopyCels(origin, src.ents, nil); err != nil {
		return err
	}
	xEnd := min(origin.X+src.Width, g.Width)
	yEnd := min(origin.Y+src.Height, g.Height)
	zEnd := min(origin.Z+src.Length, g.Length)
	for y := origin.Y; y < yEnd; y++ {
		for z := origin.Z; z < zEnd; z++ {
			for x := origin.X; x < xEnd; x++ {
				p := grid.Pos{X: x, Y: y, Z: z}
				idx, _ := g.FlatIndex(p)
				e, _ := g.ents.CelAt(idx)
				if e.Active {
					e = e.Clone()
					e.Position = g.GridToWorldPos(p, true)
					_ = g.ents.SetCelAt(idx, e)
				}
			}
		}
	}
	return nil
}

func (g *EntGrid) Subsection(origin, size grid.Pos) (*EntGrid, error) {
	sub, err := g.ents.Subsection(origin, size)
	if err != nil {
		return nil, err
	}
	cels := sub.Cels()
	for i := range cels {
		cels[i] = cels[i].Clone()
	}
	return &EntGrid{Space: sub.Space, ents: sub}, nil
}

// EntList returns copies of all active ents in flat index order.
func (g *EntGrid) EntList() []Ent {
	var out []Ent
	for _, e := range g.ents.Cels() {
		if e.Active {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Each calls fn for every active ent with its cel.
func (g *EntGrid) Each(fn func(p grid.Pos, e Ent)) {
	for i, e := range g.ents.Cels() {
		if !e.Active {
			continue
		}
		p, _ := g.Unflatten(i)
		fn(p, e)
	}
}

func (g *EntGrid) Count() int {
	n := 0
	for _, e := range g.ents.Cels() {
		if e.Active {
			n++
		}
	}
	return n
}

// Extent returns the smallest box holding every active ent.
func (g *EntGrid) Extent() (lo, hi grid.Pos, ok bool) {
	g.Each(func(p grid.Pos, _ Ent) {
		if !ok {
			lo, hi, ok = p, p, true
			return
		}
		lo, hi = grid.Min(lo, p), grid.Max(hi, p)
	})
	return lo, hi, ok
}

// Draw draws the active ents in layers [fromY, toY] that fall inside the
// camera frustum, and collects name labels for DrawLabels.
func (g *EntGrid) Draw(r render.Renderer, cam render.Camera, res Resolver, fromY, toY int) {
	g.labels = g.labels[:0]
	area := g.LayerArea()
	cels := g.ents.Cels()
	for y := max(fromY, 0); y <= min(toY, g.Height-1); y++ {
		for i := y * area; i < (y+1)*area; i++ {
			e := cels[i]
			if !e.Active {
				continue
			}
			ndc, ok := cam.WorldToNDC(e.Position)
			if !ok || ndc.Z() >= 1 || abs(ndc.X()) >= 1 || abs(ndc.Y()) >= 1 {
				continue
			}
			if name, ok := e.Name(); ok && ndc.Z() < labelDepth {
				g.labels = append(g.labels, Label{NDC: ndc, Text: name})
			}
			drawEnt(r, res, e)
		}
	}
}

// Labels are the labels collected by the last Draw.
func (g *EntGrid) Labels() []Label { return g.labels }

// DrawLabels draws the labels collected by the last Draw centered on their
// ents, in a viewport of the given pixel size. Nothing is drawn in preview.
func (g *EntGrid) DrawLabels(r render.Renderer, width, height float32, preview bool) {
	if preview {
		return
	}
	for _, l := range g.labels {
		x := width * (l.NDC.X() + 1) / 2
		y := height * (1 - l.NDC.Y()) / 2
		r.DrawLabel(l.Text, x, y)
	}
}

func drawEnt(r render.Renderer, res Resolver, e Ent) {
	scale := mgl32.Scale3D(e.Radius, e.Radius, e.Radius)
	switch e.Display {
	case DisplaySphere:
		t := mgl32.Translate3D(e.Position.X(), e.Position.Y(), e.Position.Z()).Mul4(scale)
		r.DrawMesh(res.SphereMesh(), render.Material{Tint: e.Color}, t)
	case DisplayModel:
		model, ok := res.LookupModel(e.ModelPath)
		if !ok || model == nil {
			return
		}
		mat := render.Material{Tint: e.Color}
		if tex, ok := res.LookupTexture(e.TexturePath); ok {
			mat.Texture = tex
		}
		t := e.Matrix().Mul4(scale).Mul4(model.Transform)
		for _, mesh := range model.Meshes {
			r.DrawMesh(mesh, mat, t)
		}
	case DisplaySprite:
		tex, ok := res.LookupTexture(e.TexturePath)
		if !ok {
			return
		}
		r.DrawMesh(res.QuadMesh(), render.Material{Texture: tex, Tint: e.Color}, e.Matrix().Mul4(scale))
	}
}

func abs(f float32) float32 { return float32(math.Abs(float64(f))) }
