// Package entity holds point entities placed on the map grid.
package entity

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Display int

const (
	DisplaySphere Display = iota
	DisplayModel
	DisplaySprite
)

func (d Display) String() string {
	switch d {
	case DisplaySphere:
		return "sphere"
	case DisplayModel:
		return "model"
	case DisplaySprite:
		return "sprite"
	default:
		return fmt.Sprintf("display(%d)", int(d))
	}
}

func ParseDisplay(s string) (Display, error) {
	switch s {
	case "sphere":
		return DisplaySphere, nil
	case "model":
		return DisplayModel, nil
	case "sprite":
		return DisplaySprite, nil
	}
	return 0, fmt.Errorf("unknown display mode %q", s)
}

// Ent is a point entity. Model and texture are referenced by path; the map
// manager holds the asset references while an ent is placed.
type Ent struct {
	Active   bool
	Display  Display
	Color    color.RGBA
	Radius   float32
	Position mgl32.Vec3 // world space
	Yaw      int32      // degrees
	Pitch    int32      // degrees

	ModelPath   string
	TexturePath string

	// Free-form key/value pairs. "name" is shown as a label in the editor.
	Properties map[string]string
}

// New returns an active white sphere ent.
func New(radius float32) Ent {
	return Ent{
		Active:     true,
		Display:    DisplaySphere,
		Color:      color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Radius:     radius,
		Properties: map[string]string{},
	}
}

// Clone copies the ent including its properties.
func (e Ent) Clone() Ent {
	if e.Properties != nil {
		props := make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			props[k] = v
		}
		e.Properties = props
	}
	return e
}

func (e Ent) Name() (string, bool) {
	n, ok := e.Properties["name"]
	return n, ok
}

// Matrix rotates by pitch about X, then yaw about Y, then moves to Position.
func (e Ent) Matrix() mgl32.Mat4 {
	rx := mgl32.HomogRotate3DX(mgl32.DegToRad(float32(e.Pitch)))
	ry := mgl32.HomogRotate3DY(mgl32.DegToRad(float32(e.Yaw)))
	t := mgl32.Translate3D(e.Position.X(), e.Position.Y(), e.Position.Z())
	return t.Mul4(ry).Mul4(rx)
}

// Equal compares every field, properties included.
func (e Ent) Equal(o Ent) bool {
	if e.Active != o.Active || e.Display != o.Display || e.Color != o.Color || e.Radius != o.Radius ||
		e.Position != o.Position || e.Yaw != o.Yaw || e.Pitch != o.Pitch ||
		e.ModelPath != o.ModelPath || e.TexturePath != o.TexturePath || len(e.Properties) != len(o.Properties) {
		return false
	}
	for k, v := range e.Properties {
		if ov, ok := o.Properties[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

type entJSON struct {
	Radius     float32           `json:"radius"`
	Color      [3]uint8          `json:"color"`
	Position   [3]float32        `json:"position"`
	Angles     [3]float32        `json:"angles"` // pitch, yaw, roll
	Display    *Display          `json:"display,omitempty"`
	Model      string            `json:"model,omitempty"`
	Texture    string            `json:"texture,omitempty"`
	Properties map[string]string `json:"properties"`
}

func (e Ent) MarshalJSON() ([]byte, error) {
	d := e.Display
	j := entJSON{
		Radius:     e.Radius,
		Color:      [3]uint8{e.Color.R, e.Color.G, e.Color.B},
		Position:   [3]float32{e.Position.X(), e.Position.Y(), e.Position.Z()},
		Angles:     [3]float32{float32(e.Pitch), float32(e.Yaw), 0},
		Display:    &d,
		Model:      e.ModelPath,
		Texture:    e.TexturePath,
		Properties: e.Properties,
	}
	if j.Properties == nil {
		j.Properties = map[string]string{}
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an ent as stored in map files. Decoded ents are
// active. A missing display means sphere; a model path is only kept for
// model ents and a texture path only for model and sprite ents.
func (e *Ent) UnmarshalJSON(b []byte) error {
	var j entJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*e = Ent{
		Active:     true,
		Display:    DisplaySphere,
		Color:      color.RGBA{R: j.Color[0], G: j.Color[1], B: j.Color[2], A: 255},
		Radius:     j.Radius,
		Position:   mgl32.Vec3{j.Position[0], j.Position[1], j.Position[2]},
		Pitch:      int32(math.Round(float64(j.Angles[0]))),
		Yaw:        int32(math.Round(float64(j.Angles[1]))),
		Properties: j.Properties,
	}
	if e.Properties == nil {
		e.Properties = map[string]string{}
	}
	if j.Display != nil {
		if *j.Display < DisplaySphere || *j.Display > DisplaySprite {
			return fmt.Errorf("ent display %d out of range", int(*j.Display))
		}
		e.Display = *j.Display
	}
	switch e.Display {
	case DisplayModel:
		e.ModelPath = j.Model
		e.TexturePath = j.Texture
	case DisplaySprite:
		e.TexturePath = j.Texture
	}
	return nil
}
