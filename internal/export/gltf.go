// Package export writes merged map models as glTF 2.0.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/render"
)

type Options struct {
	// SeparateGeometry writes one node per texture mesh instead of a single
	// node with one primitive per texture.
	SeparateGeometry bool
}

// Result summarizes what was written.
type Result struct {
	Path      string
	Format    string // "glb" or "gltf"
	Meshes    int
	Triangles int
	Ents      int
}

var (
	identityRotation = [4]float64{0, 0, 0, 1}
	unitScale        = [3]float64{1, 1, 1}
)

func newNode(name string) *gltf.Node {
	return &gltf.Node{Name: name, Rotation: identityRotation, Scale: unitScale}
}

// Build converts model into a glTF document. textures[i] is the image URI of
// material i; materials with no URI or no geometry are left out.
func Build(model *render.Model, textures []string, ents []entity.Ent, opts Options) (*gltf.Document, Result) {
	doc := gltf.NewDocument()
	var res Result

	doc.Samplers = []*gltf.Sampler{{
		MagFilter: gltf.MagNearest,
		MinFilter: gltf.MinNearest,
	}}
	// Model material index -> document material index.
	materials := map[int]int{}
	material := func(mat int) (int, bool) {
		if idx, ok := materials[mat]; ok {
			return idx, true
		}
		if mat < 0 || mat >= len(textures) || textures[mat] == "" {
			return 0, false
		}
		uri := filepath.ToSlash(textures[mat])
		doc.Images = append(doc.Images, &gltf.Image{URI: uri})
		doc.Textures = append(doc.Textures, &gltf.Texture{
			Sampler: gltf.Index(0),
			Source:  gltf.Index(len(doc.Images) - 1),
		})
		doc.Materials = append(doc.Materials, &gltf.Material{
			Name: strings.TrimSuffix(filepath.Base(uri), filepath.Ext(uri)),
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorTexture: &gltf.TextureInfo{Index: len(doc.Textures) - 1},
				MetallicFactor:   gltf.Float(0),
			},
		})
		idx := len(doc.Materials) - 1
		materials[mat] = idx
		return idx, true
	}

	var primitives []*gltf.Primitive
	if model != nil {
		for i, mesh := range model.Meshes {
			if mesh.TriangleCount() == 0 {
				continue
			}
			mat, ok := material(model.MeshMaterial[i])
			if !ok {
				continue
			}
			p := writePrimitive(doc, mesh)
			p.Material = gltf.Index(mat)
			primitives = append(primitives, p)
			res.Triangles += mesh.TriangleCount()
		}
	}

	root := doc.Scenes[0]
	if opts.SeparateGeometry {
		for _, p := range primitives {
			name := doc.Materials[*p.Material].Name
			doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{p}})
			n := newNode(name)
			n.Mesh = gltf.Index(len(doc.Meshes) - 1)
			doc.Nodes = append(doc.Nodes, n)
			root.Nodes = append(root.Nodes, len(doc.Nodes)-1)
		}
	} else if len(primitives) > 0 {
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: "map", Primitives: primitives})
		n := newNode("map")
		n.Mesh = gltf.Index(0)
		doc.Nodes = append(doc.Nodes, n)
		root.Nodes = append(root.Nodes, len(doc.Nodes)-1)
	}
	res.Meshes = len(doc.Meshes)

	for i, e := range ents {
		if !e.Active {
			continue
		}
		name, ok := e.Name()
		if !ok {
			name = fmt.Sprintf("ent%d", i)
		}
		n := newNode(name)
		n.Translation = [3]float64{float64(e.Position.X()), float64(e.Position.Y()), float64(e.Position.Z())}
		q := mgl32.Mat4ToQuat(e.Matrix())
		n.Rotation = [4]float64{float64(q.V.X()), float64(q.V.Y()), float64(q.V.Z()), float64(q.W)}
		extras := make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			extras[k] = v
		}
		n.Extras = extras
		doc.Nodes = append(doc.Nodes, n)
		root.Nodes = append(root.Nodes, len(doc.Nodes)-1)
		res.Ents++
	}
	return doc, res
}

func writePrimitive(doc *gltf.Document, mesh *render.Mesh) *gltf.Primitive {
	n := mesh.VertexCount()
	pos := make([][3]float32, n)
	nrm := make([][3]float32, n)
	uv := make([][2]float32, n)
	for i := 0; i < n; i++ {
		pos[i] = mesh.Vertex(i)
		nrm[i] = mesh.Normal(i)
		uv[i] = mesh.TexCoord(i)
	}
	indices := mesh.Indices
	if len(indices) == 0 {
		indices = make([]uint32, n)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	return &gltf.Primitive{
		Mode:    gltf.PrimitiveTriangles,
		Indices: gltf.Index(modeler.WriteIndices(doc, indices)),
		Attributes: map[string]int{
			gltf.POSITION:   modeler.WritePosition(doc, pos),
			gltf.NORMAL:     modeler.WriteNormal(doc, nrm),
			gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, uv),
		},
	}
}

// Encode writes doc to w as a binary container.
func Encode(w io.Writer, doc *gltf.Document) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(doc)
}

// Export writes model and ents to path. A ".glb" extension writes the binary
// container; anything else writes ".gltf" with an embedded buffer, adding the
// extension when path has none.
func Export(path string, model *render.Model, textures []string, ents []entity.Ent, opts Options) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "":
		path += ".gltf"
		ext = ".gltf"
	case ".glb", ".gltf":
	default:
		return Result{}, fmt.Errorf("export %s: unsupported extension %q", path, ext)
	}

	doc, res := Build(model, textures, ents, opts)
	res.Path = path
	var err error
	if ext == ".glb" {
		res.Format = "glb"
		err = gltf.SaveBinary(doc, path)
	} else {
		res.Format = "gltf"
		for _, b := range doc.Buffers {
			if b.URI == "" {
				b.EmbeddedResource()
			}
		}
		err = gltf.Save(doc, path)
	}
	if err != nil {
		return res, fmt.Errorf("export %s: %w", path, err)
	}
	return res, nil
}
