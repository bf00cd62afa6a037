package assets

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"blockeditor/internal/sim/render"
)

// ParseOBJ reads the first object of a Wavefront OBJ stream into an indexed
// mesh. Faces must reference position, texcoord and normal (p/t/n); polygons
// are fanned into triangles. Unusable lines are logged and skipped.
func ParseOBJ(rd io.Reader, log logrus.FieldLogger) (*render.Mesh, error) {
	var (
		positions []mgl32.Vec3
		uvs       []mgl32.Vec2
		normals   []mgl32.Vec3
		b         render.MeshBuilder
		seen      = map[string]uint32{}
		object    string
	)

	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v", "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				log.WithField("line", lineNo).Warnf("obj: bad %s: %v", fields[0], err)
				v = []float32{0, 0, 0}
			}
			if fields[0] == "v" {
				positions = append(positions, mgl32.Vec3{v[0], v[1], v[2]})
			} else {
				normals = append(normals, mgl32.Vec3{v[0], v[1], v[2]})
			}
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				log.WithField("line", lineNo).Warnf("obj: bad vt: %v", err)
				v = []float32{0, 0}
			}
			uvs = append(uvs, mgl32.Vec2{v[0], 1 - v[1]})
		case "f":
			corners := fields[1:]
			if len(corners) < 3 {
				log.WithField("line", lineNo).Warn("obj: face with fewer than 3 vertices")
				continue
			}
			idx := make([]uint32, 0, len(corners))
			ok := true
			for _, c := range corners {
				if i, found := seen[c]; found {
					idx = append(idx, i)
					continue
				}
				p, t, n, err := parseTriplet(c, len(positions), len(uvs), len(normals))
				if err != nil {
					log.WithField("line", lineNo).Warnf("obj: %v", err)
					ok = false
					break
				}
				i := b.AddVertex(positions[p], normals[n], uvs[t])
				seen[c] = i
				idx = append(idx, i)
			}
			if !ok {
				continue
			}
			for k := 1; k+1 < len(idx); k++ {
				b.AddTriangle(idx[0], idx[k], idx[k+1])
			}
		case "o":
			if object != "" {
				return finishOBJ(&b)
			}
			object = strings.Join(fields[1:], " ")
			if object == "" {
				object = "unnamed"
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return finishOBJ(&b)
}

func finishOBJ(b *render.MeshBuilder) (*render.Mesh, error) {
	if b.VertexCount() == 0 {
		return nil, fmt.Errorf("obj has no faces")
	}
	return b.Build(), nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d components, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// parseTriplet resolves a 1-based p/t/n face corner to 0-based indices.
func parseTriplet(s string, np, nt, nn int) (p, t, n int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return 0, 0, 0, fmt.Errorf("face corner %q is not p/t/n", s)
	}
	var v [3]int
	for i, lim := range [3]int{np, nt, nn} {
		x, perr := strconv.Atoi(parts[i])
		if perr != nil {
			return 0, 0, 0, fmt.Errorf("face corner %q: %v", s, perr)
		}
		if x < 1 || x > lim {
			return 0, 0, 0, fmt.Errorf("face corner %q: index %d out of range", s, x)
		}
		v[i] = x - 1
	}
	return v[0], v[1], v[2], nil
}
