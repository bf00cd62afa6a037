package grid

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFlatIndex_UnflattenInverse(t *testing.T) {
	s := NewSpace(4, 3, 5, 2)
	seen := make(map[int]bool, s.Volume())
	for y := 0; y < s.Height; y++ {
		for z := 0; z < s.Length; z++ {
			for x := 0; x < s.Width; x++ {
				p := Pos{X: x, Y: y, Z: z}
				idx, err := s.FlatIndex(p)
				if err != nil {
					t.Fatalf("FlatIndex(%v): %v", p, err)
				}
				if seen[idx] {
					t.Fatalf("duplicate index %d for %v", idx, p)
				}
				seen[idx] = true
				back, err := s.Unflatten(idx)
				if err != nil {
					t.Fatalf("Unflatten(%d): %v", idx, err)
				}
				if back != p {
					t.Fatalf("round trip: got %v want %v", back, p)
				}
			}
		}
	}
	if len(seen) != s.Volume() {
		t.Fatalf("covered %d indices, want %d", len(seen), s.Volume())
	}
}

func TestFlatIndex_LayerMajorOrder(t *testing.T) {
	s := NewSpace(4, 3, 5, 2)
	idx, _ := s.FlatIndex(Pos{X: 1, Y: 2, Z: 3})
	if want := 1 + 3*4 + 2*4*5; idx != want {
		t.Fatalf("index: got %d want %d", idx, want)
	}
}

func TestFlatIndex_OutOfBounds(t *testing.T) {
	s := NewSpace(2, 2, 2, 1)
	for _, p := range []Pos{{-1, 0, 0}, {0, -1, 0}, {0, 0, -1}, {2, 0, 0}, {0, 2, 0}, {0, 0, 2}} {
		if _, err := s.FlatIndex(p); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("FlatIndex(%v): expected ErrOutOfBounds, got %v", p, err)
		}
	}
	if _, err := s.Unflatten(8); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Unflatten(8): expected ErrOutOfBounds, got %v", err)
	}
	if _, err := s.Unflatten(-1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Unflatten(-1): expected ErrOutOfBounds, got %v", err)
	}
}

func TestWorldGridRoundTrip(t *testing.T) {
	s := NewSpace(10, 10, 10, 2)
	for x := -3; x < 4; x++ {
		for y := -2; y < 3; y++ {
			for z := -3; z < 4; z++ {
				g := Pos{X: x, Y: y, Z: z}
				if got := s.WorldToGridPos(s.GridToWorldPos(g, false)); got != g {
					t.Fatalf("corner round trip %v: got %v", g, got)
				}
				if got := s.WorldToGridPos(s.GridToWorldPos(g, true)); got != g {
					t.Fatalf("center round trip %v: got %v", g, got)
				}
			}
		}
	}
}

func TestSnapToCelCenter(t *testing.T) {
	s := NewSpace(10, 10, 10, 2)
	got := s.SnapToCelCenter(mgl32.Vec3{3.9, 0.1, -0.5})
	want := mgl32.Vec3{3, 1, -1}
	if !got.ApproxEqual(want) {
		t.Fatalf("snap: got %v want %v", got, want)
	}
}

func TestZeroSizedGrid(t *testing.T) {
	g := New(0, 0, 0, 2, 7)
	if g.Volume() != 0 || len(g.Cels()) != 0 {
		t.Fatalf("expected empty grid")
	}
	if _, err := g.Cel(Pos{}); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds on empty grid, got %v", err)
	}
}

func TestCopyCels_ClipsToDestination(t *testing.T) {
	src := New(5, 5, 5, 1, 1)
	dst := New(3, 3, 3, 1, 0)
	if err := dst.CopyCels(Pos{}, src, nil); err != nil {
		t.Fatalf("CopyCels: %v", err)
	}
	for i, c := range dst.Cels() {
		if c != 1 {
			t.Fatalf("cel %d not copied", i)
		}
	}

	dst = New(3, 3, 3, 1, 0)
	if err := dst.CopyCels(Pos{X: 2, Y: 2, Z: 2}, src, nil); err != nil {
		t.Fatalf("CopyCels offset: %v", err)
	}
	copied := 0
	for _, c := range dst.Cels() {
		copied += c
	}
	if copied != 1 {
		t.Fatalf("expected one copied cel at the far corner, got %d", copied)
	}
	if err := dst.CopyCels(Pos{X: -1}, src, nil); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds for negative origin, got %v", err)
	}
}

func TestCopyCels_Keep(t *testing.T) {
	src := New(2, 1, 1, 1, 0)
	_ = src.SetCel(Pos{X: 1}, 9)
	dst := New(2, 1, 1, 1, 5)
	if err := dst.CopyCels(Pos{}, src, func(v int) bool { return v != 0 }); err != nil {
		t.Fatalf("CopyCels: %v", err)
	}
	if c, _ := dst.Cel(Pos{}); c != 5 {
		t.Fatalf("masked cel overwritten: %d", c)
	}
	if c, _ := dst.Cel(Pos{X: 1}); c != 9 {
		t.Fatalf("kept cel not written: %d", c)
	}
}

func TestSubsection(t *testing.T) {
	g := New(4, 4, 4, 2, 0)
	for i := range g.Cels() {
		g.Cels()[i] = i
	}
	sub, err := g.Subsection(Pos{X: 1, Y: 2, Z: 1}, Pos{X: 2, Y: 2, Z: 3})
	if err != nil {
		t.Fatalf("Subsection: %v", err)
	}
	if sub.Width != 2 || sub.Height != 2 || sub.Length != 3 || sub.Spacing != 2 {
		t.Fatalf("unexpected subsection space: %+v", sub.Space)
	}
	for y := 0; y < 2; y++ {
		for z := 0; z < 3; z++ {
			for x := 0; x < 2; x++ {
				got, _ := sub.Cel(Pos{X: x, Y: y, Z: z})
				want, _ := g.Cel(Pos{X: x + 1, Y: y + 2, Z: z + 1})
				if got != want {
					t.Fatalf("cel (%d,%d,%d): got %d want %d", x, y, z, got, want)
				}
			}
		}
	}
	if _, err := g.Subsection(Pos{X: 3}, Pos{X: 2, Y: 1, Z: 1}); !errors.Is(err, ErrSubsectionOverflow) {
		t.Fatalf("expected ErrSubsectionOverflow, got %v", err)
	}
	if _, err := g.Subsection(Pos{Y: -1}, Pos{X: 1, Y: 1, Z: 1}); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestFill(t *testing.T) {
	g := New(3, 2, 3, 1, 0)
	if err := g.Fill(Pos{X: 1, Z: 1}, Pos{X: 2, Y: 2, Z: 2}, 4); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	n := 0
	for _, c := range g.Cels() {
		if c == 4 {
			n++
		}
	}
	if n != 8 {
		t.Fatalf("filled %d cels, want 8", n)
	}
	if err := g.Fill(Pos{X: 2}, Pos{X: 2, Y: 1, Z: 1}, 1); !errors.Is(err, ErrSubsectionOverflow) {
		t.Fatalf("expected ErrSubsectionOverflow, got %v", err)
	}
}

func TestCheckVolume(t *testing.T) {
	ok := [][3]int{{0, 0, 0}, {100, 5, 100}, {MaxVolume, 1, 1}, {1 << 7, 1 << 7, 1 << 7}}
	for _, d := range ok {
		if err := CheckVolume(d[0], d[1], d[2]); err != nil {
			t.Fatalf("%v: %v", d, err)
		}
	}
	big := [][3]int{{MaxVolume + 1, 1, 1}, {3000000, 3000000, 1000000}, {1 << 40, 1 << 40, 1 << 40}, {2, 1 << 62, 4}}
	for _, d := range big {
		if err := CheckVolume(d[0], d[1], d[2]); !errors.Is(err, ErrTooLarge) {
			t.Fatalf("%v: expected ErrTooLarge, got %v", d, err)
		}
	}
	if err := CheckVolume(-1, 2, 2); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}
