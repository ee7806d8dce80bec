package core

import (
	"errors"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestGenerateRockMesh_Validation(t *testing.T) {
	if _, err := GenerateRockMesh(0, 8, 1); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("zero radius: err = %v, want ErrInvalidMesh", err)
	}
	if _, err := GenerateRockMesh(-1, 8, 1); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("negative radius: err = %v, want ErrInvalidMesh", err)
	}
	if _, err := GenerateRockMesh(1, 2, 1); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("segments below 3: err = %v, want ErrInvalidMesh", err)
	}
}

func TestGenerateRockMesh_Shape(t *testing.T) {
	const segments = 12
	mesh, err := GenerateRockMesh(2, segments, 99)
	if err != nil {
		t.Fatalf("GenerateRockMesh: %v", err)
	}

	wantVerts := (segments + 1) * (segments + 1)
	if len(mesh.Vertices) != wantVerts {
		t.Errorf("vertex count %d, want %d", len(mesh.Vertices), wantVerts)
	}
	if len(mesh.Normals) != wantVerts {
		t.Errorf("normal count %d, want %d", len(mesh.Normals), wantVerts)
	}
	if want := segments * segments * 6; len(mesh.Indices) != want {
		t.Errorf("index count %d, want %d", len(mesh.Indices), want)
	}
	for _, idx := range mesh.Indices {
		if idx < 0 || idx >= wantVerts {
			t.Fatalf("index %d out of range", idx)
		}
	}
}

func TestGenerateRockMesh_Deterministic(t *testing.T) {
	a, err := GenerateRockMesh(1.5, 16, 42)
	if err != nil {
		t.Fatalf("GenerateRockMesh: %v", err)
	}
	b, err := GenerateRockMesh(1.5, 16, 42)
	if err != nil {
		t.Fatalf("GenerateRockMesh: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed produced different meshes")
	}
}

func TestGenerateRockMesh_SeedChangesShape(t *testing.T) {
	a, err := GenerateRockMesh(1.5, 16, 42)
	if err != nil {
		t.Fatalf("GenerateRockMesh: %v", err)
	}
	b, err := GenerateRockMesh(1.5, 16, 43)
	if err != nil {
		t.Fatalf("GenerateRockMesh: %v", err)
	}

	differs := false
	for i := range a.Vertices {
		if a.Vertices[i] != b.Vertices[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Errorf("seeds 42 and 43 produced identical vertices")
	}
}

func TestGenerateRockMesh_DisplacementBounds(t *testing.T) {
	const radius = 2.0
	mesh, err := GenerateRockMesh(radius, 20, 7)
	if err != nil {
		t.Fatalf("GenerateRockMesh: %v", err)
	}

	for i, v := range mesh.Vertices {
		r := v.Norm()
		if r < 0.55*radius || r > 1.15*radius {
			t.Fatalf("vertex %d at radius %v outside [%v, %v]", i, r, 0.55*radius, 1.15*radius)
		}
	}
}

func TestGenerateRockMesh_NormalsUnitAndOutward(t *testing.T) {
	const segments = 16
	mesh, err := GenerateRockMesh(1, segments, 5)
	if err != nil {
		t.Fatalf("GenerateRockMesh: %v", err)
	}

	cols := segments + 1
	for i, n := range mesh.Normals {
		if !scalar.EqualWithinAbs(n.Norm(), 1, 1e-9) {
			t.Fatalf("normal %d has length %v", i, n.Norm())
		}
		// Away from the pole fans the surface is star-shaped around the
		// origin, so normals face outward.
		row := i / cols
		if row == 0 || row == segments {
			continue
		}
		if n.Dot(mesh.Vertices[i]) <= 0 {
			t.Errorf("normal %d points inward", i)
		}
	}
}
