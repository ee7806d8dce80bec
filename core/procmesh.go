package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/BewareOfTheRocks/rockviz/model"
)

// ErrInvalidMesh is returned when mesh generation parameters are out of
// range.
var ErrInvalidMesh = errors.New("invalid mesh parameters")

// Mesh is procedural triangle geometry ready for a render host to upload.
// Indices address Vertices in counter-clockwise winding, three per face.
type Mesh struct {
	Vertices []model.Vec3
	Normals  []model.Vec3
	Indices  []int
}

// rockOctaves are the displacement layers applied to a rock sphere: rising
// frequency, falling weight. The weights sum to 0.53, which keeps the
// displaced radius inside [0.55r, 1.15r] after the 0.85+0.3·d shaping.
var rockOctaves = [3]struct {
	freq   float64
	weight float64
}{
	{freq: 3, weight: 0.30},
	{freq: 8, weight: 0.15},
	{freq: 15, weight: 0.08},
}

// GenerateRockMesh builds a displaced UV sphere for a rock body. segments
// counts both latitude bands and longitude slices, so the mesh carries
// (segments+1)² vertices.
//
// Generation is deterministic: the same radius, segments and seed yield
// bit-identical output on every call, with no process-global state. Rocks
// keep stable shapes across reloads that way.
func GenerateRockMesh(radius float64, segments int, seed int64) (*Mesh, error) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: radius %v must be positive and finite", ErrInvalidMesh, radius)
	}
	if segments < 3 {
		return nil, fmt.Errorf("%w: segments %d below minimum 3", ErrInvalidMesh, segments)
	}

	cols := segments + 1
	rows := segments + 1
	mesh := &Mesh{
		Vertices: make([]model.Vec3, 0, rows*cols),
		Normals:  make([]model.Vec3, rows*cols),
		Indices:  make([]int, 0, segments*segments*6),
	}

	for row := 0; row < rows; row++ {
		phi := math.Pi * float64(row) / float64(segments)
		sinPhi, cosPhi := math.Sincos(phi)
		for col := 0; col < cols; col++ {
			theta := twoPi * float64(col) / float64(segments)
			sinTheta, cosTheta := math.Sincos(theta)

			dir := model.Vec3{
				X: sinPhi * cosTheta,
				Y: cosPhi,
				Z: sinPhi * sinTheta,
			}
			displaced := radius * (0.85 + rockDisplacement(dir, seed)*0.3)
			mesh.Vertices = append(mesh.Vertices, dir.Scale(displaced))
		}
	}

	for row := 0; row < segments; row++ {
		for col := 0; col < segments; col++ {
			a := row*cols + col
			b := a + 1
			c := a + cols
			d := c + 1
			mesh.Indices = append(mesh.Indices, a, b, c, b, d, c)
		}
	}

	mesh.recomputeNormals()
	return mesh, nil
}

// rockDisplacement samples the layered displacement field along a unit
// direction. The seed enters as a phase offset, so nearby seeds still
// produce visibly different rocks.
func rockDisplacement(dir model.Vec3, seed int64) float64 {
	phase := float64(seed)
	sum := 0.0
	for _, oct := range rockOctaves {
		sum += noiseTap(dir, oct.freq, phase) * oct.weight
	}
	return sum
}

// noiseTap averages three phase-shifted sine terms over the direction
// components. Each term stays in [-1,1], so the average does too.
func noiseTap(dir model.Vec3, freq, phase float64) float64 {
	a := math.Sin(dir.X*freq + phase)
	b := math.Sin(dir.Y*freq + phase*1.31 + 1.7)
	c := math.Sin(dir.Z*freq + phase*0.73 + 3.1)
	return (a + b + c) / 3
}

// recomputeNormals rebuilds per-vertex normals from the displaced faces by
// accumulating area-weighted face normals. Degenerate pole faces contribute
// nothing; a vertex left with a zero accumulator falls back to its radial
// direction.
func (m *Mesh) recomputeNormals() {
	for i := range m.Normals {
		m.Normals[i] = model.Vec3{}
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		ia, ib, ic := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		edge1 := m.Vertices[ib].Sub(m.Vertices[ia])
		edge2 := m.Vertices[ic].Sub(m.Vertices[ia])
		face := edge1.Cross(edge2)
		m.Normals[ia] = m.Normals[ia].Add(face)
		m.Normals[ib] = m.Normals[ib].Add(face)
		m.Normals[ic] = m.Normals[ic].Add(face)
	}
	for i := range m.Normals {
		if m.Normals[i].Norm() == 0 {
			m.Normals[i] = m.Vertices[i].Normalize()
			continue
		}
		m.Normals[i] = m.Normals[i].Normalize()
	}
}
