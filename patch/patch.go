// Package patch carries the boundary-patch geometry the outlet models need
// from the host discretization: outward face normals, face areas, and the
// reduction of per-face fluxes to the single scalar flow rate Q. The host's
// mesh and parallel field management stay external; a Patch is a snapshot of
// one physical outlet's face set, which lives on exactly one process.
package patch

import (
	"fmt"
	"math"
)

// Patch describes the face set of one outlet boundary.
// Normals are stored component-wise; SJ is the face area (surface Jacobian).
// All four slices have identical length NumFaces.
type Patch struct {
	Nx, Ny, Nz []float64 // Outward unit normal components per face
	SJ         []float64 // Face areas
}

// New validates and builds a patch from per-face outward normals and areas.
// Normals need not arrive normalized; they are scaled to unit length here.
// Zero-length normals and non-positive areas are rejected.
func New(normals [][3]float64, areas []float64) (*Patch, error) {
	n := len(normals)
	if n == 0 {
		return nil, fmt.Errorf("patch: face set is empty")
	}
	if len(areas) != n {
		return nil, fmt.Errorf("patch: areas length %d does not match %d faces", len(areas), n)
	}

	p := &Patch{
		Nx: make([]float64, n),
		Ny: make([]float64, n),
		Nz: make([]float64, n),
		SJ: make([]float64, n),
	}
	for i, nv := range normals {
		mag := math.Sqrt(nv[0]*nv[0] + nv[1]*nv[1] + nv[2]*nv[2])
		if mag == 0 {
			return nil, fmt.Errorf("patch: face %d has zero-length normal", i)
		}
		if areas[i] <= 0 {
			return nil, fmt.Errorf("patch: face %d has non-positive area %g", i, areas[i])
		}
		p.Nx[i] = nv[0] / mag
		p.Ny[i] = nv[1] / mag
		p.Nz[i] = nv[2] / mag
		p.SJ[i] = areas[i]
	}
	return p, nil
}

// NumFaces returns the number of faces in the patch.
func (p *Patch) NumFaces() int { return len(p.SJ) }

// Normal returns the outward unit normal of face i.
func (p *Patch) Normal(i int) [3]float64 {
	return [3]float64{p.Nx[i], p.Ny[i], p.Nz[i]}
}

// Area returns the total patch area.
func (p *Patch) Area() float64 {
	var a float64
	for _, s := range p.SJ {
		a += s
	}
	return a
}

// FlowRate reduces per-face volumetric fluxes to the scalar outflow rate Q.
// In a distributed run the host performs its global reduction before this
// core sees the fluxes; this sum covers the faces this process owns, which
// for an ordinary outlet is the whole patch.
func (p *Patch) FlowRate(fluxes []float64) (float64, error) {
	if len(fluxes) != p.NumFaces() {
		return 0, fmt.Errorf("patch: flux field length %d does not match %d faces",
			len(fluxes), p.NumFaces())
	}
	var q float64
	for _, f := range fluxes {
		q += f
	}
	return q, nil
}
