package model

// cubeFaces lists each face of a unit cube as (normal, tangent, bitangent). Corners are normal +- tangent +- bitangent.
var cubeFaces = [6][3][3]float32{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
}

// Cube returns an axis-aligned cube centered at the origin with 24 vertices (4 per face, so normals stay flat) and
// 36 counter-clockwise indices.
//
// Parameters:
//   - halfExtent: half the edge length
//   - options: optional builder options
//
// Returns:
//   - Geometry: the cube geometry
func Cube(halfExtent float32, options ...GeometryBuilderOption) Geometry {
	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	for _, f := range cubeFaces {
		n, t, b := f[0], f[1], f[2]
		base := uint32(len(vertices))
		for _, c := range corners {
			var p [3]float32
			for i := range 3 {
				p[i] = (n[i] + c[0]*t[i] + c[1]*b[i]) * halfExtent
			}
			vertices = append(vertices, GPUVertex{
				Position: p,
				Normal:   n,
				TexCoord: [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
				Tangent:  [4]float32{t[0], t[1], t[2], 1},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	g, err := NewGeometry(vertices, indices, append([]GeometryBuilderOption{WithName("cube")}, options...)...)
	if err != nil {
		panic("model: failed to build cube: " + err.Error())
	}
	return g
}

// Plane returns a square in the XZ plane centered at the origin, facing +Y.
//
// Parameters:
//   - halfExtent: half the edge length
//   - options: optional builder options
//
// Returns:
//   - Geometry: the plane geometry
func Plane(halfExtent float32, options ...GeometryBuilderOption) Geometry {
	h := halfExtent
	up := [3]float32{0, 1, 0}
	tangent := [4]float32{1, 0, 0, 1}
	vertices := []GPUVertex{
		{Position: [3]float32{-h, 0, h}, Normal: up, TexCoord: [2]float32{0, 1}, Tangent: tangent},
		{Position: [3]float32{h, 0, h}, Normal: up, TexCoord: [2]float32{1, 1}, Tangent: tangent},
		{Position: [3]float32{h, 0, -h}, Normal: up, TexCoord: [2]float32{1, 0}, Tangent: tangent},
		{Position: [3]float32{-h, 0, -h}, Normal: up, TexCoord: [2]float32{0, 0}, Tangent: tangent},
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}

	g, err := NewGeometry(vertices, indices, append([]GeometryBuilderOption{WithName("plane")}, options...)...)
	if err != nil {
		panic("model: failed to build plane: " + err.Error())
	}
	return g
}
