package software

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// vertexProgram resolves the object-to-clip matrix of a depth-only vertex stage from the bound groups.
type vertexProgram func(d *device, groups map[uint32]*gpu.BindGroup) (mgl32.Mat4, error)

var vertexPrograms = map[string]vertexProgram{
	"vs_shadow": shadowVertexProgram,
}

// shadowVertexProgram is face.view_proj * object.model.
func shadowVertexProgram(d *device, groups map[uint32]*gpu.BindGroup) (mgl32.Mat4, error) {
	face, err := d.boundBuffer(groups, layout.PassShadow.Slot(layout.BindGroupShadowFace), layout.ShadowFaceBindingUniform)
	if err != nil {
		return mgl32.Mat4{}, err
	}
	object, err := d.boundBuffer(groups, layout.PassShadow.Slot(layout.BindGroupTransform), layout.TransformBindingUniform)
	if err != nil {
		return mgl32.Mat4{}, err
	}
	return common.ReadMat4(face[:64]).Mul4(common.ReadMat4(object[:64])), nil
}

// screenTriangle is a projected triangle in pixel space with NDC depth per vertex.
type screenTriangle struct {
	x, y, z                [3]float32
	area                   float32
	minX, maxX, minY, maxY int
}

func (d *device) drawDepth(pipeline *gpu.RenderPipeline, groups map[uint32]*gpu.BindGroup, vertex map[uint32]*gpu.Buffer,
	index *gpu.Buffer, count uint32, target *depthTarget) error {
	pd := pipeline.Descriptor()
	mvp, err := vertexPrograms[pd.VertexEntry](d, groups)
	if err != nil {
		return err
	}
	if len(pd.VertexBuffers) == 0 {
		return fmt.Errorf("pipeline %q has no vertex buffer layout", pd.Label)
	}
	stride := pd.VertexBuffers[0].ArrayStride
	var offset uint64
	found := false
	for _, a := range pd.VertexBuffers[0].Attributes {
		if a.ShaderLocation == 0 {
			offset, found = a.Offset, true
		}
	}
	if !found {
		return fmt.Errorf("pipeline %q has no position attribute at location 0", pd.Label)
	}

	vb, err := d.buffer(vertex[0])
	if err != nil {
		return fmt.Errorf("vertex buffer 0: %w", err)
	}
	ib, err := d.buffer(index)
	if err != nil {
		return fmt.Errorf("index buffer: %w", err)
	}
	if uint64(count)*4 > uint64(len(ib.data)) {
		return fmt.Errorf("draw of %d indices exceeds index buffer %q", count, index.Label())
	}

	w, h := int(target.state.handle.Width()), int(target.state.handle.Height())
	tris := make([]screenTriangle, 0, count/3)
	for t := uint32(0); t+2 < count; t += 3 {
		var clip [3]mgl32.Vec4
		for k := range uint32(3) {
			idx := readUint32(ib.data[(t+k)*4:])
			base := uint64(idx)*stride + offset
			if base+12 > uint64(len(vb.data)) {
				return fmt.Errorf("index %d at position %d is outside vertex buffer %q", idx, t+k, vertex[0].Label())
			}
			p := mgl32.Vec4{
				math.Float32frombits(readUint32(vb.data[base:])),
				math.Float32frombits(readUint32(vb.data[base+4:])),
				math.Float32frombits(readUint32(vb.data[base+8:])),
				1,
			}
			clip[k] = mvp.Mul4x1(p)
		}
		poly := clipNear(clip[:])
		for i := 1; i+1 < len(poly); i++ {
			if tri, ok := project(poly[0], poly[i], poly[i+1], w, h, pd.CullMode); ok {
				tris = append(tris, tri)
			}
		}
	}
	if len(tris) == 0 {
		return nil
	}

	compare, write := gpu.CompareFunctionAlways, false
	if pd.Depth != nil {
		compare, write = pd.Depth.Compare, pd.Depth.WriteEnabled
	}
	layer := target.state.layers[target.layer]
	bands := min(d.workers, h)
	rows := (h + bands - 1) / bands
	return d.parallel(bands, func(b int) error {
		y0, y1 := b*rows, min(h, (b+1)*rows)
		for i := range tris {
			rasterize(&tris[i], layer, w, y0, y1, compare, write)
		}
		return nil
	})
}

// clipNear clips a polygon against the clip-space near plane z >= 0.
func clipNear(in []mgl32.Vec4) []mgl32.Vec4 {
	out := make([]mgl32.Vec4, 0, len(in)+1)
	for i := range in {
		a, b := in[i], in[(i+1)%len(in)]
		da, db := a.Z(), b.Z()
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			out = append(out, a.Add(b.Sub(a).Mul(t)))
		}
	}
	return out
}

// project divides by w, applies face culling and maps to pixel space. Counter-clockwise triangles in NDC face front.
func project(a, b, c mgl32.Vec4, w, h int, cull gpu.CullMode) (screenTriangle, bool) {
	var tri screenTriangle
	var ndc [3]mgl32.Vec3
	for k, v := range [3]mgl32.Vec4{a, b, c} {
		if v.W() <= 0 {
			return tri, false
		}
		ndc[k] = v.Vec3().Mul(1 / v.W())
	}
	signed := (ndc[1].X()-ndc[0].X())*(ndc[2].Y()-ndc[0].Y()) - (ndc[2].X()-ndc[0].X())*(ndc[1].Y()-ndc[0].Y())
	if signed == 0 {
		return tri, false
	}
	front := signed > 0
	if (cull == gpu.CullModeBack && !front) || (cull == gpu.CullModeFront && front) {
		return tri, false
	}

	minX, maxX := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	minY, maxY := minX, maxX
	for k := range 3 {
		tri.x[k] = (ndc[k].X() + 1) / 2 * float32(w)
		tri.y[k] = (1 - ndc[k].Y()) / 2 * float32(h)
		tri.z[k] = ndc[k].Z()
		minX, maxX = min(minX, tri.x[k]), max(maxX, tri.x[k])
		minY, maxY = min(minY, tri.y[k]), max(maxY, tri.y[k])
	}
	tri.area = edge(tri.x[0], tri.y[0], tri.x[1], tri.y[1], tri.x[2], tri.y[2])
	tri.minX = max(0, int(math32.Floor(minX)))
	tri.maxX = min(w-1, int(math32.Ceil(maxX)))
	tri.minY = max(0, int(math32.Floor(minY)))
	tri.maxY = min(h-1, int(math32.Ceil(maxY)))
	if tri.area == 0 || tri.minX > tri.maxX || tri.minY > tri.maxY {
		return tri, false
	}
	return tri, true
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// rasterize depth-tests the pixel centers of a triangle within rows [y0, y1).
func rasterize(tri *screenTriangle, layer []float32, width, y0, y1 int, compare gpu.CompareFunction, write bool) {
	for y := max(tri.minY, y0); y <= min(tri.maxY, y1-1); y++ {
		py := float32(y) + 0.5
		for x := tri.minX; x <= tri.maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(tri.x[1], tri.y[1], tri.x[2], tri.y[2], px, py) / tri.area
			w1 := edge(tri.x[2], tri.y[2], tri.x[0], tri.y[0], px, py) / tri.area
			w2 := edge(tri.x[0], tri.y[0], tri.x[1], tri.y[1], px, py) / tri.area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*tri.z[0] + w1*tri.z[1] + w2*tri.z[2]
			if z < 0 || z > 1 {
				continue
			}
			dst := &layer[y*width+x]
			if !compare.Test(z, *dst) {
				continue
			}
			if write {
				*dst = z
			}
		}
	}
}
