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

// computeKernel is the CPU body of a compute entry point. workgroupSize matches the @workgroup_size of the WGSL
// entry point so a dispatch covers the same invocations it would on hardware.
type computeKernel struct {
	workgroupSize [3]uint32
	run           func(d *device, groups map[uint32]*gpu.BindGroup, invocations [3]uint32) error
}

// invocations is the total invocation count along each axis of a dispatch.
func (k computeKernel) invocations(workgroups [3]uint32) [3]uint32 {
	return [3]uint32{
		workgroups[0] * k.workgroupSize[0],
		workgroups[1] * k.workgroupSize[1],
		workgroups[2] * k.workgroupSize[2],
	}
}

var computeKernels = map[string]computeKernel{
	"cs_equirect_to_cubemap": {workgroupSize: [3]uint32{16, 16, 1}, run: equirectKernel},
	"cs_irradiance":          {workgroupSize: [3]uint32{8, 8, 1}, run: irradianceKernel},
}

// equirectKernel projects an equirectangular source onto the layers of a cube storage target with nearest texel
// lookups. Invocations outside the target are skipped.
func equirectKernel(d *device, groups map[uint32]*gpu.BindGroup, inv [3]uint32) error {
	slot := layout.PassEquirect.Slot(layout.BindGroupEquirect)
	srcView, src, err := d.boundView(groups, slot, layout.EquirectBindingSource)
	if err != nil {
		return err
	}
	dstView, dst, err := d.boundView(groups, slot, layout.EquirectBindingTarget)
	if err != nil {
		return err
	}

	sw, sh := int(src.handle.Width()), int(src.handle.Height())
	fw, fh := int(dst.handle.Width()), int(dst.handle.Height())
	nx, ny := min(int(inv[0]), fw), min(int(inv[1]), fh)
	nz := min(int(inv[2]), int(dstView.LayerCount()), common.CubeFaceCount)
	srcLayer := srcView.BaseLayer()
	format := dst.handle.Format()

	return d.parallel(nz, func(z int) error {
		face := common.CubeFace(z)
		layer := dstView.BaseLayer() + uint32(z)
		for y := range ny {
			for x := range nx {
				dir := common.FaceDirection(face, (float32(x)+0.5)/float32(fw), (float32(y)+0.5)/float32(fh))
				u, v := common.EquirectUV(dir)
				tx := min(int(u*float32(sw)), sw-1)
				ty := min(int(v*float32(sh)), sh-1)
				in := src.texel(srcLayer, tx, ty)
				out := dst.texel(layer, x, y)
				for c := range 4 {
					out[c] = quantize(format, in[c])
				}
			}
		}
		return nil
	})
}

// irradianceKernel convolves the environment cube over the cosine-weighted hemisphere of every target texel.
func irradianceKernel(d *device, groups map[uint32]*gpu.BindGroup, inv [3]uint32) error {
	slot := layout.PassIrradiance.Slot(layout.BindGroupIrradiance)
	envView, env, err := d.boundView(groups, slot, layout.IrradianceBindingSource)
	if err != nil {
		return err
	}
	if envView.Dimension() != gpu.TextureViewDimensionCube {
		return fmt.Errorf("irradiance source %q is not a cube view", envView.Label())
	}
	sampler, err := d.boundSampler(groups, slot, layout.IrradianceBindingSampler)
	if err != nil {
		return err
	}
	dstView, dst, err := d.boundView(groups, slot, layout.IrradianceBindingTarget)
	if err != nil {
		return err
	}
	params, err := d.boundBuffer(groups, slot, layout.IrradianceBindingParams)
	if err != nil {
		return err
	}
	size := int(readUint32(params[0:]))
	delta := math.Float32frombits(readUint32(params[4:]))
	if delta <= 0 {
		return fmt.Errorf("irradiance sample delta %v must be positive", delta)
	}

	nx, ny := min(int(inv[0]), size, int(dst.handle.Width())), min(int(inv[1]), size, int(dst.handle.Height()))
	nz := min(int(inv[2]), int(dstView.LayerCount()), common.CubeFaceCount)
	filter := sampler.Descriptor().MagFilter
	format := dst.handle.Format()

	return d.parallel(nz, func(z int) error {
		face := common.CubeFace(z)
		layer := dstView.BaseLayer() + uint32(z)
		for y := range ny {
			for x := range nx {
				n := common.FaceDirection(face, (float32(x)+0.5)/float32(size), (float32(y)+0.5)/float32(size))
				c := convolve(env, envView.BaseLayer(), n, delta, filter)
				out := dst.texel(layer, x, y)
				for i := range 3 {
					out[i] = quantize(format, c[i])
				}
				out[3] = quantize(format, 1)
			}
		}
		return nil
	})
}

// convolve integrates env * cos(theta) * sin(theta) over the hemisphere around n with a fixed angular step and
// returns pi times the sample mean.
func convolve(env *textureState, base uint32, n mgl32.Vec3, delta float32, filter gpu.FilterMode) mgl32.Vec3 {
	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(n.Y()) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	right := up.Cross(n).Normalize()
	up = n.Cross(right)

	var sum mgl32.Vec3
	var count float32
	for phi := float32(0); phi < 2*math32.Pi; phi += delta {
		sp, cp := math32.Sincos(phi)
		for theta := float32(0); theta < 0.5*math32.Pi; theta += delta {
			st, ct := math32.Sincos(theta)
			dir := right.Mul(st * cp).Add(up.Mul(st * sp)).Add(n.Mul(ct))
			c := sampleCube(env, base, dir, filter)
			sum = sum.Add(mgl32.Vec3{c[0], c[1], c[2]}.Mul(ct * st))
			count++
		}
	}
	return sum.Mul(math32.Pi / count)
}

// sampleCube samples a cube view whose faces start at layer base. Linear filtering is bilinear within the selected
// face with edge texels clamped.
func sampleCube(env *textureState, base uint32, dir mgl32.Vec3, filter gpu.FilterMode) [4]float32 {
	face, u, v := common.DirectionToFace(dir)
	layer := base + uint32(face)
	size := int(env.handle.Width())
	clamp := func(i int) int { return max(0, min(size-1, i)) }

	if filter == gpu.FilterModeNearest {
		t := env.texel(layer, clamp(int(u*float32(size))), clamp(int(v*float32(size))))
		return [4]float32{t[0], t[1], t[2], t[3]}
	}

	fx, fy := u*float32(size)-0.5, v*float32(size)-0.5
	x0, y0 := math32.Floor(fx), math32.Floor(fy)
	tx, ty := fx-x0, fy-y0
	ix, iy := int(x0), int(y0)
	c00 := env.texel(layer, clamp(ix), clamp(iy))
	c10 := env.texel(layer, clamp(ix+1), clamp(iy))
	c01 := env.texel(layer, clamp(ix), clamp(iy+1))
	c11 := env.texel(layer, clamp(ix+1), clamp(iy+1))
	var out [4]float32
	for c := range 4 {
		top := c00[c]*(1-tx) + c10[c]*tx
		bottom := c01[c]*(1-tx) + c11[c]*tx
		out[c] = top*(1-ty) + bottom*ty
	}
	return out
}

// boundView returns the view at (group, binding) and the state of its texture.
func (d *device) boundView(groups map[uint32]*gpu.BindGroup, group, binding uint32) (*gpu.TextureView, *textureState, error) {
	g, ok := groups[group]
	if !ok {
		return nil, nil, fmt.Errorf("no bind group set at slot %d", group)
	}
	e, ok := g.Entry(binding)
	if !ok || e.TextureView == nil {
		return nil, nil, fmt.Errorf("bind group %q has no texture view at binding %d", g.Label(), binding)
	}
	state, err := d.view(e.TextureView)
	if err != nil {
		return nil, nil, err
	}
	return e.TextureView, state, nil
}

// boundSampler returns the sampler at (group, binding).
func (d *device) boundSampler(groups map[uint32]*gpu.BindGroup, group, binding uint32) (*gpu.Sampler, error) {
	g, ok := groups[group]
	if !ok {
		return nil, fmt.Errorf("no bind group set at slot %d", group)
	}
	e, ok := g.Entry(binding)
	if !ok || e.Sampler == nil {
		return nil, fmt.Errorf("bind group %q has no sampler at binding %d", g.Label(), binding)
	}
	return e.Sampler, nil
}
