package software

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"go.uber.org/zap"
)

// Submission is the log entry of one executed pass.
type Submission struct {
	// Sequence counts passes across all submits, starting at 0.
	Sequence      int
	CommandBuffer string
	Pass          string
	Kind          gpu.PassKind
	// ColorTargets holds the texture IDs behind each color attachment.
	ColorTargets []gpu.ResourceID
	ColorLoadOps []gpu.LoadOp
	// DepthTarget is the texture ID behind the depth attachment, 0 when the pass has none.
	DepthTarget gpu.ResourceID
	DepthLayer  uint32
	DepthLoadOp gpu.LoadOp
	// Pipelines lists the labels of the pipelines set, in order.
	Pipelines  []string
	Draws      int
	Dispatches [][3]uint32
}

// depthTarget is the resolved depth attachment of a render pass.
type depthTarget struct {
	state *textureState
	layer uint32
}

func (d *device) Submit(buffers ...*gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, cb := range buffers {
		if cb == nil {
			return fmt.Errorf("software: nil command buffer")
		}
		for _, pass := range cb.Passes {
			sub := Submission{Sequence: d.sequence, CommandBuffer: cb.Label, Pass: pass.Label, Kind: pass.Kind}
			d.sequence++

			var err error
			if pass.Kind == gpu.PassKindCompute {
				err = d.executeCompute(&sub, pass)
			} else {
				err = d.executeRender(&sub, pass)
			}
			if err != nil {
				return fmt.Errorf("software: command buffer %q pass %q: %w", cb.Label, pass.Label, err)
			}
			d.submissions = append(d.submissions, sub)
		}
	}
	return nil
}

func (d *device) executeRender(sub *Submission, pass gpu.PassRecord) error {
	desc := pass.Render
	for i, ca := range desc.ColorAttachments {
		state, err := d.view(ca.View)
		if err != nil {
			return fmt.Errorf("color attachment %d: %w", i, err)
		}
		if state.handle.Format().IsDepth() {
			return fmt.Errorf("color attachment %d is a depth texture", i)
		}
		sub.ColorTargets = append(sub.ColorTargets, state.handle.ID())
		sub.ColorLoadOps = append(sub.ColorLoadOps, ca.LoadOp)
		if ca.LoadOp == gpu.LoadOpClear {
			clear := [4]float32{float32(ca.ClearValue.R), float32(ca.ClearValue.G), float32(ca.ClearValue.B), float32(ca.ClearValue.A)}
			for l := range ca.View.LayerCount() {
				layer := state.layers[ca.View.BaseLayer()+l]
				for t := 0; t < len(layer); t += 4 {
					for c := range 4 {
						layer[t+c] = quantize(state.handle.Format(), clear[c])
					}
				}
			}
		}
	}

	var depth *depthTarget
	if da := desc.DepthAttachment; da != nil {
		state, err := d.view(da.View)
		if err != nil {
			return fmt.Errorf("depth attachment: %w", err)
		}
		if !state.handle.Format().IsDepth() {
			return fmt.Errorf("depth attachment has color format %s", state.handle.Format())
		}
		depth = &depthTarget{state: state, layer: da.View.BaseLayer()}
		sub.DepthTarget = state.handle.ID()
		sub.DepthLayer = da.View.BaseLayer()
		sub.DepthLoadOp = da.LoadOp
		if da.LoadOp == gpu.LoadOpClear {
			layer := state.layers[depth.layer]
			for i := range layer {
				layer[i] = da.ClearValue
			}
		}
	}

	var pipeline *gpu.RenderPipeline
	var index *gpu.Buffer
	groups := make(map[uint32]*gpu.BindGroup)
	vertex := make(map[uint32]*gpu.Buffer)
	for ci, cmd := range pass.Commands {
		switch cmd.Kind {
		case gpu.CommandSetRenderPipeline:
			if cmd.RenderPipeline == nil {
				return fmt.Errorf("command %d: nil pipeline", ci)
			}
			if _, ok := d.renderPipelines[cmd.RenderPipeline.ID()]; !ok {
				return fmt.Errorf("command %d: pipeline %q: %w", ci, cmd.RenderPipeline.Label(), gpu.ErrUnknownResource)
			}
			if err := checkTargets(cmd.RenderPipeline.Descriptor(), desc); err != nil {
				return fmt.Errorf("command %d: %w", ci, err)
			}
			pipeline = cmd.RenderPipeline
			sub.Pipelines = append(sub.Pipelines, pipeline.Label())
		case gpu.CommandSetBindGroup:
			if err := d.setBindGroup(groups, cmd); err != nil {
				return fmt.Errorf("command %d: %w", ci, err)
			}
		case gpu.CommandSetVertexBuffer:
			if _, err := d.buffer(cmd.Buffer); err != nil {
				return fmt.Errorf("command %d: vertex buffer %d: %w", ci, cmd.Slot, err)
			}
			vertex[cmd.Slot] = cmd.Buffer
		case gpu.CommandSetIndexBuffer:
			if _, err := d.buffer(cmd.Buffer); err != nil {
				return fmt.Errorf("command %d: index buffer: %w", ci, err)
			}
			index = cmd.Buffer
		case gpu.CommandDraw, gpu.CommandDrawIndexed:
			if pipeline == nil {
				return fmt.Errorf("command %d: draw without a pipeline", ci)
			}
			pd := pipeline.Descriptor()
			if err := d.checkGroups(pd.BindGroupLayouts, groups); err != nil {
				return fmt.Errorf("command %d: pipeline %q: %w", ci, pipeline.Label(), err)
			}
			sub.Draws++
			if cmd.Kind != gpu.CommandDrawIndexed || pd.FragmentEntry != "" || depth == nil {
				continue
			}
			if index == nil {
				return fmt.Errorf("command %d: indexed draw without an index buffer", ci)
			}
			if err := d.drawDepth(pipeline, groups, vertex, index, cmd.Count, depth); err != nil {
				return fmt.Errorf("command %d: %w", ci, err)
			}
		default:
			return fmt.Errorf("command %d: compute command recorded in a render pass", ci)
		}
	}
	return nil
}

func (d *device) executeCompute(sub *Submission, pass gpu.PassRecord) error {
	var pipeline *gpu.ComputePipeline
	groups := make(map[uint32]*gpu.BindGroup)
	for ci, cmd := range pass.Commands {
		switch cmd.Kind {
		case gpu.CommandSetComputePipeline:
			if cmd.ComputePipeline == nil {
				return fmt.Errorf("command %d: nil pipeline", ci)
			}
			if _, ok := d.computePipelines[cmd.ComputePipeline.ID()]; !ok {
				return fmt.Errorf("command %d: pipeline %q: %w", ci, cmd.ComputePipeline.Label(), gpu.ErrUnknownResource)
			}
			pipeline = cmd.ComputePipeline
			sub.Pipelines = append(sub.Pipelines, pipeline.Label())
		case gpu.CommandSetBindGroup:
			if err := d.setBindGroup(groups, cmd); err != nil {
				return fmt.Errorf("command %d: %w", ci, err)
			}
		case gpu.CommandDispatch:
			if pipeline == nil {
				return fmt.Errorf("command %d: dispatch without a pipeline", ci)
			}
			pd := pipeline.Descriptor()
			if err := d.checkGroups(pd.BindGroupLayouts, groups); err != nil {
				return fmt.Errorf("command %d: pipeline %q: %w", ci, pipeline.Label(), err)
			}
			sub.Dispatches = append(sub.Dispatches, cmd.Workgroups)
			kernel, ok := computeKernels[pd.EntryPoint]
			if !ok {
				d.logger.Debug("dispatch recorded without execution", zap.String("entry", pd.EntryPoint))
				continue
			}
			if err := kernel.run(d, groups, kernel.invocations(cmd.Workgroups)); err != nil {
				return fmt.Errorf("command %d: %s: %w", ci, pd.EntryPoint, err)
			}
		default:
			return fmt.Errorf("command %d: render command recorded in a compute pass", ci)
		}
	}
	return nil
}

func (d *device) setBindGroup(groups map[uint32]*gpu.BindGroup, cmd gpu.Command) error {
	if cmd.BindGroup == nil {
		return fmt.Errorf("nil bind group at slot %d", cmd.Slot)
	}
	if _, ok := d.bindGroups[cmd.BindGroup.ID()]; !ok {
		return fmt.Errorf("bind group %q at slot %d: %w", cmd.BindGroup.Label(), cmd.Slot, gpu.ErrUnknownResource)
	}
	groups[cmd.Slot] = cmd.BindGroup
	return nil
}

// checkGroups verifies that every group a pipeline declares is set with a bind group of that exact layout and that
// all resources it references are still live.
func (d *device) checkGroups(layouts []*gpu.BindGroupLayout, groups map[uint32]*gpu.BindGroup) error {
	for i, l := range layouts {
		g, ok := groups[uint32(i)]
		if !ok {
			return fmt.Errorf("no bind group set at slot %d (%s)", i, l.Label())
		}
		if g.Layout() != l {
			return fmt.Errorf("bind group %q at slot %d has layout %q, pipeline expects %q",
				g.Label(), i, g.Layout().Label(), l.Label())
		}
		for _, e := range g.Descriptor().Entries {
			le, _ := l.Descriptor().Entry(e.Binding)
			if err := d.checkEntry(g.Label(), le, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkTargets verifies that a pipeline's color and depth formats match the pass attachments.
func checkTargets(pd gpu.RenderPipelineDescriptor, desc gpu.RenderPassDescriptor) error {
	if pd.FragmentEntry != "" {
		if len(pd.ColorFormats) != len(desc.ColorAttachments) {
			return fmt.Errorf("pipeline %q has %d color targets, pass has %d", pd.Label, len(pd.ColorFormats), len(desc.ColorAttachments))
		}
		for i, f := range pd.ColorFormats {
			if got := desc.ColorAttachments[i].View.Texture().Format(); got != f {
				return fmt.Errorf("pipeline %q color target %d expects %s, attachment is %s", pd.Label, i, f, got)
			}
		}
	}
	switch {
	case pd.Depth == nil && desc.DepthAttachment != nil:
		return fmt.Errorf("pipeline %q has no depth state but the pass has a depth attachment", pd.Label)
	case pd.Depth != nil && desc.DepthAttachment == nil:
		return fmt.Errorf("pipeline %q needs a depth attachment", pd.Label)
	case pd.Depth != nil && desc.DepthAttachment.View.Texture().Format() != pd.Depth.Format:
		return fmt.Errorf("pipeline %q depth format %s does not match attachment %s",
			pd.Label, pd.Depth.Format, desc.DepthAttachment.View.Texture().Format())
	}
	return nil
}
