package gpu

import (
	"errors"
	"fmt"
)

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	View       *TextureView
	LoadOp     LoadOp
	ClearValue Color
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	View       *TextureView
	LoadOp     LoadOp
	ClearValue float32
}

// RenderPassDescriptor describes the attachments of a render pass.
type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []ColorAttachment
	DepthAttachment  *DepthAttachment
}

// PassKind distinguishes render and compute passes in a recorded command buffer.
type PassKind int

const (
	PassKindRender PassKind = iota
	PassKindCompute
)

// CommandKind identifies a single recorded pass command.
type CommandKind int

const (
	CommandSetRenderPipeline CommandKind = iota
	CommandSetComputePipeline
	CommandSetBindGroup
	CommandSetVertexBuffer
	CommandSetIndexBuffer
	CommandDraw
	CommandDrawIndexed
	CommandDispatch
)

// Command is one recorded pass command. Only the fields relevant to Kind are set.
type Command struct {
	Kind            CommandKind
	RenderPipeline  *RenderPipeline
	ComputePipeline *ComputePipeline
	Slot            uint32
	BindGroup       *BindGroup
	Buffer          *Buffer
	// Count is the vertex or index count for draws.
	Count         uint32
	InstanceCount uint32
	Workgroups    [3]uint32
}

// PassRecord is a finished pass inside a CommandBuffer.
type PassRecord struct {
	Kind     PassKind
	Label    string
	Render   RenderPassDescriptor
	Commands []Command
}

// CommandBuffer is an immutable, submittable recording of passes.
type CommandBuffer struct {
	Label  string
	Passes []PassRecord
}

// ErrPassOpen is returned when a pass is begun or the encoder finished while another pass is still recording.
var ErrPassOpen = errors.New("gpu: a pass is still recording")

// CommandEncoder records passes into a CommandBuffer. Only one pass may record at a time.
type CommandEncoder struct {
	label    string
	passes   []PassRecord
	open     bool
	finished bool
	err      error
}

// NewCommandEncoder starts a new recording.
//
// Parameters:
//   - label: a debug label carried onto the finished CommandBuffer
//
// Returns:
//   - *CommandEncoder: the encoder
func NewCommandEncoder(label string) *CommandEncoder {
	return &CommandEncoder{label: label}
}

// BeginRenderPass opens a render pass. Recording errors are deferred to Finish.
//
// Parameters:
//   - desc: the pass attachments
//
// Returns:
//   - *RenderPass: the pass recorder
func (e *CommandEncoder) BeginRenderPass(desc RenderPassDescriptor) *RenderPass {
	e.begin()
	if len(desc.ColorAttachments) == 0 && desc.DepthAttachment == nil {
		e.fail(fmt.Errorf("%w: render pass %q has no attachments", ErrInvalidDescriptor, desc.Label))
	}
	e.passes = append(e.passes, PassRecord{Kind: PassKindRender, Label: desc.Label, Render: desc})
	return &RenderPass{encoder: e, index: len(e.passes) - 1}
}

// BeginComputePass opens a compute pass. Recording errors are deferred to Finish.
//
// Parameters:
//   - label: a debug label for the pass
//
// Returns:
//   - *ComputePass: the pass recorder
func (e *CommandEncoder) BeginComputePass(label string) *ComputePass {
	e.begin()
	e.passes = append(e.passes, PassRecord{Kind: PassKindCompute, Label: label})
	return &ComputePass{encoder: e, index: len(e.passes) - 1}
}

// Finish closes the recording.
//
// Returns:
//   - *CommandBuffer: the recorded passes in order
//   - error: the first recording error, or ErrPassOpen if a pass was never ended
func (e *CommandEncoder) Finish() (*CommandBuffer, error) {
	if e.open {
		e.fail(fmt.Errorf("%w: encoder %q finished with an open pass", ErrPassOpen, e.label))
	}
	if e.err != nil {
		return nil, e.err
	}
	e.finished = true
	return &CommandBuffer{Label: e.label, Passes: e.passes}, nil
}

// PassLabels returns the labels of the passes recorded so far, in order.
//
// Returns:
//   - []string: the pass labels
func (e *CommandEncoder) PassLabels() []string {
	labels := make([]string, len(e.passes))
	for i, p := range e.passes {
		labels[i] = p.Label
	}
	return labels
}

func (e *CommandEncoder) begin() {
	if e.finished {
		e.fail(fmt.Errorf("gpu: encoder %q already finished", e.label))
	}
	if e.open {
		e.fail(fmt.Errorf("%w: encoder %q", ErrPassOpen, e.label))
	}
	e.open = true
}

func (e *CommandEncoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *CommandEncoder) record(index int, c Command) {
	if !e.open || index != len(e.passes)-1 {
		e.fail(fmt.Errorf("gpu: command recorded on an ended pass in encoder %q", e.label))
		return
	}
	e.passes[index].Commands = append(e.passes[index].Commands, c)
}

// RenderPass records draw commands into its encoder.
type RenderPass struct {
	encoder *CommandEncoder
	index   int
}

func (p *RenderPass) SetPipeline(pipeline *RenderPipeline) {
	p.encoder.record(p.index, Command{Kind: CommandSetRenderPipeline, RenderPipeline: pipeline})
}

func (p *RenderPass) SetBindGroup(slot uint32, group *BindGroup) {
	p.encoder.record(p.index, Command{Kind: CommandSetBindGroup, Slot: slot, BindGroup: group})
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buf *Buffer) {
	p.encoder.record(p.index, Command{Kind: CommandSetVertexBuffer, Slot: slot, Buffer: buf})
}

// SetIndexBuffer binds a uint32 index buffer.
func (p *RenderPass) SetIndexBuffer(buf *Buffer) {
	p.encoder.record(p.index, Command{Kind: CommandSetIndexBuffer, Buffer: buf})
}

func (p *RenderPass) Draw(vertexCount, instanceCount uint32) {
	p.encoder.record(p.index, Command{Kind: CommandDraw, Count: vertexCount, InstanceCount: instanceCount})
}

func (p *RenderPass) DrawIndexed(indexCount, instanceCount uint32) {
	p.encoder.record(p.index, Command{Kind: CommandDrawIndexed, Count: indexCount, InstanceCount: instanceCount})
}

// End closes the pass. The encoder may then begin another pass or finish.
func (p *RenderPass) End() {
	p.encoder.open = false
}

// ComputePass records dispatch commands into its encoder.
type ComputePass struct {
	encoder *CommandEncoder
	index   int
}

func (p *ComputePass) SetPipeline(pipeline *ComputePipeline) {
	p.encoder.record(p.index, Command{Kind: CommandSetComputePipeline, ComputePipeline: pipeline})
}

func (p *ComputePass) SetBindGroup(slot uint32, group *BindGroup) {
	p.encoder.record(p.index, Command{Kind: CommandSetBindGroup, Slot: slot, BindGroup: group})
}

func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.encoder.record(p.index, Command{Kind: CommandDispatch, Workgroups: [3]uint32{x, y, z}})
}

// End closes the pass.
func (p *ComputePass) End() {
	p.encoder.open = false
}

// WorkgroupCount returns ceil(size / workgroupSize), the dispatch count that covers size invocations.
//
// Parameters:
//   - size: the number of invocations needed along one axis
//   - workgroupSize: the shader's workgroup size along that axis
//
// Returns:
//   - uint32: the workgroup count
func WorkgroupCount(size, workgroupSize uint32) uint32 {
	return (size + workgroupSize - 1) / workgroupSize
}
