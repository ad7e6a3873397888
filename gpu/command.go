package gpu

// BufferView is a byte range of a buffer. A zero Range means "to the end of
// the buffer".
type BufferView struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// UniformBinding binds a buffer range to a uniform slot.
type UniformBinding struct {
	Index  uint32
	Name   string
	Buffer BufferView
}

// TextureSamplerBinding binds a texture, and optionally the sampler used
// with it, to a texture slot.
type TextureSamplerBinding struct {
	Index   uint32
	Name    string
	Texture Texture
	Sampler Sampler
}

// SamplerBinding binds a standalone sampler to a sampler slot.
type SamplerBinding struct {
	Index   uint32
	Name    string
	Sampler Sampler
}

// Command is one indexed draw. It is fully populated by the draw layer,
// added to a RenderPass and consumed once when the pass is encoded.
type Command struct {
	Pipeline               RenderPipeline
	VertexBuffer           BufferView
	IndexBuffer            BufferView
	UniformBindings        []UniformBinding
	TextureSamplerBindings []TextureSamplerBinding
	SamplerBindings        []SamplerBinding
	// ScissorRect is applied only when non-empty.
	ScissorRect      ScissorRect
	StencilReference uint32
	IndexCount       uint32
	// InstanceCount of 0 draws one instance.
	InstanceCount uint32
}

// HasBindings reports whether the command carries any resource bindings.
func (c *Command) HasBindings() bool {
	return len(c.UniformBindings) > 0 || len(c.TextureSamplerBindings) > 0 || len(c.SamplerBindings) > 0
}

// Instances returns the instance count to draw.
func (c *Command) Instances() uint32 {
	if c.InstanceCount == 0 {
		return 1
	}
	return c.InstanceCount
}

// CommandList is the command storage shared by backend render passes.
type CommandList struct {
	commands []*Command
}

// AddCommand appends cmd. Nil commands are ignored.
func (l *CommandList) AddCommand(cmd *Command) {
	if cmd == nil {
		return
	}
	l.commands = append(l.commands, cmd)
}

// Commands returns the recorded commands in submission order.
func (l *CommandList) Commands() []*Command { return l.commands }

// ClearCommands drops all recorded commands.
func (l *CommandList) ClearCommands() { l.commands = l.commands[:0] }
