// package shader holds the embedded WGSL programs of every pass, the @oxy: annotation pre-processor that
// injects the WGSL definitions of Go GPU structs into them, and the binding parser that checks each program
// against the bind group slot table before a pipeline is built from it.
package shader

import (
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
)

// ErrLayoutMismatch is returned when a program declares a binding that its pass's bind group layouts do not provide.
var ErrLayoutMismatch = errors.New("shader bindings do not match the pass layout")

//go:embed assets/*.wgsl
var programFS embed.FS

// programFiles names the embedded program of each pass.
var programFiles = map[layout.Pass]string{
	layout.PassShadow:     "assets/shadow.wgsl",
	layout.PassSkybox:     "assets/skybox.wgsl",
	layout.PassPBR:        "assets/pbr.wgsl",
	layout.PassTonemap:    "assets/tonemap.wgsl",
	layout.PassEquirect:   "assets/equirect.wgsl",
	layout.PassIrradiance: "assets/irradiance.wgsl",
}

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	pass          layout.Pass
	source        string
	vertexEntry   string
	fragmentEntry string
	computeEntry  string
	workGroupSize [3]uint32
	bindings      []Binding
	vertexLayout  gpu.VertexBufferLayout
	hasVertex     bool
	declarations  []Annotation
}

// Shader is a pre-processed WGSL program with the metadata a pipeline needs.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and as the pipeline label.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Pass returns the pass whose bind group layouts the program is written against.
	//
	// Returns:
	//   - layout.Pass: the pass
	Pass() layout.Pass

	// Source retrieves the processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source code with every annotation expanded
	Source() string

	// VertexEntry returns the @vertex entry point name, or "" for compute programs.
	//
	// Returns:
	//   - string: the entry point
	VertexEntry() string

	// FragmentEntry returns the @fragment entry point name, or "" for depth-only and compute programs.
	//
	// Returns:
	//   - string: the entry point
	FragmentEntry() string

	// ComputeEntry returns the @compute entry point name, or "" for render programs.
	//
	// Returns:
	//   - string: the entry point
	ComputeEntry() string

	// WorkgroupSize returns the workgroup size of a compute program, [1, 1, 1] when unspecified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every resource the program declares, sorted by group and binding.
	//
	// Returns:
	//   - []Binding: the declared bindings
	Bindings() []Binding

	// VertexLayout returns the vertex buffer layout parsed from the program's vertex input struct.
	//
	// Returns:
	//   - gpu.VertexBufferLayout: the layout
	//   - bool: false if the program reads no vertex buffer
	VertexLayout() (gpu.VertexBufferLayout, bool)

	// Declarations returns the @oxy:group annotations expanded while processing the source.
	//
	// Returns:
	//   - []Annotation: the generated declarations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and parses a WGSL program and validates its bindings against the layouts of pass.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - pass: the pass the program is bound in
//   - source: the raw WGSL source with @oxy: annotations
//
// Returns:
//   - Shader: the parsed shader
//   - error: a pre-processing error, a missing entry point, or ErrLayoutMismatch
func NewShader(key string, pass layout.Pass, source string) (Shader, error) {
	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to pre-process source: %w", key, err)
	}

	s := &shader{
		key:           key,
		pass:          pass,
		source:        processed,
		vertexEntry:   parseEntryPoint(processed, stageVertex),
		fragmentEntry: parseEntryPoint(processed, stageFragment),
		computeEntry:  parseEntryPoint(processed, stageCompute),
		bindings:      parseBindings(processed),
		declarations:  append([]Annotation(nil), pp.Declarations()...),
	}
	if s.computeEntry != "" {
		s.workGroupSize = parseWorkgroupSize(processed)
	}
	if s.vertexEntry != "" {
		s.vertexLayout, s.hasVertex = parseVertexLayout(processed)
	}
	if s.vertexEntry == "" && s.computeEntry == "" {
		return nil, fmt.Errorf("shader %s: no @vertex or @compute entry point", key)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	return s, nil
}

var (
	loadMu    sync.Mutex
	loadCache = make(map[layout.Pass]Shader)
)

// Load returns the embedded program of a pass, parsing and validating it on first use.
//
// Parameters:
//   - pass: the pass
//
// Returns:
//   - Shader: the shared parsed program
//   - error: an error if the pass has no program or the program is invalid
func Load(pass layout.Pass) (Shader, error) {
	loadMu.Lock()
	defer loadMu.Unlock()
	if s, ok := loadCache[pass]; ok {
		return s, nil
	}
	file, ok := programFiles[pass]
	if !ok {
		return nil, fmt.Errorf("shader: no program for pass %s", pass)
	}
	data, err := programFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read %s: %w", file, err)
	}
	s, err := NewShader(pass.String(), pass, string(data))
	if err != nil {
		return nil, err
	}
	loadCache[pass] = s
	return s, nil
}

func (s *shader) Key() string                { return s.key }
func (s *shader) Pass() layout.Pass          { return s.pass }
func (s *shader) Source() string             { return s.source }
func (s *shader) VertexEntry() string        { return s.vertexEntry }
func (s *shader) FragmentEntry() string      { return s.fragmentEntry }
func (s *shader) ComputeEntry() string       { return s.computeEntry }
func (s *shader) WorkgroupSize() [3]uint32   { return s.workGroupSize }
func (s *shader) Declarations() []Annotation { return s.declarations }
func (s *shader) Bindings() []Binding        { return append([]Binding(nil), s.bindings...) }

func (s *shader) VertexLayout() (gpu.VertexBufferLayout, bool) {
	return s.vertexLayout, s.hasVertex
}

// validate checks every declared binding against the layout entry at the same group and binding.
// Sampled float textures match both filterable and unfilterable layout entries.
func (s *shader) validate() error {
	groups := s.pass.Groups()
	for _, b := range s.bindings {
		if int(b.Group) >= len(groups) {
			return fmt.Errorf("%w: %s declares group %d but pass %s has %d groups", ErrLayoutMismatch, b.Name, b.Group, s.pass, len(groups))
		}
		kind := groups[b.Group]
		entry, ok := kind.Descriptor().Entry(b.Binding)
		if !ok {
			return fmt.Errorf("%w: %s at group %d binding %d is not in the %s layout", ErrLayoutMismatch, b.Name, b.Group, b.Binding, kind)
		}
		if !bindingTypesMatch(b.Type, entry.Type) {
			return fmt.Errorf("%w: %s at group %d binding %d has type %d, %s layout expects %d", ErrLayoutMismatch, b.Name, b.Group, b.Binding, b.Type, kind, entry.Type)
		}
		if b.Type.IsTexture() && b.ViewDimension != entry.ViewDimension {
			return fmt.Errorf("%w: %s view dimension %d, %s layout expects %d", ErrLayoutMismatch, b.Name, b.ViewDimension, kind, entry.ViewDimension)
		}
		if b.Type == gpu.BindingTypeStorageTexture && b.StorageFormat != entry.StorageFormat {
			return fmt.Errorf("%w: %s storage format %s, %s layout expects %s", ErrLayoutMismatch, b.Name, b.StorageFormat, kind, entry.StorageFormat)
		}
		if b.Type.IsBuffer() && b.Size != entry.MinBindingSize {
			return fmt.Errorf("%w: %s is %d bytes, %s layout expects %d", ErrLayoutMismatch, b.Name, b.Size, kind, entry.MinBindingSize)
		}
	}
	return nil
}

func bindingTypesMatch(declared, expected gpu.BindingType) bool {
	if declared == expected {
		return true
	}
	return declared == gpu.BindingTypeFilterableTexture && expected == gpu.BindingTypeUnfilterableTexture
}
