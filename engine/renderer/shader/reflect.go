package shader

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// VertexInput is one @location input of a vertex entry point. Name is the WGSL parameter or
// struct field name and is matched against mesh attribute names by the pipeline compiler.
type VertexInput struct {
	Name     string
	Location uint32
	Format   wgpu.VertexFormat
}

// BindingLayout is one @group/@binding resource declaration.
type BindingLayout struct {
	Group   uint32
	Binding uint32
	Name    string
	Kind    render_resource.ResourceKind
	Entry   wgpu.BindGroupLayoutEntry
}

// Reflection is the interface of a processed shader as seen by pipeline creation.
type Reflection struct {
	EntryPoint    string
	WorkgroupSize [3]uint32
	VertexInputs  []VertexInput
	Bindings      []BindingLayout
}

var (
	entryRegexes = map[ShaderStage]*regexp.Regexp{
		ShaderStageVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderStageFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderStageCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	structRegex        = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex      = regexp.MustCompile(`@location\(\s*(\d+)\s*\)`)
	builtinRegex       = regexp.MustCompile(`@builtin\(\s*\w+\s*\)`)
	declRegex          = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)
	bindingRegex       = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// Reflect extracts the entry point, vertex inputs, workgroup size and resource bindings from
// processed WGSL source. Vertex inputs are only collected for vertex shaders and the workgroup
// size only for compute shaders.
//
// Parameters:
//   - source: WGSL source with shader-def directives already resolved
//   - stage: the stage whose entry point is reflected
//
// Returns:
//   - Reflection: the reflected shader interface
//   - error: an error if the entry point is missing or a vertex input has an unsupported type
func Reflect(source string, stage ShaderStage) (Reflection, error) {
	cleaned := stripComments(source)

	var r Reflection
	re, ok := entryRegexes[stage]
	if !ok {
		return r, fmt.Errorf("shader: unknown stage %v", stage)
	}
	match := re.FindStringSubmatch(cleaned)
	if match == nil {
		return r, fmt.Errorf("shader: no @%s entry point found", stage)
	}
	r.EntryPoint = match[1]

	switch stage {
	case ShaderStageVertex:
		inputs, err := reflectVertexInputs(cleaned, r.EntryPoint)
		if err != nil {
			return r, err
		}
		r.VertexInputs = inputs
	case ShaderStageCompute:
		r.WorkgroupSize = reflectWorkgroupSize(cleaned)
	}

	r.Bindings = reflectBindings(cleaned, stage.Visibility())
	return r, nil
}

// field is a parameter or struct member declaration.
type field struct {
	name     string
	typeName string
	location int
	builtin  bool
}

func parseField(decl string) (field, bool) {
	decl = strings.TrimSpace(decl)
	m := declRegex.FindStringSubmatch(decl)
	if m == nil {
		return field{}, false
	}
	f := field{name: m[1], typeName: strings.TrimSpace(m[2]), location: -1}
	f.builtin = builtinRegex.MatchString(decl)
	if loc := locationRegex.FindStringSubmatch(decl); loc != nil {
		f.location, _ = strconv.Atoi(loc[1])
	}
	return f, true
}

func reflectVertexInputs(source, entryPoint string) ([]VertexInput, error) {
	structs := make(map[string][]field)
	for _, m := range structRegex.FindAllStringSubmatch(source, -1) {
		var fields []field
		for _, decl := range splitTopLevel(m[2]) {
			if f, ok := parseField(decl); ok {
				fields = append(fields, f)
			}
		}
		structs[m[1]] = fields
	}

	params, err := entryParams(source, entryPoint)
	if err != nil {
		return nil, err
	}

	var located []field
	for _, decl := range params {
		p, ok := parseField(decl)
		if !ok || p.builtin {
			continue
		}
		if p.location >= 0 {
			located = append(located, p)
			continue
		}
		for _, f := range structs[p.typeName] {
			if f.location >= 0 && !f.builtin {
				located = append(located, f)
			}
		}
	}

	inputs := make([]VertexInput, 0, len(located))
	for _, f := range located {
		format, ok := wgslVertexFormats[f.typeName]
		if !ok {
			return nil, fmt.Errorf("shader: vertex input %q has unsupported type %q", f.name, f.typeName)
		}
		inputs = append(inputs, VertexInput{Name: f.name, Location: uint32(f.location), Format: format})
	}
	slices.SortFunc(inputs, func(a, b VertexInput) int {
		return int(a.Location) - int(b.Location)
	})
	return inputs, nil
}

// entryParams returns the raw parameter declarations of the named function.
func entryParams(source, name string) ([]string, error) {
	re := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	loc := re.FindStringIndex(source)
	if loc == nil {
		return nil, fmt.Errorf("shader: entry point %q not found", name)
	}
	depth := 1
	for i := loc[1]; i < len(source); i++ {
		switch source[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return splitTopLevel(source[loc[1]:i]), nil
			}
		}
	}
	return nil, fmt.Errorf("shader: unterminated parameter list for %q", name)
}

func reflectWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupSizeRegex.FindStringSubmatch(source)
	if m == nil {
		return size
	}
	for i := range 3 {
		if m[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

func reflectBindings(source string, visibility wgpu.ShaderStage) []BindingLayout {
	var out []BindingLayout
	for _, m := range bindingRegex.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.ParseUint(m[1], 10, 32)
		binding, _ := strconv.ParseUint(m[2], 10, 32)
		b := BindingLayout{
			Group:   uint32(group),
			Binding: uint32(binding),
			Name:    m[4],
		}
		b.Kind, b.Entry = classifyBinding(uint32(binding), visibility, strings.TrimSpace(m[3]), strings.TrimSpace(m[5]))
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b BindingLayout) int {
		if a.Group != b.Group {
			return int(a.Group) - int(b.Group)
		}
		return int(a.Binding) - int(b.Binding)
	})
	return out
}

// classifyBinding derives the resource kind and layout entry of a declaration from its
// address space (empty for handle types) and WGSL type.
func classifyBinding(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) (render_resource.ResourceKind, wgpu.BindGroupLayoutEntry) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		return render_resource.ResourceKindBuffer, entry
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		return render_resource.ResourceKindBuffer, entry
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		return render_resource.ResourceKindSampler, entry
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		return render_resource.ResourceKindSampler, entry
	}

	base, params, _ := strings.Cut(typeName, "<")
	params = strings.TrimSpace(strings.TrimSuffix(params, ">"))
	switch {
	case strings.HasPrefix(base, "texture_storage_"):
		entry.StorageTexture.ViewDimension = textureDimensions[base]
		format, access, _ := strings.Cut(params, ",")
		entry.StorageTexture.Format = storageTexelFormats[strings.TrimSpace(format)]
		entry.StorageTexture.Access = storageAccessModes[strings.TrimSpace(access)]
	case strings.HasPrefix(base, "texture_depth_"):
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = textureDimensions[base]
		entry.Texture.Multisampled = strings.Contains(base, "multisampled")
	default:
		entry.Texture.ViewDimension = textureDimensions[base]
		entry.Texture.Multisampled = strings.Contains(base, "multisampled")
		entry.Texture.SampleType = textureSampleTypes[params]
	}
	return render_resource.ResourceKindTexture, entry
}

// splitTopLevel splits a declaration list at commas that are not nested in <> or ().
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, s[start:])
	}
	return parts
}

// stripComments removes line comments and (nested) block comments from WGSL source.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case source[i] == '/' && source[i+1] == '/' && depth == 0:
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
