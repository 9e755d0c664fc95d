package assets

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/cgpu/engine/systems"
)

const doubleWGSL = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    output[id.x] = input[id.x] * 2.0;
}
`

// minimalSPIRV is a header followed by a single OpCapability Shader.
func minimalSPIRV() []byte {
	words := []uint32{spirvMagic, 0x00010300, 0, 1, 0, 2<<16 | 17, 1}
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func newTestLoader(t *testing.T) (*ShaderLoader, string) {
	t.Helper()
	js, err := systems.NewJobSystem(2, 4)
	if err != nil {
		t.Fatalf("NewJobSystem() error = %v", err)
	}
	t.Cleanup(func() { js.Shutdown() })
	dir := t.TempDir()
	return NewShaderLoader(dir, js), dir
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestShaderKindOf(t *testing.T) {
	tests := []struct {
		path string
		want ShaderKind
	}{
		{"fill.spv", ShaderKindSPIRV},
		{"dir/FILL.SPV", ShaderKindSPIRV},
		{"double.wgsl", ShaderKindWGSL},
		{"double.comp", ShaderKindNone},
		{"README", ShaderKindNone},
	}
	for _, tt := range tests {
		if got := ShaderKindOf(tt.path); got != tt.want {
			t.Errorf("ShaderKindOf(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestCompileShader(t *testing.T) {
	tests := []struct {
		name    string
		kind    ShaderKind
		data    []byte
		wantErr error
	}{
		{"spirv", ShaderKindSPIRV, minimalSPIRV(), nil},
		{"truncated spirv", ShaderKindSPIRV, minimalSPIRV()[:10], ErrInvalidSPIRV},
		{"bad magic", ShaderKindSPIRV, make([]byte, 28), ErrInvalidSPIRV},
		{"wgsl", ShaderKindWGSL, []byte(doubleWGSL), nil},
		{"unknown kind", ShaderKindNone, minimalSPIRV(), ErrUnsupportedShader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := CompileShader(tt.kind, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CompileShader() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && binary.LittleEndian.Uint32(code) != spirvMagic {
				t.Errorf("CompileShader() output does not start with the SPIR-V magic")
			}
		})
	}
}

func TestCompileShaderRejectsBrokenWGSL(t *testing.T) {
	if _, err := CompileShader(ShaderKindWGSL, []byte("fn main( {")); err == nil {
		t.Error("CompileShader(broken wgsl) error = nil, want failure")
	}
}

func TestShaderLoaderLoadAll(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeFile(t, filepath.Join(dir, "fill.spv"), minimalSPIRV())
	writeFile(t, filepath.Join(dir, "math", "double.wgsl"), []byte(doubleWGSL))
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("ignored"))

	sources, err := loader.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("LoadAll() returned %d sources, want 2", len(sources))
	}
	wantNames := []string{"fill", "math/double"}
	for i, src := range sources {
		if src.Name != wantNames[i] {
			t.Errorf("sources[%d].Name = %q, want %q", i, src.Name, wantNames[i])
		}
	}
	if sources[1].Kind != ShaderKindWGSL {
		t.Errorf("sources[1].Kind = %d, want wgsl", sources[1].Kind)
	}

	got, ok := loader.Get("math/double")
	if !ok || len(got.Code) == 0 {
		t.Errorf("Get(math/double) = %v, %t, want compiled code", len(got.Code), ok)
	}
	loader.Forget("math/double")
	if _, ok := loader.Get("math/double"); ok {
		t.Error("Get() after Forget() still finds the shader")
	}
}

func TestShaderLoaderLoadAllFailure(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeFile(t, filepath.Join(dir, "good.spv"), minimalSPIRV())
	writeFile(t, filepath.Join(dir, "bad.spv"), []byte{1, 2, 3, 4})

	if _, err := loader.LoadAll(); !errors.Is(err, ErrInvalidSPIRV) {
		t.Errorf("LoadAll() error = %v, want %v", err, ErrInvalidSPIRV)
	}
}

func TestShaderLoaderLoadFileUnsupported(t *testing.T) {
	loader, dir := newTestLoader(t)
	path := filepath.Join(dir, "fill.glsl")
	writeFile(t, path, []byte("void main() {}"))
	if _, err := loader.LoadFile(path); !errors.Is(err, ErrUnsupportedShader) {
		t.Errorf("LoadFile() error = %v, want %v", err, ErrUnsupportedShader)
	}
}
