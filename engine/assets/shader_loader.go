package assets

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/naga"

	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/systems"
)

const spirvMagic uint32 = 0x07230203

var (
	ErrUnsupportedShader = errors.New("unsupported shader source")
	ErrInvalidSPIRV      = errors.New("invalid SPIR-V binary")
)

type ShaderKind uint8

const (
	ShaderKindNone ShaderKind = iota
	ShaderKindSPIRV
	ShaderKindWGSL
)

// ShaderKindOf classifies a path by its extension.
func ShaderKindOf(path string) ShaderKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return ShaderKindSPIRV
	case ".wgsl":
		return ShaderKindWGSL
	}
	return ShaderKindNone
}

// ShaderSource is a shader ready for gpu.Instance.CreateShader.
type ShaderSource struct {
	Name     string
	Path     string
	Kind     ShaderKind
	Code     []byte
	LoadedAt time.Time
}

// CompileShader turns the contents of a shader file into SPIR-V bytes.
func CompileShader(kind ShaderKind, data []byte) ([]byte, error) {
	switch kind {
	case ShaderKindSPIRV:
		if err := validateSPIRV(data); err != nil {
			return nil, err
		}
		return data, nil
	case ShaderKindWGSL:
		code, err := naga.Compile(string(data))
		if err != nil {
			return nil, fmt.Errorf("compiling wgsl: %w", err)
		}
		if err := validateSPIRV(code); err != nil {
			return nil, err
		}
		return code, nil
	}
	return nil, ErrUnsupportedShader
}

func validateSPIRV(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidSPIRV, len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return fmt.Errorf("%w: magic %#08x", ErrInvalidSPIRV, magic)
	}
	return nil
}

// ShaderLoader reads shaders below a root directory. Names are paths
// relative to the root without the extension.
type ShaderLoader struct {
	dir  string
	jobs *systems.JobSystem

	mutex   sync.RWMutex
	sources map[string]ShaderSource
}

func NewShaderLoader(dir string, jobs *systems.JobSystem) *ShaderLoader {
	return &ShaderLoader{
		dir:     dir,
		jobs:    jobs,
		sources: make(map[string]ShaderSource),
	}
}

func (sl *ShaderLoader) Dir() string { return sl.dir }

// NameOf maps a file below the root onto its shader name.
func (sl *ShaderLoader) NameOf(path string) (string, error) {
	rel, err := filepath.Rel(sl.dir, path)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel)), nil
}

// LoadFile reads and compiles one shader file and caches the result.
func (sl *ShaderLoader) LoadFile(path string) (ShaderSource, error) {
	kind := ShaderKindOf(path)
	if kind == ShaderKindNone {
		return ShaderSource{}, fmt.Errorf("%w: %s", ErrUnsupportedShader, path)
	}
	name, err := sl.NameOf(path)
	if err != nil {
		return ShaderSource{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ShaderSource{}, err
	}
	code, err := CompileShader(kind, data)
	if err != nil {
		return ShaderSource{}, fmt.Errorf("%s: %w", path, err)
	}

	src := ShaderSource{
		Name:     name,
		Path:     path,
		Kind:     kind,
		Code:     code,
		LoadedAt: time.Now(),
	}
	sl.mutex.Lock()
	sl.sources[name] = src
	sl.mutex.Unlock()

	core.LogDebug("loaded shader %s (%d bytes)", name, len(code))
	return src, nil
}

// Get returns a previously loaded shader.
func (sl *ShaderLoader) Get(name string) (ShaderSource, bool) {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	src, ok := sl.sources[name]
	return src, ok
}

// Forget drops a cached shader, for instance after its file was removed.
func (sl *ShaderLoader) Forget(name string) {
	sl.mutex.Lock()
	delete(sl.sources, name)
	sl.mutex.Unlock()
}

// LoadAll compiles every shader below the root on the job system and
// returns them sorted by name.
func (sl *ShaderLoader) LoadAll() ([]ShaderSource, error) {
	var paths []string
	err := filepath.WalkDir(sl.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && ShaderKindOf(path) != ShaderKindNone {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fns := make([]func(context.Context) error, len(paths))
	for i, path := range paths {
		fns[i] = func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := sl.LoadFile(path)
			return err
		}
	}
	if err := sl.jobs.Go("load-shader", fns...); err != nil {
		return nil, err
	}

	sl.mutex.RLock()
	out := make([]ShaderSource, 0, len(sl.sources))
	for _, src := range sl.sources {
		out = append(out, src)
	}
	sl.mutex.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
