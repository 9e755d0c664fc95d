package assets

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/gpu"
)

var ErrShaderNotLoaded = errors.New("shader not loaded")

type libraryEntry struct {
	shader    gpu.Shader
	pipelines map[string]gpu.Pipeline
}

// ShaderLibrary owns the gpu shaders and pipelines built from a loader and
// rebuilds them when a source changes. Pipelines returned before a reload
// are destroyed by it, so callers re-fetch and rebind after OnReload fires.
type ShaderLibrary struct {
	inst   *gpu.Instance
	device gpu.Device
	loader *ShaderLoader

	mutex    sync.Mutex
	entries  map[string]*libraryEntry
	onReload []func(name string)
}

func NewShaderLibrary(inst *gpu.Instance, device gpu.Device, loader *ShaderLoader) *ShaderLibrary {
	return &ShaderLibrary{
		inst:    inst,
		device:  device,
		loader:  loader,
		entries: make(map[string]*libraryEntry),
	}
}

// OnReload registers fn to run after a shader and its pipelines were
// rebuilt.
func (l *ShaderLibrary) OnReload(fn func(name string)) {
	l.mutex.Lock()
	l.onReload = append(l.onReload, fn)
	l.mutex.Unlock()
}

func (l *ShaderLibrary) entry(name string) (*libraryEntry, error) {
	if e, ok := l.entries[name]; ok {
		return e, nil
	}
	src, ok := l.loader.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShaderNotLoaded, name)
	}
	shader, err := l.inst.CreateShader(l.device, src.Code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	e := &libraryEntry{shader: shader, pipelines: make(map[string]gpu.Pipeline)}
	l.entries[name] = e
	return e, nil
}

// Shader returns the gpu shader built from the named source.
func (l *ShaderLibrary) Shader(name string) (gpu.Shader, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	e, err := l.entry(name)
	if err != nil {
		return gpu.Shader{}, err
	}
	return e.shader, nil
}

// Pipeline returns the compute pipeline for the entry point of the named
// shader, creating it on first use.
func (l *ShaderLibrary) Pipeline(name, entryPoint string) (gpu.Pipeline, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	e, err := l.entry(name)
	if err != nil {
		return gpu.Pipeline{}, err
	}
	if p, ok := e.pipelines[entryPoint]; ok {
		return p, nil
	}
	p, err := l.inst.CreatePipeline(l.device, e.shader, entryPoint)
	if err != nil {
		return gpu.Pipeline{}, fmt.Errorf("%s/%s: %w", name, entryPoint, err)
	}
	e.pipelines[entryPoint] = p
	return p, nil
}

// Reload swaps in the new code of src. The replacement shader and every
// pipeline are built first; on failure the old objects stay in place.
func (l *ShaderLibrary) Reload(src ShaderSource) error {
	l.mutex.Lock()
	old, ok := l.entries[src.Name]
	if !ok {
		l.mutex.Unlock()
		return nil
	}

	shader, err := l.inst.CreateShader(l.device, src.Code)
	if err != nil {
		l.mutex.Unlock()
		return fmt.Errorf("%s: %w", src.Name, err)
	}
	next := &libraryEntry{shader: shader, pipelines: make(map[string]gpu.Pipeline, len(old.pipelines))}
	for _, entryPoint := range sortedKeys(old.pipelines) {
		p, err := l.inst.CreatePipeline(l.device, shader, entryPoint)
		if err != nil {
			l.destroyEntry(next)
			l.mutex.Unlock()
			return fmt.Errorf("%s/%s: %w", src.Name, entryPoint, err)
		}
		next.pipelines[entryPoint] = p
	}

	// In-flight work may still reference the old pipelines.
	if err := l.inst.WaitIdle(l.device); err != nil {
		l.destroyEntry(next)
		l.mutex.Unlock()
		return err
	}
	l.destroyEntry(old)
	l.entries[src.Name] = next
	callbacks := append([]func(string){}, l.onReload...)
	l.mutex.Unlock()

	core.LogInfo("reloaded shader %s with %d pipelines", src.Name, len(next.pipelines))
	for _, fn := range callbacks {
		fn(src.Name)
	}
	return nil
}

func (l *ShaderLibrary) destroyEntry(e *libraryEntry) {
	for _, entryPoint := range sortedKeys(e.pipelines) {
		if err := l.inst.DestroyPipeline(l.device, e.pipelines[entryPoint]); err != nil {
			core.LogWarn("destroying pipeline %s: %s", entryPoint, err)
		}
	}
	if err := l.inst.DestroyShader(l.device, e.shader); err != nil {
		core.LogWarn("destroying shader: %s", err)
	}
}

// Close destroys every shader and pipeline of the library.
func (l *ShaderLibrary) Close() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for _, name := range sortedKeys(l.entries) {
		l.destroyEntry(l.entries[name])
	}
	l.entries = make(map[string]*libraryEntry)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
