package gpu

import "github.com/spaghettifunk/cgpu/engine/containers"

// Handles are small values naming a record owned by an Instance. The zero
// value of every handle type is invalid. A handle whose record was
// destroyed never resolves again, even after its slot is reused.

type Device struct {
	handle containers.Handle
}

func (h Device) IsValid() bool  { return h.handle.IsValid() }
func (h Device) String() string { return "device:" + h.handle.String() }

type Buffer struct {
	handle containers.Handle
}

func (h Buffer) IsValid() bool  { return h.handle.IsValid() }
func (h Buffer) String() string { return "buffer:" + h.handle.String() }

type Image struct {
	handle containers.Handle
}

func (h Image) IsValid() bool  { return h.handle.IsValid() }
func (h Image) String() string { return "image:" + h.handle.String() }

type Sampler struct {
	handle containers.Handle
}

func (h Sampler) IsValid() bool  { return h.handle.IsValid() }
func (h Sampler) String() string { return "sampler:" + h.handle.String() }

type Shader struct {
	handle containers.Handle
}

func (h Shader) IsValid() bool  { return h.handle.IsValid() }
func (h Shader) String() string { return "shader:" + h.handle.String() }

type Pipeline struct {
	handle containers.Handle
}

func (h Pipeline) IsValid() bool  { return h.handle.IsValid() }
func (h Pipeline) String() string { return "pipeline:" + h.handle.String() }

type CommandBuffer struct {
	handle containers.Handle
}

func (h CommandBuffer) IsValid() bool  { return h.handle.IsValid() }
func (h CommandBuffer) String() string { return "command_buffer:" + h.handle.String() }

type Fence struct {
	handle containers.Handle
}

func (h Fence) IsValid() bool  { return h.handle.IsValid() }
func (h Fence) String() string { return "fence:" + h.handle.String() }
