package vulkan

import (
	"errors"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

var ErrUnknownLoader = errors.New("unknown vulkan loader")

// Loader resolves vkGetInstanceProcAddr and initializes the global entry
// points.
type Loader interface {
	Load() error
	Release()
}

// DefaultLoader opens the platform Vulkan library directly.
type DefaultLoader struct{}

func (DefaultLoader) Load() error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return fmt.Errorf("resolving vkGetInstanceProcAddr: %w", err)
	}
	return vk.Init()
}

func (DefaultLoader) Release() {}

// GLFWLoader asks GLFW for the loader entry point. GLFW must be usable on
// the calling thread.
type GLFWLoader struct{}

func (GLFWLoader) Load() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initializing glfw: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no vulkan loader")
	}
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		glfw.Terminate()
		return errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	return vk.Init()
}

func (GLFWLoader) Release() {
	glfw.Terminate()
}

// LoaderByName maps a configuration value onto a Loader.
func LoaderByName(name string) (Loader, error) {
	switch name {
	case "", "default":
		return DefaultLoader{}, nil
	case "glfw":
		return GLFWLoader{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLoader, name)
}
