package gpu

import (
	"fmt"

	"github.com/spaghettifunk/cgpu/engine/gpu/spirv"
)

type shaderRecord struct {
	device     Device
	native     NativeObject
	reflection *spirv.Reflection
}

// CreateShader reflects a SPIR-V binary and creates a shader module from
// it. A binary that fails to reflect never reaches the driver.
func (inst *Instance) CreateShader(device Device, code []byte) (Shader, error) {
	dev, err := inst.device(device)
	if err != nil {
		return Shader{}, err
	}

	reflection, err := spirv.Reflect(code)
	if err != nil {
		dev.log.Errorf("failed to reflect shader: %v", err)
		return Shader{}, fmt.Errorf("%w: %w", ErrUnableToReflectShader, err)
	}
	native, err := dev.logical.CreateShaderModule(code)
	if err != nil {
		dev.log.Errorf("failed to create shader module: %v", err)
		return Shader{}, fmt.Errorf("%w: %w", ErrUnableToCreateShaderModule, err)
	}

	h, err := insert(inst, ShaderManagement, inst.shaders, shaderRecord{
		device:     device,
		native:     native,
		reflection: reflection,
	})
	if err != nil {
		dev.logical.DestroyShaderModule(native)
		return Shader{}, fmt.Errorf("%w: %w", ErrUnableToCreateShaderModule, err)
	}
	dev.log.Debugf("Shader created with %d resources and %d push constant bytes",
		len(reflection.Resources), reflection.PushConstantSize)
	return Shader{handle: h}, nil
}

func (inst *Instance) DestroyShader(device Device, shader Shader) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := remove(inst, ShaderManagement, inst.shaders, shader.handle)
	if err != nil {
		return err
	}
	dev.logical.DestroyShaderModule(rec.native)
	return nil
}

// Reflection returns a copy of the reflection record of a shader.
func (inst *Instance) Reflection(shader Shader) (spirv.Reflection, error) {
	rec, err := inst.shader(shader)
	if err != nil {
		return spirv.Reflection{}, err
	}
	r := *rec.reflection
	r.Resources = append([]spirv.Resource(nil), rec.reflection.Resources...)
	r.EntryPoints = append([]spirv.EntryPoint(nil), rec.reflection.EntryPoints...)
	return r, nil
}

func (inst *Instance) shader(shader Shader) (*shaderRecord, error) {
	return resolve(inst, ShaderManagement, inst.shaders, shader.handle)
}
