package gpu

import "fmt"

type SamplerInfo struct {
	AddressModeU SamplerAddressMode
	AddressModeV SamplerAddressMode
	AddressModeW SamplerAddressMode
}

type samplerRecord struct {
	device Device
	native NativeObject
}

// samplerDesc expands the portable sampler description. Any clamp-to-black
// axis selects an opaque black border for the whole sampler.
func samplerDesc(info SamplerInfo) SamplerDesc {
	border := BorderColorTransparentBlack
	for _, mode := range []SamplerAddressMode{info.AddressModeU, info.AddressModeV, info.AddressModeW} {
		if mode == SamplerAddressModeClampToBlack {
			border = BorderColorOpaqueBlack
		}
	}
	return SamplerDesc{
		AddressModeU: info.AddressModeU,
		AddressModeV: info.AddressModeV,
		AddressModeW: info.AddressModeW,
		BorderColor:  border,
		UnclampedLOD: true,
	}
}

// CreateSampler creates a linear sampler without anisotropic filtering.
func (inst *Instance) CreateSampler(device Device, info SamplerInfo) (Sampler, error) {
	dev, err := inst.device(device)
	if err != nil {
		return Sampler{}, err
	}
	for _, mode := range []SamplerAddressMode{info.AddressModeU, info.AddressModeV, info.AddressModeW} {
		if mode > SamplerAddressModeClampToBlack {
			return Sampler{}, fmt.Errorf("%w: address mode %d", ErrInvalidArgument, mode)
		}
	}

	native, err := dev.logical.CreateSampler(samplerDesc(info))
	if err != nil {
		dev.log.Errorf("failed to create sampler: %v", err)
		return Sampler{}, fmt.Errorf("%w: %w", ErrUnableToCreateSampler, err)
	}
	h, err := insert(inst, SamplerManagement, inst.samplers, samplerRecord{device: device, native: native})
	if err != nil {
		dev.logical.DestroySampler(native)
		return Sampler{}, fmt.Errorf("%w: %w", ErrUnableToCreateSampler, err)
	}
	return Sampler{handle: h}, nil
}

func (inst *Instance) DestroySampler(device Device, sampler Sampler) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := remove(inst, SamplerManagement, inst.samplers, sampler.handle)
	if err != nil {
		return err
	}
	dev.logical.DestroySampler(rec.native)
	return nil
}

func (inst *Instance) sampler(sampler Sampler) (*samplerRecord, error) {
	return resolve(inst, SamplerManagement, inst.samplers, sampler.handle)
}
