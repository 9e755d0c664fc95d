package gpu

import "fmt"

type ImageInfo struct {
	Width            uint32
	Height           uint32
	Format           Format
	Usage            ImageUsageFlags
	MemoryProperties MemoryPropertyFlags
}

type imageRecord struct {
	device Device
	native NativeObject
	view   NativeObject
	memory *allocation
	width  uint32
	height uint32
	format Format
	usage  ImageUsageFlags
	linear bool

	// Runtime state, changed by dispatch, copies and explicit barriers.
	layout ImageLayout
	access AccessFlags
}

// linearTiling reports whether an image with usage is only ever a copy
// source or destination.
func linearTiling(usage ImageUsageFlags) bool {
	return usage == ImageUsageTransferSrc || usage == ImageUsageTransferDst
}

// CreateImage creates a 2D image and a view over its single color
// subresource. New images start in the undefined layout with no access.
func (inst *Instance) CreateImage(device Device, info ImageInfo) (Image, error) {
	dev, err := inst.device(device)
	if err != nil {
		return Image{}, err
	}
	if info.Width == 0 || info.Height == 0 {
		return Image{}, fmt.Errorf("%w: image extent %dx%d", ErrInvalidArgument, info.Width, info.Height)
	}
	if !info.Format.IsValid() || info.Format == FormatUndefined {
		return Image{}, fmt.Errorf("%w: image format %s", ErrInvalidArgument, info.Format)
	}

	desc := ImageDesc{
		Width:  info.Width,
		Height: info.Height,
		Format: info.Format,
		Usage:  info.Usage,
		Linear: linearTiling(info.Usage),
	}
	native, req, err := dev.logical.CreateImage(desc)
	if err != nil {
		dev.log.Errorf("failed to create %dx%d %s image: %v", info.Width, info.Height, info.Format, err)
		return Image{}, fmt.Errorf("%w: %w", ErrUnableToCreateImage, err)
	}
	alloc, err := dev.allocator.allocate(req, info.MemoryProperties, desc.Linear)
	if err != nil {
		dev.logical.DestroyImage(native)
		dev.log.Errorf("failed to allocate image memory: %v", err)
		return Image{}, fmt.Errorf("%w: %w", ErrUnableToCreateImage, err)
	}
	if err := dev.logical.BindImageMemory(native, alloc.block.memory, alloc.offset); err != nil {
		dev.allocator.free(alloc)
		dev.logical.DestroyImage(native)
		dev.log.Errorf("failed to bind image memory: %v", err)
		return Image{}, fmt.Errorf("%w: %w", ErrUnableToCreateImage, err)
	}
	view, err := dev.logical.CreateImageView(native, info.Format)
	if err != nil {
		dev.allocator.free(alloc)
		dev.logical.DestroyImage(native)
		dev.log.Errorf("failed to create image view: %v", err)
		return Image{}, fmt.Errorf("%w: %w", ErrUnableToCreateImage, err)
	}

	h, err := insert(inst, ImageManagement, inst.images, imageRecord{
		device: device,
		native: native,
		view:   view,
		memory: alloc,
		width:  info.Width,
		height: info.Height,
		format: info.Format,
		usage:  info.Usage,
		linear: desc.Linear,
		layout: ImageLayoutUndefined,
		access: AccessNone,
	})
	if err != nil {
		dev.logical.DestroyImageView(view)
		dev.allocator.free(alloc)
		dev.logical.DestroyImage(native)
		return Image{}, fmt.Errorf("%w: %w", ErrUnableToCreateImage, err)
	}
	return Image{handle: h}, nil
}

func (inst *Instance) DestroyImage(device Device, image Image) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := remove(inst, ImageManagement, inst.images, image.handle)
	if err != nil {
		return err
	}
	dev.logical.DestroyImageView(rec.view)
	dev.logical.DestroyImage(rec.native)
	dev.allocator.free(rec.memory)
	return nil
}

// MapImage returns the memory backing the image. Only meaningful for
// linear images in host visible memory.
func (inst *Instance) MapImage(device Device, image Image) ([]byte, error) {
	dev, err := inst.device(device)
	if err != nil {
		return nil, err
	}
	rec, err := inst.image(image)
	if err != nil {
		return nil, err
	}
	if !rec.linear {
		dev.log.Warnf("mapping %s with optimal tiling, contents are implementation defined", image)
	}
	data, err := dev.allocator.mapMemory(rec.memory)
	if err != nil {
		dev.log.Errorf("failed to map %s: %v", image, err)
		return nil, err
	}
	return data, nil
}

func (inst *Instance) UnmapImage(device Device, image Image) error {
	dev, err := inst.device(device)
	if err != nil {
		return err
	}
	rec, err := inst.image(image)
	if err != nil {
		return err
	}
	dev.allocator.unmapMemory(rec.memory)
	return nil
}

// ImageState returns the layout and access mask the image was last
// transitioned to while recording.
func (inst *Instance) ImageState(image Image) (ImageLayout, AccessFlags, error) {
	rec, err := inst.image(image)
	if err != nil {
		return ImageLayoutUndefined, AccessNone, err
	}
	return rec.layout, rec.access, nil
}

// ImageExtent returns the width and height of the image.
func (inst *Instance) ImageExtent(image Image) (uint32, uint32, error) {
	rec, err := inst.image(image)
	if err != nil {
		return 0, 0, err
	}
	return rec.width, rec.height, nil
}

func (inst *Instance) image(image Image) (*imageRecord, error) {
	return resolve(inst, ImageManagement, inst.images, image.handle)
}
