package gpu

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errInjected = errors.New("injected failure")

// fakeState is shared by every object of a fake driver. It counts live
// native objects per kind and fails operations on request.
type fakeState struct {
	mu    sync.Mutex
	live  map[string]int
	fail  map[string]error
	calls []string
}

func newFakeState() *fakeState {
	return &fakeState{
		live: make(map[string]int),
		fail: make(map[string]error),
	}
}

func (s *fakeState) failOn(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = errInjected
}

// call records op and returns the injected error for it, if any.
func (s *fakeState) call(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
	return s.fail[op]
}

func (s *fakeState) create(op, kind string) error {
	if err := s.call(op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[kind]++
	return nil
}

func (s *fakeState) release(op, kind string) {
	_ = s.call(op)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[kind]--
}

func (s *fakeState) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[kind]
}

// totalLive returns the number of live native objects of every kind.
func (s *fakeState) totalLive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.live {
		n += c
	}
	return n
}

func (s *fakeState) callCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

// callsSince returns the operations recorded after the first mark calls.
func (s *fakeState) callsSince(mark int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls[mark:]...)
}

func (s *fakeState) mark() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

const (
	memoryTypeDeviceLocal = iota
	memoryTypeHostCoherent
	memoryTypeReBAR
	memoryTypeHostCached
)

func fakeProperties() DeviceProperties {
	return DeviceProperties{
		Name:          "Fake GPU",
		Type:          DeviceTypeDiscrete,
		VendorID:      0x10de,
		DeviceID:      0x2684,
		APIVersion:    MakeVersion(1, 3, 250),
		DriverVersion: 0x85c00000,
		Limits: Limits{
			MinStorageBufferOffsetAlignment: 64,
			NonCoherentAtomSize:             64,
			TimestampPeriod:                 1,
			SubgroupSize:                    32,
			MaxPushConstantsSize:            128,
			MaxSamplerAnisotropy:            16,
		},
		SubgroupCompute:    true,
		SubgroupOperations: SubgroupFeatureBasic | SubgroupFeatureVote | SubgroupFeatureBallot,
	}
}

func fakeMemoryProperties() MemoryProperties {
	return MemoryProperties{
		Types: []MemoryType{
			memoryTypeDeviceLocal:  {Properties: MemoryPropertyDeviceLocal, HeapIndex: 0},
			memoryTypeHostCoherent: {Properties: MemoryPropertyHostVisible | MemoryPropertyHostCoherent, HeapIndex: 1},
			memoryTypeReBAR:        {Properties: MemoryPropertyDeviceLocal | MemoryPropertyHostVisible | MemoryPropertyHostCoherent, HeapIndex: 0},
			memoryTypeHostCached:   {Properties: MemoryPropertyHostVisible | MemoryPropertyHostCached, HeapIndex: 1},
		},
		Heaps: []MemoryHeap{
			{Size: 8 << 30, DeviceLocal: true},
			{Size: 16 << 30},
		},
	}
}

type fakeDriver struct {
	state    *fakeState
	physical []*fakePhysicalDevice
	created  bool
}

func newFakeDriver() *fakeDriver {
	state := newFakeState()
	return &fakeDriver{
		state: state,
		physical: []*fakePhysicalDevice{{
			state:      state,
			properties: fakeProperties(),
			extensions: []string{"VK_KHR_maintenance4", extDescriptorIndexing},
			families: []QueueFamily{
				{Graphics: true, Count: 1},
				{Compute: true, Transfer: true, Graphics: true, Count: 4, TimestampValidBits: 64},
			},
			memory: fakeMemoryProperties(),
		}},
	}
}

func (d *fakeDriver) CreateInstance(info InstanceInfo) error {
	if err := d.state.call("CreateInstance"); err != nil {
		return err
	}
	d.created = true
	return nil
}

func (d *fakeDriver) DestroyInstance() {
	_ = d.state.call("DestroyInstance")
	d.created = false
}

func (d *fakeDriver) PhysicalDevices() ([]PhysicalDevice, error) {
	if err := d.state.call("PhysicalDevices"); err != nil {
		return nil, err
	}
	out := make([]PhysicalDevice, len(d.physical))
	for i, p := range d.physical {
		out[i] = p
	}
	return out, nil
}

type fakePhysicalDevice struct {
	state      *fakeState
	properties DeviceProperties
	extensions []string
	families   []QueueFamily
	memory     MemoryProperties

	logical *fakeLogicalDevice
}

func (p *fakePhysicalDevice) Properties() DeviceProperties          { return p.properties }
func (p *fakePhysicalDevice) Extensions() ([]string, error)         { return p.extensions, nil }
func (p *fakePhysicalDevice) QueueFamilies() ([]QueueFamily, error) { return p.families, nil }
func (p *fakePhysicalDevice) MemoryProperties() MemoryProperties    { return p.memory }

func (p *fakePhysicalDevice) CreateLogicalDevice(info LogicalDeviceInfo) (LogicalDevice, error) {
	if err := p.state.create("CreateLogicalDevice", "device"); err != nil {
		return nil, err
	}
	p.logical = &fakeLogicalDevice{state: p.state, info: info}
	return p.logical, nil
}

type fakeObject struct {
	kind string
}

type fakeMemory struct {
	memoryType uint32
	data       []byte
	mapped     bool
}

type fakeBuffer struct {
	size   uint64
	usage  BufferUsageFlags
	memory *fakeMemory
	offset uint64
}

func (b *fakeBuffer) bytes() []byte {
	return b.memory.data[b.offset : b.offset+b.size]
}

type fakeImage struct {
	desc   ImageDesc
	memory *fakeMemory
	offset uint64
}

type fakeFence struct {
	signaled bool
}

type fakeRange struct {
	memory *fakeMemory
	offset uint64
	size   uint64
}

type fakeLogicalDevice struct {
	state *fakeState
	info  LogicalDeviceInfo

	mu            sync.Mutex
	samplers      []SamplerDesc
	setLayouts    [][]DescriptorLayoutBinding
	pushSizes     []uint32
	pipelines     []ComputePipelineDesc
	poolSizes     [][]DescriptorPoolSize
	maxSets       []uint32
	updates       [][]DescriptorWrite
	flushes       []fakeRange
	invalidates   []fakeRange
	timestampPool uint32
	images        []*fakeImage
	submitted     []*fakeCommandBuffer
}

func (d *fakeLogicalDevice) Destroy() { d.state.release("Destroy", "device") }

func (d *fakeLogicalDevice) WaitIdle() error { return d.state.call("WaitIdle") }

func (d *fakeLogicalDevice) CreateCommandPool(queueFamily uint32) (NativeObject, error) {
	if err := d.state.create("CreateCommandPool", "command_pool"); err != nil {
		return nil, err
	}
	return &fakeObject{kind: "command_pool"}, nil
}

func (d *fakeLogicalDevice) DestroyCommandPool(pool NativeObject) {
	d.state.release("DestroyCommandPool", "command_pool")
}

func (d *fakeLogicalDevice) CreateSampler(desc SamplerDesc) (NativeObject, error) {
	if err := d.state.create("CreateSampler", "sampler"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.samplers = append(d.samplers, desc)
	d.mu.Unlock()
	return &fakeObject{kind: "sampler"}, nil
}

func (d *fakeLogicalDevice) DestroySampler(sampler NativeObject) {
	d.state.release("DestroySampler", "sampler")
}

func (d *fakeLogicalDevice) CreateTimestampPool(count uint32) (NativeObject, error) {
	if err := d.state.create("CreateTimestampPool", "query_pool"); err != nil {
		return nil, err
	}
	d.timestampPool = count
	return &fakeObject{kind: "query_pool"}, nil
}

func (d *fakeLogicalDevice) DestroyQueryPool(pool NativeObject) {
	d.state.release("DestroyQueryPool", "query_pool")
}

func (d *fakeLogicalDevice) AllocateMemory(size uint64, memoryType uint32) (NativeObject, error) {
	if err := d.state.create("AllocateMemory", "memory"); err != nil {
		return nil, err
	}
	return &fakeMemory{memoryType: memoryType, data: make([]byte, size)}, nil
}

func (d *fakeLogicalDevice) FreeMemory(memory NativeObject) {
	d.state.release("FreeMemory", "memory")
}

func (d *fakeLogicalDevice) MapMemory(memory NativeObject, size uint64) ([]byte, error) {
	if err := d.state.call("MapMemory"); err != nil {
		return nil, err
	}
	m := memory.(*fakeMemory)
	m.mapped = true
	return m.data[:size], nil
}

func (d *fakeLogicalDevice) UnmapMemory(memory NativeObject) {
	_ = d.state.call("UnmapMemory")
	memory.(*fakeMemory).mapped = false
}

func (d *fakeLogicalDevice) FlushMemory(memory NativeObject, offset, size uint64) error {
	if err := d.state.call("FlushMemory"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes = append(d.flushes, fakeRange{memory: memory.(*fakeMemory), offset: offset, size: size})
	return nil
}

func (d *fakeLogicalDevice) InvalidateMemory(memory NativeObject, offset, size uint64) error {
	if err := d.state.call("InvalidateMemory"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidates = append(d.invalidates, fakeRange{memory: memory.(*fakeMemory), offset: offset, size: size})
	return nil
}

func (d *fakeLogicalDevice) CreateBuffer(desc BufferDesc) (NativeObject, MemoryRequirements, error) {
	if err := d.state.create("CreateBuffer", "buffer"); err != nil {
		return nil, MemoryRequirements{}, err
	}
	req := MemoryRequirements{Size: desc.Size, Alignment: 256, MemoryTypeBits: 0xf}
	return &fakeBuffer{size: desc.Size, usage: desc.Usage}, req, nil
}

func (d *fakeLogicalDevice) BindBufferMemory(buffer, memory NativeObject, offset uint64) error {
	if err := d.state.call("BindBufferMemory"); err != nil {
		return err
	}
	b := buffer.(*fakeBuffer)
	b.memory = memory.(*fakeMemory)
	b.offset = offset
	return nil
}

func (d *fakeLogicalDevice) DestroyBuffer(buffer NativeObject) {
	d.state.release("DestroyBuffer", "buffer")
}

func (d *fakeLogicalDevice) CreateImage(desc ImageDesc) (NativeObject, MemoryRequirements, error) {
	if err := d.state.create("CreateImage", "image"); err != nil {
		return nil, MemoryRequirements{}, err
	}
	img := &fakeImage{desc: desc}
	d.mu.Lock()
	d.images = append(d.images, img)
	d.mu.Unlock()
	size := uint64(desc.Width) * uint64(desc.Height) * 4
	return img, MemoryRequirements{Size: size, Alignment: 1024, MemoryTypeBits: 0xf}, nil
}

func (d *fakeLogicalDevice) BindImageMemory(image, memory NativeObject, offset uint64) error {
	if err := d.state.call("BindImageMemory"); err != nil {
		return err
	}
	img := image.(*fakeImage)
	img.memory = memory.(*fakeMemory)
	img.offset = offset
	return nil
}

func (d *fakeLogicalDevice) CreateImageView(image NativeObject, format Format) (NativeObject, error) {
	if err := d.state.create("CreateImageView", "image_view"); err != nil {
		return nil, err
	}
	return &fakeObject{kind: "image_view"}, nil
}

func (d *fakeLogicalDevice) DestroyImageView(view NativeObject) {
	d.state.release("DestroyImageView", "image_view")
}

func (d *fakeLogicalDevice) DestroyImage(image NativeObject) {
	d.state.release("DestroyImage", "image")
}

func (d *fakeLogicalDevice) CreateShaderModule(code []byte) (NativeObject, error) {
	if err := d.state.create("CreateShaderModule", "shader_module"); err != nil {
		return nil, err
	}
	return &fakeObject{kind: "shader_module"}, nil
}

func (d *fakeLogicalDevice) DestroyShaderModule(module NativeObject) {
	d.state.release("DestroyShaderModule", "shader_module")
}

func (d *fakeLogicalDevice) CreateDescriptorSetLayout(bindings []DescriptorLayoutBinding) (NativeObject, error) {
	if err := d.state.create("CreateDescriptorSetLayout", "descriptor_set_layout"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.setLayouts = append(d.setLayouts, bindings)
	d.mu.Unlock()
	return &fakeObject{kind: "descriptor_set_layout"}, nil
}

func (d *fakeLogicalDevice) DestroyDescriptorSetLayout(layout NativeObject) {
	d.state.release("DestroyDescriptorSetLayout", "descriptor_set_layout")
}

func (d *fakeLogicalDevice) CreatePipelineLayout(setLayout NativeObject, pushConstantSize uint32) (NativeObject, error) {
	if err := d.state.create("CreatePipelineLayout", "pipeline_layout"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.pushSizes = append(d.pushSizes, pushConstantSize)
	d.mu.Unlock()
	return &fakeObject{kind: "pipeline_layout"}, nil
}

func (d *fakeLogicalDevice) DestroyPipelineLayout(layout NativeObject) {
	d.state.release("DestroyPipelineLayout", "pipeline_layout")
}

func (d *fakeLogicalDevice) CreateComputePipeline(desc ComputePipelineDesc) (NativeObject, error) {
	if err := d.state.create("CreateComputePipeline", "pipeline"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.pipelines = append(d.pipelines, desc)
	d.mu.Unlock()
	return &fakeObject{kind: "pipeline"}, nil
}

func (d *fakeLogicalDevice) DestroyPipeline(pipeline NativeObject) {
	d.state.release("DestroyPipeline", "pipeline")
}

func (d *fakeLogicalDevice) CreateDescriptorPool(sizes []DescriptorPoolSize, maxSets uint32) (NativeObject, error) {
	if err := d.state.create("CreateDescriptorPool", "descriptor_pool"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.poolSizes = append(d.poolSizes, sizes)
	d.maxSets = append(d.maxSets, maxSets)
	d.mu.Unlock()
	return &fakeObject{kind: "descriptor_pool"}, nil
}

func (d *fakeLogicalDevice) DestroyDescriptorPool(pool NativeObject) {
	d.state.release("DestroyDescriptorPool", "descriptor_pool")
}

func (d *fakeLogicalDevice) AllocateDescriptorSet(pool, layout NativeObject) (NativeObject, error) {
	if err := d.state.call("AllocateDescriptorSet"); err != nil {
		return nil, err
	}
	return &fakeObject{kind: "descriptor_set"}, nil
}

func (d *fakeLogicalDevice) UpdateDescriptorSet(set NativeObject, writes []DescriptorWrite) {
	_ = d.state.call("UpdateDescriptorSet")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, writes)
}

func (d *fakeLogicalDevice) AllocateCommandBuffer(pool NativeObject) (CommandRecorder, error) {
	if err := d.state.create("AllocateCommandBuffer", "command_buffer"); err != nil {
		return nil, err
	}
	return &fakeCommandBuffer{}, nil
}

func (d *fakeLogicalDevice) FreeCommandBuffer(pool NativeObject, cmd CommandRecorder) {
	d.state.release("FreeCommandBuffer", "command_buffer")
}

func (d *fakeLogicalDevice) CreateFence(signaled bool) (NativeObject, error) {
	if err := d.state.create("CreateFence", "fence"); err != nil {
		return nil, err
	}
	return &fakeFence{signaled: signaled}, nil
}

func (d *fakeLogicalDevice) DestroyFence(fence NativeObject) {
	d.state.release("DestroyFence", "fence")
}

func (d *fakeLogicalDevice) ResetFence(fence NativeObject) error {
	if err := d.state.call("ResetFence"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fence.(*fakeFence).signaled = false
	return nil
}

func (d *fakeLogicalDevice) WaitForFence(fence NativeObject, timeout time.Duration) (bool, error) {
	if err := d.state.call("WaitForFence"); err != nil {
		return false, err
	}
	d.mu.Lock()
	signaled := fence.(*fakeFence).signaled
	d.mu.Unlock()
	if !signaled {
		time.Sleep(min(timeout, time.Millisecond))
	}
	return signaled, nil
}

// Submit runs the recorded buffer copies and signals the fence.
func (d *fakeLogicalDevice) Submit(cmd CommandRecorder, fence NativeObject) error {
	if err := d.state.call("Submit"); err != nil {
		return err
	}
	cb := cmd.(*fakeCommandBuffer)
	for _, c := range cb.copies {
		src := c.src.bytes()[c.region.SrcOffset : c.region.SrcOffset+c.region.Size]
		dst := c.dst.bytes()[c.region.DstOffset : c.region.DstOffset+c.region.Size]
		copy(dst, src)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted = append(d.submitted, cb)
	fence.(*fakeFence).signaled = true
	return nil
}

type fakeCopy struct {
	src    *fakeBuffer
	dst    *fakeBuffer
	region BufferCopy
}

type fakeBarrier struct {
	src, dst PipelineStageFlags
	memory   []NativeMemoryBarrier
	buffers  []NativeBufferBarrier
	images   []NativeImageBarrier
}

type fakeQueryCopy struct {
	first, count uint32
	dst          NativeObject
	offset       uint64
	stride       uint64
	flags        QueryResultFlags
}

type fakeCommandBuffer struct {
	ops         []string
	barriers    []fakeBarrier
	copies      []fakeCopy
	pushes      [][]byte
	dispatches  [][3]uint32
	queryCopies []fakeQueryCopy
	imageCopies []ImageLayout
	timestamps  []uint32
	queryResets [][2]uint32
	boundSets   []NativeObject
	boundPipes  []NativeObject
}

func (c *fakeCommandBuffer) Begin() error {
	*c = fakeCommandBuffer{}
	c.ops = append(c.ops, "begin")
	return nil
}

func (c *fakeCommandBuffer) End() error {
	c.ops = append(c.ops, "end")
	return nil
}

func (c *fakeCommandBuffer) BindComputePipeline(pipeline NativeObject) {
	c.ops = append(c.ops, "bind_pipeline")
	c.boundPipes = append(c.boundPipes, pipeline)
}

func (c *fakeCommandBuffer) BindDescriptorSet(layout, set NativeObject) {
	c.ops = append(c.ops, "bind_descriptor_set")
	c.boundSets = append(c.boundSets, set)
}

func (c *fakeCommandBuffer) PushConstants(layout NativeObject, data []byte) {
	c.ops = append(c.ops, "push_constants")
	c.pushes = append(c.pushes, append([]byte(nil), data...))
}

func (c *fakeCommandBuffer) Dispatch(x, y, z uint32) {
	c.ops = append(c.ops, "dispatch")
	c.dispatches = append(c.dispatches, [3]uint32{x, y, z})
}

func (c *fakeCommandBuffer) CopyBuffer(src, dst NativeObject, region BufferCopy) {
	c.ops = append(c.ops, "copy_buffer")
	c.copies = append(c.copies, fakeCopy{src: src.(*fakeBuffer), dst: dst.(*fakeBuffer), region: region})
}

func (c *fakeCommandBuffer) CopyBufferToImage(src, dst NativeObject, layout ImageLayout, width, height uint32) {
	c.ops = append(c.ops, "copy_buffer_to_image")
	c.imageCopies = append(c.imageCopies, layout)
}

func (c *fakeCommandBuffer) PipelineBarrier(src, dst PipelineStageFlags, memory []NativeMemoryBarrier, buffers []NativeBufferBarrier, images []NativeImageBarrier) {
	c.ops = append(c.ops, "barrier")
	c.barriers = append(c.barriers, fakeBarrier{src: src, dst: dst, memory: memory, buffers: buffers, images: images})
}

func (c *fakeCommandBuffer) ResetQueryPool(pool NativeObject, first, count uint32) {
	c.ops = append(c.ops, "reset_query_pool")
	c.queryResets = append(c.queryResets, [2]uint32{first, count})
}

func (c *fakeCommandBuffer) WriteTimestamp(pool NativeObject, stage PipelineStageFlags, index uint32) {
	c.ops = append(c.ops, "write_timestamp")
	c.timestamps = append(c.timestamps, index)
}

func (c *fakeCommandBuffer) CopyQueryPoolResults(pool NativeObject, first, count uint32, dst NativeObject, dstOffset, stride uint64, flags QueryResultFlags) {
	c.ops = append(c.ops, "copy_query_pool_results")
	c.queryCopies = append(c.queryCopies, fakeQueryCopy{first: first, count: count, dst: dst, offset: dstOffset, stride: stride, flags: flags})
}

// newTestInstance creates an instance on a fresh fake driver.
func newTestInstance(t *testing.T) (*Instance, *fakeDriver) {
	t.Helper()
	drv := newFakeDriver()
	inst, err := NewInstance(drv, InstanceOptions{AppName: "cgpu-test", AppVersion: MakeVersion(0, 1, 0)})
	if err != nil {
		t.Fatalf("NewInstance() error = %v", err)
	}
	t.Cleanup(func() {
		if !inst.terminated {
			_ = inst.Terminate()
		}
	})
	return inst, drv
}

// newTestDevice creates an instance and device 0 on a fresh fake driver.
func newTestDevice(t *testing.T) (*Instance, Device, *fakeDriver) {
	t.Helper()
	inst, drv := newTestInstance(t)
	dev, err := inst.CreateDevice(0, DeviceOptions{MemoryBlockSize: 1 << 20})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	return inst, dev, drv
}

func (d *fakeDriver) logical() *fakeLogicalDevice {
	return d.physical[0].logical
}

// recorder returns the fake command buffer behind a handle.
func recorder(t *testing.T, inst *Instance, cb CommandBuffer) *fakeCommandBuffer {
	t.Helper()
	rec, err := inst.commandBuffer(cb)
	if err != nil {
		t.Fatalf("commandBuffer(%s) error = %v", cb, err)
	}
	return rec.recorder.(*fakeCommandBuffer)
}
