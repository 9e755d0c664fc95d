package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/gpu"
)

const (
	validationLayerName        = "VK_LAYER_KHRONOS_validation"
	portabilityEnumerationName = "VK_KHR_portability_enumeration"
)

var ErrInstanceNotCreated = errors.New("vulkan instance not created")

// Driver implements gpu.Driver on top of the Vulkan loader.
type Driver struct {
	loader   Loader
	instance vk.Instance
	debug    vk.DebugReportCallback
	log      *log.Logger
}

var _ gpu.Driver = (*Driver)(nil)

// New returns a driver that resolves the loader through loader. A nil
// loader selects DefaultLoader.
func New(loader Loader) *Driver {
	if loader == nil {
		loader = DefaultLoader{}
	}
	return &Driver{
		loader: loader,
		log:    core.LogWith("driver", "vulkan"),
	}
}

func (d *Driver) CreateInstance(info gpu.InstanceInfo) error {
	if err := d.loader.Load(); err != nil {
		d.log.Errorf("failed to initialize vk: %s", err)
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(info.APIVersion),
		ApplicationVersion: uint32(info.AppVersion),
		PApplicationName:   safeString(info.AppName),
		PEngineName:        safeString("cgpu"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	available, err := instanceExtensions()
	if err != nil {
		d.loader.Release()
		return err
	}

	var extensions, layers []string
	if available[portabilityEnumerationName] {
		extensions = append(extensions, portabilityEnumerationName)
		createInfo.Flags |= vk.InstanceCreateFlags(instanceCreateEnumeratePortability)
	}
	debug := false
	if info.Validation {
		if hasLayer(validationLayerName) {
			layers = append(layers, validationLayerName)
		} else {
			d.log.Warnf("Validation requested but %s is missing", validationLayerName)
		}
		if available[vk.ExtDebugReportExtensionName] {
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
			debug = true
		}
	}
	for _, name := range extensions {
		d.log.Debugf("Instance extension: %s", name)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		d.loader.Release()
		d.log.Errorf("failed in creating the Vulkan Instance with error `%s`", ResultString(res, true))
		return check("vkCreateInstance", res)
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		d.loader.Release()
		return err
	}
	d.instance = instance

	if debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: d.debugCallback,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &dbg)); err != nil {
			d.log.Warnf("vk.CreateDebugReportCallback failed with %s", err)
		} else {
			d.debug = dbg
		}
	}
	d.log.Debug("Vulkan instance created")
	return nil
}

func (d *Driver) DestroyInstance() {
	if d.instance == nil {
		return
	}
	if d.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debug, nil)
		d.debug = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(d.instance, nil)
	d.instance = nil
	d.loader.Release()
}

func (d *Driver) PhysicalDevices() ([]gpu.PhysicalDevice, error) {
	if d.instance == nil {
		return nil, ErrInstanceNotCreated
	}
	var count uint32
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, nil); res != vk.Success {
		return nil, check("vkEnumeratePhysicalDevices", res)
	}
	handles := make([]vk.PhysicalDevice, count)
	if count > 0 {
		if res := vk.EnumeratePhysicalDevices(d.instance, &count, handles); res != vk.Success && res != vk.Incomplete {
			return nil, check("vkEnumeratePhysicalDevices", res)
		}
	}
	devices := make([]gpu.PhysicalDevice, 0, count)
	for _, h := range handles[:count] {
		devices = append(devices, newPhysicalDevice(h, d.log))
	}
	return devices, nil
}

func instanceExtensions() (map[string]bool, error) {
	var count uint32
	if res := vk.EnumerateInstanceExtensionProperties("", &count, nil); res != vk.Success {
		return nil, check("vkEnumerateInstanceExtensionProperties", res)
	}
	list := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateInstanceExtensionProperties("", &count, list); res != vk.Success && res != vk.Incomplete {
			return nil, check("vkEnumerateInstanceExtensionProperties", res)
		}
	}
	names := make(map[string]bool, count)
	for i := range list[:count] {
		list[i].Deref()
		names[cString(list[i].ExtensionName[:])] = true
	}
	return names, nil
}

func hasLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success && res != vk.Incomplete {
		return false
	}
	for i := range layers[:count] {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Driver) debugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		d.log.Errorf("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		d.log.Warnf("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		d.log.Warnf("PERFORMANCE [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		d.log.Debugf("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (d *Driver) String() string {
	return fmt.Sprintf("vulkan(%T)", d.loader)
}
