package gpu

import "fmt"

// Format is the pixel format of an image. The set mirrors the native
// format enumeration, including the multi-planar, PVRTC and HDR ASTC
// additions.
type Format uint16

const (
	FormatUndefined Format = iota
	FormatR4G4UnormPack8
	FormatR4G4B4A4UnormPack16
	FormatB4G4R4A4UnormPack16
	FormatR5G6B5UnormPack16
	FormatB5G6R5UnormPack16
	FormatR5G5B5A1UnormPack16
	FormatB5G5R5A1UnormPack16
	FormatA1R5G5B5UnormPack16
	FormatR8Unorm
	FormatR8Snorm
	FormatR8Uscaled
	FormatR8Sscaled
	FormatR8Uint
	FormatR8Sint
	FormatR8Srgb
	FormatR8G8Unorm
	FormatR8G8Snorm
	FormatR8G8Uscaled
	FormatR8G8Sscaled
	FormatR8G8Uint
	FormatR8G8Sint
	FormatR8G8Srgb
	FormatR8G8B8Unorm
	FormatR8G8B8Snorm
	FormatR8G8B8Uscaled
	FormatR8G8B8Sscaled
	FormatR8G8B8Uint
	FormatR8G8B8Sint
	FormatR8G8B8Srgb
	FormatB8G8R8Unorm
	FormatB8G8R8Snorm
	FormatB8G8R8Uscaled
	FormatB8G8R8Sscaled
	FormatB8G8R8Uint
	FormatB8G8R8Sint
	FormatB8G8R8Srgb
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Snorm
	FormatR8G8B8A8Uscaled
	FormatR8G8B8A8Sscaled
	FormatR8G8B8A8Uint
	FormatR8G8B8A8Sint
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Snorm
	FormatB8G8R8A8Uscaled
	FormatB8G8R8A8Sscaled
	FormatB8G8R8A8Uint
	FormatB8G8R8A8Sint
	FormatB8G8R8A8Srgb
	FormatA8B8G8R8UnormPack32
	FormatA8B8G8R8SnormPack32
	FormatA8B8G8R8UscaledPack32
	FormatA8B8G8R8SscaledPack32
	FormatA8B8G8R8UintPack32
	FormatA8B8G8R8SintPack32
	FormatA8B8G8R8SrgbPack32
	FormatA2R10G10B10UnormPack32
	FormatA2R10G10B10SnormPack32
	FormatA2R10G10B10UscaledPack32
	FormatA2R10G10B10SscaledPack32
	FormatA2R10G10B10UintPack32
	FormatA2R10G10B10SintPack32
	FormatA2B10G10R10UnormPack32
	FormatA2B10G10R10SnormPack32
	FormatA2B10G10R10UscaledPack32
	FormatA2B10G10R10SscaledPack32
	FormatA2B10G10R10UintPack32
	FormatA2B10G10R10SintPack32
	FormatR16Unorm
	FormatR16Snorm
	FormatR16Uscaled
	FormatR16Sscaled
	FormatR16Uint
	FormatR16Sint
	FormatR16Sfloat
	FormatR16G16Unorm
	FormatR16G16Snorm
	FormatR16G16Uscaled
	FormatR16G16Sscaled
	FormatR16G16Uint
	FormatR16G16Sint
	FormatR16G16Sfloat
	FormatR16G16B16Unorm
	FormatR16G16B16Snorm
	FormatR16G16B16Uscaled
	FormatR16G16B16Sscaled
	FormatR16G16B16Uint
	FormatR16G16B16Sint
	FormatR16G16B16Sfloat
	FormatR16G16B16A16Unorm
	FormatR16G16B16A16Snorm
	FormatR16G16B16A16Uscaled
	FormatR16G16B16A16Sscaled
	FormatR16G16B16A16Uint
	FormatR16G16B16A16Sint
	FormatR16G16B16A16Sfloat
	FormatR32Uint
	FormatR32Sint
	FormatR32Sfloat
	FormatR32G32Uint
	FormatR32G32Sint
	FormatR32G32Sfloat
	FormatR32G32B32Uint
	FormatR32G32B32Sint
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Uint
	FormatR32G32B32A32Sint
	FormatR32G32B32A32Sfloat
	FormatR64Uint
	FormatR64Sint
	FormatR64Sfloat
	FormatR64G64Uint
	FormatR64G64Sint
	FormatR64G64Sfloat
	FormatR64G64B64Uint
	FormatR64G64B64Sint
	FormatR64G64B64Sfloat
	FormatR64G64B64A64Uint
	FormatR64G64B64A64Sint
	FormatR64G64B64A64Sfloat
	FormatB10G11R11UfloatPack32
	FormatE5b9g9r9UfloatPack32
	FormatD16Unorm
	FormatX8D24UnormPack32
	FormatD32Sfloat
	FormatS8Uint
	FormatD16UnormS8Uint
	FormatD24UnormS8Uint
	FormatD32SfloatS8Uint
	FormatBc1RgbUnormBlock
	FormatBc1RgbSrgbBlock
	FormatBc1RgbaUnormBlock
	FormatBc1RgbaSrgbBlock
	FormatBc2UnormBlock
	FormatBc2SrgbBlock
	FormatBc3UnormBlock
	FormatBc3SrgbBlock
	FormatBc4UnormBlock
	FormatBc4SnormBlock
	FormatBc5UnormBlock
	FormatBc5SnormBlock
	FormatBc6hUfloatBlock
	FormatBc6hSfloatBlock
	FormatBc7UnormBlock
	FormatBc7SrgbBlock
	FormatEtc2R8G8B8UnormBlock
	FormatEtc2R8G8B8SrgbBlock
	FormatEtc2R8G8B8A1UnormBlock
	FormatEtc2R8G8B8A1SrgbBlock
	FormatEtc2R8G8B8A8UnormBlock
	FormatEtc2R8G8B8A8SrgbBlock
	FormatEacR11UnormBlock
	FormatEacR11SnormBlock
	FormatEacR11G11UnormBlock
	FormatEacR11G11SnormBlock
	FormatAstc4x4UnormBlock
	FormatAstc4x4SrgbBlock
	FormatAstc5x4UnormBlock
	FormatAstc5x4SrgbBlock
	FormatAstc5x5UnormBlock
	FormatAstc5x5SrgbBlock
	FormatAstc6x5UnormBlock
	FormatAstc6x5SrgbBlock
	FormatAstc6x6UnormBlock
	FormatAstc6x6SrgbBlock
	FormatAstc8x5UnormBlock
	FormatAstc8x5SrgbBlock
	FormatAstc8x6UnormBlock
	FormatAstc8x6SrgbBlock
	FormatAstc8x8UnormBlock
	FormatAstc8x8SrgbBlock
	FormatAstc10x5UnormBlock
	FormatAstc10x5SrgbBlock
	FormatAstc10x6UnormBlock
	FormatAstc10x6SrgbBlock
	FormatAstc10x8UnormBlock
	FormatAstc10x8SrgbBlock
	FormatAstc10x10UnormBlock
	FormatAstc10x10SrgbBlock
	FormatAstc12x10UnormBlock
	FormatAstc12x10SrgbBlock
	FormatAstc12x12UnormBlock
	FormatAstc12x12SrgbBlock
	FormatG8B8G8R8422Unorm
	FormatB8G8R8G8422Unorm
	FormatG8B8R83plane420Unorm
	FormatG8B8R82plane420Unorm
	FormatG8B8R83plane422Unorm
	FormatG8B8R82plane422Unorm
	FormatG8B8R83plane444Unorm
	FormatR10X6UnormPack16
	FormatR10X6G10X6Unorm2pack16
	FormatR10X6G10X6B10X6A10X6Unorm4pack16
	FormatG10X6B10X6G10X6R10X6422Unorm4pack16
	FormatB10X6G10X6R10X6G10X6422Unorm4pack16
	FormatG10X6B10X6R10X63plane420Unorm3pack16
	FormatG10X6B10X6R10X62plane420Unorm3pack16
	FormatG10X6B10X6R10X63plane422Unorm3pack16
	FormatG10X6B10X6R10X62plane422Unorm3pack16
	FormatG10X6B10X6R10X63plane444Unorm3pack16
	FormatR12X4UnormPack16
	FormatR12X4G12X4Unorm2pack16
	FormatR12X4G12X4B12X4A12X4Unorm4pack16
	FormatG12X4B12X4G12X4R12X4422Unorm4pack16
	FormatB12X4G12X4R12X4G12X4422Unorm4pack16
	FormatG12X4B12X4R12X43plane420Unorm3pack16
	FormatG12X4B12X4R12X42plane420Unorm3pack16
	FormatG12X4B12X4R12X43plane422Unorm3pack16
	FormatG12X4B12X4R12X42plane422Unorm3pack16
	FormatG12X4B12X4R12X43plane444Unorm3pack16
	FormatG16B16G16R16422Unorm
	FormatB16G16R16G16422Unorm
	FormatG16B16R163plane420Unorm
	FormatG16B16R162plane420Unorm
	FormatG16B16R163plane422Unorm
	FormatG16B16R162plane422Unorm
	FormatG16B16R163plane444Unorm
	FormatPvrtc12bppUnormBlockImg
	FormatPvrtc14bppUnormBlockImg
	FormatPvrtc22bppUnormBlockImg
	FormatPvrtc24bppUnormBlockImg
	FormatPvrtc12bppSrgbBlockImg
	FormatPvrtc14bppSrgbBlockImg
	FormatPvrtc22bppSrgbBlockImg
	FormatPvrtc24bppSrgbBlockImg
	FormatAstc4x4SfloatBlock
	FormatAstc5x4SfloatBlock
	FormatAstc5x5SfloatBlock
	FormatAstc6x5SfloatBlock
	FormatAstc6x6SfloatBlock
	FormatAstc8x5SfloatBlock
	FormatAstc8x6SfloatBlock
	FormatAstc8x8SfloatBlock
	FormatAstc10x5SfloatBlock
	FormatAstc10x6SfloatBlock
	FormatAstc10x8SfloatBlock
	FormatAstc10x10SfloatBlock
	FormatAstc12x10SfloatBlock
	FormatAstc12x12SfloatBlock

	formatCount
)

// formatNames is indexed by Format.
var formatNames = [formatCount]string{
	"UNDEFINED",
	"R4G4_UNORM_PACK8",
	"R4G4B4A4_UNORM_PACK16",
	"B4G4R4A4_UNORM_PACK16",
	"R5G6B5_UNORM_PACK16",
	"B5G6R5_UNORM_PACK16",
	"R5G5B5A1_UNORM_PACK16",
	"B5G5R5A1_UNORM_PACK16",
	"A1R5G5B5_UNORM_PACK16",
	"R8_UNORM",
	"R8_SNORM",
	"R8_USCALED",
	"R8_SSCALED",
	"R8_UINT",
	"R8_SINT",
	"R8_SRGB",
	"R8G8_UNORM",
	"R8G8_SNORM",
	"R8G8_USCALED",
	"R8G8_SSCALED",
	"R8G8_UINT",
	"R8G8_SINT",
	"R8G8_SRGB",
	"R8G8B8_UNORM",
	"R8G8B8_SNORM",
	"R8G8B8_USCALED",
	"R8G8B8_SSCALED",
	"R8G8B8_UINT",
	"R8G8B8_SINT",
	"R8G8B8_SRGB",
	"B8G8R8_UNORM",
	"B8G8R8_SNORM",
	"B8G8R8_USCALED",
	"B8G8R8_SSCALED",
	"B8G8R8_UINT",
	"B8G8R8_SINT",
	"B8G8R8_SRGB",
	"R8G8B8A8_UNORM",
	"R8G8B8A8_SNORM",
	"R8G8B8A8_USCALED",
	"R8G8B8A8_SSCALED",
	"R8G8B8A8_UINT",
	"R8G8B8A8_SINT",
	"R8G8B8A8_SRGB",
	"B8G8R8A8_UNORM",
	"B8G8R8A8_SNORM",
	"B8G8R8A8_USCALED",
	"B8G8R8A8_SSCALED",
	"B8G8R8A8_UINT",
	"B8G8R8A8_SINT",
	"B8G8R8A8_SRGB",
	"A8B8G8R8_UNORM_PACK32",
	"A8B8G8R8_SNORM_PACK32",
	"A8B8G8R8_USCALED_PACK32",
	"A8B8G8R8_SSCALED_PACK32",
	"A8B8G8R8_UINT_PACK32",
	"A8B8G8R8_SINT_PACK32",
	"A8B8G8R8_SRGB_PACK32",
	"A2R10G10B10_UNORM_PACK32",
	"A2R10G10B10_SNORM_PACK32",
	"A2R10G10B10_USCALED_PACK32",
	"A2R10G10B10_SSCALED_PACK32",
	"A2R10G10B10_UINT_PACK32",
	"A2R10G10B10_SINT_PACK32",
	"A2B10G10R10_UNORM_PACK32",
	"A2B10G10R10_SNORM_PACK32",
	"A2B10G10R10_USCALED_PACK32",
	"A2B10G10R10_SSCALED_PACK32",
	"A2B10G10R10_UINT_PACK32",
	"A2B10G10R10_SINT_PACK32",
	"R16_UNORM",
	"R16_SNORM",
	"R16_USCALED",
	"R16_SSCALED",
	"R16_UINT",
	"R16_SINT",
	"R16_SFLOAT",
	"R16G16_UNORM",
	"R16G16_SNORM",
	"R16G16_USCALED",
	"R16G16_SSCALED",
	"R16G16_UINT",
	"R16G16_SINT",
	"R16G16_SFLOAT",
	"R16G16B16_UNORM",
	"R16G16B16_SNORM",
	"R16G16B16_USCALED",
	"R16G16B16_SSCALED",
	"R16G16B16_UINT",
	"R16G16B16_SINT",
	"R16G16B16_SFLOAT",
	"R16G16B16A16_UNORM",
	"R16G16B16A16_SNORM",
	"R16G16B16A16_USCALED",
	"R16G16B16A16_SSCALED",
	"R16G16B16A16_UINT",
	"R16G16B16A16_SINT",
	"R16G16B16A16_SFLOAT",
	"R32_UINT",
	"R32_SINT",
	"R32_SFLOAT",
	"R32G32_UINT",
	"R32G32_SINT",
	"R32G32_SFLOAT",
	"R32G32B32_UINT",
	"R32G32B32_SINT",
	"R32G32B32_SFLOAT",
	"R32G32B32A32_UINT",
	"R32G32B32A32_SINT",
	"R32G32B32A32_SFLOAT",
	"R64_UINT",
	"R64_SINT",
	"R64_SFLOAT",
	"R64G64_UINT",
	"R64G64_SINT",
	"R64G64_SFLOAT",
	"R64G64B64_UINT",
	"R64G64B64_SINT",
	"R64G64B64_SFLOAT",
	"R64G64B64A64_UINT",
	"R64G64B64A64_SINT",
	"R64G64B64A64_SFLOAT",
	"B10G11R11_UFLOAT_PACK32",
	"E5B9G9R9_UFLOAT_PACK32",
	"D16_UNORM",
	"X8_D24_UNORM_PACK32",
	"D32_SFLOAT",
	"S8_UINT",
	"D16_UNORM_S8_UINT",
	"D24_UNORM_S8_UINT",
	"D32_SFLOAT_S8_UINT",
	"BC1_RGB_UNORM_BLOCK",
	"BC1_RGB_SRGB_BLOCK",
	"BC1_RGBA_UNORM_BLOCK",
	"BC1_RGBA_SRGB_BLOCK",
	"BC2_UNORM_BLOCK",
	"BC2_SRGB_BLOCK",
	"BC3_UNORM_BLOCK",
	"BC3_SRGB_BLOCK",
	"BC4_UNORM_BLOCK",
	"BC4_SNORM_BLOCK",
	"BC5_UNORM_BLOCK",
	"BC5_SNORM_BLOCK",
	"BC6H_UFLOAT_BLOCK",
	"BC6H_SFLOAT_BLOCK",
	"BC7_UNORM_BLOCK",
	"BC7_SRGB_BLOCK",
	"ETC2_R8G8B8_UNORM_BLOCK",
	"ETC2_R8G8B8_SRGB_BLOCK",
	"ETC2_R8G8B8A1_UNORM_BLOCK",
	"ETC2_R8G8B8A1_SRGB_BLOCK",
	"ETC2_R8G8B8A8_UNORM_BLOCK",
	"ETC2_R8G8B8A8_SRGB_BLOCK",
	"EAC_R11_UNORM_BLOCK",
	"EAC_R11_SNORM_BLOCK",
	"EAC_R11G11_UNORM_BLOCK",
	"EAC_R11G11_SNORM_BLOCK",
	"ASTC_4x4_UNORM_BLOCK",
	"ASTC_4x4_SRGB_BLOCK",
	"ASTC_5x4_UNORM_BLOCK",
	"ASTC_5x4_SRGB_BLOCK",
	"ASTC_5x5_UNORM_BLOCK",
	"ASTC_5x5_SRGB_BLOCK",
	"ASTC_6x5_UNORM_BLOCK",
	"ASTC_6x5_SRGB_BLOCK",
	"ASTC_6x6_UNORM_BLOCK",
	"ASTC_6x6_SRGB_BLOCK",
	"ASTC_8x5_UNORM_BLOCK",
	"ASTC_8x5_SRGB_BLOCK",
	"ASTC_8x6_UNORM_BLOCK",
	"ASTC_8x6_SRGB_BLOCK",
	"ASTC_8x8_UNORM_BLOCK",
	"ASTC_8x8_SRGB_BLOCK",
	"ASTC_10x5_UNORM_BLOCK",
	"ASTC_10x5_SRGB_BLOCK",
	"ASTC_10x6_UNORM_BLOCK",
	"ASTC_10x6_SRGB_BLOCK",
	"ASTC_10x8_UNORM_BLOCK",
	"ASTC_10x8_SRGB_BLOCK",
	"ASTC_10x10_UNORM_BLOCK",
	"ASTC_10x10_SRGB_BLOCK",
	"ASTC_12x10_UNORM_BLOCK",
	"ASTC_12x10_SRGB_BLOCK",
	"ASTC_12x12_UNORM_BLOCK",
	"ASTC_12x12_SRGB_BLOCK",
	"G8B8G8R8_422_UNORM",
	"B8G8R8G8_422_UNORM",
	"G8_B8_R8_3PLANE_420_UNORM",
	"G8_B8R8_2PLANE_420_UNORM",
	"G8_B8_R8_3PLANE_422_UNORM",
	"G8_B8R8_2PLANE_422_UNORM",
	"G8_B8_R8_3PLANE_444_UNORM",
	"R10X6_UNORM_PACK16",
	"R10X6G10X6_UNORM_2PACK16",
	"R10X6G10X6B10X6A10X6_UNORM_4PACK16",
	"G10X6B10X6G10X6R10X6_422_UNORM_4PACK16",
	"B10X6G10X6R10X6G10X6_422_UNORM_4PACK16",
	"G10X6_B10X6_R10X6_3PLANE_420_UNORM_3PACK16",
	"G10X6_B10X6R10X6_2PLANE_420_UNORM_3PACK16",
	"G10X6_B10X6_R10X6_3PLANE_422_UNORM_3PACK16",
	"G10X6_B10X6R10X6_2PLANE_422_UNORM_3PACK16",
	"G10X6_B10X6_R10X6_3PLANE_444_UNORM_3PACK16",
	"R12X4_UNORM_PACK16",
	"R12X4G12X4_UNORM_2PACK16",
	"R12X4G12X4B12X4A12X4_UNORM_4PACK16",
	"G12X4B12X4G12X4R12X4_422_UNORM_4PACK16",
	"B12X4G12X4R12X4G12X4_422_UNORM_4PACK16",
	"G12X4_B12X4_R12X4_3PLANE_420_UNORM_3PACK16",
	"G12X4_B12X4R12X4_2PLANE_420_UNORM_3PACK16",
	"G12X4_B12X4_R12X4_3PLANE_422_UNORM_3PACK16",
	"G12X4_B12X4R12X4_2PLANE_422_UNORM_3PACK16",
	"G12X4_B12X4_R12X4_3PLANE_444_UNORM_3PACK16",
	"G16B16G16R16_422_UNORM",
	"B16G16R16G16_422_UNORM",
	"G16_B16_R16_3PLANE_420_UNORM",
	"G16_B16R16_2PLANE_420_UNORM",
	"G16_B16_R16_3PLANE_422_UNORM",
	"G16_B16R16_2PLANE_422_UNORM",
	"G16_B16_R16_3PLANE_444_UNORM",
	"PVRTC1_2BPP_UNORM_BLOCK_IMG",
	"PVRTC1_4BPP_UNORM_BLOCK_IMG",
	"PVRTC2_2BPP_UNORM_BLOCK_IMG",
	"PVRTC2_4BPP_UNORM_BLOCK_IMG",
	"PVRTC1_2BPP_SRGB_BLOCK_IMG",
	"PVRTC1_4BPP_SRGB_BLOCK_IMG",
	"PVRTC2_2BPP_SRGB_BLOCK_IMG",
	"PVRTC2_4BPP_SRGB_BLOCK_IMG",
	"ASTC_4x4_SFLOAT_BLOCK",
	"ASTC_5x4_SFLOAT_BLOCK",
	"ASTC_5x5_SFLOAT_BLOCK",
	"ASTC_6x5_SFLOAT_BLOCK",
	"ASTC_6x6_SFLOAT_BLOCK",
	"ASTC_8x5_SFLOAT_BLOCK",
	"ASTC_8x6_SFLOAT_BLOCK",
	"ASTC_8x8_SFLOAT_BLOCK",
	"ASTC_10x5_SFLOAT_BLOCK",
	"ASTC_10x6_SFLOAT_BLOCK",
	"ASTC_10x8_SFLOAT_BLOCK",
	"ASTC_10x10_SFLOAT_BLOCK",
	"ASTC_12x10_SFLOAT_BLOCK",
	"ASTC_12x12_SFLOAT_BLOCK",
}

func (f Format) String() string {
	if f < formatCount {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint16(f))
}

// IsValid reports whether f is a declared format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// Formats returns every declared format in declaration order.
func Formats() []Format {
	formats := make([]Format, formatCount)
	for i := range formats {
		formats[i] = Format(i)
	}
	return formats
}
