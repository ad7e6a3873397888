// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpurender/gpu"
)

// =============================================================================
// Vulkan enums
// =============================================================================

// Format is a VkFormat value.
type Format uint32

// VkFormat values used by the renderer.
const (
	FormatUndefined         Format = 0
	FormatR5G6B5UnormPack16 Format = 4
	FormatR8Unorm           Format = 9
	FormatR8G8B8Unorm       Format = 23
	FormatR8G8B8A8Unorm     Format = 37
	FormatR8G8B8A8SRGB      Format = 43
	FormatB8G8R8A8Unorm     Format = 44
	FormatB8G8R8A8SRGB      Format = 50
	FormatS8Uint            Format = 127
	FormatD24UnormS8Uint    Format = 129
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "VK_FORMAT_UNDEFINED"
	case FormatR5G6B5UnormPack16:
		return "VK_FORMAT_R5G6B5_UNORM_PACK16"
	case FormatR8Unorm:
		return "VK_FORMAT_R8_UNORM"
	case FormatR8G8B8Unorm:
		return "VK_FORMAT_R8G8B8_UNORM"
	case FormatR8G8B8A8Unorm:
		return "VK_FORMAT_R8G8B8A8_UNORM"
	case FormatR8G8B8A8SRGB:
		return "VK_FORMAT_R8G8B8A8_SRGB"
	case FormatB8G8R8A8Unorm:
		return "VK_FORMAT_B8G8R8A8_UNORM"
	case FormatB8G8R8A8SRGB:
		return "VK_FORMAT_B8G8R8A8_SRGB"
	case FormatS8Uint:
		return "VK_FORMAT_S8_UINT"
	case FormatD24UnormS8Uint:
		return "VK_FORMAT_D24_UNORM_S8_UINT"
	default:
		return fmt.Sprintf("VkFormat(%d)", uint32(f))
	}
}

// ImageLayout is a VkImageLayout value.
type ImageLayout uint32

// VkImageLayout values.
const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "Undefined"
	case ImageLayoutGeneral:
		return "General"
	case ImageLayoutColorAttachmentOptimal:
		return "ColorAttachmentOptimal"
	case ImageLayoutDepthStencilAttachmentOptimal:
		return "DepthStencilAttachmentOptimal"
	case ImageLayoutDepthStencilReadOnlyOptimal:
		return "DepthStencilReadOnlyOptimal"
	case ImageLayoutShaderReadOnlyOptimal:
		return "ShaderReadOnlyOptimal"
	case ImageLayoutTransferSrcOptimal:
		return "TransferSrcOptimal"
	case ImageLayoutTransferDstOptimal:
		return "TransferDstOptimal"
	case ImageLayoutPresentSrc:
		return "PresentSrc"
	default:
		return fmt.Sprintf("ImageLayout(%d)", uint32(l))
	}
}

// AccessFlags is a VkAccessFlags mask.
type AccessFlags uint32

// VkAccessFlagBits.
const (
	AccessIndexRead            AccessFlags = 0x00000002
	AccessVertexAttributeRead  AccessFlags = 0x00000004
	AccessUniformRead          AccessFlags = 0x00000008
	AccessShaderRead           AccessFlags = 0x00000020
	AccessShaderWrite          AccessFlags = 0x00000040
	AccessColorAttachmentRead  AccessFlags = 0x00000080
	AccessColorAttachmentWrite AccessFlags = 0x00000100
	AccessDepthStencilRead     AccessFlags = 0x00000200
	AccessDepthStencilWrite    AccessFlags = 0x00000400
	AccessTransferRead         AccessFlags = 0x00000800
	AccessTransferWrite        AccessFlags = 0x00001000
	AccessHostRead             AccessFlags = 0x00002000
	AccessHostWrite            AccessFlags = 0x00004000
	AccessMemoryRead           AccessFlags = 0x00008000
	AccessMemoryWrite          AccessFlags = 0x00010000
)

// PipelineStageFlags is a VkPipelineStageFlags mask.
type PipelineStageFlags uint32

// VkPipelineStageFlagBits.
const (
	StageTopOfPipe             PipelineStageFlags = 0x00000001
	StageVertexInput           PipelineStageFlags = 0x00000004
	StageVertexShader          PipelineStageFlags = 0x00000008
	StageFragmentShader        PipelineStageFlags = 0x00000080
	StageEarlyFragmentTests    PipelineStageFlags = 0x00000100
	StageLateFragmentTests     PipelineStageFlags = 0x00000200
	StageColorAttachmentOutput PipelineStageFlags = 0x00000400
	StageTransfer              PipelineStageFlags = 0x00001000
	StageBottomOfPipe          PipelineStageFlags = 0x00002000
	StageHost                  PipelineStageFlags = 0x00004000
	StageAllGraphics           PipelineStageFlags = 0x00008000
	StageAllCommands           PipelineStageFlags = 0x00010000
)

// ImageUsageFlags is a VkImageUsageFlags mask.
type ImageUsageFlags uint32

// VkImageUsageFlagBits.
const (
	ImageUsageTransferSrc            ImageUsageFlags = 0x01
	ImageUsageTransferDst            ImageUsageFlags = 0x02
	ImageUsageSampled                ImageUsageFlags = 0x04
	ImageUsageStorage                ImageUsageFlags = 0x08
	ImageUsageColorAttachment        ImageUsageFlags = 0x10
	ImageUsageDepthStencilAttachment ImageUsageFlags = 0x20
)

// BufferUsageFlags is a VkBufferUsageFlags mask.
type BufferUsageFlags uint32

// VkBufferUsageFlagBits.
const (
	BufferUsageTransferSrc   BufferUsageFlags = 0x01
	BufferUsageTransferDst   BufferUsageFlags = 0x02
	BufferUsageUniformBuffer BufferUsageFlags = 0x10
	BufferUsageIndexBuffer   BufferUsageFlags = 0x40
	BufferUsageVertexBuffer  BufferUsageFlags = 0x80
)

// ImageAspectFlags is a VkImageAspectFlags mask.
type ImageAspectFlags uint32

// VkImageAspectFlagBits.
const (
	AspectColor   ImageAspectFlags = 0x1
	AspectDepth   ImageAspectFlags = 0x2
	AspectStencil ImageAspectFlags = 0x4
)

// ColorType is the pixel layout of client-provided images.
type ColorType uint8

// Client color types.
const (
	ColorTypeUnknown ColorType = iota
	ColorTypeRGBA
	ColorTypeBGRA
	ColorTypeRGB565
	ColorTypeA8
)

// =============================================================================
// Canonical <-> Vulkan translation
// =============================================================================

// ToVkFormat maps a canonical format to its VkFormat. Unknown formats map
// to FormatUndefined.
func ToVkFormat(f gpu.TextureFormat) Format {
	switch f {
	case gpu.TextureFormatR8Unorm:
		return FormatR8Unorm
	case gpu.TextureFormatRGB8Unorm:
		return FormatR8G8B8Unorm
	case gpu.TextureFormatRGB565Unorm:
		return FormatR5G6B5UnormPack16
	case gpu.TextureFormatRGBA8Unorm:
		return FormatR8G8B8A8Unorm
	case gpu.TextureFormatBGRA8Unorm:
		return FormatB8G8R8A8Unorm
	case gpu.TextureFormatStencil8:
		return FormatS8Uint
	case gpu.TextureFormatDepth24Stencil8:
		return FormatD24UnormS8Uint
	default:
		return FormatUndefined
	}
}

// FromVkFormat maps a VkFormat back to the canonical format. Swapchain
// SRGB formats map to their UNORM counterpart.
func FromVkFormat(f Format) gpu.TextureFormat {
	switch f {
	case FormatR8Unorm:
		return gpu.TextureFormatR8Unorm
	case FormatR8G8B8Unorm:
		return gpu.TextureFormatRGB8Unorm
	case FormatR5G6B5UnormPack16:
		return gpu.TextureFormatRGB565Unorm
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8SRGB:
		return gpu.TextureFormatRGBA8Unorm
	case FormatB8G8R8A8Unorm, FormatB8G8R8A8SRGB:
		return gpu.TextureFormatBGRA8Unorm
	case FormatS8Uint:
		return gpu.TextureFormatStencil8
	case FormatD24UnormS8Uint:
		return gpu.TextureFormatDepth24Stencil8
	default:
		return gpu.TextureFormatInvalid
	}
}

// ColorTypeToVkFormat maps a client color type to a VkFormat.
func ColorTypeToVkFormat(ct ColorType) Format {
	switch ct {
	case ColorTypeRGBA:
		return FormatR8G8B8A8Unorm
	case ColorTypeBGRA:
		return FormatB8G8R8A8Unorm
	case ColorTypeRGB565:
		return FormatR5G6B5UnormPack16
	case ColorTypeA8:
		return FormatR8Unorm
	default:
		return FormatUndefined
	}
}

// VkFormatBytesPerPixel returns the texel size of f. Formats outside the
// renderer's set report 4.
func VkFormatBytesPerPixel(f Format) uint32 {
	switch f {
	case FormatR8Unorm, FormatS8Uint:
		return 1
	case FormatR5G6B5UnormPack16:
		return 2
	case FormatR8G8B8Unorm:
		return 3
	default:
		return 4
	}
}

// ToImageUsage maps texture usage to VkImageUsageFlags. TRANSFER_DST is
// always set so every image can receive uploads. Render attachment usage
// becomes a depth/stencil attachment for depth/stencil formats.
func ToImageUsage(usage gpu.TextureUsage, format gpu.TextureFormat) ImageUsageFlags {
	var flags ImageUsageFlags
	if usage.Has(gpu.TextureUsageCopySrc) {
		flags |= ImageUsageTransferSrc
	}
	if usage.Has(gpu.TextureUsageCopyDst) {
		flags |= ImageUsageTransferDst
	}
	if usage.Has(gpu.TextureUsageTextureBinding) {
		flags |= ImageUsageSampled
	}
	if usage.Has(gpu.TextureUsageStorageBinding) {
		flags |= ImageUsageStorage
	}
	if usage.Has(gpu.TextureUsageRenderAttachment) {
		if format.IsDepthStencil() {
			flags |= ImageUsageDepthStencilAttachment
		} else {
			flags |= ImageUsageColorAttachment
		}
	}
	return flags | ImageUsageTransferDst
}

// ToBufferUsage maps buffer usage to VkBufferUsageFlags. Both transfer
// bits are always set.
func ToBufferUsage(usage gpu.BufferUsage) BufferUsageFlags {
	flags := BufferUsageTransferSrc | BufferUsageTransferDst
	if usage.Has(gpu.BufferUsageVertex) {
		flags |= BufferUsageVertexBuffer
	}
	if usage.Has(gpu.BufferUsageIndex) {
		flags |= BufferUsageIndexBuffer
	}
	if usage.Has(gpu.BufferUsageUniform) {
		flags |= BufferUsageUniformBuffer
	}
	return flags
}

// AspectMask returns the image aspects of a format.
func AspectMask(f gpu.TextureFormat) ImageAspectFlags {
	switch f {
	case gpu.TextureFormatStencil8:
		return AspectStencil
	case gpu.TextureFormatDepth24Stencil8:
		return AspectDepth | AspectStencil
	default:
		return AspectColor
	}
}

// =============================================================================
// Canonical -> HAL lowering
// =============================================================================

// storageFormat is the VkFormat a canonical format is stored in. RGB8 and
// RGB565 have no renderable HAL format and are stored as RGBA8; texels are
// expanded on upload and packed on readback.
func storageFormat(f gpu.TextureFormat) Format {
	switch f {
	case gpu.TextureFormatRGB8Unorm, gpu.TextureFormatRGB565Unorm:
		return FormatR8G8B8A8Unorm
	default:
		return ToVkFormat(f)
	}
}

// halTextureFormat returns the native storage format.
func halTextureFormat(f gpu.TextureFormat) gputypes.TextureFormat {
	switch storageFormat(f) {
	case FormatR8Unorm:
		return gputypes.TextureFormatR8Unorm
	case FormatR8G8B8A8Unorm:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatB8G8R8A8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	case FormatS8Uint:
		return gputypes.TextureFormatStencil8
	case FormatD24UnormS8Uint:
		return gputypes.TextureFormatDepth24PlusStencil8
	default:
		return gputypes.TextureFormatUndefined
	}
}

// storedBytesPerPixel is the texel size of the native storage format, the
// unit of staging row pitches.
func storedBytesPerPixel(f gpu.TextureFormat) uint32 {
	return VkFormatBytesPerPixel(storageFormat(f))
}

// halTextureUsage lowers texture usage through the Vulkan image usage
// flags. Copy source is always requested so every texture supports
// readback.
func halTextureUsage(usage gpu.TextureUsage, format gpu.TextureFormat) gputypes.TextureUsage {
	flags := ToImageUsage(usage, format)
	out := gputypes.TextureUsageCopySrc
	if flags&ImageUsageTransferDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if flags&ImageUsageSampled != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if flags&ImageUsageStorage != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	if flags&(ImageUsageColorAttachment|ImageUsageDepthStencilAttachment) != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

// halBufferUsage lowers buffer usage through the Vulkan buffer usage flags.
func halBufferUsage(usage gpu.BufferUsage) gputypes.BufferUsage {
	flags := ToBufferUsage(usage)
	var out gputypes.BufferUsage
	if flags&BufferUsageTransferSrc != 0 {
		out |= gputypes.BufferUsageCopySrc
	}
	if flags&BufferUsageTransferDst != 0 {
		out |= gputypes.BufferUsageCopyDst
	}
	if flags&BufferUsageVertexBuffer != 0 {
		out |= gputypes.BufferUsageVertex
	}
	if flags&BufferUsageIndexBuffer != 0 {
		out |= gputypes.BufferUsageIndex
	}
	if flags&BufferUsageUniformBuffer != 0 {
		out |= gputypes.BufferUsageUniform
	}
	return out
}

func halCompare(c gpu.CompareFunction) gputypes.CompareFunction {
	switch c {
	case gpu.CompareNever:
		return gputypes.CompareFunctionNever
	case gpu.CompareLess:
		return gputypes.CompareFunctionLess
	case gpu.CompareEqual:
		return gputypes.CompareFunctionEqual
	case gpu.CompareLessEqual:
		return gputypes.CompareFunctionLessEqual
	case gpu.CompareGreater:
		return gputypes.CompareFunctionGreater
	case gpu.CompareNotEqual:
		return gputypes.CompareFunctionNotEqual
	case gpu.CompareGreaterEqual:
		return gputypes.CompareFunctionGreaterEqual
	default:
		return gputypes.CompareFunctionAlways
	}
}

func halStencilOp(op gpu.StencilOperation) hal.StencilOperation {
	switch op {
	case gpu.StencilOpZero:
		return hal.StencilOperationZero
	case gpu.StencilOpReplace:
		return hal.StencilOperationReplace
	case gpu.StencilOpInvert:
		return hal.StencilOperationInvert
	case gpu.StencilOpIncrementClamp:
		return hal.StencilOperationIncrementClamp
	case gpu.StencilOpDecrementClamp:
		return hal.StencilOperationDecrementClamp
	case gpu.StencilOpIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case gpu.StencilOpDecrementWrap:
		return hal.StencilOperationDecrementWrap
	default:
		return hal.StencilOperationKeep
	}
}

func halBlendFactor(f gpu.BlendFactor) gputypes.BlendFactor {
	switch f {
	case gpu.BlendFactorOne:
		return gputypes.BlendFactorOne
	case gpu.BlendFactorSrc:
		return gputypes.BlendFactorSrc
	case gpu.BlendFactorOneMinusSrc:
		return gputypes.BlendFactorOneMinusSrc
	case gpu.BlendFactorSrcAlpha:
		return gputypes.BlendFactorSrcAlpha
	case gpu.BlendFactorOneMinusSrcAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha
	case gpu.BlendFactorDst:
		return gputypes.BlendFactorDst
	case gpu.BlendFactorOneMinusDst:
		return gputypes.BlendFactorOneMinusDst
	case gpu.BlendFactorDstAlpha:
		return gputypes.BlendFactorDstAlpha
	case gpu.BlendFactorOneMinusDstAlpha:
		return gputypes.BlendFactorOneMinusDstAlpha
	case gpu.BlendFactorSrcAlphaSaturated:
		return gputypes.BlendFactorSrcAlphaSaturated
	default:
		return gputypes.BlendFactorZero
	}
}

func halBlendOperation(op gpu.BlendOperation) gputypes.BlendOperation {
	switch op {
	case gpu.BlendOpSubtract:
		return gputypes.BlendOperationSubtract
	case gpu.BlendOpReverseSubtract:
		return gputypes.BlendOperationReverseSubtract
	case gpu.BlendOpMin:
		return gputypes.BlendOperationMin
	case gpu.BlendOpMax:
		return gputypes.BlendOperationMax
	default:
		return gputypes.BlendOperationAdd
	}
}

// halBlendState applies one equation to both color and alpha.
func halBlendState(b *gpu.BlendState) *gputypes.BlendState {
	if b == nil {
		return nil
	}
	c := gputypes.BlendComponent{
		SrcFactor: halBlendFactor(b.SrcFactor),
		DstFactor: halBlendFactor(b.DstFactor),
		Operation: halBlendOperation(b.Operation),
	}
	return &gputypes.BlendState{Color: c, Alpha: c}
}

func halWriteMask(m gpu.ColorWriteMask) gputypes.ColorWriteMask {
	var out gputypes.ColorWriteMask
	if m&gpu.ColorWriteRed != 0 {
		out |= gputypes.ColorWriteMaskRed
	}
	if m&gpu.ColorWriteGreen != 0 {
		out |= gputypes.ColorWriteMaskGreen
	}
	if m&gpu.ColorWriteBlue != 0 {
		out |= gputypes.ColorWriteMaskBlue
	}
	if m&gpu.ColorWriteAlpha != 0 {
		out |= gputypes.ColorWriteMaskAlpha
	}
	return out
}

func halVertexFormat(f gpu.VertexFormat) (gputypes.VertexFormat, bool) {
	switch f {
	case gpu.VertexFormatFloat32:
		return gputypes.VertexFormatFloat32, true
	case gpu.VertexFormatFloat32x2:
		return gputypes.VertexFormatFloat32x2, true
	case gpu.VertexFormatFloat32x3:
		return gputypes.VertexFormatFloat32x3, true
	case gpu.VertexFormatFloat32x4:
		return gputypes.VertexFormatFloat32x4, true
	case gpu.VertexFormatUint32:
		return gputypes.VertexFormatUint32, true
	case gpu.VertexFormatUint32x2:
		return gputypes.VertexFormatUint32x2, true
	case gpu.VertexFormatUint32x3:
		return gputypes.VertexFormatUint32x3, true
	case gpu.VertexFormatUint32x4:
		return gputypes.VertexFormatUint32x4, true
	case gpu.VertexFormatSint32:
		return gputypes.VertexFormatSint32, true
	case gpu.VertexFormatSint32x2:
		return gputypes.VertexFormatSint32x2, true
	case gpu.VertexFormatSint32x3:
		return gputypes.VertexFormatSint32x3, true
	case gpu.VertexFormatSint32x4:
		return gputypes.VertexFormatSint32x4, true
	case gpu.VertexFormatUnorm8x4:
		return gputypes.VertexFormatUnorm8x4, true
	default:
		return 0, false
	}
}

func halCullMode(m gpu.CullMode) gputypes.CullMode {
	switch m {
	case gpu.CullModeFront:
		return gputypes.CullModeFront
	case gpu.CullModeBack:
		return gputypes.CullModeBack
	default:
		return gputypes.CullModeNone
	}
}

func halTopology(t gpu.PrimitiveTopology) gputypes.PrimitiveTopology {
	switch t {
	case gpu.TopologyTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	case gpu.TopologyLineList:
		return gputypes.PrimitiveTopologyLineList
	case gpu.TopologyPointList:
		return gputypes.PrimitiveTopologyPointList
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

func halStepMode(m gpu.VertexStepMode) gputypes.VertexStepMode {
	if m == gpu.StepModeInstance {
		return gputypes.VertexStepModeInstance
	}
	return gputypes.VertexStepModeVertex
}

func halFilter(f gpu.FilterMode) gputypes.FilterMode {
	if f == gpu.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

// halMipmapFilter treats MipmapNone as nearest; the sampler never reads
// past level 0 of single-level textures.
func halMipmapFilter(m gpu.MipmapMode) gputypes.FilterMode {
	if m == gpu.MipmapLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

func halAddressMode(m gpu.AddressMode) gputypes.AddressMode {
	switch m {
	case gpu.AddressRepeat:
		return gputypes.AddressModeRepeat
	case gpu.AddressMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

func halLoadOp(op gpu.LoadOp) gputypes.LoadOp {
	if op == gpu.LoadOpLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

func halStoreOp(op gpu.StoreOp) gputypes.StoreOp {
	if op == gpu.StoreOpDiscard {
		return gputypes.StoreOpDiscard
	}
	return gputypes.StoreOpStore
}
