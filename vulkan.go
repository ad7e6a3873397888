//go:build !nogpu

package gpurender

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/gpurender/backend/vulkan"
	"github.com/gogpu/gpurender/gpu"
)

// The Vulkan backend registers itself with the backend registry on import.
// Build with -tags nogpu for a software-only binary.
func init() {
	addLoggerSink(vulkan.SetLogger)
	providerDevice = func(p gpucontext.DeviceProvider, cfg *config) (gpu.Device, error) {
		d, err := vulkan.NewDeviceFromProvider(p, vulkan.WithFenceTimeout(cfg.fenceTimeout))
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
