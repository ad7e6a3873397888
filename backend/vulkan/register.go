// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"github.com/gogpu/gpurender/backend"
	"github.com/gogpu/gpurender/gpu"
)

// init registers the Vulkan backend on package import. The factory opens
// the preferred adapter with default options; it fails on machines without
// a Vulkan driver and backend.Default then falls through to the next
// backend.
func init() {
	backend.Register(backend.BackendVulkan, func() (gpu.Device, error) {
		d, err := OpenDevice()
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}
