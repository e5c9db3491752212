package models

import (
	"fmt"

	"volpatch/pkg/tensor"
)

// Volume represents one loaded source volume a sampler draws patches from.
// It satisfies the patch.Source interface.
type Volume struct {
	// Name is the subject or series identifier of the volume.
	Name string

	// SubjectID is the numeric id recorded in patch info arrays.
	SubjectID int64

	// data is the voxel data as a 4-d array in spatial-then-channel
	// order (x, y, z, modality). 2D sources carry a singleton z.
	data *tensor.Dense

	// VoxelSize is the physical size of each voxel in mm.
	VoxelSize struct {
		X, Y, Z float64
	}
}

// NewVolume wraps voxel data in a Volume. The data must be 4-d.
func NewVolume(name string, subjectID int64, data *tensor.Dense) (*Volume, error) {
	if data == nil {
		return nil, fmt.Errorf("volume %q has no data", name)
	}
	if len(data.Shape()) != 4 {
		return nil, fmt.Errorf("volume %q is %d-d, want 4-d (spatial + channel)",
			name, len(data.Shape()))
	}
	return &Volume{Name: name, SubjectID: subjectID, data: data}, nil
}

// Data returns the voxel data.
func (v *Volume) Data() *tensor.Dense {
	return v.data
}

// Extent returns the spatial dimensions of the volume in voxels.
func (v *Volume) Extent() (width, height, depth int) {
	shape := v.data.Shape()
	return shape[0], shape[1], shape[2]
}

// Modalities returns the channel count of the volume.
func (v *Volume) Modalities() int {
	return v.data.Shape()[3]
}
