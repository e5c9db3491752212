package patch

import "fmt"

// Rank is the dimensionality of the sampling grid, fixed at construction.
// The three supported modes are full 3D sampling, plain 2D sampling, and
// the pseudo-3D "2.5D" mode that samples a single z plane out of a volume
// while still recording a z coordinate in the patch location.
type Rank int

const (
	// Rank2D samples in-plane patches at the z=0 plane of the source.
	Rank2D Rank = iota

	// Rank2HalfD samples in-plane patches at a chosen z plane.
	Rank2HalfD

	// Rank3D samples full sub-volumes.
	Rank3D
)

// RankFromInfoLength derives the sampling rank from the configured location
// length: two coordinates per spatial dimension, so 4 describes 2D, 6
// describes 3D, and the odd length 5 describes the 2.5D mode (start and
// end for x and y, a single plane index for z).
func RankFromInfoLength(infoLength int) (Rank, error) {
	switch infoLength {
	case 4:
		return Rank2D, nil
	case 5:
		return Rank2HalfD, nil
	case 6:
		return Rank3D, nil
	default:
		return 0, fmt.Errorf("info length %d does not describe a supported spatial rank", infoLength)
	}
}

// Value returns the numeric rank: 2, 2.5 or 3.
func (r Rank) Value() float64 {
	switch r {
	case Rank2HalfD:
		return 2.5
	case Rank3D:
		return 3
	default:
		return 2
	}
}

// NumWindow is the number of spatial dimensions a sampled window spans:
// two for the planar modes, three for 3D.
func (r Rank) NumWindow() int {
	if r == Rank3D {
		return 3
	}
	return 2
}

// NumLocations is the number of source axes a patch location addresses.
// The 2.5D mode addresses three axes even though its window is planar.
func (r Rank) NumLocations() int {
	if r == Rank2D {
		return 2
	}
	return 3
}

// InfoLength is the number of coordinates in a patch location.
func (r Rank) InfoLength() int {
	switch r {
	case Rank2D:
		return 4
	case Rank2HalfD:
		return 5
	default:
		return 6
	}
}

// String returns the conventional name of the mode.
func (r Rank) String() string {
	switch r {
	case Rank2D:
		return "2D"
	case Rank2HalfD:
		return "2.5D"
	default:
		return "3D"
	}
}
