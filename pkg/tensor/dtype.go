package tensor

import "fmt"

// DType identifies the element type an array declares to its consumer.
// The input queue uses it to type the matching placeholder; see Dense for
// how the declared type relates to the backing storage.
type DType int

// Supported element types.
const (
	Float32 DType = iota
	Float64
	Int32
	Int64
)

// Size returns the byte size of one element of the declared type.
func (dt DType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		return 0
	}
}

// String returns the lower-case name of the type, matching the names
// accepted by ParseDType.
func (dt DType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return fmt.Sprintf("DType(%d)", int(dt))
	}
}

// ParseDType converts a type name from a configuration file into a DType.
func ParseDType(name string) (DType, error) {
	switch name {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	default:
		return 0, fmt.Errorf("unknown element type %q", name)
	}
}
