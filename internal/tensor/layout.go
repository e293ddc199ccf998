package tensor

// DataLayout describes the order of the four logical dimensions in memory.
type DataLayout int

// Supported data layouts.
const (
	// NCHW is channel-major: [batches, channels, height, width].
	NCHW DataLayout = iota
	// NHWC is channel-minor: [batches, height, width, channels].
	NHWC
)

// String returns the layout name.
func (l DataLayout) String() string {
	switch l {
	case NCHW:
		return "NCHW"
	case NHWC:
		return "NHWC"
	default:
		return "unknown"
	}
}

// Dimension names a logical dimension of a 4D tensor.
type Dimension int

// Logical dimensions.
const (
	Batches Dimension = iota
	Channel
	Height
	Width
)

// Index returns the position of d within a 4D shape laid out as l.
func (l DataLayout) Index(d Dimension) int {
	switch l {
	case NHWC:
		switch d {
		case Batches:
			return 0
		case Height:
			return 1
		case Width:
			return 2
		case Channel:
			return 3
		}
	default:
		switch d {
		case Batches:
			return 0
		case Channel:
			return 1
		case Height:
			return 2
		case Width:
			return 3
		}
	}
	panic("unknown dimension")
}
