package perforation

import (
	"fmt"

	"github.com/samber/lo"
)

// TapOffset is where a tap's partial result lands relative to the output pixel.
type TapOffset struct {
	Row, Col int
}

// String formats the offset as (row, col).
func (o TapOffset) String() string {
	return fmt.Sprintf("(%d,%d)", o.Row, o.Col)
}

// CentralIndex returns the row-major index of the centre tap of a k×k kernel.
func CentralIndex(k int) int {
	return k / 2 * (k + 1)
}

// TapCoords returns the (row, col) of a row-major tap index.
func TapCoords(k, index int) (row, col int) {
	return index / k, index % k
}

// OffsetOf returns the accumulation offset of tap index in a k×k kernel.
// The centre tap maps to (0, 0).
func OffsetOf(k, index int) TapOffset {
	row, col := TapCoords(k, index)
	cRow, cCol := TapCoords(k, CentralIndex(k))
	return TapOffset{Row: row - cRow, Col: col - cCol}
}

// KeptTaps returns the row-major tap indices of an area-tap kernel that survive p.
// Only filter perforation removes taps.
func KeptTaps(area int, p Policy) []int {
	taps := lo.Range(area)
	if p.Mode() != ModeFilter {
		return taps
	}
	return lo.Filter(taps, func(t, _ int) bool {
		return !p.Skips(t)
	})
}

// KeptRow maps the i-th computed row of a row-perforated output back to its
// output row, given skip period every.
func KeptRow(i, every int) int {
	if every < 2 {
		return i
	}
	return i/(every-1)*every + i%(every-1)
}

// SourceRow returns the computed row that reconstructs output row r: the row
// itself when kept, otherwise the nearest kept row before it.
func SourceRow(r, every int) int {
	if every < 2 {
		return r
	}
	if (r+1)%every == 0 {
		r--
	}
	return r - r/every
}
