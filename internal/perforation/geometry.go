package perforation

import "fmt"

// Size2D is a width/height pair.
type Size2D struct {
	W, H int
}

// Area returns W*H.
func (s Size2D) Area() int {
	return s.W * s.H
}

// Padding is the per-side zero padding applied to the input.
type Padding struct {
	Left, Right, Top, Bottom int
}

// Geometry holds the convolution parameters that do not come from tensor shapes.
// Zero Stride or Dilation components default to 1.
type Geometry struct {
	Stride   Size2D
	Pad      Padding
	Dilation Size2D
}

// NewGeometry creates a geometry with equal stride and symmetric padding on both axes.
func NewGeometry(stride, pad int) Geometry {
	return Geometry{
		Stride:   Size2D{W: stride, H: stride},
		Pad:      Padding{Left: pad, Right: pad, Top: pad, Bottom: pad},
		Dilation: Size2D{W: 1, H: 1},
	}
}

// SameGeometry is stride 1 with padding k/2, which keeps H and W unchanged for odd k.
func SameGeometry(k int) Geometry {
	return NewGeometry(1, k/2)
}

// Normalized fills defaulted fields.
func (g Geometry) Normalized() Geometry {
	if g.Stride.W == 0 {
		g.Stride.W = 1
	}
	if g.Stride.H == 0 {
		g.Stride.H = 1
	}
	if g.Dilation.W == 0 {
		g.Dilation.W = 1
	}
	if g.Dilation.H == 0 {
		g.Dilation.H = 1
	}
	return g
}

// String formats the geometry.
func (g Geometry) String() string {
	g = g.Normalized()
	return fmt.Sprintf("stride=%dx%d pad=[l%d r%d t%d b%d] dilation=%dx%d",
		g.Stride.W, g.Stride.H, g.Pad.Left, g.Pad.Right, g.Pad.Top, g.Pad.Bottom, g.Dilation.W, g.Dilation.H)
}

// Validate checks the geometry against an input extent and kernel size.
// There is no implicit padding, so the padded input must fit the dilated kernel.
func (g Geometry) Validate(inW, inH int, kernel Size2D) error {
	g = g.Normalized()
	if g.Stride.W < 1 || g.Stride.H < 1 {
		return Configurationf("stride must be positive, got %dx%d", g.Stride.W, g.Stride.H)
	}
	if g.Dilation.W < 1 || g.Dilation.H < 1 {
		return Configurationf("dilation must be positive, got %dx%d", g.Dilation.W, g.Dilation.H)
	}
	if g.Pad.Left < 0 || g.Pad.Right < 0 || g.Pad.Top < 0 || g.Pad.Bottom < 0 {
		return Configurationf("padding must be non-negative, got %+v", g.Pad)
	}
	if kernel.W < 1 || kernel.H < 1 {
		return Configurationf("kernel must be at least 1x1, got %dx%d", kernel.W, kernel.H)
	}
	kw, kh := g.dilatedKernel(kernel)
	totalW := inW + g.Pad.Left + g.Pad.Right
	totalH := inH + g.Pad.Top + g.Pad.Bottom
	if totalW < kw || totalH < kh {
		return Configurationf("padded input %dx%d is smaller than kernel extent %dx%d", totalW, totalH, kw, kh)
	}
	return nil
}

// ScaledDimensions returns the convolved width and height, rounding down.
func (g Geometry) ScaledDimensions(inW, inH int, kernel Size2D) (w, h int) {
	g = g.Normalized()
	kw, kh := g.dilatedKernel(kernel)
	w = (inW+g.Pad.Left+g.Pad.Right-kw)/g.Stride.W + 1
	h = (inH+g.Pad.Top+g.Pad.Bottom-kh)/g.Stride.H + 1
	return w, h
}

// IsSame reports whether g is the stride-1, dilation-1, k/2-padded geometry.
func (g Geometry) IsSame(k int) bool {
	g = g.Normalized()
	p := k / 2
	return g.Stride.W == 1 && g.Stride.H == 1 &&
		g.Dilation.W == 1 && g.Dilation.H == 1 &&
		g.Pad.Left == p && g.Pad.Right == p && g.Pad.Top == p && g.Pad.Bottom == p
}

func (g Geometry) dilatedKernel(kernel Size2D) (w, h int) {
	return g.Dilation.W*(kernel.W-1) + 1, g.Dilation.H*(kernel.H-1) + 1
}
