package vat

// FloatImage is a row-major RGBA float32 pixel grid; y=0 is the first row.
type FloatImage struct {
	Width  int
	Height int
	Pix    []float32
}

// NewFloatImage allocates a zeroed w x h image.
func NewFloatImage(w, h int) *FloatImage {
	return &FloatImage{Width: w, Height: h, Pix: make([]float32, w*h*4)}
}

// Set writes the pixel at (x, y).
func (m *FloatImage) Set(x, y int, c [4]float32) {
	i := m.offset(x, y)
	copy(m.Pix[i:i+4], c[:])
}

// At returns the pixel at (x, y).
func (m *FloatImage) At(x, y int) [4]float32 {
	i := m.offset(x, y)
	return [4]float32{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}

func (m *FloatImage) offset(x, y int) int {
	return (y*m.Width + x) * 4
}
