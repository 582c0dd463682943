package exr

import (
	"bytes"
	"errors"
	gomath "math"
	"testing"
)

func testPixels(w, h int) []float32 {
	pix := make([]float32, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i] = float32(x) * 0.125
			pix[i+1] = -float32(y) * 0.5
			pix[i+2] = float32(x*y) / 7
			pix[i+3] = 1
		}
	}
	return pix
}

func TestEncodeDecode(t *testing.T) {
	const w, h = 13, 5
	pix := testPixels(w, h)

	tests := []struct {
		pt  PixelType
		eps float64
	}{
		{Float, 0},
		{Half, 1e-2},
	}
	for _, tt := range tests {
		t.Run(tt.pt.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, w, h, pix, tt.pt); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if got := buf.Bytes()[:4]; !bytes.Equal(got, []byte{0x76, 0x2f, 0x31, 0x01}) {
				t.Fatalf("magic = % x", got)
			}

			img, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if img.Width != w || img.Height != h || img.PixelType != tt.pt {
				t.Fatalf("decoded %dx%d %s", img.Width, img.Height, img.PixelType)
			}
			for i, want := range pix {
				if d := gomath.Abs(float64(img.Pix[i] - want)); d > tt.eps {
					t.Fatalf("Pix[%d] = %v, want %v", i, img.Pix[i], want)
				}
			}
			if got := img.At(3, 2); got[3] != 1 {
				t.Errorf("alpha = %v", got[3])
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, 0, 1, nil, Float); err == nil {
		t.Error("expected error for empty image")
	}
	if err := Encode(&buf, 2, 2, make([]float32, 3), Float); err == nil {
		t.Error("expected error for short buffer")
	}
	if err := Encode(&buf, 1, 1, make([]float32, 4), Uint); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, 4, 4, testPixels(4, 4), Half); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	valid := buf.Bytes()

	compressed := bytes.Clone(valid)
	i := bytes.Index(compressed, []byte("compression\x00compression\x00"))
	compressed[i+len("compression\x00compression\x00")+4] = 3

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"bad magic", []byte("not an exr file"), ErrInvalidMagic},
		{"truncated header", valid[:40], ErrTruncated},
		{"truncated pixels", valid[:len(valid)-10], ErrTruncated},
		{"compressed", compressed, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(bytes.NewReader(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
