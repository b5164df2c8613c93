package webcodecs

import (
	"math"
	"math/rand/v2"
	"time"
)

// PatternType selects the synthetic image drawn by a PatternGenerator.
type PatternType int

const (
	PatternColorBars    PatternType = iota // 75% bars
	PatternGradient                        // Horizontal luma ramp
	PatternCheckerboard                    // Black and white squares
	PatternMovingBox                       // White box circling the center
	PatternNoise                           // Random luma
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternGradient:
		return "Gradient"
	case PatternCheckerboard:
		return "Checkerboard"
	case PatternMovingBox:
		return "MovingBox"
	case PatternNoise:
		return "Noise"
	default:
		return "Unknown"
	}
}

// PatternConfig configures a PatternGenerator.
type PatternConfig struct {
	Width       int
	Height      int
	FPS         int // Timestamps advance by 1/FPS (0 = 30)
	Pattern     PatternType
	CheckerSize int    // Checkerboard square size (0 = 32)
	Seed        uint64 // Noise seed
}

// PatternGenerator produces I420 frames for feeding encoders without a
// capture device. Every call returns a fresh frame, so frames may be
// submitted and left untouched until their results arrive.
type PatternGenerator struct {
	config PatternConfig
	frame  uint64
	rng    *rand.Rand
}

// NewPatternGenerator creates a generator.
func NewPatternGenerator(config PatternConfig) *PatternGenerator {
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.CheckerSize <= 0 {
		config.CheckerSize = 32
	}
	return &PatternGenerator{
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, 0x9e3779b97f4a7c15)),
	}
}

// FrameDuration returns the spacing of generated timestamps.
func (g *PatternGenerator) FrameDuration() time.Duration {
	return time.Second / time.Duration(g.config.FPS)
}

// Next returns the next frame. Timestamps start at zero.
func (g *PatternGenerator) Next() *VideoFrame {
	w, h := g.config.Width, g.config.Height
	cw, ch := (w+1)/2, (h+1)/2
	f := &VideoFrame{
		Data:      [][]byte{make([]byte, w*h), make([]byte, cw*ch), make([]byte, cw*ch)},
		Stride:    []int{w, cw, cw},
		Width:     w,
		Height:    h,
		Format:    PixelFormatI420,
		Timestamp: int64(g.frame) * int64(g.FrameDuration()),
		Duration:  int64(g.FrameDuration()),
	}

	switch g.config.Pattern {
	case PatternGradient:
		g.fill(f, func(x, _ int) (uint8, uint8, uint8) { return uint8(x * 255 / max(w, 1)), 128, 128 })
	case PatternCheckerboard:
		size := g.config.CheckerSize
		g.fill(f, func(x, y int) (uint8, uint8, uint8) {
			if (x/size+y/size)%2 == 0 {
				return 235, 128, 128
			}
			return 16, 128, 128
		})
	case PatternMovingBox:
		g.drawMovingBox(f)
	case PatternNoise:
		for i := range f.Data[0] {
			f.Data[0][i] = uint8(g.rng.Uint32())
		}
		fillBytes(f.Data[1], 128)
		fillBytes(f.Data[2], 128)
	default:
		bar := max(w/len(colorBars), 1)
		g.fill(f, func(x, _ int) (uint8, uint8, uint8) {
			c := colorBars[min(x/bar, len(colorBars)-1)]
			return c[0], c[1], c[2]
		})
	}

	g.frame++
	return f
}

// fill evaluates pixel at every luma sample and at the top-left sample of
// every 2x2 chroma block.
func (g *PatternGenerator) fill(f *VideoFrame, pixel func(x, y int) (yv, u, v uint8)) {
	for y := range f.Height {
		for x := range f.Width {
			yv, u, v := pixel(x, y)
			f.Data[0][y*f.Stride[0]+x] = yv
			if x%2 == 0 && y%2 == 0 {
				i := (y/2)*f.Stride[1] + x/2
				f.Data[1][i] = u
				f.Data[2][i] = v
			}
		}
	}
}

func (g *PatternGenerator) drawMovingBox(f *VideoFrame) {
	w, h := f.Width, f.Height
	fillBytes(f.Data[0], 16)
	fillBytes(f.Data[1], 128)
	fillBytes(f.Data[2], 128)

	box := max(min(w, h)/6, 2)
	radius := float64(min(w, h)) / 4
	angle := float64(g.frame) * 0.05
	bx := w/2 + int(radius*math.Cos(angle)) - box/2
	by := h/2 + int(radius*math.Sin(angle)) - box/2

	for y := max(by, 0); y < min(by+box, h); y++ {
		for x := max(bx, 0); x < min(bx+box, w); x++ {
			f.Data[0][y*f.Stride[0]+x] = 235
		}
	}
}

func fillBytes(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// 75% bars in BT.601 limited range YUV: white, yellow, cyan, green,
// magenta, red, blue, black.
var colorBars = [][3]uint8{
	rgbToYUV(192, 192, 192),
	rgbToYUV(192, 192, 0),
	rgbToYUV(0, 192, 192),
	rgbToYUV(0, 192, 0),
	rgbToYUV(192, 0, 192),
	rgbToYUV(192, 0, 0),
	rgbToYUV(0, 0, 192),
	rgbToYUV(16, 16, 16),
}

// rgbToYUV converts RGB to BT.601 limited range YUV.
func rgbToYUV(r, g, b uint8) [3]uint8 {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	y := 16 + 65.481*rf + 128.553*gf + 24.966*bf
	u := 128 - 37.797*rf - 74.203*gf + 112*bf
	v := 128 + 112*rf - 93.786*gf - 18.214*bf
	return [3]uint8{
		uint8(math.Max(16, math.Min(235, y))),
		uint8(math.Max(16, math.Min(240, u))),
		uint8(math.Max(16, math.Min(240, v))),
	}
}
