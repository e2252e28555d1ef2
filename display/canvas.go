package display

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/Acqua1/neon-chronos/trail"
)

// CanvasConfig configures the OpenCV render target.
type CanvasConfig struct {
	// Width and Height are the window dimensions in pixels.
	Width  int
	Height int
	// WindowTitle is the window caption.
	WindowTitle string
	// BloomRadius is the Gaussian kernel size for the glow pass (odd,
	// default 15). 0 disables bloom.
	BloomRadius int
	// BloomIntensity is the weight of the blurred pass added back onto the
	// base image (default 0.8).
	BloomIntensity float64
	// LineThickness is the skeleton segment thickness in pixels (default 3).
	LineThickness int
}

var _ Target = (*NeonCanvas)(nil)

// NeonCanvas is the OpenCV Target implementation.
//
// Layers are drawn into per-layer scratch and summed into an accumulation
// Mat with saturating addition, which is what gives stacked trails the
// overexposed neon core. Composite blurs the accumulation and adds the blur
// back on top (bloom), then presents.
//
// Owns native Mats and a window; Close releases them exactly once.
type NeonCanvas struct {
	mu sync.Mutex

	width, height int
	bloomRadius   int
	bloomWeight   float64
	thickness     int

	window *gocv.Window
	accum  gocv.Mat // frame accumulation (8UC3)
	layer  gocv.Mat // per-layer scratch
	bloom  gocv.Mat // blurred copy for the glow pass

	closeOnce sync.Once
}

// NewNeonCanvas creates the canvas and opens the window (fail-fast: native
// window creation happens here, not on the first frame).
func NewNeonCanvas(cfg CanvasConfig) (*NeonCanvas, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("display: invalid canvas size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.BloomRadius < 0 {
		return nil, fmt.Errorf("display: invalid bloom radius %d", cfg.BloomRadius)
	}
	if cfg.BloomRadius > 0 && cfg.BloomRadius%2 == 0 {
		// GaussianBlur requires an odd kernel size.
		cfg.BloomRadius++
	}
	if cfg.BloomIntensity == 0 {
		cfg.BloomIntensity = 0.8
	}
	if cfg.LineThickness <= 0 {
		cfg.LineThickness = 3
	}
	if cfg.WindowTitle == "" {
		cfg.WindowTitle = "neon-chronos"
	}

	c := &NeonCanvas{
		width:       cfg.Width,
		height:      cfg.Height,
		bloomRadius: cfg.BloomRadius,
		bloomWeight: cfg.BloomIntensity,
		thickness:   cfg.LineThickness,
		window:      gocv.NewWindow(cfg.WindowTitle),
		accum:       gocv.NewMatWithSize(cfg.Height, cfg.Width, gocv.MatTypeCV8UC3),
		layer:       gocv.NewMatWithSize(cfg.Height, cfg.Width, gocv.MatTypeCV8UC3),
		bloom:       gocv.NewMatWithSize(cfg.Height, cfg.Width, gocv.MatTypeCV8UC3),
	}
	c.window.ResizeWindow(cfg.Width, cfg.Height)

	slog.Info("display: canvas created",
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"bloom_radius", cfg.BloomRadius,
		"bloom_intensity", cfg.BloomIntensity,
	)

	return c, nil
}

// BeginFrame clears the accumulation buffer.
func (c *NeonCanvas) BeginFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accum.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

// UploadLayer blends one trail layer into the accumulation buffer.
func (c *NeonCanvas) UploadLayer(layer *trail.Layer) {
	if !layer.Visible {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.layer.SetTo(gocv.NewScalar(0, 0, 0, 0))
	col := scaleColor(layer.Color, layer.Opacity)

	for s, valid := range layer.SegValid {
		if !valid {
			continue
		}
		base := s * 6
		p1 := worldToPixel(layer.Positions[base+0], layer.Positions[base+1], c.width, c.height)
		p2 := worldToPixel(layer.Positions[base+3], layer.Positions[base+4], c.width, c.height)
		gocv.Line(&c.layer, p1, p2, col, c.thickness)
	}

	// Saturating add: overlapping trails burn toward white.
	gocv.Add(c.accum, c.layer, &c.accum)
}

// Composite runs the bloom pass, presents the frame, and polls window events.
func (c *NeonCanvas) Composite() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bloomRadius > 0 {
		gocv.GaussianBlur(c.accum, &c.bloom,
			image.Pt(c.bloomRadius, c.bloomRadius), 0, 0, gocv.BorderDefault)
		gocv.AddWeighted(c.accum, 1.0, c.bloom, c.bloomWeight, 0, &c.bloom)
		c.window.IMShow(c.bloom)
	} else {
		c.window.IMShow(c.accum)
	}

	// WaitKey pumps the event loop; ESC closes.
	if key := c.window.WaitKey(1); key == 27 {
		return ErrDisplayClosed
	}
	if !c.window.IsOpen() {
		return ErrDisplayClosed
	}
	return nil
}

// Resize reallocates the size-dependent Mats for a new window size.
func (c *NeonCanvas) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.accum.Close()
	c.layer.Close()
	c.bloom.Close()
	c.width, c.height = width, height
	c.accum = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	c.layer = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	c.bloom = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	slog.Info("display: canvas resized", "size", fmt.Sprintf("%dx%d", width, height))
}

// Close releases the Mats and the window exactly once. Idempotent.
func (c *NeonCanvas) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.accum.Close()
		c.layer.Close()
		c.bloom.Close()
		err = c.window.Close()
		slog.Info("display: canvas closed")
	})
	return err
}

// worldToPixel maps world coordinates ([-1,1], y up) to pixel coordinates
// (origin top-left). Out-of-view points pass through unclamped: the detector
// reports coordinates outside [0,1] for partially out-of-frame bodies, and
// OpenCV's Line clips segments itself. Clamping the endpoint would bend the
// segment's direction instead of cutting it at the border.
func worldToPixel(x, y float32, width, height int) image.Point {
	px := int((x + 1) / 2 * float32(width-1))
	py := int((1 - y) / 2 * float32(height-1))
	return image.Pt(px, py)
}

// scaleColor applies the layer opacity to its palette color. The additive
// accumulation has no alpha channel, so opacity becomes intensity.
func scaleColor(c color.RGBA, opacity float32) color.RGBA {
	return color.RGBA{
		R: uint8(float32(c.R) * opacity),
		G: uint8(float32(c.G) * opacity),
		B: uint8(float32(c.B) * opacity),
		A: 255,
	}
}
