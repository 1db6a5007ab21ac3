package extractor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/nfnt/resize"
	"gopkg.in/yaml.v3"

	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// DefaultScale is the side of the square the frame is resized to.
const DefaultScale = 16

// Manifest describes a Haar model asset.
type Manifest struct {
	Name     string   `yaml:"name"`
	Scale    int      `yaml:"scale"`
	Channels []string `yaml:"channels"` // subset of y, i, q
}

// DefaultManifest is used when no asset path is configured.
func DefaultManifest() Manifest {
	return Manifest{
		Name:     fmt.Sprintf("haar-yiq-%d", DefaultScale),
		Scale:    DefaultScale,
		Channels: []string{"y", "i", "q"},
	}
}

// Validate checks the manifest. Scale must be a power of two so the wavelet
// decomposition runs down to a single coefficient.
func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest name is required")
	}
	if m.Scale < 2 || m.Scale > 256 || m.Scale&(m.Scale-1) != 0 {
		return fmt.Errorf("manifest scale must be a power of two in [2, 256], got %d", m.Scale)
	}
	if len(m.Channels) == 0 {
		return fmt.Errorf("manifest lists no channels")
	}
	seen := make(map[string]bool)
	for _, ch := range m.Channels {
		if _, ok := channelIndex[ch]; !ok {
			return fmt.Errorf("unknown channel %q", ch)
		}
		if seen[ch] {
			return fmt.Errorf("duplicate channel %q", ch)
		}
		seen[ch] = true
	}
	return nil
}

var channelIndex = map[string]int{"y": 0, "i": 1, "q": 2}

// yiq holds one pixel in YIQ space.
type yiq [3]float64

// HaarExtractor embeds frames as the normalised 2-D Haar wavelet coefficients
// of a downscaled YIQ image. The DC term of every channel is dropped so that
// global brightness does not dominate similarity.
type HaarExtractor struct {
	assetPath string

	mu       sync.RWMutex
	manifest Manifest
	channels []int
	loaded   bool
}

// NewHaarExtractor creates an extractor whose manifest is read from assetPath
// on Load. An empty path uses DefaultManifest.
func NewHaarExtractor(assetPath string) *HaarExtractor {
	return &HaarExtractor{assetPath: assetPath}
}

// Load reads and validates the manifest.
func (h *HaarExtractor) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := DefaultManifest()
	if h.assetPath != "" {
		data, err := os.ReadFile(h.assetPath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
		m = Manifest{}
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%w: parse manifest %s: %v", ErrModelLoad, h.assetPath, err)
		}
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	channels := make([]int, len(m.Channels))
	for i, ch := range m.Channels {
		channels[i] = channelIndex[ch]
	}

	h.mu.Lock()
	h.manifest = m
	h.channels = channels
	h.loaded = true
	h.mu.Unlock()
	return nil
}

// Dimension returns scale·scale·channels, or 0 before Load.
func (h *HaarExtractor) Dimension() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.loaded {
		return 0
	}
	return h.manifest.Scale * h.manifest.Scale * len(h.channels)
}

// ModelName returns the manifest name, or "" before Load.
func (h *HaarExtractor) ModelName() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.manifest.Name
}

// Extract computes the embedding of frame.
func (h *HaarExtractor) Extract(ctx context.Context, frame image.Image) (types.Embedding, error) {
	h.mu.RLock()
	loaded, scale, channels := h.loaded, h.manifest.Scale, h.channels
	h.mu.RUnlock()

	if !loaded {
		return nil, ErrModelNotReady
	}
	if err := checkFrame(frame); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaled := resize.Resize(uint(scale), uint(scale), frame, resize.Bicubic)
	coefs := haarTransform(scaled, scale)

	n := scale * scale
	out := make(types.Embedding, n*len(channels))
	var norm float64
	for c, ch := range channels {
		for i := 1; i < n; i++ { // skip DC
			v := coefs[i][ch]
			out[c*n+i] = float32(v)
			norm += v * v
		}
	}

	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range out {
			out[i] = float32(float64(out[i]) * inv)
		}
	}
	return out, nil
}

func toYIQ(c color.Color) yiq {
	r32, g32, b32, _ := c.RGBA()
	r, g, b := float64(r32>>8), float64(g32>>8), float64(b32>>8)
	return yiq{
		(0.299900*r + 0.587000*g + 0.114000*b) / 0x100,
		(0.595716*r - 0.274453*g - 0.321263*b) / 0x100,
		(0.211456*r - 0.522591*g + 0.311135*b) / 0x100,
	}
}

// haarTransform performs a full forward 2-D Haar decomposition of a
// size×size image. The coefficient at (x, y) is stored at y*size+x.
func haarTransform(img image.Image, size int) []yiq {
	b := img.Bounds()
	coefs := make([]yiq, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			coefs[y*size+x] = toYIQ(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}

	tmp := make([]yiq, size)

	// rows
	for y := 0; y < size; y++ {
		for step := size / 2; step >= 1; step /= 2 {
			haarStep(tmp, step, func(i int) *yiq { return &coefs[y*size+i] })
		}
	}

	// columns
	for x := 0; x < size; x++ {
		for step := size / 2; step >= 1; step /= 2 {
			haarStep(tmp, step, func(i int) *yiq { return &coefs[i*size+x] })
		}
	}

	return coefs
}

// haarStep replaces the first 2·step entries of a line with their pairwise
// averages followed by their pairwise differences, both scaled by 1/√2.
func haarStep(tmp []yiq, step int, at func(int) *yiq) {
	for i := 0; i < step; i++ {
		a, b := *at(2 * i), *at(2*i + 1)
		for c := range a {
			tmp[i][c] = (a[c] + b[c]) / math.Sqrt2
			tmp[i+step][c] = (a[c] - b[c]) / math.Sqrt2
		}
	}
	for i := 0; i < 2*step; i++ {
		*at(i) = tmp[i]
	}
}
