package barcode

import (
	"fmt"
	"strings"
)

// Options controls single-symbol rendering. Zero values fall back to the
// defaults below.
type Options struct {
	Width     int  // total canvas width in pixels; bars scale to fit
	Height    int  // bar height in pixels, caption excluded
	QuietZone int  // blank modules on each side
	ShowText  bool // render the *TEXT* caption under the bars
}

// MultiOptions controls stacked rendering of up to MaxSegments symbols.
type MultiOptions struct {
	Options
	Spacing    int      // vertical gap between segments in pixels
	Labels     []string // optional per-segment captions, positional
	ShowLabels bool
}

// MaxSegments is the most symbols a stacked render accepts; convenience-store
// barcodes never carry more than three.
const MaxSegments = 3

const (
	defaultHeight    = 80
	defaultQuietZone = 10
	fontSize         = 14
	captionPad       = 6
)

func (o Options) withDefaults() Options {
	if o.Height <= 0 {
		o.Height = defaultHeight
	}
	if o.QuietZone <= 0 {
		o.QuietZone = defaultQuietZone
	}
	return o
}

// RenderSVG encodes text and draws it as an SVG document. The returned error
// is an *EncodingError when the text cannot be encoded.
func RenderSVG(text string, opts Options) (string, error) {
	pattern, err := Encode(text)
	if err != nil {
		return "", err
	}
	opts = opts.withDefaults()

	modules := pattern.Width() + 2*opts.QuietZone
	moduleWidth := 2.0
	if opts.Width > 0 {
		moduleWidth = float64(opts.Width) / float64(modules)
	}
	canvasWidth := moduleWidth * float64(modules)

	canvasHeight := opts.Height
	if opts.ShowText {
		canvasHeight += fontSize + captionPad
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%d" viewBox="0 0 %.2f %d">`,
		canvasWidth, canvasHeight, canvasWidth, canvasHeight)
	fmt.Fprintf(&b, `<rect width="%.2f" height="%d" fill="white"/>`, canvasWidth, canvasHeight)

	writeBars(&b, pattern, float64(opts.QuietZone)*moduleWidth, 0, moduleWidth, opts.Height)

	if opts.ShowText {
		fmt.Fprintf(&b,
			`<text x="%.2f" y="%d" font-family="monospace" font-size="%d" text-anchor="middle">*%s*</text>`,
			canvasWidth/2, opts.Height+fontSize, fontSize, strings.ToUpper(text))
	}

	b.WriteString(`</svg>`)
	return b.String(), nil
}

// RenderMultiSVG stacks up to MaxSegments independently encoded barcodes. Any
// segment failing validation rejects the whole render.
func RenderMultiSVG(segments []string, opts MultiOptions) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("barcode: at least one segment is required")
	}
	if len(segments) > MaxSegments {
		return "", fmt.Errorf("barcode: at most %d segments are supported, got %d", MaxSegments, len(segments))
	}

	patterns := make([]Pattern, len(segments))
	for i, seg := range segments {
		if res := Validate(seg); !res.IsValid {
			return "", fmt.Errorf("barcode: segment %d: %s", i+1, strings.Join(res.Errors, "; "))
		}
		p, err := Encode(seg)
		if err != nil {
			return "", err
		}
		patterns[i] = p
	}

	base := opts.Options.withDefaults()
	if opts.Spacing <= 0 {
		opts.Spacing = 12
	}

	widest := 0
	for _, p := range patterns {
		if p.Width() > widest {
			widest = p.Width()
		}
	}
	modules := widest + 2*base.QuietZone
	moduleWidth := 2.0
	if base.Width > 0 {
		moduleWidth = float64(base.Width) / float64(modules)
	}
	canvasWidth := moduleWidth * float64(modules)

	rowHeight := base.Height
	if opts.ShowLabels {
		rowHeight += fontSize + captionPad
	}
	canvasHeight := rowHeight*len(patterns) + opts.Spacing*(len(patterns)-1)

	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%d" viewBox="0 0 %.2f %d">`,
		canvasWidth, canvasHeight, canvasWidth, canvasHeight)
	fmt.Fprintf(&b, `<rect width="%.2f" height="%d" fill="white"/>`, canvasWidth, canvasHeight)

	y := 0
	for i, p := range patterns {
		// center narrower symbols on the shared canvas
		offset := (float64(modules-p.Width())/2 - float64(base.QuietZone)) * moduleWidth
		writeBars(&b, p, float64(base.QuietZone)*moduleWidth+offset, y, moduleWidth, base.Height)

		if opts.ShowLabels {
			label := strings.ToUpper(segments[i])
			if i < len(opts.Labels) && opts.Labels[i] != "" {
				label = opts.Labels[i]
			}
			fmt.Fprintf(&b,
				`<text x="%.2f" y="%d" font-family="monospace" font-size="%d" text-anchor="middle">%s</text>`,
				canvasWidth/2, y+base.Height+fontSize, fontSize, label)
		}

		y += rowHeight + opts.Spacing
	}

	b.WriteString(`</svg>`)
	return b.String(), nil
}

// writeBars emits one <rect> per run of consecutive bar modules.
func writeBars(b *strings.Builder, p Pattern, x float64, y int, moduleWidth float64, height int) {
	i := 0
	for i < p.Width() {
		if !p.BarAt(i) {
			i++
			continue
		}
		run := i
		for run < p.Width() && p.BarAt(run) {
			run++
		}
		fmt.Fprintf(b, `<rect x="%.2f" y="%d" width="%.2f" height="%d" fill="black"/>`,
			x+float64(i)*moduleWidth, y, float64(run-i)*moduleWidth, height)
		i = run
	}
}
