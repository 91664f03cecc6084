// Package render draws gesture results onto video frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"golang.org/x/image/colornames"

	"github.com/SEARO1/Hand-Track/internal/detector"
	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/tracking"
)

// gestureColors assigns each label a display color.
var gestureColors = map[gesture.Label]color.RGBA{
	gesture.Rock:         colornames.Red,
	gesture.Paper:        colornames.Lime,
	gesture.Peace:        colornames.Cyan,
	gesture.Pointing:     colornames.Orange,
	gesture.ThumbsUp:     colornames.Yellow,
	gesture.MiddleFinger: colornames.Magenta,
	gesture.OK:           colornames.Pink,
	gesture.Three:        colornames.Purple,
	gesture.Unknown:      colornames.Gray,
}

// NoHandColor is used for the banner when no hand is visible.
var NoHandColor = colornames.Dimgray

// Color returns the display color of l. gocv expects BGR order in the
// RGBA fields, so the channels are swapped here once.
func Color(l gesture.Label) color.RGBA {
	c, ok := gestureColors[l]
	if !ok {
		c = colornames.White
	}
	return bgr(c)
}

func bgr(c color.RGBA) color.RGBA {
	return color.RGBA{R: c.B, G: c.G, B: c.R, A: c.A}
}

// Font describes how text is drawn.
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Thickness int
}

var (
	bannerFont = Font{Face: gocv.FontHersheySimplex, Scale: 1.5, Thickness: 3}
	labelFont  = Font{Face: gocv.FontHersheySimplex, Scale: 0.7, Thickness: 2}
	infoFont   = Font{Face: gocv.FontHersheySimplex, Scale: 0.7, Thickness: 2}
	hintFont   = Font{Face: gocv.FontHersheySimplex, Scale: 0.6, Thickness: 1}
)

// Options selects which overlay elements are drawn.
type Options struct {
	Landmarks bool
	FPS       bool
	Hint      string // bottom line, e.g. key bindings; empty hides it
}

// DefaultOptions draws everything.
func DefaultOptions() Options {
	return Options{
		Landmarks: true,
		FPS:       true,
		Hint:      "Press 'q' to quit | 's' to screenshot",
	}
}

// Info is the frame-level text shown on the overlay.
type Info struct {
	FPS        float64
	Frame      int // 1-based position in a file; 0 hides the counter
	TotalFrame int
}

// Overlay annotates img in place with the hands of one frame.
func Overlay(img *gocv.Mat, hands []tracking.HandResult, info Info, opts Options) {
	if img == nil || img.Empty() {
		return
	}
	w, h := img.Cols(), img.Rows()

	for _, hr := range hands {
		clr := Color(hr.Stable)
		if opts.Landmarks {
			Landmarks(img, &hr.Landmarks, clr)
		}

		wrist := toPixel(hr.Landmarks.Points[detector.Wrist], w, h)
		putText(img, hr.Display, wrist.Add(image.Pt(-50, -30)), labelFont, clr)
	}

	banner, bannerColor := "NO_HAND", bgr(NoHandColor)
	if len(hands) > 0 {
		banner = hands[0].Display
		bannerColor = Color(hands[0].Stable)
		banner = fmt.Sprintf("%s (%.0f%%)", banner, hands[0].Confidence*100)
	}
	putText(img, "Gesture: "+banner, image.Pt(20, 60), bannerFont, bannerColor)
	putText(img, fmt.Sprintf("Hands: %d", len(hands)), image.Pt(20, 110), infoFont, bgr(colornames.White))

	if info.Frame > 0 {
		counter := fmt.Sprintf("Frame: %d", info.Frame)
		if info.TotalFrame > 0 {
			counter = fmt.Sprintf("Frame: %d/%d", info.Frame, info.TotalFrame)
		}
		putText(img, counter, image.Pt(20, 150), infoFont, bgr(colornames.White))
	}

	if opts.FPS && info.FPS > 0 {
		putText(img, fmt.Sprintf("FPS: %.1f", info.FPS), image.Pt(20, h-60), infoFont, bgr(colornames.Lime))
	}
	if opts.Hint != "" {
		putText(img, opts.Hint, image.Pt(20, h-20), hintFont, bgr(colornames.White))
	}
}

// Landmarks draws the hand skeleton and joints.
func Landmarks(img *gocv.Mat, hand *detector.HandLandmarks, clr color.RGBA) {
	w, h := img.Cols(), img.Rows()

	for _, c := range detector.Connections {
		gocv.Line(img, toPixel(hand.Points[c[0]], w, h), toPixel(hand.Points[c[1]], w, h), clr, 2)
	}
	for _, p := range hand.Points {
		gocv.Circle(img, toPixel(p, w, h), 4, bgr(colornames.White), -1)
	}
}

func toPixel(p detector.Point3D, w, h int) image.Point {
	return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
}

func putText(img *gocv.Mat, text string, org image.Point, f Font, clr color.RGBA) {
	gocv.PutText(img, text, org, f.Face, f.Scale, clr, f.Thickness)
}
