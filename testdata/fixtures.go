// Package testdata builds synthetic frames for pipeline and server tests.
package testdata

import (
	"encoding/base64"
	"fmt"

	"gocv.io/x/gocv"
)

// Default fixture size, matching the camera capture size.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// Frame returns a solid grey BGR frame. The caller owns the Mat.
func Frame(width, height int, shade uint8) *gocv.Mat {
	s := float64(shade)
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(s, s, s, 0), height, width, gocv.MatTypeCV8UC3)
	return &mat
}

// Sequence returns n frames of increasing shade.
func Sequence(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		frames[i] = Frame(width, height, uint8(i*16%256))
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// JPEG returns a small encoded frame.
func JPEG() ([]byte, error) {
	frame := Frame(32, 24, 128)
	defer frame.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode fixture: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// DataURL wraps data as a base64 JPEG data URL, as browsers produce from a
// canvas.
func DataURL(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}
