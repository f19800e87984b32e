// Package detection decodes inbound messages from the inference service into
// immutable detection results.
package detection

import (
	"time"
)

// Status values reported by the inference service.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BBox is an axis-aligned bounding box in screen pixels: x1, y1, x2, y2.
type BBox [4]float64

// CenterX returns the horizontal center of the box.
func (b BBox) CenterX() float64 {
	return (b[0] + b[2]) / 2
}

// Width returns the box width.
func (b BBox) Width() float64 {
	return b[2] - b[0]
}

// Object is one detected object.
type Object struct {
	Label string
	BBox  BBox
	// Confidence is zero when the service did not report one (legacy boxes).
	Confidence float64
}

// Depth is the service's distance estimate for the frame center.
type Depth struct {
	Value      float64
	Confidence float64
	Method     string
	Unit       string
}

// Result is one parsed inbound message. A Result is never modified after
// Parse returns it; each new message supersedes the previous one wholesale.
type Result struct {
	Status         string
	Error          string
	TranslatedText string
	Depth          *Depth
	Objects        []Object
	ReceivedAt     time.Time
}

// OK reports whether the message carried a success status.
func (r *Result) OK() bool {
	return r != nil && r.Status != StatusError
}

// HasObjects reports whether any objects were detected.
func (r *Result) HasObjects() bool {
	return r != nil && len(r.Objects) > 0
}
