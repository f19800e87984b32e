package detection

import "math"

// Position is where an object sits horizontally relative to the viewer.
type Position string

const (
	PositionLeft   Position = "left"
	PositionCenter Position = "center"
	PositionRight  Position = "right"
)

// DeadZoneRatio is the fraction of the screen width around the center line
// that still counts as center.
const DeadZoneRatio = 0.03

// ClassifyPosition places a box left, right or center of a screen of the
// given width.
func ClassifyPosition(box BBox, screenWidth float64) Position {
	centerLine := screenWidth / 2
	deadZone := screenWidth * DeadZoneRatio

	cx := box.CenterX()
	if math.Abs(cx-centerLine) < deadZone {
		return PositionCenter
	}
	if cx < centerLine {
		return PositionLeft
	}
	return PositionRight
}
