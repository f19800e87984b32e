// Package announce turns detection results into short phrases for the
// text-to-speech layer.
package announce

import (
	"fmt"
	"strconv"

	"github.com/AltairaLabs/SightKit/detection"
)

type catalog struct {
	left, right, center string
	distance, unit      string
	warning             string
}

var catalogs = map[string]catalog{
	"en": {
		left:     "%s is on the left",
		right:    "%s is on the right",
		center:   "%s is in the center",
		distance: "Distance",
		unit:     "cm",
		warning:  "Warning, obstacle very close",
	},
	"hi": {
		left:     "%s बाईं ओर है",
		right:    "%s दाईं ओर है",
		center:   "%s सामने है",
		distance: "दूरी",
		unit:     "सेंटीमीटर",
		warning:  "सावधान, रुकावट बहुत पास है",
	},
}

func catalogFor(lang string) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs["en"]
}

// PositionPhrase describes where label sits. Unknown languages fall back to
// English.
func PositionPhrase(pos detection.Position, label, lang string) string {
	c := catalogFor(lang)
	switch pos {
	case detection.PositionLeft:
		return fmt.Sprintf(c.left, label)
	case detection.PositionRight:
		return fmt.Sprintf(c.right, label)
	default:
		return fmt.Sprintf(c.center, label)
	}
}

// DistancePhrase reads out a distance in centimeters.
func DistancePhrase(cm float64, lang string) string {
	c := catalogFor(lang)
	return c.distance + " " + strconv.FormatFloat(cm, 'f', -1, 64) + " " + c.unit
}

// WarningPhrase is spoken when something is closer than the warning distance.
func WarningPhrase(lang string) string {
	return catalogFor(lang).warning
}
