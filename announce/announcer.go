package announce

import (
	"sync"
	"time"

	"github.com/AltairaLabs/SightKit/detection"
)

// Options tune what gets announced.
type Options struct {
	// ScreenWidth is the width of the coordinate space of bounding boxes.
	ScreenWidth float64
	// WarnDistanceCM triggers the proximity warning below this depth.
	WarnDistanceCM float64
	// MinDepthConfidence is the confidence a depth needs before it is trusted
	// for a warning.
	MinDepthConfidence float64
	// RepeatWindow suppresses an identical phrase spoken within the window.
	// Zero disables suppression.
	RepeatWindow time.Duration
}

// Compose builds the phrases for res without repeat suppression. Failed
// results produce nothing.
func Compose(res *detection.Result, lang string, opts Options) []string {
	if res == nil || !res.OK() {
		return nil
	}

	var phrases []string
	if d := res.Depth; d != nil && opts.WarnDistanceCM > 0 &&
		d.Value < opts.WarnDistanceCM && d.Confidence >= opts.MinDepthConfidence {
		phrases = append(phrases, WarningPhrase(lang))
	}

	if res.HasObjects() {
		for _, obj := range res.Objects {
			if obj.Label == "" {
				continue
			}
			pos := detection.ClassifyPosition(obj.BBox, opts.ScreenWidth)
			phrases = append(phrases, PositionPhrase(pos, obj.Label, lang))
		}
	} else if res.TranslatedText != "" {
		phrases = append(phrases, res.TranslatedText)
	}

	if res.Depth != nil {
		phrases = append(phrases, DistancePhrase(res.Depth.Value, lang))
	}
	return phrases
}

// Announcer composes phrases and drops ones spoken too recently.
type Announcer struct {
	mu     sync.Mutex
	opts   Options
	recent map[string]time.Time
	now    func() time.Time
}

// New creates an Announcer.
func New(opts Options) *Announcer {
	return &Announcer{opts: opts, recent: make(map[string]time.Time), now: time.Now}
}

// Phrases returns the phrases to speak for res.
func (a *Announcer) Phrases(res *detection.Result, lang string) []string {
	phrases := Compose(res, lang, a.opts)
	if a.opts.RepeatWindow <= 0 || len(phrases) == 0 {
		return phrases
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for p, at := range a.recent {
		if now.Sub(at) >= a.opts.RepeatWindow {
			delete(a.recent, p)
		}
	}

	out := phrases[:0]
	for _, p := range phrases {
		if _, seen := a.recent[p]; seen {
			continue
		}
		a.recent[p] = now
		out = append(out, p)
	}
	return out
}

// Reset forgets recently spoken phrases, e.g. after a language switch.
func (a *Announcer) Reset() {
	a.mu.Lock()
	clear(a.recent)
	a.mu.Unlock()
}
