package detection

import (
	"encoding/json"
	stderrors "errors"
	"time"

	skerrors "github.com/AltairaLabs/SightKit/errors"
)

const component = "detection"

// wireMessage keeps every field raw so a single ill-typed optional field
// does not reject the whole message.
type wireMessage struct {
	Status          json.RawMessage `json:"status"`
	Error           json.RawMessage `json:"error"`
	TranslatedText  json.RawMessage `json:"translated_text"`
	Depth           json.RawMessage `json:"depth"`
	DetectedObjects json.RawMessage `json:"detected_objects"`
	Boxes           json.RawMessage `json:"boxes"`
}

type wireObject struct {
	Label      string          `json:"label"`
	BBox       []float64       `json:"bbox"`
	Box        []float64       `json:"box"`
	Confidence json.RawMessage `json:"confidence"`
}

type wireDepth struct {
	Depth      *float64 `json:"depth"`
	Confidence float64  `json:"confidence"`
	Method     string   `json:"method"`
	Unit       string   `json:"unit"`
}

// now is replaced in tests.
var now = time.Now

// Parse decodes one inbound message. Malformed JSON yields a ProtocolError and
// no result. Unknown fields are ignored and optional fields that cannot be
// decoded are dropped. A missing status is treated as success.
func Parse(raw []byte) (*Result, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, skerrors.Protocol(component, "Parse", err)
	}

	res := &Result{Status: StatusSuccess, ReceivedAt: now()}

	if s, ok := decodeString(msg.Status); ok && s != "" {
		res.Status = s
	}
	if s, ok := decodeString(msg.Error); ok {
		res.Error = s
	}
	if s, ok := decodeString(msg.TranslatedText); ok {
		res.TranslatedText = s
	}
	res.Depth = decodeDepth(msg.Depth)

	if objs, ok := decodeObjects(msg.DetectedObjects); ok {
		res.Objects = objs
	} else if objs, ok := decodeObjects(msg.Boxes); ok {
		res.Objects = objs
	}

	return res, nil
}

// ServiceError returns a ServiceError when the message reported failure.
func (r *Result) ServiceError() error {
	if r.OK() {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = "inference service reported an error"
	}
	return skerrors.Service(component, "Result", stderrors.New(msg))
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func decodeString(raw json.RawMessage) (string, bool) {
	if !present(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeDepth(raw json.RawMessage) *Depth {
	if !present(raw) {
		return nil
	}
	// Some backends send the distance as a bare number.
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &Depth{Value: n, Unit: "cm"}
	}
	var wd wireDepth
	if err := json.Unmarshal(raw, &wd); err != nil || wd.Depth == nil {
		return nil
	}
	unit := wd.Unit
	if unit == "" {
		unit = "cm"
	}
	return &Depth{Value: *wd.Depth, Confidence: wd.Confidence, Method: wd.Method, Unit: unit}
}

func decodeObjects(raw json.RawMessage) ([]Object, bool) {
	if !present(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	objs := make([]Object, 0, len(items))
	for _, item := range items {
		var wo wireObject
		if err := json.Unmarshal(item, &wo); err != nil {
			continue
		}
		coords := wo.BBox
		if len(coords) == 0 {
			coords = wo.Box
		}
		if len(coords) != 4 {
			continue
		}
		obj := Object{Label: wo.Label, BBox: BBox{coords[0], coords[1], coords[2], coords[3]}}
		if present(wo.Confidence) {
			var c float64
			if err := json.Unmarshal(wo.Confidence, &c); err == nil {
				obj.Confidence = c
			}
		}
		objs = append(objs, obj)
	}
	return objs, true
}
