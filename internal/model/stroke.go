package model

import (
	"encoding/json"
	"errors"
)

// StrokeKind tags the stroke variant
type StrokeKind string

const (
	StrokeKindFreehand StrokeKind = "freehand"
	StrokeKindShape    StrokeKind = "shape"
	StrokeKindText     StrokeKind = "text"
)

var (
	ErrEmptyStroke   = errors.New("stroke has no payload")
	ErrInvalidStroke = errors.New("invalid stroke payload")
)

// FreehandStroke 자유곡선 한 구간 (one pen/eraser/highlighter segment)
type FreehandStroke struct {
	FromX     float64  `json:"fromX"`
	FromY     float64  `json:"fromY"`
	ToX       float64  `json:"toX"`
	ToY       float64  `json:"toY"`
	Color     string   `json:"color"`
	LineMode  LineMode `json:"lineMode"`
	Thickness float64  `json:"thickness"`
}

// ShapeStroke rect/line between two corner points
type ShapeStroke struct {
	Type      ShapeType `json:"type"`
	FromX     float64   `json:"fromX"`
	FromY     float64   `json:"fromY"`
	ToX       float64   `json:"toX"`
	ToY       float64   `json:"toY"`
	Color     string    `json:"color"`
	Thickness float64   `json:"thickness"`
}

// TextStroke text annotation at a point
type TextStroke struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
}

// Stroke is the tagged union of drawable operations. Exactly one variant is
// populated; every variant carries everything needed to redraw it without
// reference to earlier strokes, so a history replays statelessly.
//
// The wire shape stays flat for client compatibility: the variant is inferred
// on decode (a "text" field means text, a known "type" means shape, anything
// else is freehand) and the populated variant is emitted as-is on encode.
type Stroke struct {
	Kind     StrokeKind      `json:"-"`
	Freehand *FreehandStroke `json:"-"`
	Shape    *ShapeStroke    `json:"-"`
	Text     *TextStroke     `json:"-"`
}

// NewFreehand wraps a freehand segment into a Stroke.
func NewFreehand(f FreehandStroke) Stroke {
	return Stroke{Kind: StrokeKindFreehand, Freehand: &f}
}

// NewShape wraps a shape into a Stroke.
func NewShape(s ShapeStroke) Stroke {
	return Stroke{Kind: StrokeKindShape, Shape: &s}
}

// NewText wraps a text annotation into a Stroke.
func NewText(t TextStroke) Stroke {
	return Stroke{Kind: StrokeKindText, Text: &t}
}

// strokeProbe peeks at the discriminating fields before full decode
type strokeProbe struct {
	Text *string `json:"text"`
	Type string  `json:"type"`
}

// UnmarshalJSON infers the variant from the payload shape.
func (s *Stroke) UnmarshalJSON(data []byte) error {
	var probe strokeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch {
	case probe.Text != nil:
		var t TextStroke
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*s = Stroke{Kind: StrokeKindText, Text: &t}
	case ShapeType(probe.Type).Valid():
		var sh ShapeStroke
		if err := json.Unmarshal(data, &sh); err != nil {
			return err
		}
		*s = Stroke{Kind: StrokeKindShape, Shape: &sh}
	default:
		var f FreehandStroke
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		if f.LineMode == "" {
			f.LineMode = LineModePen
		}
		*s = Stroke{Kind: StrokeKindFreehand, Freehand: &f}
	}

	return s.Validate()
}

// MarshalJSON emits the populated variant with its flat wire shape.
func (s Stroke) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StrokeKindFreehand:
		return json.Marshal(s.Freehand)
	case StrokeKindShape:
		return json.Marshal(s.Shape)
	case StrokeKindText:
		return json.Marshal(s.Text)
	default:
		return nil, ErrEmptyStroke
	}
}

// Validate checks that exactly the tagged variant is populated and its enum
// fields are in range. The switch is exhaustive over StrokeKind so a new
// variant cannot be added without handling it here.
func (s Stroke) Validate() error {
	switch s.Kind {
	case StrokeKindFreehand:
		if s.Freehand == nil || s.Shape != nil || s.Text != nil {
			return ErrInvalidStroke
		}
		if !s.Freehand.LineMode.Valid() {
			return ErrInvalidStroke
		}
	case StrokeKindShape:
		if s.Shape == nil || s.Freehand != nil || s.Text != nil {
			return ErrInvalidStroke
		}
		if !s.Shape.Type.Valid() {
			return ErrInvalidStroke
		}
	case StrokeKindText:
		if s.Text == nil || s.Freehand != nil || s.Shape != nil {
			return ErrInvalidStroke
		}
		if s.Text.Text == "" {
			return ErrInvalidStroke
		}
	default:
		return ErrEmptyStroke
	}
	return nil
}

// History is the ordered stroke log of one room's canvas.
type History []Stroke

// Clone returns an independent copy so callers can hold a snapshot while the
// live log keeps moving.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}
