package model

// LineMode freehand drawing mode
type LineMode string

const (
	LineModePen         LineMode = "pen"
	LineModeEraser      LineMode = "eraser"
	LineModeHighlighter LineMode = "highlighter"
)

func (m LineMode) String() string {
	return string(m)
}

// Valid reports whether the mode is one of the known drawing modes.
func (m LineMode) Valid() bool {
	switch m {
	case LineModePen, LineModeEraser, LineModeHighlighter:
		return true
	default:
		return false
	}
}

// ShapeType geometric shape variant
type ShapeType string

const (
	ShapeTypeRect ShapeType = "rect"
	ShapeTypeLine ShapeType = "line"
)

func (t ShapeType) String() string {
	return string(t)
}

// Valid reports whether the shape type is known.
func (t ShapeType) Valid() bool {
	switch t {
	case ShapeTypeRect, ShapeTypeLine:
		return true
	default:
		return false
	}
}
