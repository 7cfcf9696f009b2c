package model

import "errors"

// Configuration-time rejections. A mutation that returns one of these has
// not been applied.
var (
	ErrGeometryConflict   = errors.New("geometry conflict")
	ErrInvalidFieldType   = errors.New("invalid field type")
	ErrUnknownTarget      = errors.New("unknown target")
	ErrIncompatibleTarget = errors.New("incompatible target")
)

var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateID           = errors.New("duplicate id")
	ErrKindImmutable         = errors.New("kind is immutable")
	ErrNotChart              = errors.New("widget is not a chart")
	ErrNotControl            = errors.New("widget is not a control")
	ErrUnknownDataset        = errors.New("unknown dataset")
	ErrUnknownField          = errors.New("unknown field")
	ErrUnknownMeasure        = errors.New("unknown measure")
	ErrPropagationInProgress = errors.New("propagation in progress")
)
