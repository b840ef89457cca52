package usecase

import "errors"

var (
	ErrCanvasNotFound  = errors.New("canvas not found")
	ErrPanelNotFound   = errors.New("panel not found")
	ErrPanelExists     = errors.New("panel already exists")
	ErrNoActiveGesture = errors.New("no active gesture")
	ErrInvalidHandle   = errors.New("invalid resize handle")
	ErrInvalidGroup    = errors.New("invalid group tag")
	ErrDispatcherDone  = errors.New("dispatcher stopped")
)
