package models

import (
	"errors"

	"github.com/mtnptrsn/zon/geo"
)

var (
	ErrInvalidArgument     = geo.ErrInvalidArgument
	ErrRoomNotFound        = errors.New("room not found")
	ErrPlayerNotInRoom     = errors.New("player not in room")
	ErrRoomNotJoinable     = errors.New("room not joinable")
	ErrNotHost             = errors.New("caller is not the host")
	ErrWrongPhase          = errors.New("operation not valid in current phase")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrMapGenerationFailed = errors.New("map generation failed")
	ErrVersionConflict     = errors.New("room was modified concurrently")
)
