package errors

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")

	ErrHostelNotFound = errors.New("hostel not found")

	ErrInvalidID = errors.New("invalid room ID format")
)
