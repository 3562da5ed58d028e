package state

import "errors"

var (
	ErrInvalidCapacity   = errors.New("invalid capacity")
	ErrInvalidRoomNumber = errors.New("invalid room number")
	ErrBookingConflict   = errors.New("room is already booked")
	ErrNoActiveBooking   = errors.New("room is not booked")
)
