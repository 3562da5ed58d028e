package state

import "fmt"

// head count recorded for a booked room
const BookingOccupants = 2

// Command is a booking action.  Commands are plain values; the same
// command can be executed against a room any number of times.
type Command interface {
	Execute(r *Room) error
	String() string
}

type BookRoom struct {
	StartTime string
	Duration  int // minutes
}

func (b BookRoom) Execute(r *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.occupied {
		fmt.Fprintf(r.out, "Room %d is already booked.\n", r.number)
		return fmt.Errorf("room %d: %w", r.number, ErrBookingConflict)
	}
	fmt.Fprintf(r.out, "Room %d booked from %s for %d minutes.\n", r.number, b.StartTime, b.Duration)
	r.addOccupants(BookingOccupants)
	return nil
}

func (b BookRoom) String() string {
	return fmt.Sprintf("book from %s for %d minutes", b.StartTime, b.Duration)
}

type CancelBooking struct{}

func (c CancelBooking) Execute(r *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.occupied {
		fmt.Fprintf(r.out, "Room %d is not booked.\n", r.number)
		return fmt.Errorf("room %d: %w", r.number, ErrNoActiveBooking)
	}
	r.releaseOccupants()
	fmt.Fprintf(r.out, "Booking for Room %d cancelled successfully.\n", r.number)
	return nil
}

func (c CancelBooking) String() string {
	return "cancel booking"
}
