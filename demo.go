package main

import (
	"io"

	"github.com/elijahnyp/office_controller/state"
	. "github.com/elijahnyp/office_controller/util"
)

// runDemo walks a fresh three room office through booking, cancelling
// and head counts, narrating to w.  Refusals are part of the walkthrough.
func runDemo(w io.Writer) {
	demo := state.NewOffice(w, nil)
	demo.ConfigureRooms(3)

	room1, err := demo.GetRoom(1)
	if err != nil {
		Logger.Error().Msgf("demo: %v", err)
		return
	}
	room2, err := demo.GetRoom(2)
	if err != nil {
		Logger.Error().Msgf("demo: %v", err)
		return
	}

	step := func(err error) {
		if err != nil {
			Logger.Debug().Msgf("demo step refused: %v", err)
		}
	}

	step(room1.SetMaxCapacity(10))
	step(room2.SetMaxCapacity(8))

	book_room1 := state.BookRoom{StartTime: "09:00", Duration: 60}
	step(book_room1.Execute(room1))

	cancel := state.CancelBooking{}
	step(cancel.Execute(room1))

	// room 1 is free again
	step(book_room1.Execute(room1))

	step(cancel.Execute(room2))

	room1.AddOccupants(0)
	room1.AddOccupants(3)
}
