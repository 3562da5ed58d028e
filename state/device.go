package state

import (
	"fmt"
	"io"
)

// device names, also used as topic suffixes by actuators
const (
	DeviceClimate  = "climate"
	DeviceLighting = "lighting"
)

// Sensor reacts to a room's occupancy changing.  Implementations must not
// call back into the Room; Update runs while the room is locked.
type Sensor interface {
	Name() string
	Update(occupied bool)
}

// Actuator switches real equipment for a room.  Errors are the actuator's
// problem - sensors have no failure modes.
type Actuator interface {
	Switch(room int, device string, on bool)
}

type ClimateControl struct {
	Room     int
	Out      io.Writer
	Actuator Actuator
}

func (c ClimateControl) Name() string {
	return DeviceClimate
}

func (c ClimateControl) Update(occupied bool) {
	if occupied {
		fmt.Fprintln(c.Out, "AC turned on.")
	} else {
		fmt.Fprintln(c.Out, "AC turned off.")
	}
	if c.Actuator != nil {
		c.Actuator.Switch(c.Room, DeviceClimate, occupied)
	}
}

type Lighting struct {
	Room     int
	Out      io.Writer
	Actuator Actuator
}

func (l Lighting) Name() string {
	return DeviceLighting
}

func (l Lighting) Update(occupied bool) {
	if occupied {
		fmt.Fprintln(l.Out, "Lights turned on.")
	} else {
		fmt.Fprintln(l.Out, "Lights turned off.")
	}
	if l.Actuator != nil {
		l.Actuator.Switch(l.Room, DeviceLighting, occupied)
	}
}

// NewSensorSet returns the standard sensor set for a room: climate control
// first, then lighting.
func NewSensorSet(room int, out io.Writer, actuator Actuator) []Sensor {
	return []Sensor{
		ClimateControl{Room: room, Out: out, Actuator: actuator},
		Lighting{Room: room, Out: out, Actuator: actuator},
	}
}
