package util

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/elijahnyp/office_controller/state"
)

const ( //message types
	COUNT     = iota
	BOOKING   = iota
	OCCUPANCY = iota
)

// Model is the office as described by the config file.  Room N is the
// N-th entry of Rooms.
type Model struct {
	Name  string `mapstructure:"name"`
	Rooms []Room `mapstructure:"rooms"`
}

type Room struct {
	Name            string   `mapstructure:"name"`
	Max_capacity    int      `mapstructure:"max_capacity"`
	Occupancy_topic string   `mapstructure:"occupancy_topic"`
	Count_topics    []string `mapstructure:"count_topics"`
	Booking_topic   string   `mapstructure:"booking_topic"`
	Climate_topic   string   `mapstructure:"climate_topic"`
	Lighting_topic  string   `mapstructure:"lighting_topic"`
}

// BuildModel replaces m with the office section of the config.  When the
// config lists no rooms the rooms flag supplies a count of unnamed ones.
func (m *Model) BuildModel() error {
	var fresh Model
	err := Config.UnmarshalKey("office", &fresh)
	if err != nil {
		Logger.Error().Msgf("error unmarshaling model: %v", err)
		return fmt.Errorf("unmarshal office model: %w", err)
	}
	if extra := Config.GetInt("rooms"); len(fresh.Rooms) == 0 && extra > 0 {
		fresh.Rooms = make([]Room, extra)
	}
	*m = fresh
	return nil
}

// ModelStore holds the current Model.  Config reloads swap in a new one
// while MQTT callbacks and HTTP handlers keep reading the one they loaded.
// A loaded Model must be treated as read only.
type ModelStore struct {
	current atomic.Pointer[Model]
}

// Load returns the current model, or an empty one before the first Store.
func (s *ModelStore) Load() *Model {
	if m := s.current.Load(); m != nil {
		return m
	}
	return &Model{}
}

func (s *ModelStore) Store(m Model) {
	s.current.Store(&m)
}

// Reload builds a model from Config and swaps it in.  The current model is
// kept when the config cannot be decoded.
func (s *ModelStore) Reload() error {
	var m Model
	if err := m.BuildModel(); err != nil {
		return err
	}
	s.Store(m)
	return nil
}

// RoomName falls back to "room_N" when the config gives no name.
func (m Model) RoomName(number int) string {
	if number >= 1 && number <= len(m.Rooms) && m.Rooms[number-1].Name != "" {
		return m.Rooms[number-1].Name
	}
	return fmt.Sprintf("room_%d", number)
}

func (m Model) room(number int) (Room, bool) {
	if number < 1 || number > len(m.Rooms) {
		return Room{}, false
	}
	return m.Rooms[number-1], true
}

// FindRoomByTopic returns the room number owning topic, or 0.
func (m Model) FindRoomByTopic(topic string) int {
	for i, entry := range m.Rooms {
		if entry.Occupancy_topic == topic || entry.Booking_topic == topic {
			return i + 1
		}
		for _, ct := range entry.Count_topics {
			if ct == topic {
				return i + 1
			}
		}
	}
	return 0
}

func (m Model) FindTopicType(topic string) int {
	for _, entry := range m.Rooms {
		if entry.Occupancy_topic == topic {
			return OCCUPANCY
		}
		if entry.Booking_topic == topic {
			return BOOKING
		}
		for _, ct := range entry.Count_topics {
			if ct == topic {
				return COUNT
			}
		}
	}
	return -1
}

func (m Model) OccupancyTopic(number int) string {
	r, _ := m.room(number)
	return r.Occupancy_topic
}

// DeviceTopic is where on/off commands for a room's equipment go.  Rooms
// without an explicit topic get <topic_base>/<room name>/<device>.
func (m Model) DeviceTopic(number int, device string) string {
	r, ok := m.room(number)
	if !ok {
		return ""
	}
	switch device {
	case state.DeviceClimate:
		if r.Climate_topic != "" {
			return r.Climate_topic
		}
	case state.DeviceLighting:
		if r.Lighting_topic != "" {
			return r.Lighting_topic
		}
	}
	return fmt.Sprintf("%s/%s/%s", Config.GetString("topic_base"), m.RoomName(number), device)
}

func (m Model) SubscribeTopics() []string {
	var topics []string
	for _, room := range m.Rooms {
		topics = append(topics, room.Count_topics...)
		if room.Booking_topic != "" {
			topics = append(topics, room.Booking_topic)
		}
	}
	return topics
}

// ParseCount reads a head count from a sensor payload: a decimal number,
// or a presence string (ON/OCCUPIED count as a booking's worth of people).
func ParseCount(payload []byte) (int, error) {
	s := strings.TrimSpace(string(payload))
	if numd, err := strconv.Atoi(s); err == nil {
		return numd, nil
	}
	switch strings.ToUpper(s) {
	case "ON", "OCCUPIED", "TRUE":
		return state.BookingOccupants, nil
	case "OFF", "UNOCCUPIED", "FALSE":
		return 0, nil
	}
	return 0, fmt.Errorf("unrecognised count payload %q", s)
}
