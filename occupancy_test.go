package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/elijahnyp/office_controller/state"
	. "github.com/elijahnyp/office_controller/util"
)

// Mock MQTT client for testing
type mockMQTTClient struct {
	mu        sync.Mutex
	published map[string][]string
}

func (m *mockMQTTClient) IsConnected() bool       { return true }
func (m *mockMQTTClient) IsConnectionOpen() bool  { return true }
func (m *mockMQTTClient) Connect() MQTT.Token     { return &mockToken{} }
func (m *mockMQTTClient) Disconnect(quiesce uint) {}
func (m *mockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.published == nil {
		m.published = make(map[string][]string)
	}
	if s, ok := payload.(string); ok {
		m.published[topic] = append(m.published[topic], s)
	}
	return &mockToken{}
}
func (m *mockMQTTClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	return &mockToken{}
}
func (m *mockMQTTClient) SubscribeMultiple(filters map[string]byte, callback MQTT.MessageHandler) MQTT.Token {
	return &mockToken{}
}
func (m *mockMQTTClient) Unsubscribe(topics ...string) MQTT.Token             { return &mockToken{} }
func (m *mockMQTTClient) AddRoute(topic string, callback MQTT.MessageHandler) {}
func (m *mockMQTTClient) OptionsReader() MQTT.ClientOptionsReader             { return MQTT.ClientOptionsReader{} }

func (m *mockMQTTClient) last(topic string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.published[topic]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type mockToken struct{}

func (m *mockToken) Wait() bool                     { return true }
func (m *mockToken) WaitTimeout(time.Duration) bool { return true }
func (m *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *mockToken) Error() error { return nil }

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

// setupOffice installs a two room office and a mock broker.
func setupOffice(t *testing.T) (*mockMQTTClient, *bytes.Buffer) {
	t.Helper()
	Config.Set("topic_base", "office")
	Config.Set("rooms", 0)
	models.Store(Model{
		Name: "hq",
		Rooms: []Room{
			{
				Name:            "boardroom",
				Max_capacity:    10,
				Occupancy_topic: "office/boardroom/occupancy",
				Count_topics:    []string{"office/boardroom/count"},
				Booking_topic:   "office/boardroom/booking",
			},
			{Occupancy_topic: "office/room_2/occupancy"},
		},
	})
	out := &bytes.Buffer{}
	office = state.NewOffice(out, MQTTActuator{Models: models})
	configureOffice()
	activity = NewActivityLog(50)

	client := &mockMQTTClient{}
	Client = client
	t.Cleanup(func() { Client = nil })
	return client, out
}

func TestConfigureOffice(t *testing.T) {
	setupOffice(t)

	if office.RoomCount() != 2 {
		t.Fatalf("RoomCount() = %d, expected 2", office.RoomCount())
	}
	room, _ := office.GetRoom(1)
	if room.MaxCapacity() != 10 {
		t.Errorf("Room 1 capacity = %d, expected 10", room.MaxCapacity())
	}

	// reload with an extra room keeps existing state
	room.AddOccupants(4)
	reloaded := *models.Load()
	reloaded.Rooms = append(append([]Room{}, reloaded.Rooms...), Room{Name: "annex", Max_capacity: 4})
	models.Store(reloaded)
	configureOffice()

	if office.RoomCount() != 3 {
		t.Fatalf("RoomCount() after reload = %d, expected 3", office.RoomCount())
	}
	if !room.IsOccupied() {
		t.Error("Reload must not reset occupancy")
	}
	annex, _ := office.GetRoom(3)
	if annex.MaxCapacity() != 4 {
		t.Errorf("Annex capacity = %d, expected 4", annex.MaxCapacity())
	}
}

func TestApplyCount(t *testing.T) {
	client, _ := setupOffice(t)

	occupied, err := ApplyCount(1, 3, "test")
	if err != nil || !occupied {
		t.Fatalf("ApplyCount(1, 3) = %v, %v", occupied, err)
	}
	if client.last("office/boardroom/occupancy") != "true" {
		t.Errorf("Occupancy publish = %q, expected true", client.last("office/boardroom/occupancy"))
	}
	if client.last("office/boardroom/climate") != "ON" || client.last("office/boardroom/lighting") != "ON" {
		t.Error("Sensors should switch climate and lighting on")
	}

	occupied, _ = ApplyCount(1, 1, "test")
	if occupied || client.last("office/boardroom/occupancy") != "false" {
		t.Error("A single occupant should mark the room free")
	}

	if _, err := ApplyCount(7, 3, "test"); !errors.Is(err, state.ErrInvalidRoomNumber) {
		t.Errorf("ApplyCount(7) = %v, expected ErrInvalidRoomNumber", err)
	}
}

func TestProcessCount(t *testing.T) {
	setupOffice(t)
	room, _ := office.GetRoom(1)

	ProcessCount(MQTT_Item{Room: 1, Topic: "office/boardroom/count", Data: []byte("5")})
	if !room.IsOccupied() {
		t.Error("Count of 5 should occupy the room")
	}

	ProcessCount(MQTT_Item{Room: 1, Topic: "office/boardroom/count", Data: []byte("nobody")})
	if !room.IsOccupied() {
		t.Error("Unparseable counts must be ignored")
	}

	ProcessCount(MQTT_Item{Room: 1, Topic: "office/boardroom/count", Data: []byte("OFF")})
	if room.IsOccupied() {
		t.Error("OFF should free the room")
	}
}

func TestProcessBooking(t *testing.T) {
	setupOffice(t)
	room, _ := office.GetRoom(1)

	book, _ := json.Marshal(BookingRequest{Action: "book", StartTime: "09:00", Duration: 60})
	ProcessBooking(MQTT_Item{Room: 1, Topic: "office/boardroom/booking", Data: book})
	if !room.IsOccupied() {
		t.Fatal("Booking message should occupy the room")
	}

	ProcessBooking(MQTT_Item{Room: 1, Topic: "office/boardroom/booking", Data: book})
	recent := activity.Recent(1)
	if len(recent) < 2 || recent[0].Type != "booking" {
		t.Fatalf("Expected conflict in activity log, got %+v", recent)
	}

	ProcessBooking(MQTT_Item{Room: 1, Topic: "office/boardroom/booking", Data: []byte(`{"action":"cancel"}`)})
	if room.IsOccupied() {
		t.Error("Cancel message should free the room")
	}

	ProcessBooking(MQTT_Item{Room: 1, Topic: "office/boardroom/booking", Data: []byte(`not json`)})
	ProcessBooking(MQTT_Item{Room: 1, Topic: "office/boardroom/booking", Data: []byte(`{"action":"dance"}`)})
	if room.IsOccupied() {
		t.Error("Bad booking messages must not change state")
	}
}

func TestBookingRequest_Command(t *testing.T) {
	tests := []struct {
		name    string
		req     BookingRequest
		want    state.Command
		wantErr bool
	}{
		{"Book", BookingRequest{Action: "book", StartTime: "09:00", Duration: 60}, state.BookRoom{StartTime: "09:00", Duration: 60}, false},
		{"Book upper case", BookingRequest{Action: "BOOK", StartTime: "13:30", Duration: 15}, state.BookRoom{StartTime: "13:30", Duration: 15}, false},
		{"Cancel", BookingRequest{Action: "cancel"}, state.CancelBooking{}, false},
		{"Book without time", BookingRequest{Action: "book", Duration: 60}, nil, true},
		{"Book without duration", BookingRequest{Action: "book", StartTime: "09:00"}, nil, true},
		{"Unknown", BookingRequest{Action: "move"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := tt.req.Command()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Command() error = %v, wantErr %v", err, tt.wantErr)
			}
			if cmd != tt.want {
				t.Errorf("Command() = %#v, expected %#v", cmd, tt.want)
			}
		})
	}
}

func TestReceiver(t *testing.T) {
	setupOffice(t)
	count_channel = make(chan MQTT_Item, 10)
	booking_channel = make(chan MQTT_Item, 10)

	receiver(&mockMQTTClient{}, &mockMessage{topic: "office/boardroom/count", payload: []byte("3")})
	receiver(&mockMQTTClient{}, &mockMessage{topic: "office/boardroom/booking", payload: []byte(`{"action":"cancel"}`)})
	receiver(&mockMQTTClient{}, &mockMessage{topic: "office/nowhere", payload: []byte("3")})

	select {
	case item := <-count_channel:
		if item.Room != 1 || item.Type != COUNT || string(item.Data) != "3" {
			t.Errorf("Unexpected count item: %+v", item)
		}
	default:
		t.Error("Count message should be queued")
	}
	select {
	case item := <-booking_channel:
		if item.Room != 1 || item.Type != BOOKING {
			t.Errorf("Unexpected booking item: %+v", item)
		}
	default:
		t.Error("Booking message should be queued")
	}
	if len(count_channel) != 0 || len(booking_channel) != 0 {
		t.Error("Unknown topic should not be queued")
	}
}

func TestActivityLog(t *testing.T) {
	log := NewActivityLog(3)
	for i := 1; i <= 5; i++ {
		log.Add("occupancy", i%2+1, "entry")
	}

	all := log.Recent(0)
	if len(all) != 3 {
		t.Fatalf("Recent(0) returned %d items, expected 3", len(all))
	}
	if all[0].Room != 5%2+1 {
		t.Errorf("Newest entry room = %d, expected %d", all[0].Room, 5%2+1)
	}
	ids := map[string]bool{}
	for _, item := range all {
		if item.ID == "" || ids[item.ID] {
			t.Errorf("Activity IDs must be unique and non-empty, got %q", item.ID)
		}
		ids[item.ID] = true
	}
	for _, item := range log.Recent(1) {
		if item.Room != 1 {
			t.Errorf("Recent(1) returned item for room %d", item.Room)
		}
	}
}

func TestReceiverDuringReload(t *testing.T) {
	setupOffice(t)
	Config.Set("office", map[string]interface{}{
		"name": "hq",
		"rooms": []map[string]interface{}{
			{
				"name":            "boardroom",
				"occupancy_topic": "office/boardroom/occupancy",
				"count_topics":    []string{"office/boardroom/count"},
			},
		},
	})
	t.Cleanup(func() { Config.Set("office", map[string]interface{}{}) })

	saved := count_channel
	count_channel = make(chan MQTT_Item, 200)
	t.Cleanup(func() { count_channel = saved })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if err := models.Reload(); err != nil {
				t.Errorf("Reload() returned error: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			receiver(&mockMQTTClient{}, &mockMessage{topic: "office/boardroom/count", payload: []byte("3")})
			if _, err := ApplyCount(1, 3, "test"); err != nil {
				t.Errorf("ApplyCount() returned error: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if len(count_channel) != 100 {
		t.Fatalf("Expected 100 queued counts, got %d", len(count_channel))
	}
	for len(count_channel) > 0 {
		if item := <-count_channel; item.Room != 1 {
			t.Fatalf("Count routed to room %d during reload, expected 1", item.Room)
		}
	}
}
