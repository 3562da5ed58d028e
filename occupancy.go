package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/elijahnyp/office_controller/state"
	. "github.com/elijahnyp/office_controller/util"
)

type MQTT_Item struct {
	Data  []byte
	Topic string
	Room  int
	Type  int
}

// BookingRequest is the payload of a booking topic message and the body
// of the booking api.
type BookingRequest struct {
	Action    string `json:"action"` // "book" or "cancel"
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
}

func (b BookingRequest) Command() (state.Command, error) {
	switch strings.ToLower(b.Action) {
	case "book":
		if b.StartTime == "" || b.Duration <= 0 {
			return nil, fmt.Errorf("book needs start_time and a positive duration")
		}
		return state.BookRoom{StartTime: b.StartTime, Duration: b.Duration}, nil
	case "cancel":
		return state.CancelBooking{}, nil
	}
	return nil, fmt.Errorf("unknown booking action %q", b.Action)
}

// models holds the office model; config reloads swap it whole.
var models = &ModelStore{}

var office *state.Office

var activity = NewActivityLog(50)

/* ***************************************
Activity log
*/

type ActivityItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Room      int    `json:"room"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ActivityLog keeps the newest entries, up to limit.
type ActivityLog struct {
	mu    sync.Mutex
	items []ActivityItem
	limit int
}

func NewActivityLog(limit int) *ActivityLog {
	return &ActivityLog{limit: limit}
}

func (a *ActivityLog) Add(kind string, room int, message string) ActivityItem {
	item := ActivityItem{
		ID:        uuid.NewString(),
		Type:      kind,
		Room:      room,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, item)
	if len(a.items) > a.limit {
		a.items = a.items[len(a.items)-a.limit:]
	}
	return item
}

// Recent returns entries newest first.  room 0 means every room.
func (a *ActivityLog) Recent(room int) []ActivityItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	recent := []ActivityItem{}
	for i := len(a.items) - 1; i >= 0; i-- {
		if room == 0 || a.items[i].Room == room {
			recent = append(recent, a.items[i])
		}
	}
	return recent
}

/* ***************************************
Routines, dependencies, and Routine Init
*/

// channels
var count_channel = make(chan MQTT_Item, 10)
var booking_channel = make(chan MQTT_Item, 10)

func OccupancyManagerRoutine() {
	for {
		item := <-count_channel
		ProcessCount(item)
	}
}

func BookingManagerRoutine() {
	for {
		item := <-booking_channel
		ProcessBooking(item)
	}
}

func ProcessCount(item MQTT_Item) {
	count, err := ParseCount(item.Data)
	if err != nil {
		Logger.Warn().Msgf("room %d: %v", item.Room, err)
		return
	}
	if _, err := ApplyCount(item.Room, count, "sensor"); err != nil {
		Logger.Warn().Msgf("count from %s dropped: %v", item.Topic, err)
	}
}

func ProcessBooking(item MQTT_Item) {
	var req BookingRequest
	if err := json.Unmarshal(item.Data, &req); err != nil {
		Logger.Warn().Msgf("Unable to unmarshal booking on %s: %v", item.Topic, err)
		return
	}
	cmd, err := req.Command()
	if err != nil {
		Logger.Warn().Msgf("booking on %s rejected: %v", item.Topic, err)
		return
	}
	if err := ExecuteCommand(item.Room, cmd); err != nil {
		Logger.Info().Msgf("room %d %s: %v", item.Room, cmd, err)
	}
}

// ApplyCount feeds a head count into a room and reports the new state.
func ApplyCount(number int, count int, source string) (bool, error) {
	room, err := office.GetRoom(number)
	if err != nil {
		return false, err
	}
	occupied := room.AddOccupants(count)
	reportRoom(room, "occupancy", fmt.Sprintf("%s counted %d", source, count))
	return occupied, nil
}

// ExecuteCommand runs a booking command against a room.  Refused commands
// are recorded in the activity log as well.
func ExecuteCommand(number int, cmd state.Command) error {
	err := office.Execute(number, cmd)
	if errors.Is(err, state.ErrInvalidRoomNumber) {
		return err
	}
	room, _ := office.GetRoom(number)
	if err != nil {
		activity.Add("booking", number, fmt.Sprintf("%s refused: %v", cmd, err))
		return err
	}
	reportRoom(room, "booking", cmd.String())
	return nil
}

func roomStatus(room *state.Room) WebRoomStatus {
	return WebRoomStatus{
		Number:      room.Number(),
		Name:        models.Load().RoomName(room.Number()),
		Occupied:    room.IsOccupied(),
		MaxCapacity: room.MaxCapacity(),
	}
}

func reportRoom(room *state.Room, kind string, message string) {
	status := roomStatus(room)
	item := activity.Add(kind, room.Number(), message)
	if err := Publish(models.Load().OccupancyTopic(room.Number()), strconv.FormatBool(status.Occupied)); err != nil {
		Logger.Debug().Msgf("occupancy for room %d not published: %v", room.Number(), err)
	}
	if wsHub != nil {
		wsHub.BroadcastUpdate("room_status", status)
		wsHub.BroadcastUpdate("activity", item)
	}
}

func publishAllRooms() {
	model := models.Load()
	for _, room := range office.Rooms() {
		if err := Publish(model.OccupancyTopic(room.Number()), strconv.FormatBool(room.IsOccupied())); err != nil {
			Logger.Debug().Msgf("occupancy for room %d not published: %v", room.Number(), err)
		}
	}
}

// configureOffice brings the office up to the rooms the model lists.
// Rooms are never removed; a shorter config only logs.
func configureOffice() {
	if office == nil {
		office = state.NewOffice(NewNarrationWriter("office"), MQTTActuator{Models: models})
	}
	model := models.Load()
	missing := len(model.Rooms) - office.RoomCount()
	if missing > 0 {
		office.ConfigureRooms(missing)
	} else if missing < 0 {
		Logger.Warn().Msgf("config lists %d rooms but %d are configured; extra rooms kept", len(model.Rooms), office.RoomCount())
	}
	for i, r := range model.Rooms {
		if r.Max_capacity <= 0 {
			continue
		}
		room, err := office.GetRoom(i + 1)
		if err != nil {
			continue
		}
		if room.MaxCapacity() != r.Max_capacity {
			if err := room.SetMaxCapacity(r.Max_capacity); err != nil {
				Logger.Warn().Msgf("room %d: %v", i+1, err)
			}
		}
	}
}

func Init() {
	go OccupancyManagerRoutine()
	go BookingManagerRoutine()
}

func subscribeOfficeTopics() {
	for _, topic := range models.Load().SubscribeTopics() {
		RegisterMQTTSubscription(topic, receiver)
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Debug().Msgf("Message Received on topic %s", message.Topic())
	var mitem MQTT_Item
	mitem.Data = message.Payload()
	mitem.Topic = message.Topic()
	model := models.Load()
	mitem.Room = model.FindRoomByTopic(message.Topic())
	switch model.FindTopicType(message.Topic()) {
	case COUNT:
		mitem.Type = COUNT
		Logger.Debug().Msgf("count message received: queue len %v", len(count_channel))
		count_channel <- mitem
	case BOOKING:
		mitem.Type = BOOKING
		Logger.Debug().Msgf("booking message received: queue len %v", len(booking_channel))
		booking_channel <- mitem
	case OCCUPANCY:
		// our own output
	default:
		Logger.Debug().Msgf("topic %s not found in model.  Fix subscription or add to model", message.Topic())
	}
}
