package util

import (
	"encoding/json"
	"testing"
)

func TestConstructHAAdvertisement(t *testing.T) {
	Config.Set("topic_base", "office")
	advertisement := ConstructHAAdvertisement("hq", "boardroom", "office/boardroom/occupancy")

	if advertisement.Name != "boardroom" {
		t.Errorf("Name = %s, expected boardroom", advertisement.Name)
	}
	if advertisement.StateTopic != "office/boardroom/occupancy" {
		t.Errorf("StateTopic = %s", advertisement.StateTopic)
	}
	if advertisement.PayloadOn != "true" || advertisement.PayloadOff != "false" {
		t.Errorf("Payloads = %s/%s, expected true/false", advertisement.PayloadOn, advertisement.PayloadOff)
	}
	if advertisement.DeviceClass != "occupancy" || advertisement.Platform != "binary_sensor" {
		t.Errorf("DeviceClass/Platform = %s/%s", advertisement.DeviceClass, advertisement.Platform)
	}
	if advertisement.UniqueID != "meeting_room_occupancy-boardroom" {
		t.Errorf("UniqueID = %s", advertisement.UniqueID)
	}
	if len(advertisement.HAAvdvertisementAvailability) != 1 || advertisement.HAAvdvertisementAvailability[0].Topic != "office/online" {
		t.Errorf("Availability = %+v", advertisement.HAAvdvertisementAvailability)
	}
	if advertisement.Device.Name != "hq_office_controller" {
		t.Errorf("Device name = %s, expected hq_office_controller", advertisement.Device.Name)
	}

	unnamed := ConstructHAAdvertisement("", "boardroom", "x")
	if unnamed.Device.Name != "office_controller" {
		t.Errorf("Device name without office = %s", unnamed.Device.Name)
	}
}

func TestHAAdvertisement_ToJson(t *testing.T) {
	jsonStr := ConstructHAAdvertisement("hq", "boardroom", "office/boardroom/occupancy").ToJson()

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		t.Fatalf("ToJson() produced invalid JSON: %v", err)
	}
	for _, key := range []string{"availability", "device", "uniq_id", "state_topic", "device_class", "platform"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("ToJson() missing key %s", key)
		}
	}
}

func TestAdvertiseHA(t *testing.T) {
	model := Model{
		Name: "hq",
		Rooms: []Room{
			{Name: "boardroom", Occupancy_topic: "office/boardroom/occupancy"},
			{Occupancy_topic: "office/room_2/occupancy"},
			{Name: "phone_booth"}, // no occupancy topic, skipped
		},
	}
	mockClient := &MockMQTTClient{}

	AdvertiseHA(model, mockClient)

	calls := mockClient.Published()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 publish calls, got %d", len(calls))
	}
	if calls[0].Topic != "homeassistant/binary_sensor/boardroom/occupancy/config" {
		t.Errorf("First advertisement topic = %s", calls[0].Topic)
	}
	if calls[1].Topic != "homeassistant/binary_sensor/room_2/occupancy/config" {
		t.Errorf("Second advertisement topic = %s", calls[1].Topic)
	}
	var advertisement HAAdvertisement
	if err := json.Unmarshal([]byte(calls[0].Payload.(string)), &advertisement); err != nil { //nolint:errcheck // test helper
		t.Errorf("Invalid JSON payload: %v", err)
	}
}
