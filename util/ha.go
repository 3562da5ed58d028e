package util

import (
	"encoding/json"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

type HADeviceSpec struct {
	Name        string   `json:"name"`
	Identifiers []string `json:"ids"`
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`
	UniqueID                     string                         `json:"uniq_id"`
	Name                         string                         `json:"name"`
	StateTopic                   string                         `json:"state_topic"`
	PayloadOn                    string                         `json:"payload_on"`
	PayloadOff                   string                         `json:"payload_off"`
	DeviceClass                  string                         `json:"device_class"` // "occupancy"
	Platform                     string                         `json:"platform"`     // "binary_sensor"
	Qos                          int                            `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

func ConstructHAAdvertisement(office, name, stateTopic string) HAAdvertisement {
	device := "office_controller"
	if office != "" {
		device = office + "_office_controller"
	}
	return HAAdvertisement{
		Name:       name,
		StateTopic: stateTopic,
		PayloadOn:  "true",
		PayloadOff: "false",
		HAAvdvertisementAvailability: []HAAvdvertisementAvailability{
			{
				Topic:               OnlineTopic(),
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:         0,
		UniqueID:    "meeting_room_occupancy-" + name,
		DeviceClass: "occupancy",
		Platform:    "binary_sensor",
		Device: HADeviceSpec{
			Name:        device,
			Identifiers: []string{device},
		},
	}
}

// AdvertiseHA publishes a discovery config for every room that reports
// occupancy.
func AdvertiseHA(m Model, client MQTT.Client) {
	for i, room := range m.Rooms {
		if room.Occupancy_topic == "" {
			continue
		}
		name := m.RoomName(i + 1)
		ha := ConstructHAAdvertisement(m.Name, name, room.Occupancy_topic)
		if token := client.Publish("homeassistant/binary_sensor/"+name+"/occupancy/config", 0, false, ha.ToJson()); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Publishing HA advertisement for %s: %v", name, token.Error())
		}
	}
}
