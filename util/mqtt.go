package util

import (
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

var Client MQTT.Client

var subscriptions map[string]MQTT.MessageHandler

var connectHandlers map[string]func(MQTT.Client)

// guards the two maps above; paho calls connectHandler from its own goroutine
var registryMu sync.Mutex

const publishTimeout = 5 * time.Second

// OnlineTopic carries the controller's availability (online/offline).
func OnlineTopic() string {
	return Config.GetString("topic_base") + "/online"
}

var connectHandler MQTT.OnConnectHandler = func(client MQTT.Client) {
	Logger.Info().Msg("Connected")
	subscribe(client)
	client.Publish(OnlineTopic(), 0, false, "online").WaitTimeout(publishTimeout)
	registryMu.Lock()
	handlers := make([]func(MQTT.Client), 0, len(connectHandlers))
	for _, handler := range connectHandlers {
		handlers = append(handlers, handler)
	}
	registryMu.Unlock()
	for _, handler := range handlers {
		handler(client)
	}
}

func RegisterMQTTConnectHook(name string, handler func(MQTT.Client)) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	if handler == nil {
		delete(connectHandlers, name)
	} else {
		connectHandlers[name] = handler
	}
}

func subscribe(client MQTT.Client) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for topic, handler := range subscriptions {
		if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Subscribing to %s: %v", topic, token.Error())
		}
	}
}

// RegisterMQTTSubscription records a handler for topic.  It takes effect
// on the next (re)connect, or immediately when already connected.
func RegisterMQTTSubscription(topic string, handler MQTT.MessageHandler) {
	registryMu.Lock()
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	if handler == nil {
		delete(subscriptions, topic)
	} else {
		subscriptions[topic] = handler
	}
	registryMu.Unlock()

	if handler != nil && Client != nil && Client.IsConnected() {
		if token := Client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Subscribing to %s: %v", topic, token.Error())
		}
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Warn().Msgf("Received message on %v but no handler", message.Topic())
}

var connectLostHandler MQTT.ConnectionLostHandler = func(client MQTT.Client, err error) {
	Logger.Info().Msgf("Connect lost: %v", err)
}

// Publish sends payload if a client is connected and logs failures.
func Publish(topic string, payload interface{}) error {
	if topic == "" {
		return nil
	}
	if Client == nil || !Client.IsConnected() {
		Logger.Debug().Msgf("not connected, dropping message for %s", topic)
		return fmt.Errorf("mqtt client not connected")
	}
	token := Client.Publish(topic, byte(0), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		Logger.Warn().Msgf("Timed out publishing to %s", topic)
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		Logger.Error().Msgf("Error publishing to %s: %v", topic, err)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// MQTTActuator drives room equipment by publishing ON/OFF to the device
// topics in the model.
type MQTTActuator struct {
	Models *ModelStore
}

func (a MQTTActuator) Switch(room int, device string, on bool) {
	if a.Models == nil {
		return
	}
	payload := "OFF"
	if on {
		payload = "ON"
	}
	if err := Publish(a.Models.Load().DeviceTopic(room, device), payload); err != nil {
		Logger.Debug().Msgf("room %d %s not switched: %v", room, device, err)
	}
}

func MqttInit() {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(Config.GetString("broker_uri"))
	opts.SetClientID(Config.GetString("id_base") + "_" + GetRandString(6))
	opts.SetUsername(Config.GetString("username"))
	opts.SetPassword(Config.GetString("password"))
	opts.SetCleanSession(Config.GetBool("cleansess"))
	opts.SetAutoReconnect(true)
	opts.SetWill(OnlineTopic(), "offline", 0, false)
	opts.OnConnectionLost = connectLostHandler
	opts.OnConnect = connectHandler
	opts.SetDefaultPublishHandler(receiver)

	if Client != nil {
		Logger.Debug().Msg("Client exists - destroying")
		if Client.IsConnected() {
			Client.Disconnect(1000)
		}
		Client = nil
	}

	Client = MQTT.NewClient(opts)

	if token := Client.Connect(); token.Wait() && token.Error() != nil {
		panic(token.Error())
	}
}
