package util

import (
	"crypto/rand"
	"reflect"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const ENV_PREFIX = ""

const (
	MODE_DEMO  = "demo"
	MODE_SERVE = "serve"
)

var Config = viper.New()

var config_listeners []func()

func RegisterNewConfigListener(new_listener func()) {
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	for _, listener := range config_listeners {
		listener()
	}
}

func GetRandString(n int) string {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	for i := range b {
		randBytes := make([]byte, 1)
		if _, err := rand.Read(randBytes); err != nil {
			b[i] = letterBytes[i%len(letterBytes)]
		} else {
			b[i] = letterBytes[int(randBytes[0])%len(letterBytes)]
		}
	}
	return string(b)
}

// BindFlags parses command line flags into Config.  Flags win over the
// config file and environment for the keys they name.
func BindFlags(args []string) error {
	fs := pflag.NewFlagSet("office_controller", pflag.ContinueOnError)
	fs.String("mode", MODE_DEMO, "demo runs the scripted walkthrough and exits, serve runs the controller")
	fs.String("log_level", "info", "trace, debug, info, warn or error")
	fs.Int("details_port", 8080, "port for the monitor http server")
	fs.Int("rooms", 0, "number of rooms to configure when the config file lists none")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return Config.BindPFlags(fs)
}

func SetupConfig() {
	Config.SetEnvPrefix(ENV_PREFIX)
	// set defaults
	Config.SetDefault("Mode", MODE_DEMO)
	Config.SetDefault("Log_level", "info")
	Config.SetDefault("Broker_URI", "tcp://mqtt")
	Config.SetDefault("Cleansess", false)
	Config.SetDefault("Id_base", "office_controller")
	Config.SetDefault("Username", "")
	Config.SetDefault("Password", "")
	Config.SetDefault("Details_port", 8080)
	Config.SetDefault("Topic_base", "office")
	Config.SetDefault("Counters.enabled", false)
	Config.SetDefault("Counters.frequency", 30)
	Config.SetDefault("Counters.workers", 2)

	// config file
	Config.SetConfigName("office_controller")
	Config.AddConfigPath("/")
	Config.AddConfigPath("./")
	Config.AddConfigPath("./config")
	Config.AddConfigPath("/etc")
	Config.AddConfigPath("/office_controller")
	Config.AddConfigPath("/office_controller/config")

	// environment variables
	Config.AutomaticEnv()

	if err := Config.ReadInConfig(); err != nil {
		Logger.Warn().Msgf("unable to read config file: %v", err)
		return
	}

	// watch for changes
	Config.WatchConfig()
	Config.OnConfigChange(func(e fsnotify.Event) {
		Logger.Info().Msgf("Config file changed: %v", e.Name)
		Logger.Debug().Msgf("Config Additional Info: %v", e.String())
		OnNewConfig()
	})
}
