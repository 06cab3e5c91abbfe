package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. D7LOGGER_MAC=false.
const EnvPrefix = "D7LOGGER"

// Load builds Settings from defaults, an optional config file, the
// environment and flags, in increasing precedence. An empty path skips the
// config file.
func Load(path string, flags *pflag.FlagSet, now time.Time) (Settings, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Settings{}, err
		}
	}

	var s Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		enumHook(),
	))
	if err := v.Unmarshal(&s, hook); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	s.Normalize(now)
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}

	return s, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Name == "config" || f.Name == "help" || f.Name == "version" {
			return
		}
		if err := v.BindPFlag(keyForFlag(f.Name), f); err != nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})

	return bindErr
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("port", d.Port)
	v.SetDefault("baud", d.Baud)
	v.SetDefault("tcp", d.TCP)
	v.SetDefault("replay", d.Replay)
	v.SetDefault("file", d.File)
	v.SetDefault("pipe", d.Pipe)
	v.SetDefault("pipe_path", d.PipePath)
	v.SetDefault("db", d.DB)

	v.SetDefault("string", d.String)
	v.SetDefault("data", d.Data)
	v.SetDefault("trace", d.Trace)
	v.SetDefault("stack", d.Stack)
	v.SetDefault("dllres", d.DllRes)
	v.SetDefault("phyres", d.PhyRes)
	v.SetDefault("phy", d.Phy)
	v.SetDefault("dll", d.DLL)
	v.SetDefault("mac", d.MAC)
	v.SetDefault("nwl", d.NWL)
	v.SetDefault("trans", d.Trans)
	v.SetDefault("session", d.Session)
	v.SetDefault("fwk", d.FWK)

	v.SetDefault("raw", d.Raw)
	v.SetDefault("display", string(d.Display))
	v.SetDefault("color", string(d.Color))
	v.SetDefault("display_interval", d.DisplayInterval)
	v.SetDefault("persist_interval", d.PersistInterval)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
}

// enumHook validates and lower-cases display formats and color modes.
func enumHook() mapstructure.DecodeHookFuncType {
	displayType := reflect.TypeOf(DisplayFormat(""))
	colorType := reflect.TypeOf(ColorMode(""))

	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		raw, _ := data.(string)
		switch to {
		case displayType:
			return ParseDisplayFormat(raw)
		case colorType:
			return ParseColorMode(raw)
		default:
			return data, nil
		}
	}
}
