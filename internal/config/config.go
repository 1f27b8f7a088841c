package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = "nvidiamon.conf"
	configDir  = "/etc"

	defaultInterval        = 1
	defaultSampleInterval  = 500
	defaultHysteresis      = 4
	defaultWarning         = 85
	defaultCritical        = 90
	defaultTrendWindow     = 5
	defaultTrendMinSamples = 10
	defaultTrendThreshold  = 0.05
	defaultDatabase        = "/var/lib/nvidiamon/metrics.db"
	defaultTopic           = "nvidiamon"
	defaultProfile         = "standard"
)

type Config struct {
	Interval        int     `mapstructure:"interval"`
	SampleInterval  int     `mapstructure:"sample_interval"`
	Device          int     `mapstructure:"device"`
	FanProfile      string  `mapstructure:"fan_profile"`
	PowerProfile    string  `mapstructure:"power_profile"`
	Hysteresis      int     `mapstructure:"hysteresis"`
	Profiles        string  `mapstructure:"profiles"`
	Warning         int     `mapstructure:"warning"`
	Critical        int     `mapstructure:"critical"`
	TrendWindow     int     `mapstructure:"trend_window"`
	TrendMinSamples int     `mapstructure:"trend_min_samples"`
	TrendThreshold  float64 `mapstructure:"trend_threshold"`
	Simulate        bool    `mapstructure:"simulate"`
	Metrics         bool    `mapstructure:"metrics"`
	Database        string  `mapstructure:"database"`
	MQTTBroker      string  `mapstructure:"mqtt_broker"`
	MQTTTopic       string  `mapstructure:"mqtt_topic"`
	MQTTQoS         int     `mapstructure:"mqtt_qos"`
	LogLevel        string  `mapstructure:"log_level"`
	Debug           bool    `mapstructure:"debug"`
	Verbose         bool    `mapstructure:"verbose"`
}

// Load reads configuration from flags, the config file and environment
// variables. Flags take precedence over file values, which take precedence
// over defaults. The config file path is resolved from WithConfigFile,
// then the --config flag, then $NVIDIAMON_CONFIG, then /etc/nvidiamon.conf.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	configFlag := fs.String("config", "", "Path to the configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("debug", false, "Enable debug logging")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Int("device", 0, "Index of the GPU to monitor")
	fs.Int("interval", defaultInterval, "Seconds between dashboard updates")
	fs.Int("sample-interval", defaultSampleInterval, "Milliseconds between sensor polls")
	fs.String("fan-profile", defaultProfile, "Fan curve profile name")
	fs.String("power-profile", defaultProfile, "Power curve profile name")
	fs.Bool("simulate", false, "Use the simulated telemetry source")
	fs.Bool("metrics", false, "Enable metrics recording")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path = *configFlag
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	// Command line flags override file values
	fs.Visit(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		switch f.Value.Type() {
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(key, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(key, val)
		default:
			v.Set(key, f.Value.String())
		}
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("sample_interval", defaultSampleInterval)
	v.SetDefault("device", 0)
	v.SetDefault("fan_profile", defaultProfile)
	v.SetDefault("power_profile", defaultProfile)
	v.SetDefault("hysteresis", defaultHysteresis)
	v.SetDefault("profiles", "")
	v.SetDefault("warning", defaultWarning)
	v.SetDefault("critical", defaultCritical)
	v.SetDefault("trend_window", defaultTrendWindow)
	v.SetDefault("trend_min_samples", defaultTrendMinSamples)
	v.SetDefault("trend_threshold", defaultTrendThreshold)
	v.SetDefault("simulate", false)
	v.SetDefault("metrics", false)
	v.SetDefault("database", defaultDatabase)
	v.SetDefault("mqtt_broker", "")
	v.SetDefault("mqtt_topic", defaultTopic)
	v.SetDefault("mqtt_qos", 0)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

// Validate checks the loaded configuration for values that cannot be
// corrected at runtime
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Interval < 1 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if c.SampleInterval < 1 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.SampleInterval)
	}

	if c.Device < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "device index must not be negative")
	}

	if c.Warning >= c.Critical {
		return errFactory.WithData(errors.ErrInvalidConfig, "warning threshold must be below critical")
	}

	if c.TrendWindow < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "trend window must be at least 1")
	}

	if c.TrendMinSamples < 2*c.TrendWindow {
		return errFactory.WithData(errors.ErrInvalidConfig, "trend_min_samples must cover two trend windows")
	}

	if c.TrendThreshold < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "trend threshold must not be negative")
	}

	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return errFactory.WithData(errors.ErrInvalidConfig, "mqtt_qos must be 0, 1 or 2")
	}

	if c.Metrics && c.Database == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "metrics enabled without a database path")
	}

	return nil
}

// EffectiveLogLevel resolves the log level from the level key and the
// debug/verbose shortcuts. Debug wins over verbose, verbose over log_level.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return string(LogLevelDebug)
	}
	if c.Verbose && LogLevel(c.LogLevel) != LogLevelDebug {
		return string(LogLevelInfo)
	}

	return c.LogLevel
}
