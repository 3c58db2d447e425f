package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file.
const MaxConfigFileBytes = 1 << 20

// Run modes.
const (
	ModeScanner      = "scanner"
	ModeUARTTest     = "uart-test"
	ModeUARTLoopback = "uart-loopback"
)

// Scanner drivers. bugst and tarm open a serial port; virtual reads
// commands injected through the web console.
const (
	DriverBugst   = "bugst"
	DriverTarm    = "tarm"
	DriverVirtual = "virtual"
)

// Buzzer types.
const (
	BuzzerGPIO = "gpio"
	BuzzerWAV  = "wav"
	BuzzerNone = "none"
)

var ErrConfigPath = errors.New("invalid config path")

// ScannerConfig describes the barcode scanner link and its framing.
type ScannerConfig struct {
	Driver           string `yaml:"driver" toml:"driver" validate:"oneof=bugst tarm virtual"`
	Port             string `yaml:"port" toml:"port" validate:"required_unless=Driver virtual"`
	BaudRate         int    `yaml:"baud_rate" toml:"baud_rate" validate:"gte=1200,lte=921600"`
	ReadTimeoutMs    int    `yaml:"read_timeout_ms" toml:"read_timeout_ms" validate:"gte=1,lte=10000"`
	BufferSize       int    `yaml:"buffer_size" toml:"buffer_size" validate:"gte=8,lte=4096"` // command buffer capacity (bytes)
	Terminators      string `yaml:"terminators" toml:"terminators" validate:"required"`       // bytes that end a line
	RetainTerminator bool   `yaml:"retain_terminator" toml:"retain_terminator"`               // keep the terminator in the buffer
	QueueDepth       int    `yaml:"queue_depth" toml:"queue_depth" validate:"gte=1,lte=1024"` // virtual driver only
}

// IndicatorConfig holds the RGB LED pins (BCM). Active HIGH.
type IndicatorConfig struct {
	RedPin   int `yaml:"red_pin" toml:"red_pin" validate:"gte=0,lte=27"`
	GreenPin int `yaml:"green_pin" toml:"green_pin" validate:"gte=0,lte=27"`
	BluePin  int `yaml:"blue_pin" toml:"blue_pin" validate:"gte=0,lte=27"`
}

// MotorConfig holds the pins of one H-bridge channel.
type MotorConfig struct {
	PWMPin   int `yaml:"pwm_pin" toml:"pwm_pin" validate:"oneof=12 13 18 19"`
	DirPin   int `yaml:"dir_pin" toml:"dir_pin" validate:"gte=0,lte=27"`
	SleepPin int `yaml:"sleep_pin" toml:"sleep_pin" validate:"gte=0,lte=27"` // nSLEEP pin (BCM). 0 = not used.
}

// DriveConfig describes the differential drive.
type DriveConfig struct {
	Left         MotorConfig `yaml:"left" toml:"left"`
	Right        MotorConfig `yaml:"right" toml:"right"`
	PWMClockHz   int         `yaml:"pwm_clock_hz" toml:"pwm_clock_hz" validate:"gte=4688,lte=19200000"`
	PeriodCounts uint32      `yaml:"period_counts" toml:"period_counts" validate:"gte=4500"` // duty values are counts of this period
}

// BuzzerConfig selects how the note pattern is played.
type BuzzerConfig struct {
	Type    string `yaml:"type" toml:"type" validate:"oneof=gpio wav none"`
	Pin     int    `yaml:"pin" toml:"pin" validate:"oneof=12 13 18 19"`
	WAVPath string `yaml:"wav_path" toml:"wav_path" validate:"required_if=Type wav"`
}

// DiagConfig tunes the serial diagnostics modes.
type DiagConfig struct {
	IntervalMs     int `yaml:"interval_ms" toml:"interval_ms" validate:"gte=1"`
	Count          int `yaml:"count" toml:"count" validate:"gte=0"` // 0 = until interrupted
	LoopbackLength int `yaml:"loopback_length" toml:"loopback_length" validate:"gte=1,lte=65536"`
}

// WebConfig holds the web console defaults; the console starts with -web.
type WebConfig struct {
	Port int `yaml:"port" toml:"port" validate:"gte=1,lte=65535"`
}

// MQTTConfig enables event telemetry when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker" toml:"broker"`
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix"`
	Username    string `yaml:"username" toml:"username"`
	Password    string `yaml:"password" toml:"password"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	Mode       string `yaml:"mode" toml:"mode" validate:"oneof=scanner uart-test uart-loopback"`
	DebugLevel int    `yaml:"debug_level" toml:"debug_level" validate:"gte=0,lte=4"` // debug level 0-4 (0=notices, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool   `yaml:"mock_gpio" toml:"mock_gpio"`                            // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	LogFile    string `yaml:"log_file" toml:"log_file"`                              // optional rotating JSON log
}

// Config aggregates all application configuration.
type Config struct {
	Scanner   ScannerConfig   `yaml:"scanner" toml:"scanner"`
	Indicator IndicatorConfig `yaml:"indicator" toml:"indicator"`
	Drive     DriveConfig     `yaml:"drive" toml:"drive"`
	Buzzer    BuzzerConfig    `yaml:"buzzer" toml:"buzzer"`
	Diag      DiagConfig      `yaml:"diag" toml:"diag"`
	Web       WebConfig       `yaml:"web" toml:"web"`
	MQTT      MQTTConfig      `yaml:"mqtt" toml:"mqtt"`
	Defaults  DefaultsConfig  `yaml:"defaults" toml:"defaults"`
}

// ValidateConfigPath checks that path names a .yaml or .toml file directly
// inside a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrConfigPath)
	}

	clean := filepath.Clean(path)
	switch strings.ToLower(filepath.Ext(clean)) {
	case ".yaml", ".toml":
	default:
		return fmt.Errorf("%w: %s: extension must be .yaml or .toml", ErrConfigPath, path)
	}

	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("%w: %s: file must be in a configs/ directory", ErrConfigPath, path)
	}
	return nil
}

// Load reads a config file from disk.
func Load(path string) (*Config, error) {
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS reads a YAML or TOML config file (by extension) from fsys,
// applies defaults and validates the result.
func LoadFS(fsys afero.Fs, path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file %s is %d bytes, max %d", path, info.Size(), MaxConfigFileBytes)
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal toml: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when every field is left empty.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Scanner.Driver == "" {
		c.Scanner.Driver = DriverBugst
	}
	if c.Scanner.Port == "" && c.Scanner.Driver != DriverVirtual {
		c.Scanner.Port = "/dev/serial0"
	}
	if c.Scanner.BaudRate <= 0 {
		c.Scanner.BaudRate = 9600
	}
	if c.Scanner.ReadTimeoutMs <= 0 {
		c.Scanner.ReadTimeoutMs = 100
	}
	if c.Scanner.BufferSize <= 0 {
		c.Scanner.BufferSize = 64
	}
	if c.Scanner.Terminators == "" {
		c.Scanner.Terminators = "\r\n"
	}
	if c.Scanner.QueueDepth <= 0 {
		c.Scanner.QueueDepth = 16
	}

	if c.Indicator == (IndicatorConfig{}) {
		c.Indicator = IndicatorConfig{RedPin: 17, GreenPin: 27, BluePin: 22}
	}

	if c.Drive.Left == (MotorConfig{}) {
		c.Drive.Left = MotorConfig{PWMPin: 12, DirPin: 5, SleepPin: 6}
	}
	if c.Drive.Right == (MotorConfig{}) {
		c.Drive.Right = MotorConfig{PWMPin: 13, DirPin: 16, SleepPin: 26}
	}
	if c.Drive.PWMClockHz <= 0 {
		c.Drive.PWMClockHz = 1_500_000 // 100 Hz with the default period
	}
	if c.Drive.PeriodCounts == 0 {
		c.Drive.PeriodCounts = 15000
	}

	if c.Buzzer.Type == "" {
		c.Buzzer.Type = BuzzerNone
	}
	if c.Buzzer.Pin == 0 {
		c.Buzzer.Pin = 18
	}
	if c.Buzzer.Type == BuzzerWAV && c.Buzzer.WAVPath == "" {
		c.Buzzer.WAVPath = "note_pattern.wav"
	}

	if c.Diag.IntervalMs <= 0 {
		c.Diag.IntervalMs = 100
	}
	if c.Diag.LoopbackLength <= 0 {
		c.Diag.LoopbackLength = 256
	}

	if c.Web.Port <= 0 {
		c.Web.Port = 8080
	}

	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "scango"
	}

	if c.Defaults.Mode == "" {
		c.Defaults.Mode = ModeScanner
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Drive.Left.PWMPin == c.Drive.Right.PWMPin {
		return fmt.Errorf("invalid config: drive.left and drive.right share PWM pin %d", c.Drive.Left.PWMPin)
	}
	if c.Buzzer.Type == BuzzerGPIO {
		for _, p := range []int{c.Drive.Left.PWMPin, c.Drive.Right.PWMPin} {
			if pwmChannel(p) == pwmChannel(c.Buzzer.Pin) {
				return fmt.Errorf("invalid config: buzzer pin %d shares a PWM channel with drive pin %d", c.Buzzer.Pin, p)
			}
		}
	}
	if c.Scanner.Driver == DriverVirtual && c.Defaults.Mode != ModeScanner {
		return fmt.Errorf("invalid config: mode %s needs a serial scanner driver", c.Defaults.Mode)
	}
	return nil
}

// pwmChannel returns the hardware PWM channel of a BCM pin.
func pwmChannel(pin int) int {
	switch pin {
	case 12, 18:
		return 0
	default:
		return 1
	}
}

// ReadTimeout returns the serial read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Scanner.ReadTimeoutMs) * time.Millisecond
}

// DiagInterval returns the transmit test pacing.
func (c *Config) DiagInterval() time.Duration {
	return time.Duration(c.Diag.IntervalMs) * time.Millisecond
}

// WebAddr returns the listen address for a port (0 = configured port).
func (c *Config) WebAddr(port int) string {
	if port <= 0 {
		port = c.Web.Port
	}
	return fmt.Sprintf(":%d", port)
}
