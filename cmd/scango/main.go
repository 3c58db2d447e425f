package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/ScanGo/internal/config"
	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/diag"
	"github.com/cjeanneret/ScanGo/internal/hw/buzzer"
	"github.com/cjeanneret/ScanGo/internal/hw/gpio"
	"github.com/cjeanneret/ScanGo/internal/hw/indicator"
	"github.com/cjeanneret/ScanGo/internal/hw/motor"
	"github.com/cjeanneret/ScanGo/internal/hw/uart"
	"github.com/cjeanneret/ScanGo/internal/logic/command"
	"github.com/cjeanneret/ScanGo/internal/logic/control"
	"github.com/cjeanneret/ScanGo/internal/logic/dispatch"
	"github.com/cjeanneret/ScanGo/internal/logic/motion"
	"github.com/cjeanneret/ScanGo/internal/scanner"
	"github.com/cjeanneret/ScanGo/internal/telemetry"
	"github.com/cjeanneret/ScanGo/internal/web"
)

// configuredPort makes -web= pick web.port from the config file.
const configuredPort = -1

// openPort is replaced in tests.
var openPort uart.Opener = uart.Open

func main() {
	webPort := &webPortFlag{defaultPort: configuredPort}
	flag.Var(webPort, "web", "start web console; -web= for the configured port, -web 8980 for a custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	mode := flag.String("mode", "", "override run mode: scanner, uart-test or uart-loopback")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := applyMode(cfg, *mode); err != nil {
		log.Fatalf("invalid -mode: %v", err)
	}

	var logWriters []io.Writer
	if cfg.Defaults.LogFile != "" {
		logWriters = append(logWriters, debug.FileWriter(cfg.Defaults.LogFile))
	}
	debug.Init(cfg.Defaults.DebugLevel, logWriters...)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mode", cfg.Defaults.Mode)

	switch cfg.Defaults.Mode {
	case config.ModeUARTTest:
		err = runTransmitTest(ctx, cfg)
	case config.ModeUARTLoopback:
		err = runLoopbackTest(ctx, cfg)
	default:
		err = runScanner(ctx, cfg, webPort)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%s: %v", cfg.Defaults.Mode, err)
	}
}

// runScanner wires the hardware and runs the command loop until ctx ends.
func runScanner(ctx context.Context, cfg *config.Config, webPort *webPortFlag) error {
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO failed: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing indicator, drive and buzzer")
	led := indicator.NewRGBGPIO(gpioDriver, cfg.Indicator.RedPin, cfg.Indicator.GreenPin, cfg.Indicator.BluePin)
	debug.PrintStruct("Indicator config", cfg.Indicator)
	drive := motor.NewPair(
		motor.NewMotor(gpioDriver, motorConfig(cfg.Drive.Left, cfg.Drive)),
		motor.NewMotor(gpioDriver, motorConfig(cfg.Drive.Right, cfg.Drive)),
	)
	debug.PrintStruct("Drive config", cfg.Drive)
	defer func() {
		if err := drive.Stop(); err != nil {
			log.Printf("stopping drive failed: %v", err)
		}
		if err := led.SetColor(indicator.Off); err != nil {
			log.Printf("turning indicator off failed: %v", err)
		}
	}()

	clock := clockwork.NewRealClock()
	player := newPlayer(gpioDriver, cfg, clock)
	debug.Value("Buzzer type", cfg.Buzzer.Type)

	debug.Step(3, "Opening scanner")
	src, queue, err := openScanner(cfg)
	if err != nil {
		return err
	}
	defer src.Close()
	debug.Value("Scanner driver", cfg.Scanner.Driver)
	debug.Value("Scanner port", cfg.Scanner.Port)

	reporter := control.NewReporter(clock, control.LogSink{})
	if cfg.MQTT.Broker != "" {
		pub := telemetry.NewPublisher(telemetry.Config{
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		}, telemetry.DefaultClientFactory)
		if err := pub.Start(); err != nil {
			// Telemetry is optional; the robot still runs without a broker.
			debug.Warn("MQTT disabled: %v", err)
		} else {
			defer pub.Stop()
			reporter.AddSink(pub)
		}
	}

	table := command.DefaultTable()
	dispatcher := dispatch.NewDispatcher(led, player, motion.NewController(drive, clock), reporter)
	reader := scanner.NewReader(src, framing(cfg.Scanner))
	loop := control.NewLoop(reader, table, dispatcher, reporter, cfg.Scanner.BufferSize)

	g, gctx := errgroup.WithContext(ctx)

	if webPort.enabled() {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		reporter.AddSink(broadcaster)

		// A nil *scanner.Queue must not become a non-nil interface.
		var injector web.Injector
		if queue != nil {
			injector = queue
		}
		srv, err := web.NewServer(cfg.WebAddr(webPort.port()), broadcaster, injector, table)
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	g.Go(func() error {
		if err := loop.Run(gctx); err != nil {
			return err
		}
		// Scanner closed; nothing left to serve.
		return context.Canceled
	})

	debug.Summary("Waiting for barcode commands")
	return g.Wait()
}

// runTransmitTest sends the byte ramp until Diag.Count bytes were sent or ctx ends.
func runTransmitTest(ctx context.Context, cfg *config.Config) error {
	port, err := openPort(uartConfig(cfg.Scanner, cfg.ReadTimeout()))
	if err != nil {
		return err
	}
	defer port.Close()

	sent, err := diag.TransmitRamp(ctx, port, nil, cfg.DiagInterval(), cfg.Diag.Count)
	debug.Info("Transmitted %d bytes", sent)
	return err
}

// runLoopbackTest runs one loopback pass and fails on any mismatch.
func runLoopbackTest(ctx context.Context, cfg *config.Config) error {
	port, err := openPort(uartConfig(cfg.Scanner, cfg.ReadTimeout()))
	if err != nil {
		return err
	}
	defer port.Close()

	report, err := diag.Loopback(ctx, port, cfg.Diag.LoopbackLength)
	if err != nil {
		return err
	}
	if !report.Passed() {
		return fmt.Errorf("loopback failed: %d mismatches (checksum 0x%04X, want 0x%04X)",
			len(report.Mismatches), report.RXChecksum, report.TXChecksum)
	}
	debug.Notice("Loopback passed: %d bytes, checksum 0x%04X", report.Length, report.TXChecksum)
	return nil
}

// applyMode overrides defaults.mode from the command line and revalidates.
func applyMode(cfg *config.Config, mode string) error {
	if mode == "" {
		return nil
	}
	prev := cfg.Defaults.Mode
	cfg.Defaults.Mode = mode
	if err := cfg.Validate(); err != nil {
		cfg.Defaults.Mode = prev
		return err
	}
	return nil
}

// openScanner returns the command source. The virtual driver also returns
// its queue so the web console can inject commands.
func openScanner(cfg *config.Config) (io.ReadCloser, *scanner.Queue, error) {
	if cfg.Scanner.Driver == config.DriverVirtual {
		q := scanner.NewQueue(cfg.Scanner.QueueDepth)
		return q, q, nil
	}
	port, err := openPort(uartConfig(cfg.Scanner, cfg.ReadTimeout()))
	if err != nil {
		return nil, nil, fmt.Errorf("open scanner failed: %w", err)
	}
	return port, nil, nil
}

func uartConfig(sc config.ScannerConfig, timeout time.Duration) uart.Config {
	return uart.Config{
		Driver:      sc.Driver,
		Path:        sc.Port,
		BaudRate:    sc.BaudRate,
		ReadTimeout: timeout,
	}
}

func framing(sc config.ScannerConfig) scanner.Framing {
	return scanner.Framing{
		Terminators: []byte(sc.Terminators),
		Retain:      sc.RetainTerminator,
	}
}

func motorConfig(m config.MotorConfig, d config.DriveConfig) motor.Config {
	return motor.Config{
		PWMPin:   m.PWMPin,
		DirPin:   m.DirPin,
		SleepPin: m.SleepPin,
		Period:   d.PeriodCounts,
		ClockHz:  d.PWMClockHz,
	}
}

// newPlayer selects a buzzer implementation based on configuration.
func newPlayer(g gpio.Driver, cfg *config.Config, clock clockwork.Clock) buzzer.Player {
	switch cfg.Buzzer.Type {
	case config.BuzzerGPIO:
		return buzzer.NewGPIO(g, cfg.Buzzer.Pin, clock, buzzer.NotePattern)
	case config.BuzzerWAV:
		return buzzer.NewWAV(cfg.Buzzer.WAVPath, buzzer.NotePattern)
	default:
		return buzzer.None{}
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= → defaultPort, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

func (w *webPortFlag) enabled() bool { return w.val != 0 }
