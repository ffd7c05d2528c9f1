// Command usbipd runs a USB/IP server exporting a small set of reference
// devices (a HID keyboard and a CDC-ACM serial port) configured from a
// TOML, YAML or JSON file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/usbipgo/usbipd/device/keyboard"
	"github.com/usbipgo/usbipd/device/serial"
	"github.com/usbipgo/usbipd/internal/log"
	usbipsrv "github.com/usbipgo/usbipd/internal/server/usbip"
	"github.com/usbipgo/usbipd/registry"
)

// DeviceConfig is one entry of the configured device list.
type DeviceConfig struct {
	Kind      string `help:"Device kind: keyboard or serial." enum:"keyboard,serial" default:"keyboard"`
	BusNum    uint32 `help:"USB/IP bus number." default:"1"`
	DevNum    uint32 `help:"USB/IP device number."`
	IDVendor  uint16 `help:"Override idVendor."`
	IDProduct uint16 `help:"Override idProduct."`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level string `help:"Log level." enum:"trace,debug,info,warn,error" default:"info"`
	File  string `help:"Log file path; empty logs to stdout/stderr."`
	Raw   bool   `help:"Hex-dump raw wire traffic to stdout."`
}

// CLI is the root command, also the kong.Configuration target: every
// field here can be set from a config file as well as a flag.
type CLI struct {
	Config  string          `help:"Path to a TOML/YAML/JSON config file." env:"USBIPD_CONFIG"`
	Server  usbipsrv.Config `embed:"" prefix:"server-"`
	Log     LogConfig       `embed:"" prefix:"log-"`
	Devices []DeviceConfig  `help:"Devices to export." json:"devices"`
}

func main() {
	var cli CLI

	configPath := findUserConfig(os.Args[1:])
	var configResolvers []kong.Option
	if configPath != "" {
		switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
		case ".yaml", ".yml":
			configResolvers = []kong.Option{kong.Configuration(kongyaml.Loader, configPath)}
		case ".toml":
			configResolvers = []kong.Option{kong.Configuration(kongtoml.Loader, configPath)}
		default:
			configResolvers = []kong.Option{kong.Configuration(kong.JSON, configPath)}
		}
	}

	opts := append([]kong.Option{
		kong.Name("usbipd"),
		kong.Description("USB/IP server exporting emulated reference devices."),
		kong.UsageOnError(),
	}, configResolvers...)

	kctx := kong.Parse(&cli, opts...)

	logger, closers, err := log.Setup(cli.Log.Level, cli.Log.File)
	kctx.FatalIfErrorf(err)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	var rawLogger log.RawLogger
	if cli.Log.Raw {
		rawLogger = log.NewRaw(os.Stdout)
	} else {
		rawLogger = log.NewRaw(nil)
	}

	if len(cli.Devices) == 0 {
		cli.Devices = []DeviceConfig{{Kind: "keyboard", BusNum: 1, DevNum: 1}}
	}

	specs, err := buildSpecs(cli.Devices)
	kctx.FatalIfErrorf(err)

	reg := registry.Build(specs)
	srv := usbipsrv.New(cli.Server, logger, rawLogger, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-srv.Ready():
		logger.Info("listening", "addr", srv.Addr())
	case err := <-errCh:
		kctx.FatalIfErrorf(err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		_ = srv.Close()
		<-errCh
	case err := <-errCh:
		kctx.FatalIfErrorf(err)
	}
}

func buildSpecs(devices []DeviceConfig) ([]registry.Spec, error) {
	specs := make([]registry.Spec, 0, len(devices))
	for _, d := range devices {
		switch d.Kind {
		case "keyboard", "":
			_, spec := keyboard.New(keyboard.Options{BusNum: d.BusNum, DevNum: d.DevNum, IDVendor: d.IDVendor, IDProduct: d.IDProduct})
			specs = append(specs, spec)
		case "serial":
			_, spec := serial.New(serial.Options{BusNum: d.BusNum, DevNum: d.DevNum, IDVendor: d.IDVendor, IDProduct: d.IDProduct})
			specs = append(specs, spec)
		default:
			return nil, fmt.Errorf("unknown device kind %q", d.Kind)
		}
	}
	return specs, nil
}

// findUserConfig scans args for --config=PATH or --config PATH ahead of
// the full kong.Parse pass (which needs the path before it can run),
// falling back to USBIPD_CONFIG.
func findUserConfig(args []string) string {
	for i, a := range args {
		if strings.HasPrefix(a, "--config=") {
			return strings.TrimPrefix(a, "--config=")
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("USBIPD_CONFIG")
}
