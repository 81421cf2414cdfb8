// go-xbee
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-xbee.
//
// go-xbee is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-xbee is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-xbee; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command xbeectl talks to an XBee radio in API mode: it discovers peers,
// reads and writes AT parameters and transmits text.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/detection"
	_ "github.com/ZaparooProject/go-xbee/detection/spi"
	_ "github.com/ZaparooProject/go-xbee/detection/uart"
	"github.com/ZaparooProject/go-xbee/service"
	"github.com/ZaparooProject/go-xbee/transport/spi"
	"github.com/ZaparooProject/go-xbee/transport/uart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// flagValues holds the command line before it is merged into config.
type flagValues struct {
	configPath   string
	devicePath   string
	apiMode      string
	attentionPin string
	logDir       string
	metricsAddr  string
	timeout      time.Duration
	baudRate     int
	debug        bool
}

// Package-level flag variables
var flags flagValues

func init() {
	registerFlags(flag.CommandLine, &flags)
	flag.Usage = usage
}

func registerFlags(fs *flag.FlagSet, f *flagValues) {
	fs.StringVar(&f.configPath, "config", "", "TOML config file")
	fs.StringVar(&f.devicePath, "device", "", "Device path (auto-detect if empty)")
	fs.StringVar(&f.apiMode, "api-mode", "", "Radio API mode: api or escaped")
	fs.StringVar(&f.attentionPin, "attn", "", "GPIO wired to nATTN when using SPI")
	fs.StringVar(&f.logDir, "log-dir", "", "Write a session log with wire dumps to this directory")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9102)")
	fs.DurationVar(&f.timeout, "timeout", 15*time.Second, "Time allowed for each command")
	fs.IntVar(&f.baudRate, "baud", uart.DefaultBaudRate, "Serial baud rate")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug output")
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	_, _ = fmt.Fprint(out, commandHelp)
	_, _ = fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

// parseConfig merges defaults, the config file and the flags that were set
// explicitly, in that order.
func parseConfig(fs *flag.FlagSet, f *flagValues) (*config, error) {
	cfg := defaultConfig()
	if f.configPath != "" {
		loaded, err := loadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "device":
			cfg.device = f.devicePath
		case "baud":
			cfg.baudRate = f.baudRate
		case "debug":
			cfg.debug = f.debug
		case "attn":
			cfg.attentionPin = f.attentionPin
		case "metrics-addr":
			cfg.metricsAddr = f.metricsAddr
		case "api-mode":
			mode, perr := xbee.ParseAPIMode(f.apiMode)
			if perr != nil {
				err = perr
				return
			}
			cfg.net.APIMode = mode
		}
	})
	if err != nil {
		return nil, err
	}
	cfg.timeout = f.timeout

	// Enable debug output if --debug flag is set
	if cfg.debug {
		xbee.SetDebugEnabled(true)
		cfg.net.Debug = true
	}
	return cfg, cfg.validate()
}

// newTransportFromDevice creates a new transport from a detected device.
func newTransportFromDevice(device detection.DeviceInfo, cfg *config) (xbee.Transport, error) {
	switch strings.ToLower(device.Transport) {
	case "uart":
		return openUART(device.Path, cfg)
	case "spi":
		pin := cfg.attentionPin
		if pin == "" {
			pin = device.Metadata["attn_pin"]
		}
		return openSPI(device.Path, pin)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", device.Transport)
	}
}

// newTransport creates a transport from a device path. Paths naming an
// SPI bus use SPI, everything else is treated as a serial port.
func newTransport(path string, cfg *config) (xbee.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}
	if strings.Contains(strings.ToLower(path), "spi") {
		return openSPI(path, cfg.attentionPin)
	}
	return openUART(path, cfg)
}

func openUART(path string, cfg *config) (xbee.Transport, error) {
	ucfg := uart.DefaultConfig()
	ucfg.BaudRate = cfg.baudRate
	transport, err := uart.NewWithConfig(path, ucfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport for %s: %w", path, err)
	}
	return transport, nil
}

func openSPI(path, attentionPin string) (xbee.Transport, error) {
	scfg := spi.DefaultConfig()
	scfg.AttentionPin = attentionPin
	transport, err := spi.NewWithConfig(path, scfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create SPI transport for %s: %w", path, err)
	}
	return transport, nil
}

// resolveDevice returns the configured device, or the most confident radio
// found by auto-detection.
func resolveDevice(ctx context.Context, cfg *config) (detection.DeviceInfo, error) {
	if cfg.device != "" {
		return detection.DeviceInfo{Path: cfg.device}, nil
	}
	if cfg.debug {
		_, _ = fmt.Println("Auto-detecting XBee devices...")
	}
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return detection.DeviceInfo{}, fmt.Errorf("auto-detect: %w", err)
	}
	return devices[0], nil
}

func connect(ctx context.Context, cfg *config) (*service.Runner, error) {
	device, err := resolveDevice(ctx, cfg)
	if err != nil {
		return nil, err
	}

	open := func() (xbee.Transport, error) {
		if device.Transport == "" {
			return newTransport(device.Path, cfg)
		}
		return newTransportFromDevice(device, cfg)
	}
	if cfg.debug {
		_, _ = fmt.Printf("Opening device: %s\n", device.Path)
	}
	transport, err := open()
	if err != nil {
		return nil, err
	}

	r, err := service.New(transport, cfg.svc, xbee.WithConfig(cfg.net))
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to start radio: %w", err)
	}
	r.SetReopen(func(context.Context) (xbee.Transport, error) { return open() })
	if err := r.Start(ctx); err != nil {
		_ = r.Stop()
		return nil, fmt.Errorf("failed to start radio: %w", err)
	}
	return r, nil
}

func run(ctx context.Context, cfg *config, args []string) error {
	if len(args) == 0 {
		return errNoCommand
	}
	if args[0] == "detect" {
		return runDetect(ctx, os.Stdout)
	}

	r, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Stop(); err != nil && !errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	if cfg.metricsAddr != "" {
		shutdown := serveMetrics(r, cfg.metricsAddr)
		defer shutdown()
	}

	a := &app{runner: r, out: os.Stdout, timeout: cfg.timeout, cfg: cfg}
	return a.run(ctx, args)
}

// serveMetrics exposes the runner's collector over HTTP until the returned
// function is called.
func serveMetrics(r *service.Runner, addr string) func() {
	srv := &http.Server{Addr: addr, Handler: metricsHandler(r), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(os.Stderr, "Metrics server: %v\n", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func metricsHandler(r *service.Runner) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(service.NewCollector(r, prometheus.Labels{"transport": string(r.Transport().Type())}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig(flag.CommandLine, &flags)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if flags.logDir != "" {
		path, err := xbee.InitSessionLog(flags.logDir)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = xbee.CloseSessionLog() }()
		_, _ = fmt.Fprintf(os.Stderr, "Session log: %s\n", path)
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args()); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// User requested shutdown, exit cleanly
			return 0
		case errors.Is(err, errNoCommand), errors.Is(err, errUsage):
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			flag.Usage()
			return 2
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
