// pcmflash: GM VPW PCM reflashing and diagnostics tool
// Copyright (C) 2026  the pcmflash authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pcmflash/internal/cli/ui"
	"pcmflash/internal/config"
	"pcmflash/internal/device"
	"pcmflash/internal/logging"
	"pcmflash/internal/session"
)

var (
	deviceType = flag.String("device", "", "scantool type: elm or avt (default from config)")
	serialPort = flag.String("port", "", "serial port for the elm device")
	imagePath  = flag.String("image", "", "flash image to write")
	outPath    = flag.String("out", "", "file to save a read flash image to (default pcm-<time>.bin)")
	newVin     = flag.String("vin", "", "VIN to write with the write-vin action")
	verbose    = flag.Bool("v", false, "log wire-level detail")
)

// uiLogger routes session output into the TUI log pane.
type uiLogger struct {
	p       *tea.Program
	verbose bool
}

func (l *uiLogger) User(msg string) {
	l.p.Send(ui.LogMsg{Line: msg})
}

func (l *uiLogger) Debug(msg string) {
	if l.verbose {
		l.p.Send(ui.LogMsg{Line: "  " + msg})
	}
}

func main() {
	flag.Parse()

	cfg := config.Load()
	if *deviceType != "" {
		cfg.DeviceType = *deviceType
	}
	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}

	base := logging.NewStderr(*verbose)
	dev, err := device.Open(cfg.DeviceType, cfg.SerialPort, base.Entry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "device: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// The program, logger and session refer to each other; the dispatch
	// closure resolves the cycle through these variables.
	var (
		p *tea.Program
		s *session.Session
	)

	model := ui.NewModel()
	model.Dispatch = func(action ui.Action) {
		go runAction(ctx, p, s, cfg, action)
	}
	p = tea.NewProgram(model, tea.WithAltScreen())

	log := &uiLogger{p: p, verbose: *verbose}
	s = session.New(dev, log)
	s.Progress = func(percent int) {
		p.Send(ui.ProgressMsg{Percent: percent})
	}

	// A signal mid-flash must still run the recovery path.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
		s.Close()
		os.Exit(1)
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ui: %v\n", err)
	}

	cancel()
	s.Close()
}

func runAction(ctx context.Context, p *tea.Program, s *session.Session, cfg *config.Config, action ui.Action) {
	label := "operation"
	var err error

	switch action {
	case ui.ActionIdentifiers:
		label = "identifier sweep"
		err = runIdentifiers(p, s)
	case ui.ActionReadFlash:
		label = "flash read"
		err = runReadFlash(ctx, p, s, cfg)
	case ui.ActionWriteFlash:
		label = "flash write"
		err = runWriteFlash(ctx, s, cfg)
	case ui.ActionWriteVin:
		label = "VIN write"
		err = runWriteVin(s)
	case ui.ActionRecover:
		label = "recovery"
		s.Recover()
	}

	p.Send(ui.OpDoneMsg{Label: label, Err: err})
}

func runIdentifiers(p *tea.Program, s *session.Session) error {
	vin := s.QueryVin()
	if !vin.Ok() {
		return fmt.Errorf("VIN: %s (%s)", vin.Status, vin.Message)
	}
	serial := s.QuerySerial()
	bcc := s.QueryBcc()
	mec := s.QueryMec()
	osID := s.QueryOperatingSystemID()

	p.Send(ui.IdentifiersMsg{
		Vin:    vin.Value,
		Serial: serial.Value,
		Bcc:    bcc.Value,
		Mec:    mec.Value,
		OsID:   osID.Value,
	})
	return nil
}

// prepare unlocks the PCM and raises the bus speed when allowed.
func prepare(s *session.Session, cfg *config.Config, info session.PcmInfo) error {
	if r := s.Unlock(info.KeyAlgorithmID); !r.Ok() {
		return fmt.Errorf("unlock: %s (%s)", r.Status, r.Message)
	}
	if cfg.Enable4x {
		if r := s.NegotiateHighSpeed(); !r.Ok() {
			return fmt.Errorf("4x negotiation: %s (%s)", r.Status, r.Message)
		}
	}
	return nil
}

func runReadFlash(ctx context.Context, p *tea.Program, s *session.Session, cfg *config.Config) error {
	info := session.DefaultPcmInfo

	if err := prepare(s, cfg, info); err != nil {
		return err
	}

	kernel := session.ReadKernelFile(cfg.ReadKernel)
	if !kernel.Ok() {
		return fmt.Errorf("read kernel: %s", kernel.Message)
	}
	if r := s.PCMExecute(ctx, kernel.Value, info.KernelBaseAddress); !r.Ok() {
		return fmt.Errorf("kernel upload: %s (%s)", r.Status, r.Message)
	}

	image := s.ReadContents(ctx, info)
	if !image.Ok() {
		return fmt.Errorf("read: %s (%s)", image.Status, image.Message)
	}

	path := *outPath
	if path == "" {
		path = fmt.Sprintf("pcm-%s.bin", time.Now().Format("20060102-150405"))
	}
	if err := os.WriteFile(path, image.Value, 0644); err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	p.Send(ui.LogMsg{Line: fmt.Sprintf("image saved to %s", path)})
	return nil
}

func runWriteFlash(ctx context.Context, s *session.Session, cfg *config.Config) error {
	if *imagePath == "" {
		return fmt.Errorf("no -image given")
	}
	f, err := os.Open(*imagePath)
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}
	defer f.Close()

	info := session.DefaultPcmInfo
	if err := prepare(s, cfg, info); err != nil {
		return err
	}

	if r := s.Write(ctx, true, info, cfg.WriteKernel, f); !r.Ok() {
		return fmt.Errorf("write: %s (%s)", r.Status, r.Message)
	}
	return nil
}

func runWriteVin(s *session.Session) error {
	if *newVin == "" {
		return fmt.Errorf("no -vin given")
	}
	if r := s.Unlock(session.DefaultPcmInfo.KeyAlgorithmID); !r.Ok() {
		return fmt.Errorf("unlock: %s (%s)", r.Status, r.Message)
	}
	if r := s.WriteVin(*newVin); !r.Ok() {
		return fmt.Errorf("%s (%s)", r.Status, r.Message)
	}
	return nil
}
