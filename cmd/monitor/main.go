// pcmflash: GM VPW PCM reflashing and diagnostics tool
// Copyright (C) 2026  the pcmflash authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// cmd/monitor: passive bus monitor. Dumps every frame the scantool hears
// (runt frames shorter than a header are only counted) and serves counters
// over HTTP for a Prometheus scrape.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pcmflash/internal/config"
	"pcmflash/internal/device"
	"pcmflash/internal/logging"
	"pcmflash/pkg/vpw"
)

var (
	deviceType = flag.String("device", "", "scantool type: elm or avt (default from config)")
	serialPort = flag.String("port", "", "serial port for the elm device")
	listenAddr = flag.String("listen", "", "status/metrics listen address (default from config)")
	quiet      = flag.Bool("quiet", false, "suppress the frame dump, keep the endpoint")
)

var (
	framesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pcmflash_monitor_frames_total",
		Help: "Frames observed on the VPW bus, by mode byte.",
	}, []string{"mode"})

	bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pcmflash_monitor_bytes_total",
		Help: "Total frame bytes observed on the VPW bus.",
	})

	runtFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pcmflash_monitor_runt_frames_total",
		Help: "Frames shorter than a VPW header.",
	})
)

func main() {
	flag.Parse()

	cfg := config.Load()
	if *deviceType != "" {
		cfg.DeviceType = *deviceType
	}
	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}
	if *listenAddr != "" {
		cfg.MonitorAddr = *listenAddr
	}

	log := logging.NewStderr(true)
	dev, err := device.Open(cfg.DeviceType, cfg.SerialPort, log.Entry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "device: %v\n", err)
		os.Exit(1)
	}
	defer dev.Dispose()

	prometheus.MustRegister(framesTotal, bytesTotal, runtFrames)

	start := time.Now()
	go serve(cfg.MonitorAddr, dev, start)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		dev.Dispose()
		os.Exit(0)
	}()

	fmt.Printf("monitoring VPW bus via %s, status on %s\n", cfg.DeviceType, cfg.MonitorAddr)

	dev.SetTimeout(device.ScenarioRead)
	for {
		frame := dev.ReceiveFrame()
		if frame == nil {
			continue
		}
		b := frame.Bytes()
		bytesTotal.Add(float64(len(b)))
		if len(b) < 4 {
			runtFrames.Inc()
			continue
		}
		framesTotal.WithLabelValues(fmt.Sprintf("%02X", b[3])).Inc()

		if !*quiet {
			fmt.Printf("%s  %s\n", frame.Timestamp.Format("15:04:05.000"), dumpFrame(b))
		}
	}
}

// dumpFrame renders a frame as spaced hex with a short mode note.
func dumpFrame(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	if note := modeNote(b[3]); note != "" {
		sb.WriteString("  (" + note + ")")
	}
	return sb.String()
}

func modeNote(mode byte) string {
	switch mode {
	case vpw.ModeTesterPresent:
		return "tester present"
	case vpw.ModeReadBlock, vpw.ModeReadBlockReply:
		return "block read"
	case vpw.ModeWriteBlock, vpw.ModeWriteBlockReply:
		return "block write"
	case vpw.ModeSeedKey, vpw.ModeSeedKeyReply:
		return "seed/key"
	case vpw.ModeBlockData:
		return "block data"
	case vpw.ModeHighSpeedCheck, vpw.ModeBeginHighSpeed, vpw.ModeHighSpeedReply:
		return "high speed"
	}
	return ""
}

// serve exposes /status and /metrics.
func serve(addr string, dev device.Device, start time.Time) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"uptime_seconds": int(time.Since(start).Seconds()),
			"supports_4x":    dev.Supports4x(),
			"max_send_size":  dev.MaxSendSize(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "status endpoint: %v\n", err)
	}
}
