/*
DESCRIPTION
  vidrec is a synchronized video acquisition daemon for the Raspberry Pi. It
  records h.264 video from the Pi camera for a configured duration, writing
  per-frame timestamps and TTL pulse records alongside the video in a dated
  session directory. SIGINT or SIGTERM stops the recording gracefully.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main implements the vidrec daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	_ "github.com/kidoman/embd/host/rpi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/vidrec/recorder"
	"github.com/ausocean/vidrec/recorder/config"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "/var/log/vidrec/vidrec.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

// Misc constants.
const (
	defaultConfigPath = "config.json"
	defaultPidPath    = "/var/run/vidrec.pid"
	envConfig         = "VIDREC_CONFIG"
	pkg               = "vidrec: "
)

// Exit statuses.
const (
	exitOK = iota
	exitConfig
	exitIO
	exitDevice
)

func main() {
	os.Exit(run())
}

// run holds the body of main so that deferred cleanup happens before the
// process exits with a status.
func run() int {
	// A .env file may supply environment overrides, e.g. VIDREC_CONFIG.
	godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "path to the JSON config file")
	pidPath := flag.String("pidfile", defaultPidPath, "path of the pidfile, used by vidrec-stop")
	logFile := flag.String("log", logPath, "path of the rotated log file")
	hours := flag.Int("hours", 0, "number of hours to record, overriding the config duration")
	minutes := flag.Int("minutes", 0, "number of minutes to record, overriding the config duration")
	seconds := flag.Int("seconds", 0, "number of seconds to record, overriding the config duration")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return exitOK
	}

	if v := os.Getenv(envConfig); v != "" && *configPath == defaultConfigPath {
		*configPath = v
	}

	// Create lumberjack logger to handle rotation of the log file.
	fileLog := &lumberjack.Logger{
		Filename:   *logFile,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}

	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stdout), logSuppress)

	// Nothing is logged until the config has had a chance to name its own log
	// path; a load failure falls back to the default path.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(pkg+"could not load config", "path", *configPath, "error", err.Error())
		return exitConfig
	}
	cfg.Logger = log

	// The config may name its own log path; rotation carries on there unless
	// the flag overrode it.
	if cfg.Log.Path != "" && *logFile == logPath {
		fileLog.Filename = cfg.Log.Path
	}

	log.Info("starting vidrec", "version", version)

	if d := *hours*3600 + *minutes*60 + *seconds; d > 0 {
		log.Info("using command line duration", "seconds", d)
		cfg.DurationSeconds = uint(d)
	}

	err = cfg.Validate()
	if err != nil {
		log.Error(pkg+"config is bad", "error", err.Error())
		return exitConfig
	}
	log.SetLevel(cfg.LogLevel())

	err = writePidFile(*pidPath)
	if err != nil {
		log.Warning(pkg+"could not write pidfile", "path", *pidPath, "error", err.Error())
	} else {
		defer os.Remove(*pidPath)
	}

	// Configuration is read once at startup; note mid-run edits so that an
	// operator knows they have not applied.
	watcher := watchConfig(*configPath, log)
	if watcher != nil {
		defer watcher.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := recorder.New(cfg)
	if err != nil {
		log.Error(pkg+"could not initialise recorder", "error", err.Error())
		return exitConfig
	}

	daemon.SdNotify(false, daemon.SdNotifyReady)
	err = rec.Run(ctx)
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	switch {
	case err == nil:
		log.Info("recording complete", "dir", rec.SessionDir(), "frames", rec.Frames())
		return exitOK
	case errors.Is(err, recorder.ErrDevice):
		log.Error(pkg+"device failure", "error", err.Error())
		return exitDevice
	default:
		log.Error(pkg+"recording failed", "error", err.Error())
		return exitIO
	}
}

// writePidFile records the process id for vidrec-stop.
func writePidFile(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// watchConfig watches the config file, logging a warning when it changes;
// changes do not apply until the next run.
func watchConfig(path string, log logging.Logger) *fsnotify.Watcher {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warning(pkg+"could not create config watcher", "error", err.Error())
		return nil
	}

	err = w.Add(path)
	if err != nil {
		log.Warning(pkg+"could not watch config file", "error", err.Error())
		w.Close()
		return nil
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) {
					log.Warning("config file changed, changes apply from the next run", "file", ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warning(pkg+"config watcher error", "error", err.Error())
			}
		}
	}()

	return w
}
