// Package cmd parse args to configure application.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"

	"go.uber.org/zap"

	"telecall/logging"
	"telecall/telecall"
	"telecall/types/message"
)

// Run starts the application.
func Run() {
	config, err := SetupConfig(os.Stderr, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(config.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := telecall.New(config, logger)
	if err != nil {
		logger.Error("failed to create application", zap.Error(err))
		os.Exit(1)
	}
	if err = app.Start(ctx); err != nil {
		logger.Error("application stopped", zap.String("mode", string(config.Mode)), zap.Error(err))
		os.Exit(1)
	}
}

// SetupConfig sets up and returns the configuration.
func SetupConfig(w io.Writer, args []string) (telecall.Config, error) {
	config, err := Parse(w, args)
	if err != nil {
		return config, err
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Parse parses the command line arguments. Values come from the file given
// by -config and TELECALL_ environment variables; flags set explicitly
// override both.
func Parse(w io.Writer, args []string) (telecall.Config, error) {
	d := telecall.DefaultConfig()
	var (
		path        string
		mode        string
		debug       bool
		port        int
		keyFile     string
		certFile    string
		secret      string
		echo        bool
		url         string
		token       string
		appointment string
		room        string
		user        string
		role        string
		callLog     string
		metricsPort int
	)

	fs := flag.NewFlagSet("telecall", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.StringVar(&path, "config", "", "config file path")
	fs.StringVar(&mode, "mode", string(d.Mode), "relay or call")
	fs.BoolVar(&debug, "debug", false, "debug mode")
	fs.IntVar(&port, "port", d.Relay.Port, "relay listening port")
	fs.StringVar(&keyFile, "key", "", "key file path")
	fs.StringVar(&certFile, "cert", "", "cert file path")
	fs.StringVar(&secret, "secret", "", "token signing secret")
	fs.BoolVar(&echo, "echo", false, "relay messages back to their sender")
	fs.StringVar(&url, "url", d.Signal.URL, "relay websocket url")
	fs.StringVar(&token, "token", "", "bearer token for the relay")
	fs.StringVar(&appointment, "appointment", "", "appointment id")
	fs.StringVar(&room, "room", "", "room id")
	fs.StringVar(&user, "user", d.Call.UserID, "user id of a locally issued token")
	fs.StringVar(&role, "role", string(d.Call.Role), "doctor or patient")
	fs.StringVar(&callLog, "calllog", "", "call-log service base url")
	fs.IntVar(&metricsPort, "metrics-port", d.Metrics.Port, "metrics port, 0 disables it")

	err := fs.Parse(args)
	if err != nil {
		return telecall.Config{}, fmt.Errorf("failed to parse args: %w", err)
	}

	if fs.NArg() != 0 {
		return telecall.Config{}, errors.New("some args are not parsed")
	}

	con, err := telecall.Load(path)
	if err != nil {
		return telecall.Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			con.Mode = telecall.Mode(mode)
		case "debug":
			con.Debug = debug
			con.Relay.Debug = debug
		case "port":
			con.Relay.Port = port
		case "key":
			con.Relay.KeyFile = keyFile
		case "cert":
			con.Relay.CertFile = certFile
		case "secret":
			con.Relay.Secret = secret
		case "echo":
			con.Relay.Echo = echo
		case "url":
			con.Signal.URL = url
		case "token":
			con.Signal.Token = token
		case "appointment":
			con.Call.AppointmentID = appointment
		case "room":
			con.Call.RoomID = room
		case "user":
			con.Call.UserID = user
		case "role":
			con.Call.Role = message.Role(role)
		case "calllog":
			con.CallLog.BaseURL = callLog
		case "metrics-port":
			con.Metrics.Port = metricsPort
		}
	})

	return con, nil
}
