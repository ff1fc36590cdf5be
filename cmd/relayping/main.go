// Package `relayping` implements client application which sends a single message
// to the relay server and prints the first message relayed back from other clients.
//
//	go run . -address 127.0.0.1:3000 -text "hello" -wait 5s
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wtask/relay/internal/relay"
	"github.com/wtask/relay/internal/relay/message"
	"github.com/wtask/relay/pkg/client"
	"github.com/wtask/relay/pkg/semver"
)

var (
	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = semver.V{Minor: 4}.String()
)

func main() {
	os.Exit(run())
}

func run() int {
	out := flag.CommandLine.Output()
	var (
		address, text, level string
		wait                 time.Duration
		help                 bool
	)
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.StringVar(&address, "address", "127.0.0.1:3000", "Relay server address, host:port")
	flag.StringVar(&text, "text", "", "Send Text message with given content instead of Ping")
	flag.DurationVar(&wait, "wait", 5*time.Second, "Duration to wait for a relayed message, 0 sends only")
	flag.StringVar(&level, "log-level", "warn", "Log level: debug, info, warn, error.")
	flag.Parse()

	if help {
		fmt.Fprintf(out, "Send message to relay server over TCP\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flag.PrintDefaults()
		fmt.Fprint(out, "\n")
		return 0
	}
	if wait < 0 {
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, "wait value should be greater or equal 0")
		return 1
	}

	logger, err := relay.NewLogger(os.Stderr, level)
	if err != nil {
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, err)
		return 1
	}

	m := message.Ping()
	if text != "" {
		m = message.Text(text)
	}

	if wait == 0 {
		c, err := client.Dial(context.Background(), address)
		if err != nil {
			logger.Error("can't connect", "error", err)
			return 1
		}
		defer c.Close()
		if err := c.Send(m); err != nil {
			logger.Error("can't send", "error", err)
			return 1
		}
		logger.Info("sent", "message", m.String())
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	logger.Debug("sending", "message", m.String(), "address", address)
	received, err := client.Request(ctx, address, m)
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout(), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("nothing relayed back", "wait", wait.String())
		return 2
	case err != nil:
		logger.Error("request failed", "error", err)
		return 1
	}
	fmt.Println(received.String())
	return 0
}
