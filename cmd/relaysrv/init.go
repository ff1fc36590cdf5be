package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wtask/relay/internal/relay/bridge"
	"github.com/wtask/relay/pkg/semver"
)

type (
	// Configuration - server configuration
	Configuration struct {
		// Address - bind the address, host:port
		Address string
		// ClientIdleTimeout - idle period before client is disconnected, zero disables
		ClientIdleTimeout time.Duration
		// WriteTimeout - time limit of writing to a client, zero disables
		WriteTimeout time.Duration
		// ClientHistoryGreets - num of latest text messages which is pushed to newly connected client
		ClientHistoryGreets int
		// NATSURL - federate with other relays over NATS, empty disables
		NATSURL string
		// NATSSubject - subject shared by federated relays
		NATSSubject string
		// LogLevel - minimal level of logged records
		LogLevel string
	}
)

var (
	// Config - current configuration of the server
	Config = Configuration{
		Address:     "127.0.0.1:3000",
		NATSSubject: bridge.DefaultSubject,
		LogLevel:    "info",
	}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = semver.V{Minor: 4}.String()
)

func init() {
	out := flag.CommandLine.Output()
	printUsage := func() {
		fmt.Fprintf(out, "Launch message relay server over TCP\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flag.PrintDefaults()
		fmt.Fprint(out, "\n")
	}
	printError := func(msg string) {
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, msg)
	}

	help := false
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.StringVar(&Config.Address, "address", Config.Address, "Listen address, host:port")
	clientTTL := 0
	flag.IntVar(&clientTTL, "client-timeout", clientTTL, "Idle duration in seconds before client is disconnected, 0 disables.")
	flag.DurationVar(&Config.WriteTimeout, "write-timeout", 0, "Time limit of writing to a client, 0 disables.")
	flag.IntVar(
		&Config.ClientHistoryGreets,
		"history-greets",
		0,
		"Num of latest text messages which is pushed to newly connected client.",
	)
	flag.StringVar(&Config.NATSURL, "nats-url", "", "NATS server to federate with other relays, empty disables.")
	flag.StringVar(&Config.NATSSubject, "nats-subject", Config.NATSSubject, "NATS subject shared by federated relays.")
	flag.StringVar(&Config.LogLevel, "log-level", Config.LogLevel, "Log level: debug, info, warn, error.")

	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	if clientTTL < 0 {
		printError("client-timeout value should be greater or equal 0")
		os.Exit(1)
	}
	Config.ClientIdleTimeout = time.Duration(clientTTL) * time.Second

	if Config.WriteTimeout < 0 {
		printError("write-timeout value should be greater or equal 0")
		os.Exit(1)
	}

	if Config.ClientHistoryGreets < 0 {
		printError("history-greets value should be greater or equal 0")
		os.Exit(1)
	}

	if Config.NATSURL != "" && Config.NATSSubject == "" {
		printError("nats-subject is required with nats-url")
		os.Exit(1)
	}
}
