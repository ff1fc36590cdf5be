package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wtask/relay/internal/relay"
	"github.com/wtask/relay/internal/relay/bridge"
	"github.com/wtask/relay/internal/relay/history"
	"github.com/wtask/relay/internal/relay/message"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := relay.NewLogger(os.Stderr, Config.LogLevel)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	logger = logger.With("app", BinaryName, "version", Version)
	logger.Info("started", "config", Config)

	listener, err := net.Listen("tcp", Config.Address)
	if err != nil {
		logger.Error("unable to listen TCP", "error", err)
		return 1
	}

	options := []relay.ServerOption{
		relay.WithLogger(logger),
		relay.WithIdleTimeout(Config.ClientIdleTimeout),
		relay.WithWriteTimeout(Config.WriteTimeout),
	}
	if Config.ClientHistoryGreets > 0 {
		stack, err := history.NewStack[message.Message](Config.ClientHistoryGreets)
		if err != nil {
			logger.Error("invalid config", "error", err)
			listener.Close()
			return 1
		}
		options = append(options, relay.WithMessageHistory(stack, Config.ClientHistoryGreets))
	}
	if Config.NATSURL != "" {
		b, err := bridge.Connect(
			Config.NATSURL,
			bridge.WithSubject(Config.NATSSubject),
			bridge.WithLogger(logger.With("component", "bridge")),
		)
		if err != nil {
			logger.Error("can't connect NATS", "error", err)
			listener.Close()
			return 1
		}
		defer b.Close()
		options = append(options, relay.WithBridge(b))
	}

	server, err := relay.NewServer(options...)
	if err != nil {
		logger.Error("can't start relay server", "error", err)
		listener.Close()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := make(chan error, 1)
	go func() {
		result <- server.Serve(ctx, listener)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("got stop signal")
	case err := <-result:
		if err != nil {
			exitCode = 1
		}
	}
	logger.Info("relay server stopped", "duration", server.Shutdown(10*time.Second).String())
	return exitCode
}
