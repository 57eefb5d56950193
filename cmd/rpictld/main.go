package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"rpictl/internal/executor"
	"rpictl/internal/logging"
	"rpictl/internal/server"
)

func main() {
	addr := flag.String("addr", server.DefaultListenAddr, "listen address for the control channel")
	shell := flag.String("shell", "", "command interpreter, e.g. \"/bin/bash -c\" (default: /bin/sh -c)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logLevel, "rpictld")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		ListenAddr: *addr,
		Handler:    executor.New(strings.Fields(*shell)),
		Logger:     logger,
	})
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server failed to start", "err", err)
		os.Exit(1)
	}
	logger.Info("Server listening", "addr", srv.Addr().String())

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Stop()
	srv.Wait()
}
