// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the shiftdesk CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shiftdesk/shiftdesk/cmd/shiftdesk/app"
	"github.com/shiftdesk/shiftdesk/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	// Create a context that will be canceled on signal
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
