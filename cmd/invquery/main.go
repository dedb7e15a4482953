package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := &cli{}
	err := c.rootCmd().ExecuteContext(ctx)
	stop()
	if cerr := c.close(); cerr != nil {
		logrus.WithField("component", "Main").WithError(cerr).Warn("Failed to close store")
	}
	if err != nil {
		logrus.WithField("component", "Main").WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
