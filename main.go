package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/buoyantio/strest-echo/cmd"
	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		log.Error(err)
		stop()
		os.Exit(1)
	}
}
