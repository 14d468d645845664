package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iconidentify/coursegrab/cmd/coursegrab/commands"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersion(Version, BuildTime)
	os.Exit(commands.ExecuteContext(ctx))
}
