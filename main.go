package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
)

type GlobalOptions struct {
	Session      bool          `long:"session" description:"Use the session bus instead of the system bus"`
	QueryTimeout time.Duration `long:"query-timeout" default:"5s" description:"Timeout of each query to the daemon"`
}

var (
	globalOptions GlobalOptions
	parser        = flags.NewParser(&globalOptions, flags.Default)
	logger        = log.New(os.Stderr, "argonone: ", log.LstdFlags)
)

func main() {
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case stop := <-stopCh:
			logger.Printf("%v, exiting", stop)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(stopCh)
	}()

	return ctx, cancel
}
