package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akmhzj/go-localserver/internal/config"
	"github.com/akmhzj/go-localserver/internal/evserver"
	"github.com/akmhzj/go-localserver/internal/logging"
)

var debug bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webservd [config.yaml]",
		Short: "A non-blocking, single-threaded HTTP/1.1 origin server",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "use a development logger instead of JSON production logging")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	log, err := logging.New(debug)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	doc, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	srv, err := evserver.New(doc, log)
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	return srv.Run(ctx)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
