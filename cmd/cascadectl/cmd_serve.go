package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/runapi"
	"github.com/kajovo/cascade/internal/runlog"
	"github.com/kajovo/cascade/internal/supervisor"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the Run API HTTP/WebSocket server",
		Run:   runServeCommand,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides config.yaml api_addr")
}

func runServeCommand(cmd *cobra.Command, args []string) {
	d, err := buildDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	addr := serveAddr
	if addr == "" {
		addr = d.Config.APIAddr
	}

	router := runapi.NewRouter(runapi.Deps{
		Supervisor: d.Supervisor,
		Ledger:     d.Ledger,
		Log:        d.Log,
		LogDir:     d.Config.LogDir,
		Launch: func(req model.RunRequest) (*supervisor.Handle, error) {
			runID := uuid.NewString()
			paths, err := runlog.NewPaths(d.Config.LogDir, runID)
			if err != nil {
				return nil, fmt.Errorf("create run log dirs: %w", err)
			}
			return d.Supervisor.Start(context.Background(), runID, func(ctx context.Context, h *supervisor.Handle) (model.RunState, error) {
				return d.Engine.Execute(ctx, runID, req, h, paths)
			}), nil
		},
		Resume: func(runID string) (*supervisor.Handle, error) {
			return d.Supervisor.Start(context.Background(), runID, func(ctx context.Context, h *supervisor.Handle) (model.RunState, error) {
				return d.Engine.Resume(ctx, runID, d.Config.LogDir, h)
			}), nil
		},
	})

	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		d.Log.Info("serving", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
