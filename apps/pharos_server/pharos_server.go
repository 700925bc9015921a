package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simple-thread/pharos/api"
	"github.com/simple-thread/pharos/models/common"
	"github.com/simple-thread/pharos/util"
)

// pharos_server runs the preservation registry API. Configuration
// comes from .env.<PHAROS_CONFIG> in PHAROS_CONFIG_DIR.
func main() {
	appCtx := common.NewContext()

	if appCtx.Config.PidFilePath != "" {
		if util.IsRunningInOtherProcess(appCtx.Config.PidFilePath) {
			fmt.Fprintf(os.Stderr, "Another instance is already running (pid file %s)\n",
				appCtx.Config.PidFilePath)
			os.Exit(1)
		}
		if err := util.WritePidFile(appCtx.Config.PidFilePath); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write pid file: %v\n", err)
			os.Exit(1)
		}
		defer util.DeletePidFile(appCtx.Config.PidFilePath)
	}

	decoder, err := api.NewListDecoderFile(appCtx.Config.TokenFile)
	if err != nil {
		appCtx.Logger.Fatalf("Could not read token file %s: %v", appCtx.Config.TokenFile, err)
	}

	server := api.NewServer(appCtx, decoder)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			appCtx.Logger.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		appCtx.Logger.Infof("Received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			appCtx.Logger.Errorf("Shutdown error: %v", err)
		}
	}

	if err := appCtx.Store.Close(); err != nil {
		appCtx.Logger.Errorf("Could not close registry database: %v", err)
	}
}
