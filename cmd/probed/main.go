package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"

	"probed/internal/app"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config file (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	// Under systemd Type=notify; a no-op everywhere else.
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyReady)
	stopWatchdog := startWatchdog(ctx)

	<-ctx.Done()
	stopWatchdog()
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)
}

// startWatchdog pings the systemd watchdog at half the configured interval.
func startWatchdog(ctx context.Context) (stop func()) {
	interval, err := sdaemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-t.C:
				_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyWatchdog)
			}
		}
	}()
	return func() { close(done) }
}
