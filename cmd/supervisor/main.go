package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"wizbridge/internal/config"
	"wizbridge/internal/logger"
	"wizbridge/internal/supervisor"
)

var (
	configFile string
	bridgePath string
)

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
	flag.StringVar(&bridgePath, "bridge-bin", "", "Path to the bridge binary (defaults to ./bridge next to this executable)")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}

	bin := bridgePath
	if bin == "" {
		if exe, err := os.Executable(); err == nil {
			bin = filepath.Join(filepath.Dir(exe), "bridge")
		} else {
			bin = "bridge"
		}
	}

	sup := supervisor.New(log, supervisor.Config{
		BaseDelay: cfg.Supervisor.BaseDelay,
		MaxDelay:  cfg.Supervisor.MaxDelay,
		ResetIdle: cfg.Supervisor.ResetIdle,
	}, func() *exec.Cmd {
		return exec.Command(bin, "-config", configFile)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	sup.Start(ctx)
	log.With(logger.Fields{"module": "supervisor"}).Infof("supervising %s", bin)

	<-ctx.Done()
	sup.Stop()

	log.Info("supervisor shutdown complete")
}
