package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wizbridge/internal/bridge"
	"wizbridge/internal/bulbstore"
	"wizbridge/internal/config"
	"wizbridge/internal/discovery"
	"wizbridge/internal/logger"
	"wizbridge/internal/netio"
	"wizbridge/internal/notify"
	"wizbridge/internal/tui"
	"wizbridge/internal/wiz"
)

var (
	configFile string
	withTUI    bool
)

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
	flag.BoolVar(&withTUI, "tui", false, "Also run the live dashboard (logging to stdout continues)")
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
	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	artListener, err := netio.ListenUDP(ctx, cfg.ArtNet.ListenPort, 64)
	if err != nil {
		log.With(logger.Fields{"module": "art-net"}).Errorf("failed to bind art-net listener: %v", err)
		os.Exit(1)
	}
	defer artListener.Close()

	controlListener, err := netio.ListenUDP(ctx, cfg.WiZ.ControlPort, 64)
	if err != nil {
		log.With(logger.Fields{"module": "wiz"}).Errorf("failed to bind control socket: %v", err)
		os.Exit(1)
	}
	defer controlListener.Close()

	router := netio.NewReplyRouter(controlListener.Datagrams())
	codec := wiz.NewCodec(controlListener.Conn(), cfg.WiZ.ControlPort, log)
	verifier := wiz.NewVerifier(controlListener.Conn(), router, cfg.WiZ.ControlPort, log)
	sender := wiz.NewPumpSender(codec, verifier)

	store, err := bulbstore.New(cfg.BulbStore, log)
	if err != nil {
		log.With(logger.Fields{"module": "bulbstore"}).Errorf("failed to build bulb store: %v", err)
		os.Exit(1)
	}

	reloadPeriod := cfg.BulbStore.ReloadPeriod
	if reloadPeriod <= 0 {
		reloadPeriod = 60 * time.Second
	}

	b := bridge.New(log, store, artListener, sender, cfg.ArtNet.Universe, reloadPeriod)

	notifyClient := notify.NewClient(log, convertConfigNotify(cfg.MQTT), b, b)
	if err := notifyClient.Start(ctx); err != nil {
		log.With(logger.Fields{"module": "mqtt"}).Warnf("notify client disabled: %v", err)
	}

	bridgeDone := make(chan error, 1)
	go func() { bridgeDone <- b.Run(ctx) }()

	if withTUI {
		discover := func(scanCtx context.Context) ([]discovery.Result, error) {
			return discovery.Scan(scanCtx, cfg.WiZ.ControlPort, cfg.Discovery.Timeout, log)
		}
		if err := tui.Run(ctx, b, discover); err != nil {
			log.With(logger.Fields{"module": "tui"}).Warnf("dashboard exited: %v", err)
		}
		cancel()
	}

	<-ctx.Done()
	<-bridgeDone

	if err := notifyClient.Stop(); err != nil {
		log.With(logger.Fields{"module": "mqtt"}).Warnf("failed to stop notify client: %v", err)
	}

	log.Info("shutdown complete")
}

// convertConfigNotify adapts the TOML-decoded MQTT section into notify's
// own config shape, the way the bridge's predecessor converted its MQTT
// config for clientmqtt.
func convertConfigNotify(cfg config.MQTTConf) notify.Config {
	schema := cfg.Schema
	if schema == "" {
		schema = "tcp"
	}
	return notify.Config{
		Enabled:     cfg.Enabled,
		ClientID:    cfg.ClientID,
		Schema:      schema,
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		ReloadTopic: cfg.ReloadTopic,
		StatsTopic:  cfg.StatsTopic,
	}
}
