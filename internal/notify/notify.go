// Package notify wraps paho.mqtt.golang for two optional collaborators on
// top of the core bridge: a subscriber that triggers an immediate config
// reload when the admin surface pushes a change notification, and a
// publisher that reports aggregate stats every 30s. Both are best-effort:
// an MQTT outage degrades to poll-only behavior, never to bridge failure.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"wizbridge/internal/logger"
)

// Config configures the notify client.
type Config struct {
	Enabled     bool
	ClientID    string
	Schema      string
	Host        string
	Port        string
	User        string
	Password    string
	ReloadTopic string
	StatsTopic  string
}

// StatsSnapshot is the JSON shape published to StatsTopic every 30s.
type StatsSnapshot struct {
	Bulbs map[string]BulbStats `json:"bulbs"`
}

// BulbStats is one bulb's counters plus its current queue depth.
type BulbStats struct {
	Queued   uint64 `json:"queued"`
	Sent     uint64 `json:"sent"`
	Dropped  uint64 `json:"dropped"`
	QueueLen int    `json:"queueLen"`
}

// ReloadTrigger is satisfied by the bridge: any reload-topic message calls
// this instead of waiting for the next 60s tick.
type ReloadTrigger interface {
	TriggerReload()
}

// StatsProvider is satisfied by the bridge: the source of truth for the
// periodic stats publish.
type StatsProvider interface {
	Snapshot() StatsSnapshot
}

// Client is the MQTT notify/telemetry client.
type Client struct {
	ctx    context.Context
	log    *logger.Log
	cfg    Config
	bridge ReloadTrigger
	stats  StatsProvider

	opts   *mqtt.ClientOptions
	client mqtt.Client
}

// NewClient builds a notify client. bridge and stats may be the same
// concrete value (the bridge implements both interfaces).
func NewClient(log *logger.Log, cfg Config, bridge ReloadTrigger, stats StatsProvider) *Client {
	return &Client{log: log, cfg: cfg, bridge: bridge, stats: stats}
}

// Start connects, subscribes to the reload topic, and starts the 30s
// stats-publish loop. If cfg.Enabled is false, Start is a no-op.
func (c *Client) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	if c.log.GetLevel() == "debug" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfg.Schema, c.cfg.Host, c.cfg.Port)).
		SetUsername(c.cfg.User).
		SetPassword(c.cfg.Password).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfg.ClientID).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("notify: connect: %w", token.Error())
		}
	case <-c.ctx.Done():
		return errors.New("notify: context canceled before connect")
	}

	c.subscribeReload()
	go c.statsLoop(ctx)

	c.log.With(logger.Fields{"module": "mqtt"}).Infof("connected: %v", c.client.IsConnected())
	return nil
}

// Stop disconnects cleanly. Safe to call even if Start was a no-op.
func (c *Client) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

func (c *Client) connectHandler(_ mqtt.Client) {
	c.log.With(logger.Fields{"module": "mqtt"}).Info("connected to broker")
}

func (c *Client) connectLostHandler(_ mqtt.Client, err error) {
	c.log.With(logger.Fields{"module": "mqtt"}).Warnf("connection lost: %v", err)
}

func (c *Client) subscribeReload() {
	if c.cfg.ReloadTopic == "" {
		return
	}
	token := c.client.Subscribe(c.cfg.ReloadTopic, 0, c.reloadHandler)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.With(logger.Fields{"module": "mqtt"}).Warnf(
					"subscribe %s failed: %v", c.cfg.ReloadTopic, token.Error())
			}
		}
	}()
}

func (c *Client) reloadHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.With(logger.Fields{"module": "mqtt"}).Debugf("reload notification on %s", msg.Topic())
	c.bridge.TriggerReload()
}

func (c *Client) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.publishStats()
		}
	}
}

func (c *Client) publishStats() {
	if c.cfg.StatsTopic == "" || c.client == nil || !c.client.IsConnected() {
		return
	}
	payload, err := json.Marshal(c.stats.Snapshot())
	if err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Warnf("marshal stats: %v", err)
		return
	}
	token := c.client.Publish(c.cfg.StatsTopic, 0, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			c.log.With(logger.Fields{"module": "mqtt"}).Warnf("publish stats: %v", token.Error())
		}
	}()
}
