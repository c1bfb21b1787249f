package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"system-mqtt/internal/homeassistant"
	"system-mqtt/pkg/log"
	"system-mqtt/pkg/metrics"
)

const (
	// sampleTimeout bounds a single metric read so one stuck probe cannot
	// stall the whole reporting cycle.
	sampleTimeout = 10 * time.Second

	// shutdownTimeout bounds the farewell: publishing the offline
	// availability message and disconnecting.
	shutdownTimeout = 5 * time.Second
)

// Broker is the slice of the MQTT session the agent drives. Subscribe is
// expected to keep its handler registered across reconnects even when the
// broker call itself fails.
type Broker interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	ConnectionRenewed() bool
	Close() error
}

// Metric pairs a Home Assistant entity with the source that samples its value.
type Metric struct {
	Entity homeassistant.Entity
	Source metrics.Source
}

// Agent samples system metrics on a fixed interval and publishes them to the
// broker, announcing each entity to Home Assistant before its first value.
type Agent struct {
	broker    Broker
	discovery *homeassistant.Discovery
	registry  *Registry
	sources   map[string]metrics.Source
	interval  time.Duration

	// hubOnline is pulsed when Home Assistant announces its own birth, which
	// means it lost all discovery state and needs the configs again.
	hubOnline chan struct{}
}

// NewAgent creates an agent reporting the given metrics.
func NewAgent(broker Broker, discovery *homeassistant.Discovery, interval time.Duration, metricList []Metric) *Agent {
	a := &Agent{
		broker:    broker,
		discovery: discovery,
		registry:  NewRegistry(),
		sources:   make(map[string]metrics.Source, len(metricList)),
		interval:  interval,
		hubOnline: make(chan struct{}, 1),
	}
	for _, m := range metricList {
		a.registry.Register(m.Entity)
		a.sources[m.Entity.ID] = m.Source
	}
	return a
}

// Run connects to the broker and reports metrics until ctx is cancelled. On
// the way out it marks the host unavailable and closes the session.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.broker.Connect(ctx); err != nil {
		return log.Errorf("failed to connect to MQTT broker: %v", err)
	}
	defer a.shutdown()

	if err := a.broker.Subscribe(a.discovery.StatusTopic(), a.onHubStatus); err != nil {
		// The session keeps the handler and re-issues it on the next
		// reconnect, so losing the connection here is not fatal.
		log.Warn("Failed to subscribe to Home Assistant status", "error", err)
	}

	if err := a.broker.Publish(ctx, a.discovery.AvailabilityTopic(), []byte(homeassistant.PayloadOnline), true); err != nil {
		log.Warn("Failed to publish availability", "error", err)
	}

	if err := a.announce(ctx); err != nil {
		log.Warn("Discovery announcement incomplete, will retry", "error", err)
	}

	log.Info("Reporting metrics", "interval", a.interval, "metrics", len(a.sources))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Agent stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick runs one reporting cycle: refresh session state, make sure every
// entity is announced, then publish values. Values are never published for
// entities the current session has not announced, otherwise Home Assistant
// would drop them on the floor.
func (a *Agent) tick(ctx context.Context) {
	if a.broker.ConnectionRenewed() {
		log.Info("Broker session renewed, re-announcing discovery configs")
		a.registry.ResetAnnounced()
		if err := a.broker.Publish(ctx, a.discovery.AvailabilityTopic(), []byte(homeassistant.PayloadOnline), true); err != nil {
			log.Warn("Failed to publish availability", "error", err)
		}
	}

	select {
	case <-a.hubOnline:
		log.Info("Home Assistant came online, re-announcing discovery configs")
		a.registry.ResetAnnounced()
	default:
	}

	if err := a.announce(ctx); err != nil {
		log.Warn("Discovery announcement incomplete, will retry", "error", err, "pending", a.registry.Pending())
		return
	}

	a.report(ctx)
}

// announce publishes discovery configs for every entity not yet announced in
// this session. The first publish failure aborts the pass; what was announced
// stays marked and the remainder is retried next cycle.
func (a *Agent) announce(ctx context.Context) error {
	for _, entity := range a.registry.Entities() {
		if a.registry.Announced(entity.ID) {
			continue
		}
		payload, err := a.discovery.ConfigPayload(entity)
		if err != nil {
			return fmt.Errorf("render discovery config for %s: %w", entity.ID, err)
		}
		if err := a.broker.Publish(ctx, a.discovery.ConfigTopic(entity), payload, true); err != nil {
			return fmt.Errorf("announce %s: %w", entity.ID, err)
		}
		a.registry.MarkAnnounced(entity.ID)
		log.Debug("Announced entity", "entity", entity.ID)
	}
	return nil
}

// report samples every metric and publishes the values. A failing metric is
// skipped, it never takes down the cycle.
func (a *Agent) report(ctx context.Context) {
	for _, entity := range a.registry.Entities() {
		source := a.sources[entity.ID]
		if source == nil {
			continue
		}

		sampleCtx, cancel := context.WithTimeout(ctx, sampleTimeout)
		value, err := source.Sample(sampleCtx)
		cancel()
		if err != nil {
			if errors.Is(err, metrics.ErrUnavailable) {
				log.Debug("Metric unavailable, skipping", "metric", entity.ID)
			} else {
				log.Warn("Failed to sample metric", "metric", entity.ID, "error", err)
			}
			continue
		}

		if err := a.broker.Publish(ctx, a.discovery.StateTopic(entity.ID), []byte(value), true); err != nil {
			log.Warn("Failed to publish metric", "metric", entity.ID, "error", err)
			continue
		}
		log.Debug("Published metric", "metric", entity.ID, "value", value)
	}
}

// onHubStatus watches the hub's birth topic. Payloads other than "online"
// are ignored.
func (a *Agent) onHubStatus(_ string, payload []byte) {
	if string(payload) != homeassistant.PayloadOnline {
		return
	}
	select {
	case a.hubOnline <- struct{}{}:
	default:
	}
}

// shutdown publishes the offline availability message and closes the broker
// session. The parent context is already cancelled at this point, so the
// farewell runs on its own deadline.
func (a *Agent) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.broker.Publish(ctx, a.discovery.AvailabilityTopic(), []byte(homeassistant.PayloadOffline), true); err != nil {
		log.Warn("Failed to publish offline availability", "error", err)
	}
	if err := a.broker.Close(); err != nil {
		log.Warn("Failed to close MQTT session", "error", err)
	}
}
