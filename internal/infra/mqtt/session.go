package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"system-mqtt/pkg/backoff"
	"system-mqtt/pkg/log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	// Default reconnection parameters
	DefaultReconnectInterval        = 5 * time.Second
	DefaultMaximumReconnectInterval = 320 * time.Second
	DefaultConnectTimeout           = 30 * time.Second

	keepAliveInterval = 30 * time.Second
	subscribeTimeout  = 10 * time.Second
	publishTimeout    = 10 * time.Second

	// disconnectQuiesce is how long paho may spend flushing in-flight
	// messages on a clean disconnect, in milliseconds.
	disconnectQuiesce = 250
)

// Both discovery and state ride QoS 1 so the hub never misses a retained
// config document.
const (
	publishQoS   byte = 1
	subscribeQoS byte = 1
)

// ErrNotConnected is returned by Publish while the session is down so callers
// can skip a cycle instead of blocking on a dead broker.
var ErrNotConnected = errors.New("mqtt session is not connected")

// State describes the connection lifecycle of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// newPahoClient is swapped in tests.
var newPahoClient = func(opts *mqtt.ClientOptions) mqtt.Client {
	return mqtt.NewClient(opts)
}

// Options configures a Session.
type Options struct {
	// ServerURL is the broker address including scheme, e.g. "mqtt://localhost:1883".
	ServerURL string

	// ClientID is the base client identifier. A random suffix is appended so
	// two daemons sharing a hostname do not evict each other's broker session.
	ClientID string

	// Username for broker authentication. Empty means anonymous.
	Username string

	// Password returns the broker password. It is called on every connection
	// attempt so rotated secrets are picked up without a restart. Ignored
	// when Username is empty.
	Password func() (string, error)

	// WillTopic and WillPayload form the testament the broker publishes on
	// our behalf if the session dies without a clean disconnect.
	WillTopic   string
	WillPayload string
}

// Session is a persistent MQTT connection that reconnects forever with
// exponential backoff. Automatic reconnection in the underlying client is
// disabled on purpose: the reconnect loop lives here so the rest of the
// daemon can observe it through ConnectionRenewed and re-announce state the
// broker dropped with the old session.
type Session struct {
	client mqtt.Client
	server string

	// Exponential back-off helper for reconnection attempts to keep the code
	// DRY and easier to maintain.
	backoffStrategy *backoff.Backoff

	mu      sync.Mutex
	state   State
	renewed bool
	closed  bool
	subs    map[string]func(topic string, payload []byte)

	done chan struct{}
	wg   sync.WaitGroup
}

// New builds a Session for the given broker. No network activity happens
// until Connect is called.
func New(o Options) (*Session, error) {
	if o.ServerURL == "" {
		return nil, log.Errorf("MQTT server URL is required")
	}
	if o.ClientID == "" {
		return nil, log.Errorf("MQTT client ID is required")
	}

	s := &Session{
		server:          o.ServerURL,
		backoffStrategy: backoff.New(DefaultReconnectInterval, DefaultMaximumReconnectInterval),
		subs:            make(map[string]func(topic string, payload []byte)),
		done:            make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.ServerURL)
	opts.SetClientID(fmt.Sprintf("%s-%s", o.ClientID, uuid.New().String()))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(DefaultConnectTimeout)
	opts.SetKeepAlive(keepAliveInterval)

	if o.Username != "" {
		username := o.Username
		password := o.Password
		opts.SetCredentialsProvider(func() (string, string) {
			if password == nil {
				return username, ""
			}
			pw, err := password()
			if err != nil {
				log.Warn("Failed to resolve MQTT password", "user", username, "error", err)
				return username, ""
			}
			return username, pw
		})
	}

	if o.WillTopic != "" {
		opts.SetWill(o.WillTopic, o.WillPayload, publishQoS, true)
	}

	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	s.client = newPahoClient(opts)
	return s, nil
}

// SetReconnectParameters sets custom reconnection parameters
func (s *Session) SetReconnectParameters(initialInterval, maxInterval time.Duration) {
	s.backoffStrategy = backoff.New(initialInterval, maxInterval)
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect establishes the initial connection, retrying with exponential
// backoff until it succeeds or ctx is cancelled.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return log.Errorf("session is closed")
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return log.Errorf("session is already %s", s.state)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	log.Info("Connecting to MQTT broker", "server", s.server)
	startTime := time.Now()
	attemptCount := 1

	for {
		err := s.waitToken(ctx, s.client.Connect())
		if err == nil {
			s.mu.Lock()
			s.state = StateConnected
			s.mu.Unlock()
			s.backoffStrategy.Reset()
			log.Info("Connection is ready", "attempts", attemptCount, "totalTime", time.Since(startTime))
			return nil
		}

		if ctx.Err() != nil {
			s.setDisconnected()
			return log.Errorf("connection cancelled: %v", ctx.Err())
		}

		nextInterval := s.backoffStrategy.Next()
		log.Warn("Connection attempt failed", "error", err, "attempt", attemptCount, "nextAttemptIn", nextInterval)

		timer := time.NewTimer(nextInterval)
		select {
		case <-timer.C:
			// Proceed with the next attempt
		case <-ctx.Done():
			timer.Stop()
			s.setDisconnected()
			return log.Errorf("connection cancelled while waiting to retry: %v", ctx.Err())
		}
		attemptCount++
	}
}

// Publish sends a payload to a topic at QoS 1. It fails fast with
// ErrNotConnected while the session is down, and never waits longer than
// publishTimeout for the broker's acknowledgement.
func (s *Session) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	s.mu.Lock()
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.waitToken(ctx, s.client.Publish(topic, publishQoS, retained, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers a handler for a topic. The subscription is re-issued
// automatically after every reconnect because a clean session drops it on
// the broker side.
func (s *Session) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	s.mu.Lock()
	s.subs[topic] = handler
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected {
		// The connect handler issues it once the session is up.
		return nil
	}
	return s.issueSubscribe(topic, handler)
}

// ConnectionRenewed reports whether the session was re-established since the
// previous call and clears the flag. The initial connection does not count.
func (s *Session) ConnectionRenewed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	renewed := s.renewed
	s.renewed = false
	return renewed
}

// Close stops the reconnect loop and disconnects from the broker. The broker
// discards the will on a clean disconnect, so callers that want an "offline"
// availability message must publish it themselves before closing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	// Wait for an in-flight reconnect loop to observe done and exit.
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	// Disconnect runs regardless of state: a connect attempt abandoned
	// mid-handshake can still complete in the background, leaving a live
	// session whose testament would later overwrite the availability topic.
	s.client.Disconnect(disconnectQuiesce)
	log.Info("MQTT session closed", "server", s.server)
	return nil
}

func (s *Session) setDisconnected() {
	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()
}

// onConnect runs on every successful connection, including reconnects, and
// restores the subscriptions the fresh session starts without.
func (s *Session) onConnect(_ mqtt.Client) {
	s.mu.Lock()
	subs := make(map[string]func(topic string, payload []byte), len(s.subs))
	for topic, handler := range s.subs {
		subs[topic] = handler
	}
	s.mu.Unlock()

	for topic, handler := range subs {
		if err := s.issueSubscribe(topic, handler); err != nil {
			log.Error("Failed to restore subscription", "topic", topic, "error", err)
		}
	}
}

// onConnectionLost starts the reconnect loop after an established connection
// drops. Failed connection attempts do not land here, so the loop is never
// started twice.
func (s *Session) onConnectionLost(_ mqtt.Client, err error) {
	s.mu.Lock()
	if s.closed || s.state == StateReconnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateReconnecting
	s.wg.Add(1)
	s.mu.Unlock()

	log.Warn("Connection to MQTT broker lost", "server", s.server, "error", err)
	go s.reconnectLoop()
}

// reconnectLoop re-establishes the connection with endless retries. On
// success it marks the session renewed so the next ConnectionRenewed call
// reports the fresh session.
func (s *Session) reconnectLoop() {
	defer s.wg.Done()

	log.Info("Reconnecting to MQTT broker", "server", s.server)
	startTime := time.Now()
	attemptCount := 1

	for {
		select {
		case <-s.done:
			return
		default:
		}

		token := s.client.Connect()
		var err error
		select {
		case <-token.Done():
			err = token.Error()
		case <-s.done:
			return
		}

		if err == nil {
			s.mu.Lock()
			s.state = StateConnected
			s.renewed = true
			s.mu.Unlock()
			s.backoffStrategy.Reset()
			log.Info("Successfully reconnected", "server", s.server, "attempts", attemptCount, "totalTime", time.Since(startTime))
			return
		}

		nextInterval := s.backoffStrategy.Next()
		log.Warn("Reconnect attempt failed", "error", err, "attempt", attemptCount, "nextAttemptIn", nextInterval)

		timer := time.NewTimer(nextInterval)
		select {
		case <-timer.C:
			// Proceed with the next attempt
		case <-s.done:
			timer.Stop()
			return
		}
		attemptCount++
	}
}

func (s *Session) issueSubscribe(topic string, handler func(topic string, payload []byte)) error {
	token := s.client.Subscribe(topic, subscribeQoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return log.Errorf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return log.Errorf("subscribe to %s failed: %v", topic, err)
	}
	return nil
}

// waitToken waits for a paho token to complete or the context to cancel.
func (s *Session) waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
