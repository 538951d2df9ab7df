package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/dto"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/metrics"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// NATSClient NATS client
type NATSClient struct {
	conn     *nats.Conn
	subjects config.NATSSubjectsConfig
	subs     []*nats.Subscription
	mu       sync.Mutex
}

// NewNATSClient connects to NATS, retrying the initial connect.
func NewNATSClient(cfg config.NATSConfig) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects != 0 {
		maxReconnects = cfg.MaxReconnects
	}
	log.Printf("🔌 Connecting to NATS %s (timeout %v)", cfg.URL, connectTimeout)

	var conn *nats.Conn
	err := retry.Do(func() error {
		var err error
		conn, err = nats.Connect(cfg.URL,
			nats.Name("nft-bridge"),
			nats.Timeout(connectTimeout),
			nats.ReconnectWait(reconnectWait),
			nats.MaxReconnects(maxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Printf("⚠️ NATS disconnected: %v", err)
				metrics.NATSConnectionStatus.Set(0)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Printf("✅ NATS reconnected to %s", nc.ConnectedUrl())
				metrics.NATSConnectionStatus.Set(1)
			}),
		)
		return err
	},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		metrics.NATSConnectionStatus.Set(0)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	metrics.NATSConnectionStatus.Set(1)
	log.Printf("✅ NATS connected: %s", conn.ConnectedUrl())
	return &NATSClient{conn: conn, subjects: cfg.Subjects}, nil
}

// Subscribe registers handler on subject. Subscriptions are closed by Close.
func (c *NATSClient) Subscribe(subject string, handler nats.MsgHandler) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		metrics.NATSMessagesReceived.WithLabelValues(subject).Inc()
		handler(msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	log.Printf("✅ NATS subscription active: %s", subject)
	return nil
}

// Publish sends v as JSON on subject.
func (c *NATSClient) Publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", subject, err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// PublishVerifyRequest sends a verification request to the remote verifier.
func (c *NATSClient) PublishVerifyRequest(ctx context.Context, requestID string, proof *types.Proof) error {
	return c.Publish(c.subjects.VerifyRequest, &dto.VerifyRequestMessage{RequestID: requestID, Proof: proof})
}

// Subjects returns the configured subjects.
func (c *NATSClient) Subjects() config.NATSSubjectsConfig {
	return c.subjects
}

// IsConnected reports the connection state.
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains subscriptions and closes the connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	metrics.NATSConnectionStatus.Set(0)
}

// GetConnection GetNATSconnection
func (c *NATSClient) GetConnection() *nats.Conn {
	return c.conn
}
