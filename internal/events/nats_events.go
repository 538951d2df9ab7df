package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/dto"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/metrics"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/services"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// Subscriber is the subscribing half of the NATS client.
type Subscriber interface {
	Subscribe(subject string, handler nats.MsgHandler) error
}

// Publisher is the publishing half of the NATS client.
type Publisher interface {
	Publish(subject string, v interface{}) error
}

// ProofIntake accepts relay proof submissions.
type ProofIntake interface {
	FinalizeInboundTransfer(ctx context.Context, submitter string, proof *types.Proof, deposit *uint256.Int) (*models.BridgeTransfer, error)
	UpdateMetadata(ctx context.Context, submitter string, proof *types.Proof, deposit *uint256.Int) (*models.BridgeTransfer, error)
}

// ResultDeliverer forwards verification answers to the orchestrator.
type ResultDeliverer interface {
	Deliver(ctx context.Context, transferID string, verified bool, verifyErr error)
}

// Relay wires the bridge NATS subjects to the orchestrator.
type Relay struct {
	subscriber Subscriber
	intake     ProofIntake
	results    ResultDeliverer
	subjects   config.NATSSubjectsConfig
}

// NewRelay creates a relay. results may be nil when verification runs over HTTP.
func NewRelay(subscriber Subscriber, intake ProofIntake, results ResultDeliverer, subjects config.NATSSubjectsConfig) *Relay {
	return &Relay{subscriber: subscriber, intake: intake, results: results, subjects: subjects}
}

// Start subscribes to the proof intake subjects and, when configured, to verification results.
func (r *Relay) Start() error {
	if err := r.subscriber.Subscribe(r.subjects.InboundProofs, func(msg *nats.Msg) {
		r.handleSubmission(msg.Subject, msg.Data, r.intake.FinalizeInboundTransfer)
	}); err != nil {
		return err
	}
	if err := r.subscriber.Subscribe(r.subjects.MetadataProofs, func(msg *nats.Msg) {
		r.handleSubmission(msg.Subject, msg.Data, r.intake.UpdateMetadata)
	}); err != nil {
		return err
	}
	if r.results != nil {
		if err := r.subscriber.Subscribe(r.subjects.VerifyResult, func(msg *nats.Msg) {
			r.handleVerifyResult(msg.Subject, msg.Data)
		}); err != nil {
			return err
		}
	}
	log.Printf("✅ NATS relay subscriptions initialized")
	return nil
}

type submitFunc func(ctx context.Context, submitter string, proof *types.Proof, deposit *uint256.Int) (*models.BridgeTransfer, error)

func (r *Relay) handleSubmission(subject string, data []byte, submit submitFunc) {
	var msg dto.ProofSubmission
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.NATSMessagesFailed.WithLabelValues(subject, "decode").Inc()
		log.Printf("❌ [NATS] Failed to parse proof submission on %s: %v", subject, err)
		return
	}
	if msg.Proof == nil {
		metrics.NATSMessagesFailed.WithLabelValues(subject, "decode").Inc()
		log.Printf("❌ [NATS] Proof submission on %s has no proof", subject)
		return
	}
	deposit, err := types.ParseAmount(msg.Deposit)
	if err != nil {
		metrics.NATSMessagesFailed.WithLabelValues(subject, "decode").Inc()
		log.Printf("❌ [NATS] Invalid deposit %q on %s: %v", msg.Deposit, subject, err)
		return
	}

	transfer, err := submit(context.Background(), msg.Submitter, msg.Proof, deposit)
	if err != nil {
		metrics.NATSMessagesFailed.WithLabelValues(subject, types.CodeOf(err)).Inc()
		log.WithFields(log.Fields{
			"subject":   subject,
			"submitter": msg.Submitter,
			"code":      types.CodeOf(err),
		}).Warnf("⚠️ [NATS] Proof submission rejected: %v", err)
		return
	}
	log.WithFields(log.Fields{
		"subject":     subject,
		"transfer_id": transfer.ID,
	}).Info("📨 [NATS] Proof submission accepted")
}

func (r *Relay) handleVerifyResult(subject string, data []byte) {
	var msg dto.VerifyResultMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.RequestID == "" {
		metrics.NATSMessagesFailed.WithLabelValues(subject, "decode").Inc()
		log.Printf("❌ [NATS] Failed to parse verification result: %v", err)
		return
	}
	var verifyErr error
	if msg.Error != "" {
		verifyErr = errors.New(msg.Error)
	}
	r.results.Deliver(context.Background(), msg.RequestID, msg.Verified, verifyErr)
}

// EventPublisher publishes bridge events on <prefix>.<event type>.
type EventPublisher struct {
	publisher Publisher
	prefix    string
}

// NewEventPublisher creates a NATS backed services.EventPublisher.
func NewEventPublisher(publisher Publisher, prefix string) *EventPublisher {
	return &EventPublisher{publisher: publisher, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the subject event type is published on.
func (p *EventPublisher) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", p.prefix, eventType)
}

func (p *EventPublisher) Publish(ctx context.Context, event services.BridgeEvent) {
	subject := p.Subject(event.Type)
	if err := p.publisher.Publish(subject, event); err != nil {
		log.Printf("⚠️ [NATS] Failed to publish %s: %v", subject, err)
	}
}
