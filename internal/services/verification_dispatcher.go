package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/metrics"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// ProofVerifier is the proof verification gateway. Any error counts as a rejection.
// requestID is the transfer id, passed through for correlation.
type ProofVerifier interface {
	VerifyLogEntry(ctx context.Context, requestID string, proof *types.Proof) (bool, error)
}

// VerificationRequestPublisher sends verification requests to a remote verifier whose answers
// arrive asynchronously (NATS mode).
type VerificationRequestPublisher interface {
	PublishVerifyRequest(ctx context.Context, requestID string, proof *types.Proof) error
}

// VerificationResultHandler receives verification answers.
type VerificationResultHandler interface {
	CompleteVerification(ctx context.Context, transferID string, verified bool, verifyErr error) (*models.BridgeTransfer, error)
}

// DispatcherOptions tunes the verification dispatcher.
type DispatcherOptions struct {
	Workers          int
	Timeout          time.Duration
	RecoveryInterval time.Duration
	StaleAfter       time.Duration
}

// VerificationDispatcher sends transfers in verifying to the verifier and feeds the answers
// back to the orchestrator. Transfers left in verifying (crash, lost answer) are re-dispatched
// by the recovery loop; the orchestrator applies each at most once.
type VerificationDispatcher struct {
	transfers repository.TransferRepository
	verifier  ProofVerifier
	remote    VerificationRequestPublisher
	handler   VerificationResultHandler
	opts      DispatcherOptions

	processingTasks map[string]bool // 正在处理的转账ID
	taskMutex       sync.RWMutex
	sem             chan struct{}
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// NewVerificationDispatcher 创建验证调度服务. remote may be nil, in which case verifier
// is called in-process.
func NewVerificationDispatcher(
	transfers repository.TransferRepository,
	verifier ProofVerifier,
	remote VerificationRequestPublisher,
	handler VerificationResultHandler,
	opts DispatcherOptions,
) *VerificationDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RecoveryInterval <= 0 {
		opts.RecoveryInterval = 30 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	return &VerificationDispatcher{
		transfers:       transfers,
		verifier:        verifier,
		remote:          remote,
		handler:         handler,
		opts:            opts,
		processingTasks: make(map[string]bool),
		sem:             make(chan struct{}, opts.Workers),
		stopChan:        make(chan struct{}),
	}
}

// Start 启动服务
func (s *VerificationDispatcher) Start() {
	log.Printf("🚀 [VerificationDispatcher] Starting verification dispatcher...")

	if err := s.recoverPending(context.Background()); err != nil {
		log.Printf("⚠️ [VerificationDispatcher] Failed to recover pending transfers: %v", err)
	}

	s.wg.Add(1)
	go s.recoveryLoop()

	log.Printf("✅ [VerificationDispatcher] Verification dispatcher started")
}

// Stop 停止服务
func (s *VerificationDispatcher) Stop() {
	s.stopOnce.Do(func() {
		log.Printf("🛑 [VerificationDispatcher] Stopping verification dispatcher...")
		close(s.stopChan)
		s.wg.Wait()
		log.Printf("✅ [VerificationDispatcher] Verification dispatcher stopped")
	})
}

// Schedule dispatches transfer for verification and returns without waiting for the answer.
func (s *VerificationDispatcher) Schedule(ctx context.Context, transfer *models.BridgeTransfer) error {
	if transfer.Status != models.TransferStatusVerifying {
		return fmt.Errorf("%w: %s is %s", types.ErrTransferNotPending, transfer.ID, transfer.Status)
	}
	if err := s.transfers.MarkDispatched(ctx, transfer.ID); err != nil {
		return fmt.Errorf("failed to mark transfer dispatched: %w", err)
	}

	if s.remote != nil {
		proof, err := types.DecodeProof(transfer.ProofData)
		if err != nil {
			return err
		}
		return s.remote.PublishVerifyRequest(ctx, transfer.ID, proof)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.sem <- struct{}{}:
		case <-s.stopChan:
			return
		}
		defer func() { <-s.sem }()
		s.Process(context.Background(), transfer.ID)
	}()
	return nil
}

// Process verifies one transfer in-process and delivers the answer. It is a no-op when the
// transfer is already being processed.
func (s *VerificationDispatcher) Process(ctx context.Context, transferID string) {
	// 标记为正在处理
	s.taskMutex.Lock()
	if s.processingTasks[transferID] {
		s.taskMutex.Unlock()
		return
	}
	s.processingTasks[transferID] = true
	s.taskMutex.Unlock()

	defer func() {
		s.taskMutex.Lock()
		delete(s.processingTasks, transferID)
		s.taskMutex.Unlock()
	}()

	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		log.Printf("❌ [VerificationDispatcher] Failed to query transfer %s: %v", transferID, err)
		return
	}
	if transfer == nil || transfer.Status != models.TransferStatusVerifying {
		return
	}

	verified, verifyErr := s.verify(ctx, transfer)
	s.Deliver(ctx, transferID, verified, verifyErr)
}

func (s *VerificationDispatcher) verify(ctx context.Context, transfer *models.BridgeTransfer) (bool, error) {
	if s.verifier == nil {
		return false, fmt.Errorf("no proof verifier configured")
	}
	proof, err := types.DecodeProof(transfer.ProofData)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	verified, err := s.verifier.VerifyLogEntry(ctx, transfer.ID, proof)
	result := "verified"
	if err != nil {
		result = "error"
	} else if !verified {
		result = "rejected"
	}
	metrics.ProofVerificationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	log.WithFields(log.Fields{
		"transfer_id": transfer.ID,
		"result":      result,
		"elapsed":     time.Since(start).String(),
	}).Info("🔍 Proof verification finished")
	return verified, err
}

// Deliver hands a verification answer to the orchestrator. Late and duplicate answers are
// dropped.
func (s *VerificationDispatcher) Deliver(ctx context.Context, transferID string, verified bool, verifyErr error) {
	transfer, err := s.handler.CompleteVerification(ctx, transferID, verified, verifyErr)
	switch {
	case err == nil:
		return
	case errors.Is(err, types.ErrTransferNotPending), errors.Is(err, types.ErrTransferNotFound):
		log.Printf("ℹ️ [VerificationDispatcher] Ignoring answer for %s: %v", transferID, err)
	case transfer != nil && transfer.Status == models.TransferStatusRejected:
		// rejection already recorded by the orchestrator
	default:
		log.Printf("❌ [VerificationDispatcher] Failed to complete transfer %s: %v", transferID, err)
	}
}

func (s *VerificationDispatcher) recoveryLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.RecoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.recoverPending(context.Background()); err != nil {
				log.Printf("❌ [VerificationDispatcher] Recovery scan failed: %v", err)
			}
		}
	}
}

// recoverPending re-dispatches transfers that have been waiting longer than StaleAfter.
func (s *VerificationDispatcher) recoverPending(ctx context.Context) error {
	cutoff := time.Now().Add(-s.opts.StaleAfter)
	stale, err := s.transfers.FindStale(ctx, models.TransferStatusVerifying, cutoff, 50)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		log.Printf("🔄 [VerificationDispatcher] Re-dispatching %d stale transfers", len(stale))
	}
	for _, transfer := range stale {
		s.taskMutex.RLock()
		processing := s.processingTasks[transfer.ID]
		s.taskMutex.RUnlock()
		if processing {
			continue
		}
		if err := s.Schedule(ctx, transfer); err != nil {
			log.Printf("⚠️ [VerificationDispatcher] Failed to re-dispatch %s: %v", transfer.ID, err)
		}
	}
	return nil
}
