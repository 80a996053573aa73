package cron

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"paygate/internal/config"
	"paygate/internal/models"
	"paygate/internal/payment"
)

// reconcileBatch bounds how many pending records one run verifies.
const reconcileBatch = 50

// PendingStore is the part of the payment ledger the jobs need.
type PendingStore interface {
	FindPending(ctx context.Context, limit int) ([]models.PaymentRecord, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
	CountByState(ctx context.Context) (map[string]int64, error)
}

// Reporter delivers operator reports.
type Reporter interface {
	Report(ctx context.Context, text string) error
}

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.ReconcileConfig
	logger   *zap.Logger
	store    PendingStore
	gateway  payment.Gateway
	reporter Reporter
	now      func() time.Time
}

// New creates a new cron scheduler. gateway should be the recording
// decorator so verification results land in the ledger. reporter may be nil.
func New(cfg config.ReconcileConfig, store PendingStore, gateway payment.Gateway, reporter Reporter, logger *zap.Logger) *Scheduler {
	if cfg.Spec == "" {
		cfg.Spec = "0 */5 * * * *"
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		logger:   logger,
		store:    store,
		gateway:  gateway,
		reporter: reporter,
		now:      time.Now,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...", zap.String("reconcile_spec", s.cfg.Spec))

	if _, err := s.cron.AddFunc(s.cfg.Spec, func() {
		s.logger.Debug("Running: reconcile pending payments")
		s.reconcilePending()
	}); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", s.cfg.Spec, err)
	}

	// Payment expire - every hour
	if s.cfg.ExpireAfter > 0 {
		s.cron.AddFunc("0 0 * * * *", func() {
			s.logger.Debug("Running: payment expire")
			s.expirePending()
		})
	}

	// Daily status report - at 23:45
	if s.reporter != nil {
		s.cron.AddFunc("0 45 23 * * *", func() {
			s.logger.Debug("Running: daily status report")
			s.dailyStatusReport()
		})
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) reconcilePending() {
	defer s.recoverFromPanic("reconcilePending")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s.ReconcilePending(ctx)
}

// ReconcilePending asks the provider for the state of every pending record
// the active gateway created. It returns how many records were checked.
func (s *Scheduler) ReconcilePending(ctx context.Context) int {
	records, err := s.store.FindPending(ctx, reconcileBatch)
	if err != nil {
		s.logger.Error("Failed to load pending payments", zap.Error(err))
		return 0
	}

	checked := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if rec.Gateway != s.gateway.Name() {
			continue
		}
		res, err := s.gateway.VerifyPayment(ctx, rec.TransactionID)
		checked++
		if err != nil {
			s.logger.Error("Reconcile verify failed",
				zap.String("correlation_id", rec.CorrelationID),
				zap.Error(err))
			continue
		}
		s.logger.Debug("Reconciled payment",
			zap.String("correlation_id", rec.CorrelationID),
			zap.String("transaction_id", rec.TransactionID),
			zap.String("status", res.Status),
			zap.Bool("success", res.Success))
	}
	return checked
}

func (s *Scheduler) expirePending() {
	defer s.recoverFromPanic("expirePending")
	s.ExpirePending(context.Background())
}

// ExpirePending marks records pending for longer than ExpireAfter as expired.
func (s *Scheduler) ExpirePending(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.cfg.ExpireAfter)
	n, err := s.store.ExpirePending(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to expire pending payments", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("Expired stale payments", zap.Int64("count", n))
	}
	return n
}

func (s *Scheduler) dailyStatusReport() {
	defer s.recoverFromPanic("dailyStatusReport")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	counts, err := s.store.CountByState(ctx)
	if err != nil {
		s.logger.Error("Failed to count payments", zap.Error(err))
		return
	}
	if err := s.reporter.Report(ctx, statusReport(s.gateway.Name(), counts)); err != nil {
		s.logger.Warn("Failed to send daily report", zap.Error(err))
	}
}

func statusReport(gateway string, counts map[string]int64) string {
	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	sort.Strings(states)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Payment report</b> (%s)\n", gateway)
	if len(states) == 0 {
		b.WriteString("\nNo payments recorded.")
		return b.String()
	}
	b.WriteString("\n")
	for _, state := range states {
		fmt.Fprintf(&b, "%s: %d\n", state, counts[state])
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
