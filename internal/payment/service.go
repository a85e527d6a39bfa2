package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/payment/audit"
	"github.com/cardforge/cardforge/internal/settings"
)

// Activator activates a plan bought with a confirmed payment.
type Activator interface {
	Activate(ctx context.Context, userID uint64, planID uint, paymentID uint64) error
}

// Service keeps one gateway per configured provider and picks the right one per payment.
type Service struct {
	ledger    *Ledger
	registry  *Registry
	cfg       config.Payment
	auditor   audit.Auditor
	activator Activator

	mu       sync.RWMutex
	gateways map[string]Gateway
	active   string
}

// NewService returns a service. Call Rebuild before use.
func NewService(db *gorm.DB, registry *Registry, cfg config.Payment, auditor audit.Auditor, activator Activator) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}

	return &Service{
		ledger:    NewLedger(db),
		registry:  registry,
		cfg:       cfg,
		auditor:   auditor,
		activator: activator,
		gateways:  make(map[string]Gateway),
	}
}

// Ledger returns the payment store.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Rebuild creates the gateways from the payment settings. Gateways lacking credentials are skipped,
// payments of them cannot be processed until they are configured.
func (s *Service) Rebuild(ps settings.Payment) {
	gateways := make(map[string]Gateway)

	for _, name := range s.registry.Names() {
		driver, err := s.registry.Build(name, ps, s.cfg)
		if err != nil {
			if !errors.Is(err, ErrMissingCredentials) || name == ps.Gateway {
				log.Warn().Err(err).Str("gateway", name).Msg("payment gateway not available")
			}

			continue
		}

		gateways[name] = NewProcessor(driver, s.ledger, s.auditor, ps.Currency, s.activate)
	}

	s.mu.Lock()
	s.gateways = gateways
	s.active = ps.Gateway
	s.mu.Unlock()

	log.Info().Str("gateway", ps.Gateway).Int("available", len(gateways)).Msg("payment gateways rebuilt")
}

// OnSettingsSaved is a settings.Hook rebuilding the gateways after the payment group changed.
func (s *Service) OnSettingsSaved(_ context.Context, g settings.Group) {
	if ps, ok := g.(settings.Payment); ok {
		s.Rebuild(ps)
	}
}

// Active returns the gateway new payments are created with.
func (s *Service) Active() (Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lookup(s.active)
}

// For returns the gateway that handles p.
func (s *Service) For(p *models.Payment) (Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lookup(p.Gateway)
}

// Gateway returns the gateway registered under name.
func (s *Service) Gateway(name string) (Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lookup(name)
}

func (s *Service) lookup(name string) (Gateway, error) {
	gw, ok := s.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGatewayUnavailable, name)
	}

	return gw, nil
}

// Reconcile asks the provider for the status of p and applies it when it is a forward move.
func (s *Service) Reconcile(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	gw, err := s.For(p)
	if err != nil {
		return nil, err
	}

	remote, err := gw.GetPaymentStatus(ctx, p)
	if err != nil {
		return nil, err
	}

	target := models.PaymentStatus(remote)

	if p.Status == models.PaymentConfirmed && p.FulfilledAt == nil {
		if _, err := gw.ConfirmPayment(ctx, p, nil); err != nil {
			return nil, err
		}
	}

	if target == p.Status || !p.Status.CanMoveTo(target) {
		return p, nil
	}

	log.Info().Str("payment", p.UUID).Str("from", string(p.Status)).Str("to", remote).Msg("reconciling payment")

	switch target {
	case models.PaymentConfirmed:
		_, err = gw.ConfirmPayment(ctx, p, nil)
	case models.PaymentFailed:
		_, err = s.ledger.Fail(ctx, p, "reconciled with provider")
	case models.PaymentProcessing:
		_, err = s.ledger.Transition(ctx, p, []models.PaymentStatus{models.PaymentPending}, models.PaymentProcessing, nil)
	case models.PaymentRefunded:
		_, err = s.ledger.Transition(ctx, p, []models.PaymentStatus{models.PaymentConfirmed}, models.PaymentRefunded,
			map[string]any{"refunded_amount": gorm.Expr("captured_amount")})
	}

	if err != nil {
		return nil, err
	}

	return p, nil
}

// activate is the confirm hook of every gateway. Payments without a plan need no fulfillment.
func (s *Service) activate(ctx context.Context, p *models.Payment) error {
	raw := p.MetadataString(MetaPlanID)
	if raw == "" || s.activator == nil {
		return nil
	}

	planID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fmt.Errorf("plan id %q of payment %s: %w", raw, p.UUID, err)
	}

	if err := s.activator.Activate(ctx, p.UserID, uint(planID), p.ID); err != nil {
		return fmt.Errorf("activate plan %d for payment %s: %w", planID, p.UUID, err)
	}

	return nil
}
