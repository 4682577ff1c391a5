package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/payment"
	"checkout-service/internal/metrics"
	"checkout-service/internal/repository"
)

// Outcome describes what a reconciliation did with one event.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeFailed         Outcome = "payment_failed"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeUnknownOrder   Outcome = "unknown_order"
	OutcomeConflict       Outcome = "conflict"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
	OutcomeRejected       Outcome = "rejected"
	OutcomeError          Outcome = "error"
)

// EventAuthenticator checks a raw provider delivery and normalises it.
type EventAuthenticator interface {
	Authenticate(header http.Header, body []byte) (domain.PaymentEvent, error)
}

// Locker serialises reconciliation per order. Optional.
type Locker interface {
	Acquire(ctx context.Context, orderID string) (func(), error)
}

type Reconciler struct {
	ledger    repository.OrderLedger
	verifier  EventAuthenticator
	stripe    EventAuthenticator
	gateway   payment.ClientInterface
	notifier  Notifier
	publisher infra.Publisher
	locker    Locker
	metrics   *metrics.ServerMetrics
	appURL    string
	timeout   time.Duration
}

func NewReconciler(
	ledger repository.OrderLedger,
	verifier EventAuthenticator,
	gateway payment.ClientInterface,
	notifier Notifier,
	pub infra.Publisher,
	appURL string,
	gatewayTimeout time.Duration,
	m *metrics.ServerMetrics,
) *Reconciler {
	return &Reconciler{
		ledger:    ledger,
		verifier:  verifier,
		gateway:   gateway,
		notifier:  notifier,
		publisher: pub,
		metrics:   m,
		appURL:    appURL,
		timeout:   gatewayTimeout,
	}
}

func (r *Reconciler) SetLocker(l Locker) {
	r.locker = l
}

func (r *Reconciler) SetStripeVerifier(v EventAuthenticator) {
	r.stripe = v
}

// HandleWebhook authenticates a raw Flutterwave callback and reconciles it.
// Nothing is read from the body before the credential check passes.
func (r *Reconciler) HandleWebhook(ctx context.Context, header http.Header, body []byte) (Outcome, error) {
	return r.handle(ctx, "flutterwave", r.verifier, header, body)
}

// HandleStripeWebhook does the same for Stripe event deliveries.
func (r *Reconciler) HandleStripeWebhook(ctx context.Context, header http.Header, body []byte) (Outcome, error) {
	return r.handle(ctx, "stripe", r.stripe, header, body)
}

func (r *Reconciler) handle(ctx context.Context, provider string, auth EventAuthenticator, header http.Header, body []byte) (Outcome, error) {
	if auth == nil {
		r.metrics.WebhookOutcome(string(OutcomeRejected))
		slog.WarnContext(ctx, "webhook for unconfigured provider", "provider", provider, "step", "authenticate")
		return OutcomeRejected, domain.ErrAuthentication
	}

	evt, err := auth.Authenticate(header, body)
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		r.metrics.WebhookOutcome(string(OutcomeRejected))
		slog.WarnContext(ctx, "webhook rejected", "provider", provider, "step", "authenticate")
		return OutcomeRejected, err
	case err != nil:
		r.metrics.WebhookOutcome(string(OutcomeIgnored))
		slog.WarnContext(ctx, "webhook body unreadable", "provider", provider, "step", "parse", "error", err)
		return OutcomeIgnored, err
	}
	return r.Reconcile(ctx, evt)
}

// Reconcile applies one authenticated payment event to its order.
func (r *Reconciler) Reconcile(ctx context.Context, evt domain.PaymentEvent) (Outcome, error) {
	outcome, err := r.reconcile(ctx, evt)
	r.metrics.WebhookOutcome(string(outcome))
	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, evt domain.PaymentEvent) (Outcome, error) {
	log := slog.With("reference", evt.Reference, "step", "reconcile", "status", evt.Status)

	if evt.Type != domain.PaymentEventCompleted ||
		(evt.Status != domain.PaymentEventStatusSuccessful && evt.Status != domain.PaymentEventStatusFailed) {
		log.InfoContext(ctx, "webhook event ignored", "event", evt.Type)
		return OutcomeIgnored, nil
	}

	order, err := r.correlate(ctx, evt)
	if err != nil {
		return OutcomeError, err
	}
	if order == nil {
		log.WarnContext(ctx, "webhook references unknown order", "session_ref", evt.SessionRef)
		return OutcomeUnknownOrder, fmt.Errorf("%w: reference %q", domain.ErrUnknownOrder, evt.Reference)
	}
	log = log.With("order_id", order.ID, "order_number", order.OrderNumber)

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, order.ID)
		if err != nil {
			log.WarnContext(ctx, "order lock unavailable, relying on conditional update", "error", err)
		} else {
			defer release()
		}
	}

	if evt.Status == domain.PaymentEventStatusFailed {
		res, err := r.ledger.MarkPaymentFailed(ctx, order.ID)
		if err != nil {
			log.ErrorContext(ctx, "failed to record payment failure", "error", err)
			return OutcomeError, err
		}
		if !res.Applied {
			log.InfoContext(ctx, "payment failure ignored, order already settled", "payment_status", res.Order.PaymentStatus)
			return OutcomeIgnored, nil
		}
		log.InfoContext(ctx, "payment failed")
		return OutcomeFailed, nil
	}

	if evt.Currency != order.Currency || evt.Amount.LessThan(order.Total) {
		log.ErrorContext(ctx, "payment amount does not cover order",
			"alert", true, "amount", evt.Amount.String(), "currency", evt.Currency,
			"expected_amount", order.Total.StringFixed(2), "expected_currency", order.Currency)
		return OutcomeAmountMismatch, nil
	}
	if evt.TransactionRef == "" {
		log.WarnContext(ctx, "successful payment without transaction id")
		return OutcomeIgnored, fmt.Errorf("%w: missing transaction id", domain.ErrValidation)
	}

	res, err := r.ledger.BindPaymentReferences(ctx, order.ID, evt.SessionRef, evt.TransactionRef)
	switch {
	case errors.Is(err, domain.ErrConflict):
		log.ErrorContext(ctx, "conflicting payment for order",
			"alert", true, "transaction_ref", evt.TransactionRef, "error", err)
		return OutcomeConflict, err
	case errors.Is(err, domain.ErrOrderNotFound):
		return OutcomeUnknownOrder, fmt.Errorf("%w: %v", domain.ErrUnknownOrder, err)
	case err != nil:
		log.ErrorContext(ctx, "failed to bind payment", "error", err)
		return OutcomeError, err
	}

	if !res.Applied {
		log.InfoContext(ctx, "duplicate payment delivery", "transaction_ref", evt.TransactionRef)
		return OutcomeDuplicate, nil
	}

	log.InfoContext(ctx, "order paid", "transaction_ref", evt.TransactionRef)
	if err := r.notifier.OrderConfirmation(ctx, res.Order); err != nil {
		log.WarnContext(ctx, "order confirmation email failed", "error", err)
	}
	publishEvent(ctx, r.publisher, domain.EventOrderPaid, orderPaidEvent(res.Order), res.Order.ID)
	return OutcomeApplied, nil
}

func (r *Reconciler) correlate(ctx context.Context, evt domain.PaymentEvent) (*domain.Order, error) {
	order, err := r.ledger.FindByExternalReference(ctx, evt.Reference)
	if err != nil || order != nil || evt.SessionRef == "" {
		return order, err
	}
	return r.ledger.FindByExternalReference(ctx, evt.SessionRef)
}

// VerifyRedirect handles the customer's return from the hosted payment page.
// The query string is untrusted, so the transaction is re-read from the
// gateway before anything is reconciled. It returns where to send the browser.
func (r *Reconciler) VerifyRedirect(ctx context.Context, status, txRef, transactionID string) string {
	failed := r.appURL + "/cart?error=payment_failed"
	if status != domain.PaymentEventStatusSuccessful || transactionID == "" {
		return failed
	}

	vctx, cancel := context.WithTimeout(ctx, r.timeout)
	tx, err := r.gateway.VerifyTransaction(vctx, transactionID)
	cancel()
	if err != nil {
		slog.ErrorContext(ctx, "transaction verification failed",
			"reference", txRef, "step", "verify_redirect", "transaction_id", transactionID, "error", err)
		return r.appURL + "/cart?error=verification_failed"
	}
	if txRef != "" && tx.TxRef != txRef {
		slog.WarnContext(ctx, "redirect reference does not match verified transaction",
			"reference", txRef, "step", "verify_redirect", "verified_reference", tx.TxRef)
		return failed
	}

	evt := domain.PaymentEvent{
		Type:           domain.PaymentEventCompleted,
		Reference:      tx.TxRef,
		SessionRef:     tx.FlwRef,
		TransactionRef: tx.ID.String(),
		Status:         strings.ToLower(tx.Status),
		Currency:       strings.ToUpper(tx.Currency),
		Amount:         tx.Amount,
	}
	if _, err := r.Reconcile(ctx, evt); err != nil && !errors.Is(err, domain.ErrConflict) {
		return failed
	}

	order, err := r.ledger.FindByExternalReference(ctx, tx.TxRef)
	if err != nil || order == nil || !order.IsPaid() {
		return failed
	}
	return r.appURL + "/success?reference=" + url.QueryEscape(order.PaymentReference)
}
