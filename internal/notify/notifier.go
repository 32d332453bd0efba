// Package notify delivers payment notifications to client systems over
// their registered callback URLs.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yuchialin/cvspay/internal/core/events"
	"github.com/yuchialin/cvspay/internal/signature"
)

const defaultTimeout = 10 * time.Second

// Notifier subscribes to payment events and posts a signed JSON notification
// to the callback URL the client system registered on the order. Delivery is
// best effort: a failed callback is logged, never retried into the state
// machine.
type Notifier struct {
	codec      *signature.Codec
	httpClient *http.Client
	logger     *slog.Logger
}

func NewNotifier(codec *signature.Codec, logger *slog.Logger) *Notifier {
	return &Notifier{
		codec:      codec,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// WithHTTPClient swaps the transport, used by tests.
func (n *Notifier) WithHTTPClient(client *http.Client) *Notifier {
	n.httpClient = client
	return n
}

// RegisterEventHandlers wires the notifier onto the event bus.
func (n *Notifier) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentReceived, n.HandlePaymentReceived)

	n.logger.Info("notification handlers registered",
		"handlers", []string{events.EventTypePaymentReceived})
}

// HandlePaymentReceived delivers the paid notification for one order.
func (n *Notifier) HandlePaymentReceived(ctx context.Context, event events.Event) error {
	paymentEvent, ok := event.(*events.PaymentReceivedEvent)
	if !ok {
		n.logger.Error("invalid event type for payment received handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentReceivedEvent, got %T", event)
	}

	if paymentEvent.CallbackURL == "" {
		n.logger.Info("no callback URL registered, skipping notification",
			"order_id", paymentEvent.OrderID,
			"client_system", paymentEvent.ClientSystem)
		return nil
	}

	return n.deliver(ctx, paymentEvent)
}

func (n *Notifier) deliver(ctx context.Context, event *events.PaymentReceivedEvent) error {
	params := map[string]string{
		"order_id":          strconv.FormatInt(event.OrderID, 10),
		"client_order_id":   event.ExternalOrderID,
		"merchant_trade_no": event.MerchantTradeNo,
		"status":            "paid",
		"amount":            strconv.FormatInt(event.Amount, 10),
		"paid_at":           event.PaidAt.Format(time.RFC3339),
	}
	params[signature.MacField] = n.codec.Sign(params)

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, event.CallbackURL, bytes.NewBuffer(body))
	if err != nil {
		n.logger.Error("failed to build notification request",
			"error", err,
			"order_id", event.OrderID,
			"callback_url", event.CallbackURL)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	n.logger.Info("sending payment notification",
		"order_id", event.OrderID,
		"client_system", event.ClientSystem,
		"callback_url", event.CallbackURL)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("payment notification failed",
			"error", err,
			"order_id", event.OrderID,
			"callback_url", event.CallbackURL)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("payment notification rejected by client system",
			"order_id", event.OrderID,
			"status_code", resp.StatusCode)
		return fmt.Errorf("callback answered status %d", resp.StatusCode)
	}

	n.logger.Info("payment notification delivered",
		"order_id", event.OrderID,
		"status_code", resp.StatusCode)
	return nil
}
