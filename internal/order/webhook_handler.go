package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuchialin/cvspay/internal/gateway"
	"github.com/yuchialin/cvspay/pkg/logger"
)

// Webhook acknowledgement tokens. The gateway retries delivery on anything
// other than the positive ack, so rejections still answer 200 with a
// negative token instead of an HTTP error status.
const (
	ackOK = "1|OK"
)

// Verifier checks the digest on an inbound parameter set.
type Verifier interface {
	Verify(params map[string]string) error
}

// WebhookServiceAPI is the slice of the order service the gateway-facing
// webhooks drive.
type WebhookServiceAPI interface {
	MarkPaid(ctx context.Context, merchantTradeNo string, paidAt time.Time) error
	ApplyPaymentInfo(ctx context.Context, info *gateway.PaymentInfo) (bool, error)
}

// WebhookHandler terminates the two gateway webhooks. It is mounted outside
// client authentication; the signature is the only trust anchor.
type WebhookHandler struct {
	service  WebhookServiceAPI
	verifier Verifier
	logger   *slog.Logger
}

func NewWebhookHandler(service WebhookServiceAPI, verifier Verifier) *WebhookHandler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &WebhookHandler{
		service:  service,
		verifier: verifier,
		logger:   lg,
	}
}

// PaymentCallback handles the payment confirmation webhook.
func (h *WebhookHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(r)
	if err != nil {
		h.logger.Warn("payment callback: unreadable payload", "error", err)
		h.ack(w, reject("Payload Error"))
		return
	}

	if err := h.verifier.Verify(params); err != nil {
		h.logger.Warn("payment callback: signature rejected", "error", err)
		h.ack(w, reject("CheckMacValue Error"))
		return
	}

	rtnCode := params["RtnCode"]
	merchantTradeNo := params["MerchantTradeNo"]
	h.logger.Info("payment callback received",
		"merchant_trade_no", merchantTradeNo,
		"rtn_code", rtnCode)

	if rtnCode != "1" {
		// A verified non-success notification carries nothing to apply,
		// but it was delivered fine.
		h.logger.Info("payment callback: non-success code acknowledged",
			"merchant_trade_no", merchantTradeNo,
			"rtn_code", rtnCode,
			"rtn_msg", params["RtnMsg"])
		h.ack(w, ackOK)
		return
	}

	paidAt := time.Now()
	if raw := params["PaymentDate"]; raw != "" {
		if parsed, perr := gateway.ParseGatewayTime(raw); perr == nil {
			paidAt = parsed
		}
	}

	if err := h.service.MarkPaid(r.Context(), merchantTradeNo, paidAt); err != nil {
		h.logger.Error("payment callback: processing failed",
			"error", err,
			"merchant_trade_no", merchantTradeNo)
		h.ack(w, reject(ackReason(err)))
		return
	}

	h.ack(w, ackOK)
}

// PaymentInfoCallback handles the barcode-segment webhook. The gateway is
// inconsistent across versions: segments arrive either as flat form fields
// or nested under a PaymentInfo JSON object, and both shapes must verify and
// apply identically.
func (h *WebhookHandler) PaymentInfoCallback(w http.ResponseWriter, r *http.Request) {
	params, segments, err := h.parsePaymentInfo(r)
	if err != nil {
		h.logger.Warn("payment info callback: unreadable payload", "error", err)
		h.ack(w, reject("Payload Error"))
		return
	}

	if err := h.verifier.Verify(params); err != nil {
		h.logger.Warn("payment info callback: signature rejected", "error", err)
		h.ack(w, reject("CheckMacValue Error"))
		return
	}

	info, err := gateway.PaymentInfoFromParams(params)
	if err != nil {
		h.logger.Warn("payment info callback: malformed fields", "error", err)
		h.ack(w, reject("Payload Error"))
		return
	}
	if len(segments) > 0 {
		info.Segments = segments
	}

	h.logger.Info("payment info callback received",
		"merchant_trade_no", info.MerchantTradeNo,
		"rtn_code", info.RtnCode,
		"segments", len(info.Segments))

	if _, err := h.service.ApplyPaymentInfo(r.Context(), info); err != nil {
		h.logger.Error("payment info callback: processing failed",
			"error", err,
			"merchant_trade_no", info.MerchantTradeNo)
		h.ack(w, reject(ackReason(err)))
		return
	}

	h.ack(w, ackOK)
}

// parseParams reads a flat parameter set from either a form body or a JSON
// object of scalars.
func (h *WebhookHandler) parseParams(r *http.Request) (map[string]string, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, err
		}
		return gateway.TopLevelParams(payload), nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	return params, nil
}

// parsePaymentInfo additionally extracts segments from the nested JSON shape
// when present. The flat shape's segments stay inside params and are picked
// up by the normalizer.
func (h *WebhookHandler) parsePaymentInfo(r *http.Request) (map[string]string, []string, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, nil, err
		}
		return gateway.TopLevelParams(payload), gateway.SegmentsFromPayload(payload), nil
	}

	params, err := h.parseParams(r)
	if err != nil {
		return nil, nil, err
	}
	return params, nil, nil
}

func (h *WebhookHandler) ack(w http.ResponseWriter, token string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(token)); err != nil {
		h.logger.Error("failed to write webhook ack", "error", err)
	}
}

func reject(reason string) string {
	return fmt.Sprintf("0|%s", reason)
}

func ackReason(err error) string {
	switch {
	case err == ErrTradeNotFound:
		return "Trade Not Found"
	case err == ErrNotFound:
		return "Order Not Found"
	case err == ErrNotPending:
		return "Order Closed"
	default:
		return "Processing Error"
	}
}
