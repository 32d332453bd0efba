package gateway

import "time"

// Wire formats fixed by the gateway.
const (
	// TradeDateLayout is the timestamp layout the gateway requires on
	// MerchantTradeDate (yyyy/MM/dd HH:mm:ss).
	TradeDateLayout = "2006/01/02 15:04:05"
	// expireDateLayout is the date-only form some responses use.
	expireDateLayout = "2006/01/02"

	// MerchantTradeNoMaxLen is the gateway's ceiling on trade numbers.
	MerchantTradeNoMaxLen = 20
	// DescriptionMaxBytes bounds TradeDesc/ItemName.
	DescriptionMaxBytes = 200
)

// Gateway response codes.
const (
	// RtnCodeSuccess acknowledges a request.
	RtnCodeSuccess = 1
	// RtnCodeBarcodeIssued marks a payment-info payload carrying freshly
	// issued barcode segments.
	RtnCodeBarcodeIssued = 10100073
)

// ResponseMode distinguishes the three ways the gateway can answer an order
// creation.
type ResponseMode string

const (
	// ModeRedirect: the end user must be forwarded to the gateway's hosted
	// checkout page via a self-submitting form.
	ModeRedirect ResponseMode = "redirect"
	// ModeDirect: the synchronous response already carries the barcode
	// segments.
	ModeDirect ResponseMode = "direct"
	// ModeDeferred: the order is acknowledged and segments arrive later on
	// the payment-info webhook.
	ModeDeferred ResponseMode = "deferred"
)

type CreateOrderRequest struct {
	OrderID      int64
	Amount       int64
	Description  string
	ClientSystem string
}

// RedirectForm carries what a caller needs to build the browser redirect in
// redirect mode.
type RedirectForm struct {
	Action string            `json:"action"`
	Method string            `json:"method"`
	Fields map[string]string `json:"fields"`
}

type CreateResult struct {
	Mode             ResponseMode
	MerchantTradeNo  string
	GatewayTradeNo   string
	RtnCode          int
	RtnMsg           string
	Segments         []string
	ExpireDate       time.Time
	EstimatedReadyAt time.Time
	Form             *RedirectForm
	Raw              map[string]string
}

// PaymentInfo is the normalized view of a payment-info webhook payload or a
// reconciliation query response, whichever shape it arrived in.
type PaymentInfo struct {
	MerchantTradeNo string
	GatewayTradeNo  string
	RtnCode         int
	RtnMsg          string
	Segments        []string
	PaymentURL      string
	ExpireDate      time.Time
	Raw             map[string]string
}

// HasSegments reports whether at least one non-empty barcode segment arrived.
func (p *PaymentInfo) HasSegments() bool {
	return len(p.Segments) > 0
}
