package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/internal/core/common/validation"
	"github.com/yuchialin/cvspay/internal/signature"
)

const defaultRequestTimeout = 8 * time.Second

// deferredReadyWindow is how long the gateway's batch window usually takes to
// issue segments when the sync response comes back without them.
const deferredReadyWindow = 2 * time.Minute

// Client builds, signs and submits gateway requests and interprets the
// synchronous acknowledgements. All calls block with an explicit timeout; a
// timeout surfaces as a recoverable gateway error.
type Client struct {
	cfg        internal.GatewayConfig
	codec      *signature.Codec
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

func NewClient(cfg internal.GatewayConfig, codec *signature.Codec, logger *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if cfg.ExpireDays <= 0 {
		cfg.ExpireDays = 7
	}
	return &Client{
		cfg:        cfg,
		codec:      codec,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the client's clock; tests pin trade dates with it.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// ExpireDate returns the barcode validity deadline for an order created now.
func (c *Client) ExpireDate() time.Time {
	return c.now().AddDate(0, 0, c.cfg.ExpireDays)
}

// MerchantTradeNo derives a globally unique trade number within the gateway's
// length ceiling: a truncated timestamp, the internal order id, and random
// tail entropy.
func (c *Client) MerchantTradeNo(orderID int64) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:4]
	tradeNo := fmt.Sprintf("BC%s%d%s", c.now().Format("0601021504"), orderID, suffix)
	if len(tradeNo) > MerchantTradeNoMaxLen {
		tradeNo = tradeNo[:MerchantTradeNoMaxLen]
	}
	return tradeNo
}

// TruncateDescription bounds a description to max bytes, marking the cut with
// an ellipsis and never splitting a multi-byte rune.
func TruncateDescription(desc string, max int) string {
	if len(desc) <= max {
		return desc
	}
	const ellipsis = "..."
	cut := max - len(ellipsis)
	for cut > 0 && !isRuneStart(desc[cut]) {
		cut--
	}
	return desc[:cut] + ellipsis
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// CreateBarcodeOrder submits a signed order-creation request. The three
// acknowledgement modes (redirect, direct, deferred) are told apart from the
// response shape.
func (c *Client) CreateBarcodeOrder(ctx context.Context, req CreateOrderRequest, merchantTradeNo string) (*CreateResult, error) {
	if appErr := validation.ValidateBarcodeAmount(req.Amount); appErr != nil {
		return nil, appErr
	}

	now := c.now()
	desc := TruncateDescription(req.Description, DescriptionMaxBytes)
	params := map[string]string{
		"MerchantID":        c.cfg.MerchantID,
		"MerchantTradeNo":   merchantTradeNo,
		"MerchantTradeDate": now.Format(TradeDateLayout),
		"PaymentType":       "aio",
		"TotalAmount":       strconv.FormatInt(req.Amount, 10),
		"TradeDesc":         desc,
		"ItemName":          desc,
		"ChoosePayment":     "BARCODE",
		"StoreExpireDate":   strconv.Itoa(c.cfg.ExpireDays),
	}
	if c.cfg.ReturnURL != "" {
		params["ReturnURL"] = c.cfg.ReturnURL
	}
	if c.cfg.PaymentInfoURL != "" {
		params["PaymentInfoURL"] = c.cfg.PaymentInfoURL
	}
	params[signature.MacField] = c.codec.Sign(params)

	c.logger.Info("submitting barcode order to gateway",
		"merchant_trade_no", merchantTradeNo,
		"amount", req.Amount,
		"client_system", req.ClientSystem)

	body, contentType, err := c.postForm(ctx, c.cfg.CreateOrderURL, params)
	if err != nil {
		return nil, err
	}

	// Hosted-checkout deployments answer with an HTML page the end user
	// must be forwarded through; the caller builds that redirect from our
	// own signed parameter set.
	if strings.Contains(contentType, "text/html") {
		c.logger.Info("gateway answered in redirect mode", "merchant_trade_no", merchantTradeNo)
		return &CreateResult{
			Mode:            ModeRedirect,
			MerchantTradeNo: merchantTradeNo,
			ExpireDate:      c.ExpireDate(),
			Form: &RedirectForm{
				Action: c.cfg.CreateOrderURL,
				Method: http.MethodPost,
				Fields: params,
			},
		}, nil
	}

	fields, err := parseResponseBody(body, contentType)
	if err != nil {
		return nil, internal.NewGatewayError("malformed gateway response", err)
	}

	rtnCode, err := parseRtnCode(fields["RtnCode"])
	if err != nil {
		return nil, internal.NewGatewayError("malformed gateway response", err)
	}

	result := &CreateResult{
		MerchantTradeNo: merchantTradeNo,
		GatewayTradeNo:  fields["TradeNo"],
		RtnCode:         rtnCode,
		RtnMsg:          fields["RtnMsg"],
		ExpireDate:      c.ExpireDate(),
		Raw:             fields,
	}
	if raw := fields["ExpireDate"]; raw != "" {
		if parsed, perr := ParseGatewayTime(raw); perr == nil {
			result.ExpireDate = parsed
		}
	}

	if rtnCode != RtnCodeSuccess && rtnCode != RtnCodeBarcodeIssued {
		c.logger.Warn("gateway rejected order creation",
			"merchant_trade_no", merchantTradeNo,
			"rtn_code", rtnCode,
			"rtn_msg", result.RtnMsg)
		return nil, &internal.AppError{
			Type:       internal.ErrorTypeExternal,
			Code:       internal.ErrCodeGatewayRejected,
			Message:    fmt.Sprintf("gateway rejected order: %s", result.RtnMsg),
			StatusCode: http.StatusBadGateway,
		}
	}

	if segments := SegmentsFromParams(fields); len(segments) > 0 {
		result.Mode = ModeDirect
		result.Segments = segments
		c.logger.Info("gateway answered in direct mode",
			"merchant_trade_no", merchantTradeNo,
			"segments", len(segments))
		return result, nil
	}

	result.Mode = ModeDeferred
	result.EstimatedReadyAt = now.Add(deferredReadyWindow)
	c.logger.Info("gateway answered in deferred mode",
		"merchant_trade_no", merchantTradeNo,
		"estimated_ready_at", result.EstimatedReadyAt)
	return result, nil
}

// QueryPaymentInfo actively re-queries the gateway for the barcode issued to
// a trade, used when the payment-info webhook has not arrived.
func (c *Client) QueryPaymentInfo(ctx context.Context, merchantTradeNo string) (*PaymentInfo, error) {
	params := map[string]string{
		"MerchantID":      c.cfg.MerchantID,
		"MerchantTradeNo": merchantTradeNo,
		"TimeStamp":       strconv.FormatInt(c.now().Unix(), 10),
	}
	params[signature.MacField] = c.codec.Sign(params)

	c.logger.Info("querying gateway for payment info", "merchant_trade_no", merchantTradeNo)

	body, contentType, err := c.postForm(ctx, c.cfg.QueryInfoURL, params)
	if err != nil {
		return nil, err
	}

	fields, err := parseResponseBody(body, contentType)
	if err != nil {
		return nil, internal.NewGatewayError("malformed gateway response", err)
	}

	return PaymentInfoFromParams(fields)
}

// PaymentInfoFromParams normalizes a parsed payment-info parameter set, the
// shared path for webhook payloads and query responses.
func PaymentInfoFromParams(fields map[string]string) (*PaymentInfo, error) {
	rtnCode, err := parseRtnCode(fields["RtnCode"])
	if err != nil {
		return nil, err
	}

	info := &PaymentInfo{
		MerchantTradeNo: fields["MerchantTradeNo"],
		GatewayTradeNo:  fields["TradeNo"],
		RtnCode:         rtnCode,
		RtnMsg:          fields["RtnMsg"],
		Segments:        SegmentsFromParams(fields),
		PaymentURL:      fields["PaymentURL"],
		Raw:             fields,
	}
	if raw := fields["ExpireDate"]; raw != "" {
		if parsed, perr := ParseGatewayTime(raw); perr == nil {
			info.ExpireDate = parsed
		}
	}
	return info, nil
}

// ParseGatewayTime accepts the gateway's two timestamp renderings.
func ParseGatewayTime(raw string) (time.Time, error) {
	if t, err := time.ParseInLocation(TradeDateLayout, raw, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation(expireDateLayout, raw, time.Local)
}

func (c *Client) postForm(ctx context.Context, endpoint string, params map[string]string) ([]byte, string, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", internal.NewGatewayError("failed to build gateway request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("gateway request failed", "endpoint", endpoint, "error", err)
		return nil, "", internal.NewGatewayError("gateway unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", internal.NewGatewayError("failed to read gateway response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("gateway returned error status",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"body", string(body))
		return nil, "", internal.NewGatewayError(
			fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// parseResponseBody understands both response encodings the gateway uses:
// URL-encoded key/value pairs and JSON objects.
func parseResponseBody(body []byte, contentType string) (map[string]string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("gateway: empty response body")
	}

	if strings.Contains(contentType, "application/json") || strings.HasPrefix(trimmed, "{") {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return nil, fmt.Errorf("gateway: invalid json response: %w", err)
		}
		fields := TopLevelParams(payload)
		// fold a nested PaymentInfo object down so segment extraction and
		// expiry parsing see one shape
		for i, seg := range SegmentsFromPayload(payload) {
			fields[segmentFields[i]] = seg
		}
		return fields, nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid form response: %w", err)
	}
	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	return fields, nil
}
