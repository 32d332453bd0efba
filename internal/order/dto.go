package order

import (
	"time"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/internal/core/common/validation"
	"github.com/yuchialin/cvspay/internal/gateway"
)

// CreateOrderDTO is the request payload for creating a barcode payment.
type CreateOrderDTO struct {
	ClientOrderID  string  `json:"client_order_id"`
	Amount         int64   `json:"amount"`
	Description    string  `json:"description"`
	CallbackURL    *string `json:"callback_url,omitempty"`
	ProductOrderID *int64  `json:"product_order_id,omitempty"`
}

func (dto CreateOrderDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("client_order_id", dto.ClientOrderID).Required().MaxLength(64)
	v.Field("description", dto.Description).MaxLength(500)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	if appErr := validation.ValidateBarcodeAmount(dto.Amount); appErr != nil {
		return appErr
	}
	return nil
}

// CreateOrderResponse is what a client system gets back from order creation.
// Exactly one of Segments or RedirectForm is populated depending on the
// gateway's acknowledgement mode; in deferred mode both are absent and
// EstimatedReadyAt tells the caller when to poll.
type CreateOrderResponse struct {
	OrderID          int64                 `json:"order_id"`
	ClientOrderID    string                `json:"client_order_id"`
	MerchantTradeNo  string                `json:"merchant_trade_no"`
	Mode             gateway.ResponseMode  `json:"mode"`
	Status           string                `json:"status"`
	BarcodeStatus    string                `json:"barcode_status"`
	Barcode          string                `json:"barcode,omitempty"`
	BarcodeSegments  []string              `json:"barcode_segments,omitempty"`
	ExpireDate       time.Time             `json:"expire_date"`
	EstimatedReadyAt *time.Time            `json:"estimated_ready_at,omitempty"`
	RedirectForm     *gateway.RedirectForm `json:"redirect_form,omitempty"`
}

// StatusResponse is the cached view of an order, served without touching the
// gateway.
type StatusResponse struct {
	OrderID         int64      `json:"order_id"`
	ClientOrderID   string     `json:"client_order_id"`
	Status          string     `json:"status"`
	BarcodeStatus   string     `json:"barcode_status"`
	Barcode         string     `json:"barcode,omitempty"`
	BarcodeSegments []string   `json:"barcode_segments,omitempty"`
	PaymentURL      string     `json:"payment_url,omitempty"`
	ExpireDate      time.Time  `json:"expire_date"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

// RefreshResponse reports the outcome of an explicit reconciliation query.
type RefreshResponse struct {
	Success        bool   `json:"success"`
	BarcodeUpdated bool   `json:"barcode_updated"`
	TradeStatus    string `json:"trade_status"`
	RtnMsg         string `json:"rtn_msg,omitempty"`
}

func statusResponseFrom(o *Order) *StatusResponse {
	return &StatusResponse{
		OrderID:         o.ID,
		ClientOrderID:   o.ExternalOrderID,
		Status:          o.Status,
		BarcodeStatus:   o.BarcodeStatus,
		Barcode:         o.Barcode(),
		BarcodeSegments: o.BarcodeSegments,
		PaymentURL:      o.PaymentURL,
		ExpireDate:      o.ExpireDate,
		PaidAt:          o.PaidAt,
	}
}

// Domain errors shared by the service and its handlers.
var (
	ErrNotFound      = internal.ErrOrderNotFound
	ErrTradeNotFound = internal.ErrTradeNotFound
	ErrDuplicate     = internal.ErrDuplicateOrder
	ErrNotPending    = internal.ErrOrderNotPending
)
