package order

import (
	"encoding/json"
	"time"

	orderDatamodel "github.com/yuchialin/cvspay/internal/core/datamodel/order"
	"github.com/yuchialin/cvspay/internal/gateway"
)

// Payment status values. Paid and cancelled are terminal; expired marks the
// barcode window as closed.
const (
	StatusPending   = orderDatamodel.StatusPending
	StatusPaid      = orderDatamodel.StatusPaid
	StatusExpired   = orderDatamodel.StatusExpired
	StatusCancelled = orderDatamodel.StatusCancelled
)

// Barcode status values. This axis moves independently of the payment
// status and only ever forward: pending -> generated -> expired.
const (
	BarcodePending   = orderDatamodel.BarcodePending
	BarcodeGenerated = orderDatamodel.BarcodeGenerated
	BarcodeExpired   = orderDatamodel.BarcodeExpired
)

type Order struct {
	ID              int64      `json:"id"`
	ExternalOrderID string     `json:"external_order_id"`
	ClientSystem    string     `json:"client_system"`
	Amount          int64      `json:"amount"`
	Description     string     `json:"description"`
	CallbackURL     *string    `json:"callback_url,omitempty"`
	ProductOrderID  *int64     `json:"product_order_id,omitempty"`
	Status          string     `json:"status"`
	BarcodeStatus   string     `json:"barcode_status"`
	PaymentCode     string     `json:"payment_code,omitempty"`
	PaymentURL      string     `json:"payment_url,omitempty"`
	BarcodeSegments []string   `json:"barcode_segments,omitempty"`
	ExpireDate      time.Time  `json:"expire_date"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	PayerName       *string    `json:"payer_name,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Barcode returns the display form of the segments, empty until generated.
func (o *Order) Barcode() string {
	return gateway.JoinSegments(o.BarcodeSegments)
}

func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending
}

// BarcodeExpiredAt reports whether the barcode window has closed without the
// order reaching a terminal payment state. Orders with no expire date yet
// (deferred mode before the gateway answered) never expire this way.
func (o *Order) BarcodeExpiredAt(now time.Time) bool {
	if o.Status != StatusPending {
		return false
	}
	if o.ExpireDate.IsZero() {
		return false
	}
	return now.After(o.ExpireDate)
}

// Expire flips both axes to their expired values.
func (o *Order) Expire() {
	o.Status = StatusExpired
	o.BarcodeStatus = BarcodeExpired
	o.UpdatedAt = time.Now()
}

// MarkPaid stamps the payment timestamp and provisions a payer placeholder
// when the gateway did not supply one.
func (o *Order) MarkPaid(paidAt time.Time) {
	o.Status = StatusPaid
	o.PaidAt = &paidAt
	if o.PayerName == nil {
		placeholder := "unspecified"
		o.PayerName = &placeholder
	}
	o.UpdatedAt = time.Now()
}

// ApplySegments replaces the whole segment set in one step. Partial merges
// are never allowed: a webhook and a reconciliation poll racing on the same
// order must each leave a consistent set behind.
func (o *Order) ApplySegments(segments []string, paymentURL string, expireDate time.Time) {
	o.BarcodeSegments = append([]string(nil), segments...)
	o.PaymentCode = gateway.JoinSegments(segments)
	o.BarcodeStatus = BarcodeGenerated
	if paymentURL != "" {
		o.PaymentURL = paymentURL
	}
	if !expireDate.IsZero() {
		o.ExpireDate = expireDate
	}
	o.UpdatedAt = time.Now()
}

// Transaction mirrors one signed exchange with the gateway. MerchantTradeNo
// is the join key for inbound webhooks and never changes after creation.
type Transaction struct {
	ID              int64     `json:"id"`
	PaymentOrderID  int64     `json:"payment_order_id"`
	MerchantTradeNo string    `json:"merchant_trade_no"`
	Amount          int64     `json:"amount"`
	RtnCode         *int      `json:"rtn_code,omitempty"`
	RtnMsg          string    `json:"rtn_msg,omitempty"`
	GatewayTradeNo  *string   `json:"gateway_trade_no,omitempty"`
	RawResponse     map[string]string
	BarcodeSegments []string
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func ToDataModel(o *Order) *orderDatamodel.PaymentOrder {
	dm := &orderDatamodel.PaymentOrder{
		ID:              o.ID,
		ExternalOrderID: o.ExternalOrderID,
		ClientSystem:    o.ClientSystem,
		Amount:          o.Amount,
		Description:     o.Description,
		CallbackURL:     o.CallbackURL,
		ProductOrderID:  o.ProductOrderID,
		Status:          o.Status,
		BarcodeStatus:   o.BarcodeStatus,
		PaymentCode:     o.PaymentCode,
		PaymentURL:      o.PaymentURL,
		ExpireDate:      o.ExpireDate,
		PaidAt:          o.PaidAt,
		PayerName:       o.PayerName,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if len(o.BarcodeSegments) > 0 {
		if raw, err := json.Marshal(o.BarcodeSegments); err == nil {
			dm.BarcodeData = raw
		}
	}
	return dm
}

func FromDataModel(dm *orderDatamodel.PaymentOrder) *Order {
	o := &Order{
		ID:              dm.ID,
		ExternalOrderID: dm.ExternalOrderID,
		ClientSystem:    dm.ClientSystem,
		Amount:          dm.Amount,
		Description:     dm.Description,
		CallbackURL:     dm.CallbackURL,
		ProductOrderID:  dm.ProductOrderID,
		Status:          dm.Status,
		BarcodeStatus:   dm.BarcodeStatus,
		PaymentCode:     dm.PaymentCode,
		PaymentURL:      dm.PaymentURL,
		ExpireDate:      dm.ExpireDate,
		PaidAt:          dm.PaidAt,
		PayerName:       dm.PayerName,
		CreatedAt:       dm.CreatedAt,
		UpdatedAt:       dm.UpdatedAt,
	}
	if len(dm.BarcodeData) > 0 {
		var segments []string
		if err := json.Unmarshal(dm.BarcodeData, &segments); err == nil {
			o.BarcodeSegments = segments
		}
	}
	return o
}

func TransactionToDataModel(t *Transaction) *orderDatamodel.GatewayTransaction {
	dm := &orderDatamodel.GatewayTransaction{
		ID:              t.ID,
		PaymentOrderID:  t.PaymentOrderID,
		MerchantTradeNo: t.MerchantTradeNo,
		Amount:          t.Amount,
		RtnCode:         t.RtnCode,
		RtnMsg:          t.RtnMsg,
		GatewayTradeNo:  t.GatewayTradeNo,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if len(t.RawResponse) > 0 {
		if raw, err := json.Marshal(t.RawResponse); err == nil {
			dm.RawResponse = raw
		}
	}
	if len(t.BarcodeSegments) > 0 {
		if raw, err := json.Marshal(t.BarcodeSegments); err == nil {
			dm.BarcodeSegments = raw
		}
	}
	return dm
}

func TransactionFromDataModel(dm *orderDatamodel.GatewayTransaction) *Transaction {
	t := &Transaction{
		ID:              dm.ID,
		PaymentOrderID:  dm.PaymentOrderID,
		MerchantTradeNo: dm.MerchantTradeNo,
		Amount:          dm.Amount,
		RtnCode:         dm.RtnCode,
		RtnMsg:          dm.RtnMsg,
		GatewayTradeNo:  dm.GatewayTradeNo,
		CreatedAt:       dm.CreatedAt,
		UpdatedAt:       dm.UpdatedAt,
	}
	if len(dm.RawResponse) > 0 {
		var raw map[string]string
		if err := json.Unmarshal(dm.RawResponse, &raw); err == nil {
			t.RawResponse = raw
		}
	}
	if len(dm.BarcodeSegments) > 0 {
		var segments []string
		if err := json.Unmarshal(dm.BarcodeSegments, &segments); err == nil {
			t.BarcodeSegments = segments
		}
	}
	return t
}
