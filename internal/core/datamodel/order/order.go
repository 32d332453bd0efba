package order

import (
	"time"

	"gorm.io/datatypes"
)

// Payment status values for a PaymentOrder. Paid and cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Barcode status values, an independent axis from the payment status. Only
// forward movement is allowed: pending -> generated -> expired.
const (
	BarcodePending   = "pending"
	BarcodeGenerated = "generated"
	BarcodeExpired   = "expired"
)

// PaymentOrder is the aggregate root for one third-party initiated payment.
// (ExternalOrderID, ClientSystem) is the idempotency boundary: the same pair
// must never produce two rows.
type PaymentOrder struct {
	ID              int64          `gorm:"primaryKey"`
	ExternalOrderID string         `gorm:"column:external_order_id;not null;uniqueIndex:idx_client_order"`
	ClientSystem    string         `gorm:"column:client_system;not null;uniqueIndex:idx_client_order"`
	Amount          int64          `gorm:"column:amount;not null"`
	Description     string         `gorm:"column:description"`
	CallbackURL     *string        `gorm:"column:callback_url"`
	ProductOrderID  *int64         `gorm:"column:product_order_id"`
	Status          string         `gorm:"column:status;default:pending"`
	BarcodeStatus   string         `gorm:"column:barcode_status;default:pending"`
	PaymentCode     string         `gorm:"column:payment_code"`
	PaymentURL      string         `gorm:"column:payment_url"`
	BarcodeData     datatypes.JSON `gorm:"column:barcode_data;type:jsonb"`
	ExpireDate      time.Time      `gorm:"column:expire_date"`
	PaidAt          *time.Time     `gorm:"column:paid_at"`
	PayerName       *string        `gorm:"column:payer_name"`
	CreatedAt       time.Time      `gorm:"column:created_at;default:now()"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;default:now()"`
}

func (PaymentOrder) TableName() string { return "payment_orders" }

// GatewayTransaction records one signed request sent to the gateway. The
// merchant trade number is immutable after creation; it is the join key that
// resolves inbound webhooks back to a PaymentOrder.
type GatewayTransaction struct {
	ID              int64          `gorm:"primaryKey"`
	PaymentOrderID  int64          `gorm:"column:payment_order_id;not null;index"`
	MerchantTradeNo string         `gorm:"column:merchant_trade_no;not null;uniqueIndex"`
	Amount          int64          `gorm:"column:amount;not null"`
	RtnCode         *int           `gorm:"column:rtn_code"`
	RtnMsg          string         `gorm:"column:rtn_msg"`
	GatewayTradeNo  *string        `gorm:"column:gateway_trade_no"`
	RawResponse     datatypes.JSON `gorm:"column:raw_response;type:jsonb"`
	BarcodeSegments datatypes.JSON `gorm:"column:barcode_segments;type:jsonb"`
	CreatedAt       time.Time      `gorm:"column:created_at;default:now()"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;default:now()"`
}

func (GatewayTransaction) TableName() string { return "gateway_transactions" }
