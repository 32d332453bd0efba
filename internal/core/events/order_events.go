package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentReceived  = "payment.received"
	EventTypeBarcodeGenerated = "barcode.generated"
	EventTypeOrderExpired     = "order.expired"
)

type PaymentReceivedEvent struct {
	BaseEvent
	OrderID         int64      `json:"order_id"`
	ExternalOrderID string     `json:"external_order_id"`
	ClientSystem    string     `json:"client_system"`
	MerchantTradeNo string     `json:"merchant_trade_no"`
	Amount          int64      `json:"amount"`
	PaidAt          time.Time  `json:"paid_at"`
	CallbackURL     string     `json:"callback_url,omitempty"`
}

func NewPaymentReceivedEvent(orderID int64, externalOrderID, clientSystem, merchantTradeNo string, amount int64, paidAt time.Time, callbackURL string) *PaymentReceivedEvent {
	return &PaymentReceivedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentReceived,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":          orderID,
				"external_order_id": externalOrderID,
				"client_system":     clientSystem,
				"merchant_trade_no": merchantTradeNo,
				"amount":            amount,
				"paid_at":           paidAt,
			},
		},
		OrderID:         orderID,
		ExternalOrderID: externalOrderID,
		ClientSystem:    clientSystem,
		MerchantTradeNo: merchantTradeNo,
		Amount:          amount,
		PaidAt:          paidAt,
		CallbackURL:     callbackURL,
	}
}

type BarcodeGeneratedEvent struct {
	BaseEvent
	OrderID         int64    `json:"order_id"`
	MerchantTradeNo string   `json:"merchant_trade_no"`
	Segments        []string `json:"segments"`
}

func NewBarcodeGeneratedEvent(orderID int64, merchantTradeNo string, segments []string) *BarcodeGeneratedEvent {
	return &BarcodeGeneratedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeBarcodeGenerated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":          orderID,
				"merchant_trade_no": merchantTradeNo,
				"segments":          segments,
			},
		},
		OrderID:         orderID,
		MerchantTradeNo: merchantTradeNo,
		Segments:        segments,
	}
}

type OrderExpiredEvent struct {
	BaseEvent
	OrderID         int64     `json:"order_id"`
	ExternalOrderID string    `json:"external_order_id"`
	ExpireDate      time.Time `json:"expire_date"`
}

func NewOrderExpiredEvent(orderID int64, externalOrderID string, expireDate time.Time) *OrderExpiredEvent {
	return &OrderExpiredEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeOrderExpired,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":          orderID,
				"external_order_id": externalOrderID,
				"expire_date":       expireDate,
			},
		},
		OrderID:         orderID,
		ExternalOrderID: externalOrderID,
		ExpireDate:      expireDate,
	}
}
