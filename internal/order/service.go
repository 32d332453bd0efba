package order

import (
	"context"
	"log/slog"
	"time"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/internal/core/events"
	"github.com/yuchialin/cvspay/internal/gateway"
)

// Repository defines the data access methods for payment orders and their
// gateway transactions.
type Repository interface {
	Create(order *Order) error
	GetByID(id int64) (*Order, error)
	GetByClientOrder(externalOrderID, clientSystem string) (*Order, error)
	Update(order *Order) error
	Delete(id int64) error

	CreateTransaction(tx *Transaction) error
	GetTransactionByTradeNo(merchantTradeNo string) (*Transaction, error)
	GetTransactionByOrderID(orderID int64) (*Transaction, error)
	UpdateTransaction(tx *Transaction) error
	DeleteTransaction(id int64) error
}

// GatewayAPI is the slice of the gateway client the order service needs.
type GatewayAPI interface {
	MerchantTradeNo(orderID int64) string
	CreateBarcodeOrder(ctx context.Context, req gateway.CreateOrderRequest, merchantTradeNo string) (*gateway.CreateResult, error)
	QueryPaymentInfo(ctx context.Context, merchantTradeNo string) (*gateway.PaymentInfo, error)
}

// EventPublisher decouples the service from the event bus implementation.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service owns the payment order state machine.
type Service struct {
	repo    Repository
	gateway GatewayAPI
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, gatewayClient GatewayAPI, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gatewayClient,
		events:  publisher,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock pins the service clock, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateOrder provisions a pending order, reserves a gateway transaction and
// submits the signed create request. A gateway failure rolls both local rows
// back so a failed create never leaves an orphaned pending order behind.
func (s *Service) CreateOrder(ctx context.Context, clientSystem string, dto CreateOrderDTO) (*CreateOrderResponse, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("order validation failed", "error", err, "client_system", clientSystem)
		return nil, err
	}

	if existing, err := s.repo.GetByClientOrder(dto.ClientOrderID, clientSystem); err == nil && existing != nil {
		s.logger.Warn("duplicate client order rejected",
			"client_order_id", dto.ClientOrderID,
			"client_system", clientSystem,
			"existing_order_id", existing.ID)
		return nil, ErrDuplicate
	}

	now := s.now()
	o := &Order{
		ExternalOrderID: dto.ClientOrderID,
		ClientSystem:    clientSystem,
		Amount:          dto.Amount,
		Description:     dto.Description,
		CallbackURL:     dto.CallbackURL,
		ProductOrderID:  dto.ProductOrderID,
		Status:          StatusPending,
		BarcodeStatus:   BarcodePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(o); err != nil {
		s.logger.Error("failed to create payment order", "error", err, "client_system", clientSystem)
		return nil, internal.NewInternalError("could not create payment order", err)
	}

	merchantTradeNo := s.gateway.MerchantTradeNo(o.ID)
	tx := &Transaction{
		PaymentOrderID:  o.ID,
		MerchantTradeNo: merchantTradeNo,
		Amount:          o.Amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateTransaction(tx); err != nil {
		s.logger.Error("failed to reserve gateway transaction", "error", err, "order_id", o.ID)
		s.rollbackCreate(o, nil)
		return nil, internal.NewInternalError("could not reserve gateway transaction", err)
	}

	result, err := s.gateway.CreateBarcodeOrder(ctx, gateway.CreateOrderRequest{
		OrderID:      o.ID,
		Amount:       o.Amount,
		Description:  o.Description,
		ClientSystem: clientSystem,
	}, merchantTradeNo)
	if err != nil {
		s.logger.Error("gateway order creation failed, rolling back",
			"error", err,
			"order_id", o.ID,
			"merchant_trade_no", merchantTradeNo)
		s.rollbackCreate(o, tx)
		return nil, err
	}

	tx.RtnCode = &result.RtnCode
	tx.RtnMsg = result.RtnMsg
	if result.GatewayTradeNo != "" {
		gwTradeNo := result.GatewayTradeNo
		tx.GatewayTradeNo = &gwTradeNo
	}
	tx.RawResponse = result.Raw
	tx.BarcodeSegments = result.Segments
	if err := s.repo.UpdateTransaction(tx); err != nil {
		s.logger.Error("failed to record gateway response", "error", err, "order_id", o.ID)
	}

	o.ExpireDate = result.ExpireDate
	if result.Mode == gateway.ModeDirect {
		o.ApplySegments(result.Segments, "", result.ExpireDate)
	}
	if err := s.repo.Update(o); err != nil {
		s.logger.Error("failed to persist order after gateway ack", "error", err, "order_id", o.ID)
		return nil, internal.NewInternalError("could not persist payment order", err)
	}

	if result.Mode == gateway.ModeDirect {
		if err := s.events.Publish(ctx, events.NewBarcodeGeneratedEvent(o.ID, merchantTradeNo, o.BarcodeSegments)); err != nil {
			s.logger.Error("failed to publish barcode event", "error", err, "order_id", o.ID)
		}
	}

	s.logger.Info("payment order created",
		"order_id", o.ID,
		"client_system", clientSystem,
		"merchant_trade_no", merchantTradeNo,
		"mode", result.Mode,
		"amount", o.Amount)

	resp := &CreateOrderResponse{
		OrderID:         o.ID,
		ClientOrderID:   o.ExternalOrderID,
		MerchantTradeNo: merchantTradeNo,
		Mode:            result.Mode,
		Status:          o.Status,
		BarcodeStatus:   o.BarcodeStatus,
		Barcode:         o.Barcode(),
		BarcodeSegments: o.BarcodeSegments,
		ExpireDate:      o.ExpireDate,
		RedirectForm:    result.Form,
	}
	if result.Mode == gateway.ModeDeferred {
		readyAt := result.EstimatedReadyAt
		resp.EstimatedReadyAt = &readyAt
	}
	return resp, nil
}

// rollbackCreate compensates a failed create. Best effort: a leftover row is
// logged, not surfaced over the gateway error the caller already gets.
func (s *Service) rollbackCreate(o *Order, tx *Transaction) {
	if tx != nil {
		if err := s.repo.DeleteTransaction(tx.ID); err != nil {
			s.logger.Error("rollback: failed to delete gateway transaction", "error", err, "transaction_id", tx.ID)
		}
	}
	if err := s.repo.Delete(o.ID); err != nil {
		s.logger.Error("rollback: failed to delete payment order", "error", err, "order_id", o.ID)
	}
}

// GetStatus serves the cached order state without touching the gateway.
// Expiry is detected here lazily and persisted on first sight.
func (s *Service) GetStatus(ctx context.Context, orderID int64, clientSystem string) (*StatusResponse, error) {
	o, err := s.ownedOrder(orderID, clientSystem)
	if err != nil {
		return nil, err
	}

	if o.BarcodeExpiredAt(s.now()) {
		o.Expire()
		if err := s.repo.Update(o); err != nil {
			s.logger.Error("failed to persist lazy expiry", "error", err, "order_id", o.ID)
			return nil, internal.NewInternalError("could not persist order expiry", err)
		}
		s.logger.Info("order expired at read time", "order_id", o.ID, "expire_date", o.ExpireDate)
		if err := s.events.Publish(ctx, events.NewOrderExpiredEvent(o.ID, o.ExternalOrderID, o.ExpireDate)); err != nil {
			s.logger.Error("failed to publish expiry event", "error", err, "order_id", o.ID)
		}
	}

	return statusResponseFrom(o), nil
}

// RefreshStatus actively re-queries the gateway for barcode segments and
// feeds the answer through the same update path payment-info webhooks use.
func (s *Service) RefreshStatus(ctx context.Context, orderID int64, clientSystem string) (*RefreshResponse, error) {
	o, err := s.ownedOrder(orderID, clientSystem)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.GetTransactionByOrderID(o.ID)
	if err != nil {
		s.logger.Error("no gateway transaction for order", "error", err, "order_id", o.ID)
		return nil, ErrTradeNotFound
	}

	info, err := s.gateway.QueryPaymentInfo(ctx, tx.MerchantTradeNo)
	if err != nil {
		return nil, err
	}

	updated, err := s.ApplyPaymentInfo(ctx, info)
	if err != nil {
		return nil, err
	}

	return &RefreshResponse{
		Success:        true,
		BarcodeUpdated: updated,
		TradeStatus:    o.Status,
		RtnMsg:         info.RtnMsg,
	}, nil
}

// MarkPaid transitions an order to paid, once. Redelivered webhooks for an
// already-paid order are acknowledged without firing the client notification
// a second time.
func (s *Service) MarkPaid(ctx context.Context, merchantTradeNo string, paidAt time.Time) error {
	tx, err := s.repo.GetTransactionByTradeNo(merchantTradeNo)
	if err != nil {
		s.logger.Warn("payment webhook for unknown trade", "merchant_trade_no", merchantTradeNo)
		return ErrTradeNotFound
	}

	o, err := s.repo.GetByID(tx.PaymentOrderID)
	if err != nil {
		return ErrNotFound
	}

	if o.Status == StatusPaid {
		s.logger.Info("payment webhook redelivered, already paid",
			"order_id", o.ID,
			"merchant_trade_no", merchantTradeNo)
		return nil
	}
	if o.Status == StatusCancelled {
		s.logger.Warn("payment webhook for cancelled order",
			"order_id", o.ID,
			"merchant_trade_no", merchantTradeNo)
		return ErrNotPending
	}

	o.MarkPaid(paidAt)
	if err := s.repo.Update(o); err != nil {
		s.logger.Error("failed to persist paid transition", "error", err, "order_id", o.ID)
		return internal.NewInternalError("could not persist paid transition", err)
	}

	s.logger.Info("order paid",
		"order_id", o.ID,
		"merchant_trade_no", merchantTradeNo,
		"paid_at", paidAt)

	callbackURL := ""
	if o.CallbackURL != nil {
		callbackURL = *o.CallbackURL
	}
	event := events.NewPaymentReceivedEvent(o.ID, o.ExternalOrderID, o.ClientSystem, merchantTradeNo, o.Amount, paidAt, callbackURL)
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish payment event", "error", err, "order_id", o.ID)
	}
	return nil
}

// ApplyPaymentInfo is the single write path for barcode segments, shared by
// the payment-info webhook and the reconciliation poll. The segment set is
// replaced whole; the barcode status never moves backwards.
func (s *Service) ApplyPaymentInfo(ctx context.Context, info *gateway.PaymentInfo) (bool, error) {
	tx, err := s.repo.GetTransactionByTradeNo(info.MerchantTradeNo)
	if err != nil {
		s.logger.Warn("payment info for unknown trade", "merchant_trade_no", info.MerchantTradeNo)
		return false, ErrTradeNotFound
	}

	tx.RtnCode = &info.RtnCode
	tx.RtnMsg = info.RtnMsg
	if info.GatewayTradeNo != "" {
		gwTradeNo := info.GatewayTradeNo
		tx.GatewayTradeNo = &gwTradeNo
	}
	if len(info.Segments) > 0 {
		tx.BarcodeSegments = info.Segments
	}
	if err := s.repo.UpdateTransaction(tx); err != nil {
		s.logger.Error("failed to record payment info on transaction", "error", err, "transaction_id", tx.ID)
	}

	if !info.HasSegments() {
		s.logger.Info("payment info carried no segments",
			"merchant_trade_no", info.MerchantTradeNo,
			"rtn_code", info.RtnCode)
		return false, nil
	}

	o, err := s.repo.GetByID(tx.PaymentOrderID)
	if err != nil {
		return false, ErrNotFound
	}

	if o.BarcodeStatus == BarcodeExpired {
		s.logger.Warn("segments arrived for expired barcode, ignored",
			"order_id", o.ID,
			"merchant_trade_no", info.MerchantTradeNo)
		return false, nil
	}

	o.ApplySegments(info.Segments, info.PaymentURL, info.ExpireDate)
	if err := s.repo.Update(o); err != nil {
		s.logger.Error("failed to persist barcode segments", "error", err, "order_id", o.ID)
		return false, internal.NewInternalError("could not persist barcode segments", err)
	}

	s.logger.Info("barcode segments applied",
		"order_id", o.ID,
		"merchant_trade_no", info.MerchantTradeNo,
		"segments", len(info.Segments))

	if err := s.events.Publish(ctx, events.NewBarcodeGeneratedEvent(o.ID, info.MerchantTradeNo, info.Segments)); err != nil {
		s.logger.Error("failed to publish barcode event", "error", err, "order_id", o.ID)
	}
	return true, nil
}

// Cancel marks a pending order cancelled. Terminal orders stay put.
func (s *Service) Cancel(ctx context.Context, orderID int64, clientSystem string) (*StatusResponse, error) {
	o, err := s.ownedOrder(orderID, clientSystem)
	if err != nil {
		return nil, err
	}

	if !o.CanBeCancelled() {
		s.logger.Warn("cancel rejected, order not pending",
			"order_id", o.ID,
			"status", o.Status)
		return nil, ErrNotPending
	}

	o.Status = StatusCancelled
	o.UpdatedAt = s.now()
	if err := s.repo.Update(o); err != nil {
		s.logger.Error("failed to persist cancellation", "error", err, "order_id", o.ID)
		return nil, internal.NewInternalError("could not persist cancellation", err)
	}

	s.logger.Info("order cancelled", "order_id", o.ID, "client_system", clientSystem)
	return statusResponseFrom(o), nil
}

// ownedOrder loads an order and enforces per-client ownership. A foreign
// order is reported as not found, not as forbidden, to avoid leaking ids
// across client systems.
func (s *Service) ownedOrder(orderID int64, clientSystem string) (*Order, error) {
	o, err := s.repo.GetByID(orderID)
	if err != nil {
		return nil, ErrNotFound
	}
	if clientSystem != "" && o.ClientSystem != clientSystem {
		s.logger.Warn("cross-client order access denied",
			"order_id", orderID,
			"client_system", clientSystem,
			"owner", o.ClientSystem)
		return nil, ErrNotFound
	}
	return o, nil
}
