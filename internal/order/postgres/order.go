package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	orderDatamodel "github.com/yuchialin/cvspay/internal/core/datamodel/order"
	"github.com/yuchialin/cvspay/internal/order"
)

// OrderRepository implements order.Repository using GORM.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *order.Order) error {
	dm := order.ToDataModel(o)
	if err := r.db.Create(dm).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return order.ErrDuplicate
		}
		return err
	}
	o.ID = dm.ID
	return nil
}

func (r *OrderRepository) GetByID(id int64) (*order.Order, error) {
	var dm orderDatamodel.PaymentOrder
	err := r.db.Where("id = ?", id).First(&dm).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return order.FromDataModel(&dm), nil
}

func (r *OrderRepository) GetByClientOrder(externalOrderID, clientSystem string) (*order.Order, error) {
	var dm orderDatamodel.PaymentOrder
	err := r.db.Where("external_order_id = ? AND client_system = ?", externalOrderID, clientSystem).
		First(&dm).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return order.FromDataModel(&dm), nil
}

func (r *OrderRepository) Update(o *order.Order) error {
	o.UpdatedAt = time.Now()
	return r.db.Save(order.ToDataModel(o)).Error
}

func (r *OrderRepository) Delete(id int64) error {
	return r.db.Delete(&orderDatamodel.PaymentOrder{}, id).Error
}

// ResetBarcode is the administrative escape hatch: the only permitted
// backward move on the barcode axis. It wipes the generated segments so the
// next reconciliation can repopulate them. Not exposed over HTTP.
func (r *OrderRepository) ResetBarcode(orderID int64) error {
	return r.db.Model(&orderDatamodel.PaymentOrder{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"barcode_status": orderDatamodel.BarcodePending,
			"barcode_data":   nil,
			"payment_code":   "",
			"payment_url":    "",
			"updated_at":     time.Now(),
		}).Error
}

func (r *OrderRepository) CreateTransaction(tx *order.Transaction) error {
	dm := order.TransactionToDataModel(tx)
	if err := r.db.Create(dm).Error; err != nil {
		return err
	}
	tx.ID = dm.ID
	return nil
}

func (r *OrderRepository) GetTransactionByTradeNo(merchantTradeNo string) (*order.Transaction, error) {
	var dm orderDatamodel.GatewayTransaction
	err := r.db.Where("merchant_trade_no = ?", merchantTradeNo).First(&dm).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, order.ErrTradeNotFound
		}
		return nil, err
	}
	return order.TransactionFromDataModel(&dm), nil
}

func (r *OrderRepository) GetTransactionByOrderID(orderID int64) (*order.Transaction, error) {
	var dm orderDatamodel.GatewayTransaction
	err := r.db.Where("payment_order_id = ?", orderID).
		Order("created_at DESC").
		First(&dm).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, order.ErrTradeNotFound
		}
		return nil, err
	}
	return order.TransactionFromDataModel(&dm), nil
}

func (r *OrderRepository) UpdateTransaction(tx *order.Transaction) error {
	tx.UpdatedAt = time.Now()
	return r.db.Save(order.TransactionToDataModel(tx)).Error
}

func (r *OrderRepository) DeleteTransaction(id int64) error {
	return r.db.Delete(&orderDatamodel.GatewayTransaction{}, id).Error
}
