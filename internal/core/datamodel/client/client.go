package client

import "time"

// ClientSystem is a third-party integration allowed to create barcode
// payments. The API key is stored as a bcrypt hash.
type ClientSystem struct {
	ID         int64     `gorm:"primaryKey"`
	ClientID   string    `gorm:"column:client_id;not null;uniqueIndex"`
	Name       string    `gorm:"column:name;not null"`
	APIKeyHash string    `gorm:"column:api_key_hash;not null"`
	Active     bool      `gorm:"column:active;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (ClientSystem) TableName() string { return "client_systems" }
