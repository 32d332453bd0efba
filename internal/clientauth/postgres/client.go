package postgres

import (
	"gorm.io/gorm"

	"github.com/yuchialin/cvspay/internal/clientauth"
	clientDatamodel "github.com/yuchialin/cvspay/internal/core/datamodel/client"
)

// ClientRepository implements clientauth.ClientRepository using GORM.
type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) clientauth.ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) GetByClientID(clientID string) (*clientauth.Client, error) {
	var dm clientDatamodel.ClientSystem
	if err := r.db.Where("client_id = ?", clientID).First(&dm).Error; err != nil {
		return nil, err
	}
	return &clientauth.Client{
		ID:         dm.ID,
		ClientID:   dm.ClientID,
		Name:       dm.Name,
		APIKeyHash: dm.APIKeyHash,
		Active:     dm.Active,
		CreatedAt:  dm.CreatedAt,
		UpdatedAt:  dm.UpdatedAt,
	}, nil
}
