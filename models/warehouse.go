package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID        int            `gorm:"primary_key" json:"id"`
	Uuid      string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId  string         `gorm:"index;not null" json:"tenant_id"`
	Code      string         `gorm:"size:100;not null" json:"code" binding:"required"`
	Name      string         `gorm:"size:255;not null" json:"name" binding:"required"`
	IsActive  *bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type NewWarehouse struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (w *Warehouse) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&w.Uuid)
	return nil
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Warehouse](ctx, tenantId, "code", input.Code, 0); err != nil {
		return nil, err
	}
	warehouse := Warehouse{
		TenantId: tenantId,
		Code:     input.Code,
		Name:     input.Name,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}
