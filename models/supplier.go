package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

type Supplier struct {
	ID        int            `gorm:"primary_key" json:"id"`
	Uuid      string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId  string         `gorm:"index;not null" json:"tenant_id"`
	Code      string         `gorm:"size:100;not null" json:"code" binding:"required"`
	Name      string         `gorm:"size:255;not null" json:"name" binding:"required"`
	Currency  string         `gorm:"size:10;not null;default:'CNY'" json:"currency"`
	IsActive  *bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// MaterialSupplier is the sourcing relation consulted by action
// classification ("buy" needs at least one supplier).
type MaterialSupplier struct {
	ID                   int            `gorm:"primary_key" json:"id"`
	TenantId             string         `gorm:"index;not null" json:"tenant_id"`
	MaterialId           int            `gorm:"index;not null" json:"material_id"`
	SupplierId           int            `gorm:"index;not null" json:"supplier_id"`
	SupplierMaterialCode string         `gorm:"size:100" json:"supplier_material_code"`
	TransitTimeDays      int            `gorm:"default:0" json:"transit_time_days"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type NewSupplier struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Currency string `json:"currency"`
}

func (s *Supplier) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&s.Uuid)
	return nil
}

func (s Supplier) GetId() int { return s.ID }

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Supplier](ctx, tenantId, "code", input.Code, 0); err != nil {
		return nil, err
	}
	currency := input.Currency
	if currency == "" {
		currency = "CNY"
	}
	supplier := Supplier{
		TenantId: tenantId,
		Code:     input.Code,
		Name:     input.Name,
		Currency: currency,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}
