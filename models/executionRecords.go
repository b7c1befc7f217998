package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportingRecord books produced quantity against one work order operation.
type ReportingRecord struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Uuid              string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId          string          `gorm:"index;not null" json:"tenant_id"`
	WorkOrderId       int             `gorm:"index;not null" json:"work_order_id"`
	OperationId       int             `gorm:"index;not null" json:"operation_id"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	DefectiveQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"defective_quantity"`
	ReportedBy        string          `gorm:"size:100" json:"reported_by"`
	ReportedAt        time.Time       `gorm:"not null" json:"reported_at"`
	Notes             string          `gorm:"size:500" json:"notes"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// DefectRecord tracks defective output awaiting disposition.
type DefectRecord struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Uuid        string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId    string          `gorm:"index;not null" json:"tenant_id"`
	WorkOrderId int             `gorm:"index;not null" json:"work_order_id"`
	MaterialId  int             `gorm:"index;not null" json:"material_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Reason      string          `gorm:"size:500" json:"reason"`
	IsResolved  *bool           `gorm:"not null;default:false" json:"is_resolved"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// ScrapRecord writes defective quantity off for good.
type ScrapRecord struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Uuid           string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId       string          `gorm:"index;not null" json:"tenant_id"`
	DefectRecordId int             `gorm:"index;not null" json:"defect_record_id"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Reason         string          `gorm:"size:500" json:"reason"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// ReworkOrder sends defective quantity back through production.
type ReworkOrder struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Uuid           string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId       string          `gorm:"index;not null" json:"tenant_id"`
	Code           string          `gorm:"size:100;not null" json:"code"`
	DefectRecordId int             `gorm:"index;not null" json:"defect_record_id"`
	WorkOrderId    int             `gorm:"index;not null" json:"work_order_id"`
	MaterialId     int             `gorm:"index;not null" json:"material_id"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Status         WorkOrderStatus `gorm:"type:enum('draft','released','in_progress','completed','cancelled');not null;default:'draft'" json:"status"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// OutsourceOrder hands one operation of a work order to an external supplier.
type OutsourceOrder struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Uuid        string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId    string          `gorm:"index;not null" json:"tenant_id"`
	Code        string          `gorm:"size:100;not null" json:"code"`
	WorkOrderId int             `gorm:"index;not null" json:"work_order_id"`
	OperationId int             `gorm:"index;not null" json:"operation_id"`
	SupplierId  int             `gorm:"index;not null" json:"supplier_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"unit_price"`
	Status      DocumentStatus  `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// MaterialBinding ties issued or returned material batches to a work order.
type MaterialBinding struct {
	ID          int                 `gorm:"primary_key" json:"id"`
	Uuid        string              `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId    string              `gorm:"index;not null" json:"tenant_id"`
	WorkOrderId int                 `gorm:"index;not null" json:"work_order_id"`
	MaterialId  int                 `gorm:"index;not null" json:"material_id"`
	BatchNo     string              `gorm:"size:100" json:"batch_no"`
	BindingType MaterialBindingType `gorm:"type:enum('feeding','discharging');not null" json:"binding_type"`
	Quantity    decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"quantity"`
	BoundBy     string              `gorm:"size:100" json:"bound_by"`
	BoundAt     time.Time           `gorm:"not null" json:"bound_at"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt   gorm.DeletedAt      `gorm:"index" json:"deleted_at"`
}

// PackingBinding groups finished output into labelled packages for delivery.
type PackingBinding struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Uuid        string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId    string          `gorm:"index;not null" json:"tenant_id"`
	WorkOrderId int             `gorm:"index;not null" json:"work_order_id"`
	MaterialId  int             `gorm:"index;not null" json:"material_id"`
	PackageNo   string          `gorm:"size:100;not null" json:"package_no"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

func (r *ReportingRecord) BeforeCreate(tx *gorm.DB) error { ensureUuid(&r.Uuid); return nil }
func (r *DefectRecord) BeforeCreate(tx *gorm.DB) error    { ensureUuid(&r.Uuid); return nil }
func (r *ScrapRecord) BeforeCreate(tx *gorm.DB) error     { ensureUuid(&r.Uuid); return nil }
func (r *ReworkOrder) BeforeCreate(tx *gorm.DB) error     { ensureUuid(&r.Uuid); return nil }
func (r *OutsourceOrder) BeforeCreate(tx *gorm.DB) error  { ensureUuid(&r.Uuid); return nil }
func (r *MaterialBinding) BeforeCreate(tx *gorm.DB) error { ensureUuid(&r.Uuid); return nil }
func (r *PackingBinding) BeforeCreate(tx *gorm.DB) error  { ensureUuid(&r.Uuid); return nil }

type NewMaterialBinding struct {
	WorkOrderId int                 `json:"work_order_id" binding:"required"`
	MaterialId  int                 `json:"material_id" binding:"required"`
	BatchNo     string              `json:"batch_no"`
	BindingType MaterialBindingType `json:"binding_type" binding:"required"`
	Quantity    decimal.Decimal     `json:"quantity" binding:"required"`
}

func CreateMaterialBinding(ctx context.Context, input *NewMaterialBinding) (*MaterialBinding, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[WorkOrder](ctx, tenantId, input.WorkOrderId); err != nil {
		return nil, utils.NewNotFoundError("work order not found")
	}
	if err := utils.ValidateResourceId[Material](ctx, tenantId, input.MaterialId); err != nil {
		return nil, utils.NewNotFoundError("material not found")
	}
	if input.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("quantity must be positive")
	}
	username, _ := utils.GetUsernameFromContext(ctx)
	binding := MaterialBinding{
		TenantId:    tenantId,
		WorkOrderId: input.WorkOrderId,
		MaterialId:  input.MaterialId,
		BatchNo:     input.BatchNo,
		BindingType: input.BindingType,
		Quantity:    input.Quantity,
		BoundBy:     username,
		BoundAt:     time.Now(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&binding).Error; err != nil {
		return nil, err
	}
	return &binding, nil
}
