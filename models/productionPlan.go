package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductionPlan is the persisted result of one planning run. Items hold the
// netted requirements per material and bucket, warnings hold everything the
// run wants a planner to look at.
type ProductionPlan struct {
	ID             int                  `gorm:"primary_key" json:"id"`
	Uuid           string               `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId       string               `gorm:"index;not null" json:"tenant_id"`
	Code           string               `gorm:"size:100;not null" json:"code"`
	PlanType       PlanType             `gorm:"type:enum('MRP','LRP');not null" json:"plan_type"`
	TimeBucket     TimeBucket           `gorm:"type:enum('day','week');not null;default:'day'" json:"time_bucket"`
	Status         PlanStatus           `gorm:"type:enum('draft','submitted','approved','locked','executing');not null;default:'draft'" json:"status"`
	PlanDate       time.Time            `gorm:"not null" json:"plan_date"`
	NeedsRecompute *bool                `gorm:"not null;default:false" json:"needs_recompute"`
	Notes          string               `gorm:"type:text" json:"notes"`
	Items          []ProductionPlanItem `gorm:"foreignKey:PlanId" json:"items"`
	Warnings       []PlanWarning        `gorm:"foreignKey:PlanId" json:"warnings"`
	CreatedAt      time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt       `gorm:"index" json:"deleted_at"`
}

// ProductionPlanItem is one planned order line. Top-level lines keep the
// demand item link; exploded component lines keep the parent line instead.
type ProductionPlanItem struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	TenantId           string          `gorm:"index;not null" json:"tenant_id"`
	PlanId             int             `gorm:"index;not null" json:"plan_id"`
	MaterialId         int             `gorm:"index;not null" json:"material_id"`
	BomLevel           int             `gorm:"not null;default:0" json:"bom_level"`
	DemandItemId       *int            `gorm:"index" json:"demand_item_id"`
	ParentItemId       *int            `gorm:"index" json:"parent_item_id"`
	SalesOrderId       *int            `gorm:"index" json:"sales_order_id"`
	BucketDate         time.Time       `gorm:"not null" json:"bucket_date"`
	DueDate            time.Time       `gorm:"not null" json:"due_date"`
	SuggestedStartDate time.Time       `gorm:"not null" json:"suggested_start_date"`
	GrossQuantity      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"gross_quantity"`
	AvailableInventory decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"available_inventory"`
	SafetyStock        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"safety_stock"`
	NetQuantity        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"net_quantity"`
	PlannedQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"planned_quantity"`
	SuggestedAction    SuggestedAction `gorm:"type:enum('make','buy','none');not null;default:'none'" json:"suggested_action"`
	SupplierId         *int            `gorm:"index" json:"supplier_id"`
	ExecutionStatus    ExecutionStatus `gorm:"type:enum('pending','generated','done');not null;default:'pending'" json:"execution_status"`
	WorkOrderId        *int            `gorm:"index" json:"work_order_id"`
	WorkOrderQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"work_order_quantity"`
	PurchaseOrderId    *int            `gorm:"index" json:"purchase_order_id"`
	PurchaseOrderQty   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0;column:purchase_order_quantity" json:"purchase_order_quantity"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type PlanWarning struct {
	ID         int             `gorm:"primary_key" json:"id"`
	TenantId   string          `gorm:"index;not null" json:"tenant_id"`
	PlanId     int             `gorm:"index;not null" json:"plan_id"`
	PlanItemId *int            `gorm:"index" json:"plan_item_id"`
	MaterialId int             `gorm:"index" json:"material_id"`
	Kind       PlanWarningKind `gorm:"type:enum('LateStartWarning','SourcingWarning','ConflictWarning');not null" json:"kind"`
	Message    string          `gorm:"size:500;not null" json:"message"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (p *ProductionPlan) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&p.Uuid)
	return nil
}

func (p ProductionPlan) GetId() int { return p.ID }

// FetchPlanWithResults loads one plan with items and warnings in stable order.
func FetchPlanWithResults(ctx context.Context, tenantId string, id int) (*ProductionPlan, error) {
	db := config.GetDB()
	var plan ProductionPlan
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("bucket_date asc, material_id asc, id asc")
		}).
		Preload("Warnings", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		}).
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// MarkPlansNeedRecompute flags every plan still holding the given demand items
// so the UI can show stale results. Runs in the caller's transaction.
func MarkPlansNeedRecompute(ctx context.Context, tx *gorm.DB, tenantId string, demandItemIds []int) error {
	if len(demandItemIds) == 0 {
		return nil
	}
	var planIds []int
	if err := tx.WithContext(ctx).Model(&ProductionPlanItem{}).
		Where("tenant_id = ? AND demand_item_id IN ?", tenantId, demandItemIds).
		Distinct().Pluck("plan_id", &planIds).Error; err != nil {
		return err
	}
	if len(planIds) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&ProductionPlan{}).
		Where("tenant_id = ? AND id IN ?", tenantId, planIds).
		UpdateColumn("needs_recompute", true).Error
}
