package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DemandSource is implemented by upstream documents whose audited items feed
// the demand pool.
type DemandSource interface {
	SourceType() DemandSourceType
	SourceId() int
	SourceUuid() string
	SourceCode() string
	IsAudited() bool
	Mode() ProductionMode
	SalesOrderId() *int
	SourceItems() []DemandSourceItem
}

// DemandSourceItem is the source-item shape the pool ingests, independent of
// which document it came from.
type DemandSourceItem struct {
	SourceItemId int
	MaterialId   int
	Quantity     decimal.Decimal
	Unit         string
	DeliveryDate time.Time
	Notes        string
}

// Demand mirrors one audited source document in the pool. One demand per
// (tenant, source_type, source_id); re-audit reuses the row.
type Demand struct {
	ID           int              `gorm:"primary_key" json:"id"`
	Uuid         string           `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId     string           `gorm:"index;not null;uniqueIndex:idx_demand_source" json:"tenant_id"`
	SourceType   DemandSourceType `gorm:"type:enum('sales_forecast','sales_order');not null;uniqueIndex:idx_demand_source" json:"source_type"`
	SourceId     int              `gorm:"not null;uniqueIndex:idx_demand_source" json:"source_id"`
	SourceCode   string           `gorm:"size:100;not null" json:"source_code"`
	Mode         ProductionMode   `gorm:"type:enum('MTS','MTO');not null" json:"mode"`
	SalesOrderId *int             `gorm:"index" json:"sales_order_id"`
	IsActive     *bool            `gorm:"not null;default:true" json:"is_active"`
	Items        []DemandItem     `gorm:"foreignKey:DemandId" json:"items"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"deleted_at"`
}

// DemandItem is one planable line. PushedToComputation flips when a planning
// run consumes the line and back when the run is withdrawn; ComputationId
// points at the owning plan while pushed.
type DemandItem struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	TenantId            string          `gorm:"index;not null" json:"tenant_id"`
	DemandId            int             `gorm:"index;not null;uniqueIndex:idx_demand_item_source" json:"demand_id"`
	SourceItemId        int             `gorm:"not null;uniqueIndex:idx_demand_item_source" json:"source_item_id"`
	MaterialId          int             `gorm:"index;not null" json:"material_id"`
	Quantity            decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	DeliveredQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"delivered_quantity"`
	Unit                string          `gorm:"size:20" json:"unit"`
	DeliveryDate        time.Time       `gorm:"not null" json:"delivery_date"`
	PushedToComputation *bool           `gorm:"not null;default:false" json:"pushed_to_computation"`
	ComputationId       *int            `gorm:"index" json:"computation_id"`
	IsClosed            *bool           `gorm:"not null;default:false" json:"is_closed"`
	Notes               string          `gorm:"size:500" json:"notes"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

func (d *Demand) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&d.Uuid)
	return nil
}

func (d Demand) GetId() int { return d.ID }

// RemainingQuantity is what still needs fulfilment, never negative.
func (i *DemandItem) RemainingQuantity() decimal.Decimal {
	remaining := i.Quantity.Sub(i.DeliveredQuantity)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// DemandForSource loads the pool row mirroring one source document, nil when
// the source was never audited.
func DemandForSource(ctx context.Context, tx *gorm.DB, tenantId string, sourceType DemandSourceType, sourceId int) (*Demand, error) {
	var demand Demand
	err := tx.WithContext(ctx).Preload("Items").
		Where("tenant_id = ? AND source_type = ? AND source_id = ?", tenantId, sourceType, sourceId).
		First(&demand).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &demand, nil
}

// FetchActiveDemands lists the pool's active mirrors with their lines in
// stable order.
func FetchActiveDemands(ctx context.Context, tenantId string) ([]*Demand, error) {
	db := config.GetDB()
	var demands []*Demand
	err := db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("delivery_date asc, material_id asc, id asc")
	}).
		Where("tenant_id = ? AND is_active = ?", tenantId, true).
		Order("id asc").
		Find(&demands).Error
	if err != nil {
		return nil, err
	}
	return demands, nil
}

// FetchDemandItems loads the pool lines selected for a planning run. Ordering
// is fixed so runs over the same pool state are reproducible.
func FetchDemandItems(ctx context.Context, tenantId string, itemIds []int) ([]*DemandItem, error) {
	db := config.GetDB()
	var items []*DemandItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantId, itemIds).
		Order("delivery_date asc, material_id asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FetchOpenDemandItems lists lines not yet pushed and not closed, the default
// selection for a new run.
func FetchOpenDemandItems(ctx context.Context, tenantId string) ([]*DemandItem, error) {
	db := config.GetDB()
	var items []*DemandItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND pushed_to_computation = ? AND is_closed = ?", tenantId, false, false).
		Order("delivery_date asc, material_id asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// RecordDemandDelivery adds delivered quantity onto the pool line tracking a
// source item, closing it once fully served. Runs in the caller's transaction.
func RecordDemandDelivery(ctx context.Context, tx *gorm.DB, tenantId string, sourceType DemandSourceType, sourceItemId int, quantity decimal.Decimal) error {
	var item DemandItem
	err := tx.WithContext(ctx).
		Joins("JOIN demands ON demands.id = demand_items.demand_id").
		Where("demand_items.tenant_id = ? AND demands.source_type = ? AND demand_items.source_item_id = ?", tenantId, sourceType, sourceItemId).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		// source never entered the pool, nothing to track
		return nil
	}
	if err != nil {
		return err
	}
	delivered := item.DeliveredQuantity.Add(quantity)
	updates := map[string]interface{}{"DeliveredQuantity": delivered}
	if delivered.GreaterThanOrEqual(item.Quantity) {
		updates["IsClosed"] = true
	}
	return tx.WithContext(ctx).Model(&item).Updates(updates).Error
}
