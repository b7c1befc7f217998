package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesOrder is the MTO upstream source. Audited orders feed the demand pool
// and their items carry the order link all the way to work orders.
type SalesOrder struct {
	ID             int              `gorm:"primary_key" json:"id"`
	Uuid           string           `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId       string           `gorm:"index;not null" json:"tenant_id"`
	Code           string           `gorm:"size:100;not null" json:"code"`
	CustomerName   string           `gorm:"size:255;not null" json:"customer_name"`
	CustomerCode   string           `gorm:"size:100" json:"customer_code"`
	OrderDate      time.Time        `gorm:"not null" json:"order_date"`
	Currency       string           `gorm:"size:10;not null;default:'CNY'" json:"currency"`
	Status         DocumentStatus   `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	DeliveryStatus DeliveryStatus   `gorm:"type:enum('pending','partial','delivered');not null;default:'pending'" json:"delivery_status"`
	Notes          string           `gorm:"type:text" json:"notes"`
	Reviewer       string           `gorm:"size:100" json:"reviewer"`
	ReviewedAt     *time.Time       `json:"reviewed_at"`
	ReviewComment  string           `gorm:"size:500" json:"review_comment"`
	Items          []SalesOrderItem `gorm:"foreignKey:OrderId" json:"items"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `gorm:"index" json:"deleted_at"`
}

type SalesOrderItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	TenantId          string          `gorm:"index;not null" json:"tenant_id"`
	OrderId           int             `gorm:"index;not null" json:"order_id"`
	MaterialId        int             `gorm:"index;not null" json:"material_id"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	DeliveredQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"delivered_quantity"`
	Unit              string          `gorm:"size:20" json:"unit"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"unit_price"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`
	DeliveryDate      time.Time       `gorm:"not null" json:"delivery_date"`
	Notes             string          `gorm:"size:500" json:"notes"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalesOrder struct {
	CustomerName string              `json:"customer_name" binding:"required"`
	CustomerCode string              `json:"customer_code"`
	OrderDate    time.Time           `json:"order_date"`
	Currency     string              `json:"currency"`
	Notes        string              `json:"notes"`
	Items        []NewSalesOrderItem `json:"items"`
}

type NewSalesOrderItem struct {
	ItemId       int             `json:"item_id"`
	MaterialId   int             `json:"material_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DeliveryDate time.Time       `json:"delivery_date" binding:"required"`
	Notes        string          `json:"notes"`
}

func (o *SalesOrder) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&o.Uuid)
	return nil
}

func (o SalesOrder) GetId() int { return o.ID }

/* DemandSource */

func (o *SalesOrder) SourceType() DemandSourceType { return DemandSourceTypeSalesOrder }
func (o *SalesOrder) SourceId() int                { return o.ID }
func (o *SalesOrder) SourceUuid() string           { return o.Uuid }
func (o *SalesOrder) SourceCode() string           { return o.Code }
func (o *SalesOrder) IsAudited() bool              { return o.Status == DocumentStatusAudited }
func (o *SalesOrder) Mode() ProductionMode         { return ProductionModeMTO }
func (o *SalesOrder) SalesOrderId() *int           { return &o.ID }

func (o *SalesOrder) SourceItems() []DemandSourceItem {
	items := make([]DemandSourceItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, DemandSourceItem{
			SourceItemId: item.ID,
			MaterialId:   item.MaterialId,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			DeliveryDate: item.DeliveryDate,
			Notes:        item.Notes,
		})
	}
	return items
}

// DeliveryProgress is delivered over ordered across all items, zero when the
// order has no quantity.
func (o *SalesOrder) DeliveryProgress() decimal.Decimal {
	ordered := decimal.Zero
	delivered := decimal.Zero
	for _, item := range o.Items {
		ordered = ordered.Add(item.Quantity)
		delivered = delivered.Add(item.DeliveredQuantity)
	}
	if ordered.IsZero() {
		return decimal.Zero
	}
	return delivered.Div(ordered).Round(4)
}

func (input *NewSalesOrder) validate(ctx context.Context, tenantId string) error {
	if len(input.Items) == 0 {
		return utils.NewValidationError("order requires at least one item")
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Material](ctx, tenantId, item.MaterialId); err != nil {
			return utils.NewNotFoundError("material not found")
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return utils.NewValidationError("item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return utils.NewValidationError("unit price must not be negative")
		}
	}
	return nil
}

func mapSalesOrderItems(tenantId string, input []NewSalesOrderItem) []SalesOrderItem {
	items := make([]SalesOrderItem, 0, len(input))
	for _, item := range input {
		items = append(items, SalesOrderItem{
			ID:           item.ItemId,
			TenantId:     tenantId,
			MaterialId:   item.MaterialId,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			UnitPrice:    item.UnitPrice,
			Amount:       item.UnitPrice.Mul(item.Quantity).Round(2),
			DeliveryDate: item.DeliveryDate,
			Notes:        item.Notes,
		})
	}
	return items
}

func CreateSalesOrder(ctx context.Context, input *NewSalesOrder, code string) (*SalesOrder, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = utils.TruncateToDay(time.Now())
	}
	currency := input.Currency
	if currency == "" {
		currency = "CNY"
	}
	order := SalesOrder{
		TenantId:       tenantId,
		Code:           code,
		CustomerName:   input.CustomerName,
		CustomerCode:   input.CustomerCode,
		OrderDate:      orderDate,
		Currency:       currency,
		Status:         DocumentStatusDraft,
		DeliveryStatus: DeliveryStatusPending,
		Notes:          input.Notes,
		Items:          mapSalesOrderItems(tenantId, input.Items),
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, order.ID, "SalesOrder", OperationActionCreate, nil, &order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// RecordOrderDelivery adds delivered quantity onto one item and refreshes the
// order delivery status inside the caller's transaction.
func RecordOrderDelivery(ctx context.Context, tx *gorm.DB, tenantId string, orderItemId int, quantity decimal.Decimal) error {
	var item SalesOrderItem
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, orderItemId).
		First(&item).Error; err != nil {
		return utils.ErrorRecordNotFound
	}
	delivered := item.DeliveredQuantity.Add(quantity)
	if err := tx.WithContext(ctx).Model(&item).
		UpdateColumn("DeliveredQuantity", delivered).Error; err != nil {
		return err
	}
	return refreshOrderDeliveryStatus(ctx, tx, tenantId, item.OrderId)
}

func refreshOrderDeliveryStatus(ctx context.Context, tx *gorm.DB, tenantId string, orderId int) error {
	var items []SalesOrderItem
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantId, orderId).
		Find(&items).Error; err != nil {
		return err
	}
	status := DeliveryStatusDelivered
	anyDelivered := false
	for _, item := range items {
		if item.DeliveredQuantity.GreaterThan(decimal.Zero) {
			anyDelivered = true
		}
		if item.DeliveredQuantity.LessThan(item.Quantity) {
			status = DeliveryStatusPartial
		}
	}
	if !anyDelivered {
		status = DeliveryStatusPending
	}
	return tx.WithContext(ctx).Model(&SalesOrder{}).
		Where("tenant_id = ? AND id = ?", tenantId, orderId).
		UpdateColumn("delivery_status", status).Error
}
