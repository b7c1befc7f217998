package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesForecast is the MTS upstream source: audited forecasts become demand.
type SalesForecast struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	Uuid          string              `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId      string              `gorm:"index;not null" json:"tenant_id"`
	Code          string              `gorm:"size:100;not null" json:"code"`
	Name          string              `gorm:"size:255" json:"name"`
	ForecastDate  time.Time           `gorm:"not null" json:"forecast_date"`
	PeriodStart   time.Time           `gorm:"not null" json:"period_start"`
	PeriodEnd     time.Time           `gorm:"not null" json:"period_end"`
	Status        DocumentStatus      `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	Notes         string              `gorm:"type:text" json:"notes"`
	Reviewer      string              `gorm:"size:100" json:"reviewer"`
	ReviewedAt    *time.Time          `json:"reviewed_at"`
	ReviewComment string              `gorm:"size:500" json:"review_comment"`
	Items         []SalesForecastItem `gorm:"foreignKey:ForecastId" json:"items"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt      `gorm:"index" json:"deleted_at"`
}

type SalesForecastItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	TenantId     string          `gorm:"index;not null" json:"tenant_id"`
	ForecastId   int             `gorm:"index;not null" json:"forecast_id"`
	MaterialId   int             `gorm:"index;not null" json:"material_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Unit         string          `gorm:"size:20" json:"unit"`
	DeliveryDate time.Time       `gorm:"not null" json:"delivery_date"`
	Notes        string          `gorm:"size:500" json:"notes"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalesForecast struct {
	Name         string                 `json:"name"`
	ForecastDate time.Time              `json:"forecast_date"`
	PeriodStart  time.Time              `json:"period_start" binding:"required"`
	PeriodEnd    time.Time              `json:"period_end" binding:"required"`
	Notes        string                 `json:"notes"`
	Items        []NewSalesForecastItem `json:"items"`
}

type NewSalesForecastItem struct {
	ItemId       int             `json:"item_id"`
	MaterialId   int             `json:"material_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	Unit         string          `json:"unit"`
	DeliveryDate time.Time       `json:"delivery_date" binding:"required"`
	Notes        string          `json:"notes"`
}

func (f *SalesForecast) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&f.Uuid)
	return nil
}

func (f SalesForecast) GetId() int { return f.ID }

/* DemandSource */

func (f *SalesForecast) SourceType() DemandSourceType { return DemandSourceTypeSalesForecast }
func (f *SalesForecast) SourceId() int                { return f.ID }
func (f *SalesForecast) SourceUuid() string           { return f.Uuid }
func (f *SalesForecast) SourceCode() string           { return f.Code }
func (f *SalesForecast) IsAudited() bool              { return f.Status == DocumentStatusAudited }
func (f *SalesForecast) Mode() ProductionMode         { return ProductionModeMTS }
func (f *SalesForecast) SalesOrderId() *int           { return nil }

func (f *SalesForecast) SourceItems() []DemandSourceItem {
	items := make([]DemandSourceItem, 0, len(f.Items))
	for _, item := range f.Items {
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

func (input *NewSalesForecast) validate(ctx context.Context, tenantId string) error {
	if input.PeriodEnd.Before(input.PeriodStart) {
		return utils.NewValidationError("period end must not precede period start")
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Material](ctx, tenantId, item.MaterialId); err != nil {
			return utils.NewNotFoundError("material not found")
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return utils.NewValidationError("item quantity must be positive")
		}
	}
	return nil
}

func mapSalesForecastItems(tenantId string, input []NewSalesForecastItem) []SalesForecastItem {
	items := make([]SalesForecastItem, 0, len(input))
	for _, item := range input {
		items = append(items, SalesForecastItem{
			ID:           item.ItemId,
			TenantId:     tenantId,
			MaterialId:   item.MaterialId,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			DeliveryDate: item.DeliveryDate,
			Notes:        item.Notes,
		})
	}
	return items
}

func CreateSalesForecast(ctx context.Context, input *NewSalesForecast, code string) (*SalesForecast, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	forecastDate := input.ForecastDate
	if forecastDate.IsZero() {
		forecastDate = utils.TruncateToDay(time.Now())
	}
	forecast := SalesForecast{
		TenantId:     tenantId,
		Code:         code,
		Name:         input.Name,
		ForecastDate: forecastDate,
		PeriodStart:  input.PeriodStart,
		PeriodEnd:    input.PeriodEnd,
		Status:       DocumentStatusDraft,
		Notes:        input.Notes,
		Items:        mapSalesForecastItems(tenantId, input.Items),
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&forecast).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, forecast.ID, "SalesForecast", OperationActionCreate, nil, &forecast); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &forecast, nil
}
