package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stocktaking reconciles book inventory with a physical count. Audited
// difference lines adjust the inventory view directly.
type Stocktaking struct {
	ID            int               `gorm:"primary_key" json:"id"`
	Uuid          string            `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId      string            `gorm:"index;not null" json:"tenant_id"`
	Code          string            `gorm:"size:100;not null" json:"code"`
	WarehouseId   int               `gorm:"index;not null" json:"warehouse_id"`
	CountDate     time.Time         `gorm:"not null" json:"count_date"`
	Status        DocumentStatus    `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	Notes         string            `gorm:"type:text" json:"notes"`
	Reviewer      string            `gorm:"size:100" json:"reviewer"`
	ReviewedAt    *time.Time        `json:"reviewed_at"`
	ReviewComment string            `gorm:"size:500" json:"review_comment"`
	Items         []StocktakingItem `gorm:"foreignKey:StocktakingId" json:"items"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt    `gorm:"index" json:"deleted_at"`
}

type StocktakingItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	TenantId        string          `gorm:"index;not null" json:"tenant_id"`
	StocktakingId   int             `gorm:"index;not null" json:"stocktaking_id"`
	MaterialId      int             `gorm:"index;not null" json:"material_id"`
	BatchNo         string          `gorm:"size:100" json:"batch_no"`
	BookQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"book_quantity"`
	CountedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"counted_quantity"`
	DiffQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"diff_quantity"`
	Notes           string          `gorm:"size:500" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStocktaking struct {
	WarehouseId int                  `json:"warehouse_id" binding:"required"`
	CountDate   time.Time            `json:"count_date"`
	Notes       string               `json:"notes"`
	Items       []NewStocktakingItem `json:"items" binding:"required"`
}

type NewStocktakingItem struct {
	MaterialId      int             `json:"material_id" binding:"required"`
	BatchNo         string          `json:"batch_no"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
	Notes           string          `json:"notes"`
}

func (s *Stocktaking) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&s.Uuid)
	return nil
}

func (s Stocktaking) GetId() int { return s.ID }

// CreateStocktaking snapshots book quantities at creation time; the diff is
// fixed once the count is entered, later movements do not shift it.
func CreateStocktaking(ctx context.Context, input *NewStocktaking, code string) (*Stocktaking, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, input.WarehouseId); err != nil {
		return nil, utils.NewNotFoundError("warehouse not found")
	}
	if len(input.Items) == 0 {
		return nil, utils.NewValidationError("stocktaking requires at least one item")
	}
	countDate := input.CountDate
	if countDate.IsZero() {
		countDate = utils.TruncateToDay(time.Now())
	}
	items := make([]StocktakingItem, 0, len(input.Items))
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Material](ctx, tenantId, item.MaterialId); err != nil {
			return nil, utils.NewNotFoundError("material not found")
		}
		book, err := BatchOnHand(ctx, tenantId, item.MaterialId, input.WarehouseId, item.BatchNo)
		if err != nil {
			return nil, err
		}
		items = append(items, StocktakingItem{
			TenantId:        tenantId,
			MaterialId:      item.MaterialId,
			BatchNo:         item.BatchNo,
			BookQuantity:    book,
			CountedQuantity: item.CountedQuantity,
			DiffQuantity:    item.CountedQuantity.Sub(book),
			Notes:           item.Notes,
		})
	}
	stocktaking := Stocktaking{
		TenantId:    tenantId,
		Code:        code,
		WarehouseId: input.WarehouseId,
		CountDate:   countDate,
		Status:      DocumentStatusDraft,
		Notes:       input.Notes,
		Items:       items,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&stocktaking).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, stocktaking.ID, "Stocktaking", OperationActionCreate, nil, &stocktaking); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &stocktaking, nil
}
