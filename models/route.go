package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Route is the approved operation sequence copied onto a work order at push
// time.
type Route struct {
	ID         int              `gorm:"primary_key" json:"id"`
	Uuid       string           `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId   string           `gorm:"index;not null" json:"tenant_id"`
	Code       string           `gorm:"size:100;not null" json:"code" binding:"required"`
	Name       string           `gorm:"size:255;not null" json:"name" binding:"required"`
	MaterialId int              `gorm:"index;not null" json:"material_id" binding:"required"`
	IsApproved *bool            `gorm:"not null;default:false" json:"is_approved"`
	Operations []RouteOperation `gorm:"foreignKey:RouteId" json:"operations"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt   `gorm:"index" json:"deleted_at"`
}

type RouteOperation struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TenantId      string          `gorm:"index;not null" json:"tenant_id"`
	RouteId       int             `gorm:"index;not null" json:"route_id"`
	Sequence      int             `gorm:"not null" json:"sequence"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	StandardTime  decimal.Decimal `gorm:"type:decimal(18,4);default:0" json:"standard_time"`
	SetupTime     decimal.Decimal `gorm:"type:decimal(18,4);default:0" json:"setup_time"`
	ReportingType ReportingType   `gorm:"type:enum('quantity','status');not null;default:'quantity'" json:"reporting_type"`
	AllowJump     *bool           `gorm:"not null;default:false" json:"allow_jump"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRoute struct {
	Code       string              `json:"code" binding:"required"`
	Name       string              `json:"name" binding:"required"`
	MaterialId int                 `json:"material_id" binding:"required"`
	Operations []NewRouteOperation `json:"operations" binding:"required"`
}

type NewRouteOperation struct {
	Sequence      int             `json:"sequence" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	StandardTime  decimal.Decimal `json:"standard_time"`
	SetupTime     decimal.Decimal `json:"setup_time"`
	ReportingType ReportingType   `json:"reporting_type"`
	AllowJump     *bool           `json:"allow_jump"`
}

func (r *Route) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&r.Uuid)
	return nil
}

func CreateRoute(ctx context.Context, input *NewRoute) (*Route, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Route](ctx, tenantId, "code", input.Code, 0); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Material](ctx, tenantId, input.MaterialId); err != nil {
		return nil, utils.NewNotFoundError("material not found")
	}
	if len(input.Operations) == 0 {
		return nil, utils.NewValidationError("route requires at least one operation")
	}

	operations := make([]RouteOperation, 0, len(input.Operations))
	for _, op := range input.Operations {
		reportingType := op.ReportingType
		if reportingType == "" {
			reportingType = ReportingTypeQuantity
		}
		operations = append(operations, RouteOperation{
			TenantId:      tenantId,
			Sequence:      op.Sequence,
			Name:          op.Name,
			StandardTime:  op.StandardTime,
			SetupTime:     op.SetupTime,
			ReportingType: reportingType,
			AllowJump:     orFalse(op.AllowJump),
		})
	}

	route := Route{
		TenantId:   tenantId,
		Code:       input.Code,
		Name:       input.Name,
		MaterialId: input.MaterialId,
		IsApproved: utils.NewFalse(),
		Operations: operations,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&route).Error; err != nil {
		return nil, err
	}
	return &route, nil
}

func ApproveRoute(ctx context.Context, id int) (*Route, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	route, err := utils.FetchModel[Route](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(route).
		UpdateColumn("IsApproved", true).Error; err != nil {
		return nil, err
	}
	return route, nil
}

// ApprovedRouteForMaterial returns the approved route copied onto new work
// orders, or nil when the material has none.
func ApprovedRouteForMaterial(ctx context.Context, tenantId string, materialId int) (*Route, error) {
	db := config.GetDB()
	var route Route
	err := db.WithContext(ctx).Preload("Operations", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence asc")
	}).
		Where("tenant_id = ? AND material_id = ? AND is_approved = ?", tenantId, materialId, true).
		Order("id desc").
		First(&route).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}
