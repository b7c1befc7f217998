package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bom is one parent→component line. Lines sharing a BomCode form a version;
// several versions may coexist, planning consumes only approved ones whose
// effective window covers the demand date.
type Bom struct {
	ID                 int               `gorm:"primary_key" json:"id"`
	Uuid               string            `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId           string            `gorm:"index;not null" json:"tenant_id"`
	BomCode            string            `gorm:"size:100;index;not null" json:"bom_code" binding:"required"`
	MaterialId         int               `gorm:"index;not null" json:"material_id" binding:"required"`
	ComponentId        int               `gorm:"index;not null" json:"component_id" binding:"required"`
	Quantity           decimal.Decimal   `gorm:"type:decimal(18,4);not null" json:"quantity" binding:"required"`
	Unit               string            `gorm:"size:20;not null" json:"unit"`
	Version            int               `gorm:"not null;default:1" json:"version"`
	EffectiveDate      time.Time         `gorm:"not null" json:"effective_date"`
	ExpiryDate         *time.Time        `json:"expiry_date"`
	ApprovalStatus     BomApprovalStatus `gorm:"type:enum('draft','approved','expired');not null;default:'draft'" json:"approval_status"`
	IsAlternative      *bool             `gorm:"not null;default:false" json:"is_alternative"`
	AlternativeGroupId *int              `gorm:"index" json:"alternative_group_id"`
	Priority           int               `gorm:"not null;default:0" json:"priority"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt    `gorm:"index" json:"deleted_at"`
}

type NewBom struct {
	BomCode            string          `json:"bom_code" binding:"required"`
	MaterialId         int             `json:"material_id" binding:"required"`
	ComponentId        int             `json:"component_id" binding:"required"`
	Quantity           decimal.Decimal `json:"quantity" binding:"required"`
	Unit               string          `json:"unit"`
	Version            int             `json:"version"`
	EffectiveDate      time.Time       `json:"effective_date"`
	ExpiryDate         *time.Time      `json:"expiry_date"`
	IsAlternative      *bool           `json:"is_alternative"`
	AlternativeGroupId *int            `json:"alternative_group_id"`
	Priority           int             `json:"priority"`
}

func (b *Bom) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&b.Uuid)
	return nil
}

func (input *NewBom) validate(ctx context.Context, tenantId string, id int) error {
	if input.MaterialId == input.ComponentId {
		return utils.NewValidationError("bom line cannot reference its own material")
	}
	if err := utils.ValidateResourceId[Material](ctx, tenantId, input.MaterialId); err != nil {
		return utils.NewNotFoundError("material not found")
	}
	if err := utils.ValidateResourceId[Material](ctx, tenantId, input.ComponentId); err != nil {
		return utils.NewNotFoundError("component not found")
	}
	if input.Quantity.LessThanOrEqual(decimal.Zero) {
		return utils.NewValidationError("bom quantity must be positive")
	}
	return nil
}

func CreateBom(ctx context.Context, input *NewBom) (*Bom, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}
	version := input.Version
	if version <= 0 {
		version = 1
	}
	effective := input.EffectiveDate
	if effective.IsZero() {
		effective = utils.TruncateToDay(time.Now())
	}
	bom := Bom{
		TenantId:           tenantId,
		BomCode:            input.BomCode,
		MaterialId:         input.MaterialId,
		ComponentId:        input.ComponentId,
		Quantity:           input.Quantity,
		Unit:               input.Unit,
		Version:            version,
		EffectiveDate:      effective,
		ExpiryDate:         input.ExpiryDate,
		ApprovalStatus:     BomApprovalStatusDraft,
		IsAlternative:      orFalse(input.IsAlternative),
		AlternativeGroupId: input.AlternativeGroupId,
		Priority:           input.Priority,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&bom).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, bom.ID, "Bom", OperationActionCreate, nil, &bom); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &bom, nil
}

// ApproveBom moves one bom line to approved; only approved lines feed planning.
func ApproveBom(ctx context.Context, id int) (*Bom, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	bom, err := utils.FetchModel[Bom](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if bom.ApprovalStatus == BomApprovalStatusApproved {
		return bom, nil
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(bom).
		UpdateColumn("ApprovalStatus", BomApprovalStatusApproved).Error; err != nil {
		return nil, err
	}
	return bom, nil
}

// ApprovedBomLines returns the consumable bom lines of a material as of the
// demand date: the highest approved version whose effective window covers
// asOf, all lines of that version.
func ApprovedBomLines(ctx context.Context, tenantId string, materialId int, asOf time.Time) ([]*Bom, error) {
	db := config.GetDB()

	var version *int
	if err := db.WithContext(ctx).Model(&Bom{}).
		Where("tenant_id = ? AND material_id = ? AND approval_status = ?", tenantId, materialId, BomApprovalStatusApproved).
		Where("effective_date <= ? AND (expiry_date IS NULL OR expiry_date > ?)", asOf, asOf).
		Select("max(version)").
		Scan(&version).Error; err != nil {
		return nil, err
	}
	if version == nil {
		return nil, nil
	}

	var lines []*Bom
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND material_id = ? AND approval_status = ? AND version = ?", tenantId, materialId, BomApprovalStatusApproved, *version).
		Where("effective_date <= ? AND (expiry_date IS NULL OR expiry_date > ?)", asOf, asOf).
		Order("priority asc, id asc").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}
