package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Material is master data for everything planning touches: finished goods,
// semi-finished assemblies, raw materials. Variant-managed materials keep the
// master row with VariantAttributes empty; each variant row shares the
// master's MainCode and differs only in its canonical attribute string.
type Material struct {
	ID             int          `gorm:"primary_key" json:"id"`
	Uuid           string       `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId       string       `gorm:"index;not null;uniqueIndex:idx_material_code" json:"tenant_id"`
	MainCode       string       `gorm:"size:100;not null;uniqueIndex:idx_material_code" json:"main_code" binding:"required"`
	Name           string       `gorm:"size:255;not null" json:"name" binding:"required"`
	Type           MaterialType `gorm:"type:enum('RAW','SEMI','FINISHED','PACKAGING','CONSUMABLE');not null" json:"type" binding:"required"`
	BaseUnit       string       `gorm:"size:20;not null" json:"base_unit" binding:"required"`
	BatchManaged   *bool        `gorm:"not null;default:false" json:"batch_managed"`
	VariantManaged *bool        `gorm:"not null;default:false" json:"variant_managed"`
	MasterId       *int         `gorm:"index" json:"master_id"`
	// VariantAttributes holds the raw JSON; VariantKey is the key-sorted
	// canonical rendering and carries the uniqueness index ("" for masters).
	VariantAttributes *string `gorm:"type:json" json:"variant_attributes"`
	VariantKey        string  `gorm:"size:500;not null;default:'';uniqueIndex:idx_material_code" json:"variant_key"`
	// planning defaults
	LeadTimeDays        int             `gorm:"default:0" json:"lead_time_days"`
	TransitTimeDays     int             `gorm:"default:0" json:"transit_time_days"`
	SafetyStock         decimal.Decimal `gorm:"type:decimal(18,4);default:0" json:"safety_stock"`
	MinLotQty           decimal.Decimal `gorm:"type:decimal(18,4);default:0" json:"min_lot_qty"`
	LotMultipleQty      decimal.Decimal `gorm:"type:decimal(18,4);default:0" json:"lot_multiple_qty"`
	PreferredSupplierId *int            `gorm:"index" json:"preferred_supplier_id"`
	GroupId             *int            `gorm:"index" json:"group_id"`
	Aliases             []CodeAlias     `gorm:"foreignKey:MaterialId" json:"aliases"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

type CodeAlias struct {
	ID         int            `gorm:"primary_key" json:"id"`
	TenantId   string         `gorm:"index;not null" json:"tenant_id"`
	MaterialId int            `gorm:"index;not null" json:"material_id"`
	Type       CodeAliasType  `gorm:"type:enum('DEPARTMENT','CUSTOMER','SUPPLIER','VARIANT');not null" json:"type"`
	OwnerId    *int           `json:"owner_id"`
	Alias      string         `gorm:"size:100;not null" json:"alias"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type NewMaterial struct {
	MainCode            string            `json:"main_code" binding:"required"`
	Name                string            `json:"name" binding:"required"`
	Type                MaterialType      `json:"type" binding:"required"`
	BaseUnit            string            `json:"base_unit" binding:"required"`
	BatchManaged        *bool             `json:"batch_managed"`
	VariantManaged      *bool             `json:"variant_managed"`
	MasterId            *int              `json:"master_id"`
	VariantAttributes   map[string]string `json:"variant_attributes"`
	LeadTimeDays        int               `json:"lead_time_days"`
	TransitTimeDays     int               `json:"transit_time_days"`
	SafetyStock         decimal.Decimal   `json:"safety_stock"`
	MinLotQty           decimal.Decimal   `json:"min_lot_qty"`
	LotMultipleQty      decimal.Decimal   `json:"lot_multiple_qty"`
	PreferredSupplierId *int              `json:"preferred_supplier_id"`
	GroupId             *int              `json:"group_id"`
	Aliases             []NewCodeAlias    `json:"aliases"`
}

type NewCodeAlias struct {
	Type    CodeAliasType `json:"type" binding:"required"`
	OwnerId *int          `json:"owner_id"`
	Alias   string        `json:"alias" binding:"required"`
}

func (m *Material) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&m.Uuid)
	return nil
}

func (m Material) GetId() int { return m.ID }

// HasApprovedManufacturingBom reports whether planning may classify this
// material as "make".
func (m Material) HasApprovedManufacturingBom(ctx context.Context, asOf time.Time) (bool, error) {
	count, err := utils.ResourceCountWhere[Bom](ctx, m.TenantId,
		"material_id = ? AND approval_status = ? AND effective_date <= ? AND (expiry_date IS NULL OR expiry_date > ?)",
		m.ID, BomApprovalStatusApproved, asOf, asOf)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasSupplierRelation reports whether planning may classify this material as "buy".
func (m Material) HasSupplierRelation(ctx context.Context) (bool, error) {
	if m.PreferredSupplierId != nil && *m.PreferredSupplierId > 0 {
		return true, nil
	}
	count, err := utils.ResourceCountWhere[MaterialSupplier](ctx, m.TenantId, "material_id = ?", m.ID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (input *NewMaterial) validate(ctx context.Context, tenantId string, id int) error {
	isVariant := input.MasterId != nil && *input.MasterId > 0

	if !isVariant {
		if err := utils.ValidateUnique[Material](ctx, tenantId, "main_code", input.MainCode, id); err != nil {
			return err
		}
	}
	if isVariant {
		master, err := utils.FetchModel[Material](ctx, tenantId, *input.MasterId)
		if err != nil {
			return utils.NewNotFoundError("variant master not found")
		}
		if master.VariantManaged == nil || !*master.VariantManaged {
			return utils.NewValidationError("master material is not variant managed")
		}
		if len(input.VariantAttributes) == 0 {
			return utils.NewValidationError("variant attributes are required for a variant")
		}
		if input.MainCode != master.MainCode {
			return utils.NewValidationError("variant must share the master's main code")
		}
	} else if len(input.VariantAttributes) > 0 {
		return utils.NewValidationError("variant attributes are only allowed on variants")
	}
	if input.GroupId != nil && *input.GroupId > 0 {
		if err := utils.ValidateResourceId[MaterialGroup](ctx, tenantId, *input.GroupId); err != nil {
			return utils.NewNotFoundError("material group not found")
		}
	}
	if input.PreferredSupplierId != nil && *input.PreferredSupplierId > 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, tenantId, *input.PreferredSupplierId); err != nil {
			return utils.NewNotFoundError("preferred supplier not found")
		}
	}
	return nil
}

func mapCodeAliases(tenantId string, input []NewCodeAlias) []CodeAlias {
	aliases := make([]CodeAlias, 0, len(input))
	for _, a := range input {
		aliases = append(aliases, CodeAlias{
			TenantId: tenantId,
			Type:     a.Type,
			OwnerId:  a.OwnerId,
			Alias:    a.Alias,
		})
	}
	return aliases
}

func CreateMaterial(ctx context.Context, input *NewMaterial) (*Material, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	variantKey := ""
	var variantJSON *string
	if len(input.VariantAttributes) > 0 {
		variantKey, err = utils.CanonicalizeVariantAttributes(input.VariantAttributes)
		if err != nil {
			return nil, utils.NewValidationError("invalid variant attributes")
		}
		variantJSON = &variantKey
	}

	material := Material{
		TenantId:            tenantId,
		MainCode:            input.MainCode,
		Name:                input.Name,
		Type:                input.Type,
		BaseUnit:            input.BaseUnit,
		BatchManaged:        orFalse(input.BatchManaged),
		VariantManaged:      orFalse(input.VariantManaged),
		MasterId:            input.MasterId,
		VariantAttributes:   variantJSON,
		VariantKey:          variantKey,
		LeadTimeDays:        input.LeadTimeDays,
		TransitTimeDays:     input.TransitTimeDays,
		SafetyStock:         input.SafetyStock,
		MinLotQty:           input.MinLotQty,
		LotMultipleQty:      input.LotMultipleQty,
		PreferredSupplierId: input.PreferredSupplierId,
		GroupId:             input.GroupId,
		Aliases:             mapCodeAliases(tenantId, input.Aliases),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&material).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, material.ID, "Material", OperationActionCreate, nil, &material); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func UpdateMaterial(ctx context.Context, id int, input *NewMaterial) (*Material, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	material, err := utils.FetchModel[Material](ctx, tenantId, id, "Aliases")
	if err != nil {
		return nil, err
	}
	oldMaterial := *material

	variantKey := ""
	if len(input.VariantAttributes) > 0 {
		variantKey, err = utils.CanonicalizeVariantAttributes(input.VariantAttributes)
		if err != nil {
			return nil, utils.NewValidationError("invalid variant attributes")
		}
	}

	db := config.GetDB()
	tx := db.Begin()
	updates := map[string]interface{}{
		"Name":                input.Name,
		"BaseUnit":            input.BaseUnit,
		"BatchManaged":        orFalse(input.BatchManaged),
		"LeadTimeDays":        input.LeadTimeDays,
		"TransitTimeDays":     input.TransitTimeDays,
		"SafetyStock":         input.SafetyStock,
		"MinLotQty":           input.MinLotQty,
		"LotMultipleQty":      input.LotMultipleQty,
		"PreferredSupplierId": input.PreferredSupplierId,
		"GroupId":             input.GroupId,
	}
	if variantKey != "" {
		updates["VariantAttributes"] = variantKey
		updates["VariantKey"] = variantKey
	}
	if err := tx.WithContext(ctx).Model(material).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	aliases := mapCodeAliases(tenantId, input.Aliases)
	if err := tx.WithContext(ctx).Model(material).
		Session(&gorm.Session{FullSaveAssociations: true, SkipHooks: true}).
		Association("Aliases").
		Unscoped().Replace(&aliases); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, material.ID, "Material", OperationActionUpdate, &oldMaterial, material); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return material, nil
}

func DeleteMaterial(ctx context.Context, id int) (*Material, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	material, err := utils.FetchModel[Material](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	// block deletion while any live BOM or plan item references the material
	count, err := utils.ResourceCountWhere[Bom](ctx, tenantId, "material_id = ? OR component_id = ?", id, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessLogicError("material is referenced by a bom", material.Uuid)
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(material).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, material.ID, "Material", OperationActionDelete, material, nil); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return material, nil
}

func orFalse(b *bool) *bool {
	if b == nil {
		return utils.NewFalse()
	}
	return b
}
