package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryAlertRule watches one material's on-hand against a threshold.
type InventoryAlertRule struct {
	ID         int             `gorm:"primary_key" json:"id"`
	Uuid       string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId   string          `gorm:"index;not null" json:"tenant_id"`
	MaterialId int             `gorm:"index;not null" json:"material_id"`
	Comparator AlertComparator `gorm:"type:enum('below','above');not null;default:'below'" json:"comparator"`
	Threshold  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"threshold"`
	IsEnabled  *bool           `gorm:"not null;default:true" json:"is_enabled"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// InventoryAlert is one triggered rule at evaluation time, kept until
// acknowledged.
type InventoryAlert struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Uuid           string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId       string          `gorm:"index;not null" json:"tenant_id"`
	RuleId         int             `gorm:"index;not null" json:"rule_id"`
	MaterialId     int             `gorm:"index;not null" json:"material_id"`
	OnHand         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"on_hand"`
	Threshold      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"threshold"`
	Message        string          `gorm:"size:500;not null" json:"message"`
	IsAcknowledged *bool           `gorm:"not null;default:false" json:"is_acknowledged"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryAlertRule struct {
	MaterialId int             `json:"material_id" binding:"required"`
	Comparator AlertComparator `json:"comparator"`
	Threshold  decimal.Decimal `json:"threshold" binding:"required"`
	IsEnabled  *bool           `json:"is_enabled"`
}

func (r *InventoryAlertRule) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&r.Uuid)
	return nil
}

func (a *InventoryAlert) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&a.Uuid)
	return nil
}

func (a InventoryAlert) GetId() int { return a.ID }

func CreateInventoryAlertRule(ctx context.Context, input *NewInventoryAlertRule) (*InventoryAlertRule, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Material](ctx, tenantId, input.MaterialId); err != nil {
		return nil, utils.NewNotFoundError("material not found")
	}
	comparator := input.Comparator
	if comparator == "" {
		comparator = AlertComparatorBelow
	}
	isEnabled := input.IsEnabled
	if isEnabled == nil {
		isEnabled = utils.NewTrue()
	}
	rule := InventoryAlertRule{
		TenantId:   tenantId,
		MaterialId: input.MaterialId,
		Comparator: comparator,
		Threshold:  input.Threshold,
		IsEnabled:  isEnabled,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// EvaluateInventoryAlerts checks every enabled rule against current on-hand
// and records an alert per triggered rule. A rule with an open alert is not
// duplicated.
func EvaluateInventoryAlerts(ctx context.Context, tenantId string) ([]*InventoryAlert, error) {
	db := config.GetDB()
	var rules []InventoryAlertRule
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND is_enabled = ?", tenantId, true).
		Order("id asc").
		Find(&rules).Error; err != nil {
		return nil, err
	}

	var triggered []*InventoryAlert
	for _, rule := range rules {
		onHand, err := AvailableInventory(ctx, tenantId, rule.MaterialId)
		if err != nil {
			return nil, err
		}
		fired := false
		switch rule.Comparator {
		case AlertComparatorBelow:
			fired = onHand.LessThan(rule.Threshold)
		case AlertComparatorAbove:
			fired = onHand.GreaterThan(rule.Threshold)
		}
		if !fired {
			continue
		}

		var open int64
		if err := db.WithContext(ctx).Model(&InventoryAlert{}).
			Where("tenant_id = ? AND rule_id = ? AND is_acknowledged = ?", tenantId, rule.ID, false).
			Count(&open).Error; err != nil {
			return nil, err
		}
		if open > 0 {
			continue
		}

		alert := InventoryAlert{
			TenantId:       tenantId,
			RuleId:         rule.ID,
			MaterialId:     rule.MaterialId,
			OnHand:         onHand,
			Threshold:      rule.Threshold,
			Message:        fmt.Sprintf("material %d on-hand %s is %s threshold %s", rule.MaterialId, onHand, rule.Comparator, rule.Threshold),
			IsAcknowledged: utils.NewFalse(),
		}
		if err := db.WithContext(ctx).Create(&alert).Error; err != nil {
			return nil, err
		}
		triggered = append(triggered, &alert)
	}
	return triggered, nil
}

func AcknowledgeInventoryAlert(ctx context.Context, id int) error {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return err
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&InventoryAlert{}).
		Where("tenant_id = ? AND id = ?", tenantId, id).
		UpdateColumn("is_acknowledged", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
