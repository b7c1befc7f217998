package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// CodeRule defines how business codes for one document family are composed.
// Components render in Sequence order.
type CodeRule struct {
	ID         int                 `gorm:"primary_key" json:"id"`
	Uuid       string              `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId   string              `gorm:"index;not null;uniqueIndex:idx_code_rule" json:"tenant_id"`
	RuleCode   string              `gorm:"size:100;not null;uniqueIndex:idx_code_rule" json:"rule_code" binding:"required"`
	Name       string              `gorm:"size:255" json:"name"`
	IsEnabled  *bool               `gorm:"not null;default:true" json:"is_enabled"`
	Components []CodeRuleComponent `gorm:"foreignKey:RuleId" json:"components"`
	CreatedAt  time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt      `gorm:"index" json:"deleted_at"`
}

type CodeRuleComponent struct {
	ID       int               `gorm:"primary_key" json:"id"`
	TenantId string            `gorm:"index;not null" json:"tenant_id"`
	RuleId   int               `gorm:"index;not null" json:"rule_id"`
	Sequence int               `gorm:"not null" json:"sequence"`
	Kind     CodeComponentKind `gorm:"type:enum('literal','date','field','counter','random');not null" json:"kind"`
	// literal
	Literal string `gorm:"size:100" json:"literal"`
	// date
	DateFormat string `gorm:"size:50" json:"date_format"`
	// field
	FieldName string `gorm:"size:100" json:"field_name"`
	// counter
	CounterScope CounterReset `gorm:"type:enum('never','daily','monthly','yearly');default:'never'" json:"counter_scope"`
	CounterWidth int          `gorm:"default:4" json:"counter_width"`
	CounterStep  int64        `gorm:"default:1" json:"counter_step"`
	CounterStart int64        `gorm:"default:1" json:"counter_start"`
	// random
	RandomCharset string `gorm:"size:100" json:"random_charset"`
	RandomLength  int    `gorm:"default:6" json:"random_length"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CodeCounter persists counter state per (tenant, rule, scope key). Allocation
// takes a row-level update lock on this row; readers only see committed
// values. Gaps are expected on rollback.
type CodeCounter struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"index;not null;uniqueIndex:idx_code_counter" json:"tenant_id"`
	RuleCode  string    `gorm:"size:100;not null;uniqueIndex:idx_code_counter" json:"rule_code"`
	ScopeKey  string    `gorm:"size:50;not null;uniqueIndex:idx_code_counter" json:"scope_key"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCodeRule struct {
	RuleCode   string                 `json:"rule_code" binding:"required"`
	Name       string                 `json:"name"`
	IsEnabled  *bool                  `json:"is_enabled"`
	Components []NewCodeRuleComponent `json:"components" binding:"required"`
}

type NewCodeRuleComponent struct {
	Sequence      int               `json:"sequence"`
	Kind          CodeComponentKind `json:"kind" binding:"required"`
	Literal       string            `json:"literal"`
	DateFormat    string            `json:"date_format"`
	FieldName     string            `json:"field_name"`
	CounterScope  CounterReset      `json:"counter_scope"`
	CounterWidth  int               `json:"counter_width"`
	CounterStep   int64             `json:"counter_step"`
	CounterStart  int64             `json:"counter_start"`
	RandomCharset string            `json:"random_charset"`
	RandomLength  int               `json:"random_length"`
}

func (r *CodeRule) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&r.Uuid)
	return nil
}

func (r CodeRule) GetId() int { return r.ID }

func (input *NewCodeRule) validate(ctx context.Context, tenantId string, id int) error {
	if err := utils.ValidateUnique[CodeRule](ctx, tenantId, "rule_code", input.RuleCode, id); err != nil {
		return err
	}
	if len(input.Components) == 0 {
		return utils.NewValidationError("rule requires at least one component")
	}
	for _, c := range input.Components {
		switch c.Kind {
		case CodeComponentLiteral:
			if c.Literal == "" {
				return utils.NewValidationError("literal component requires a literal value")
			}
		case CodeComponentDate:
			if c.DateFormat == "" {
				return utils.NewValidationError("date component requires a format")
			}
		case CodeComponentField:
			if c.FieldName == "" {
				return utils.NewValidationError("field component requires a field name")
			}
		case CodeComponentCounter, CodeComponentRandom:
			// defaults cover these
		default:
			return utils.NewValidationError("unknown component kind")
		}
	}
	return nil
}

func mapCodeRuleComponents(tenantId string, input []NewCodeRuleComponent) []CodeRuleComponent {
	components := make([]CodeRuleComponent, 0, len(input))
	for i, c := range input {
		sequence := c.Sequence
		if sequence == 0 {
			sequence = i + 1
		}
		scope := c.CounterScope
		if scope == "" {
			scope = CounterResetNever
		}
		width := c.CounterWidth
		if width == 0 {
			width = 4
		}
		step := c.CounterStep
		if step == 0 {
			step = 1
		}
		start := c.CounterStart
		if start == 0 {
			start = 1
		}
		length := c.RandomLength
		if length == 0 {
			length = 6
		}
		components = append(components, CodeRuleComponent{
			TenantId:      tenantId,
			Sequence:      sequence,
			Kind:          c.Kind,
			Literal:       c.Literal,
			DateFormat:    c.DateFormat,
			FieldName:     c.FieldName,
			CounterScope:  scope,
			CounterWidth:  width,
			CounterStep:   step,
			CounterStart:  start,
			RandomCharset: c.RandomCharset,
			RandomLength:  length,
		})
	}
	return components
}

func CreateCodeRule(ctx context.Context, input *NewCodeRule) (*CodeRule, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}
	isEnabled := input.IsEnabled
	if isEnabled == nil {
		isEnabled = utils.NewTrue()
	}
	rule := CodeRule{
		TenantId:   tenantId,
		RuleCode:   input.RuleCode,
		Name:       input.Name,
		IsEnabled:  isEnabled,
		Components: mapCodeRuleComponents(tenantId, input.Components),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func UpdateCodeRule(ctx context.Context, id int, input *NewCodeRule) (*CodeRule, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}
	rule, err := utils.FetchModel[CodeRule](ctx, tenantId, id, "Components")
	if err != nil {
		return nil, err
	}
	components := mapCodeRuleComponents(tenantId, input.Components)

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(rule).Updates(map[string]interface{}{
		"Name":      input.Name,
		"IsEnabled": input.IsEnabled,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(rule).
		Session(&gorm.Session{FullSaveAssociations: true, SkipHooks: true}).
		Association("Components").
		Unscoped().Replace(&components); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// FetchEnabledCodeRule loads a rule with ordered components; missing or
// disabled rules report ErrorRecordNotFound so the generator can fall back.
func FetchEnabledCodeRule(ctx context.Context, tenantId string, ruleCode string) (*CodeRule, error) {
	db := config.GetDB()
	var rule CodeRule
	err := db.WithContext(ctx).Preload("Components", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence asc")
	}).
		Where("tenant_id = ? AND rule_code = ? AND is_enabled = ?", tenantId, ruleCode, true).
		First(&rule).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
