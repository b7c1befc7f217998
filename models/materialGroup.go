package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

type MaterialGroup struct {
	ID        int            `gorm:"primary_key" json:"id"`
	Uuid      string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId  string         `gorm:"index;not null" json:"tenant_id"`
	Name      string         `gorm:"size:100;not null" json:"name" binding:"required"`
	ParentId  *int           `gorm:"index" json:"parent_id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type NewMaterialGroup struct {
	Name     string `json:"name" binding:"required"`
	ParentId *int   `json:"parent_id"`
}

func (g *MaterialGroup) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&g.Uuid)
	return nil
}

func (g MaterialGroup) GetId() int { return g.ID }

func (input *NewMaterialGroup) validate(ctx context.Context, tenantId string, id int) error {
	if err := utils.ValidateUnique[MaterialGroup](ctx, tenantId, "name", input.Name, id); err != nil {
		return err
	}
	if input.ParentId != nil && *input.ParentId > 0 {
		if id != 0 && *input.ParentId == id {
			return utils.NewValidationError("group cannot be its own parent")
		}
		if err := utils.ValidateResourceId[MaterialGroup](ctx, tenantId, *input.ParentId); err != nil {
			return utils.NewNotFoundError("parent group not found")
		}
	}
	return nil
}

func CreateMaterialGroup(ctx context.Context, input *NewMaterialGroup) (*MaterialGroup, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}
	group := MaterialGroup{
		TenantId: tenantId,
		Name:     input.Name,
		ParentId: input.ParentId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func UpdateMaterialGroup(ctx context.Context, id int, input *NewMaterialGroup) (*MaterialGroup, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}
	group, err := utils.FetchModel[MaterialGroup](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(group).Updates(map[string]interface{}{
		"Name":     input.Name,
		"ParentId": input.ParentId,
	}).Error; err != nil {
		return nil, err
	}
	return group, nil
}

func DeleteMaterialGroup(ctx context.Context, id int) (*MaterialGroup, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	group, err := utils.FetchModel[MaterialGroup](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[MaterialGroup](ctx, tenantId, "parent_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessLogicError("group has child groups", group.Uuid)
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}
