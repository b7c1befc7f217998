package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// TenantNodeConfig configures the review node per tenant and document type.
// A disabled node means the document family does not use approval at all; an
// enabled node without audit auto-approves on submit.
type TenantNodeConfig struct {
	ID              int            `gorm:"primary_key" json:"id"`
	TenantId        string         `gorm:"index;not null;uniqueIndex:idx_node_config" json:"tenant_id"`
	DocumentType    string         `gorm:"size:100;not null;uniqueIndex:idx_node_config" json:"document_type"`
	IsNodeEnabled   *bool          `gorm:"not null;default:true" json:"is_node_enabled"`
	IsAuditRequired *bool          `gorm:"not null;default:true" json:"is_audit_required"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// ApprovalInstance is one running or finished review of one document. At most
// one open instance per document.
type ApprovalInstance struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Uuid          string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId      string          `gorm:"index;not null" json:"tenant_id"`
	ReferenceType string          `gorm:"size:100;not null;index:idx_approval_ref" json:"reference_type"`
	ReferenceId   int             `gorm:"not null;index:idx_approval_ref" json:"reference_id"`
	Applicant     string          `gorm:"size:100" json:"applicant"`
	IsOpen        *bool           `gorm:"not null;default:true" json:"is_open"`
	Result        *ApprovalResult `gorm:"type:enum('approved','rejected','cancelled')" json:"result"`
	Comment       string          `gorm:"size:500" json:"comment"`
	Reviewer      string          `gorm:"size:100" json:"reviewer"`
	StartedAt     time.Time       `gorm:"not null" json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *ApprovalInstance) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&a.Uuid)
	return nil
}

type NewTenantNodeConfig struct {
	DocumentType    string `json:"document_type" binding:"required"`
	IsNodeEnabled   *bool  `json:"is_node_enabled"`
	IsAuditRequired *bool  `json:"is_audit_required"`
}

// UpsertTenantNodeConfig writes the node config of one document family.
func UpsertTenantNodeConfig(ctx context.Context, input *NewTenantNodeConfig) (*TenantNodeConfig, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()

	var existing TenantNodeConfig
	err = db.WithContext(ctx).
		Where("tenant_id = ? AND document_type = ?", tenantId, input.DocumentType).
		First(&existing).Error
	if err == nil {
		updates := map[string]interface{}{}
		if input.IsNodeEnabled != nil {
			updates["IsNodeEnabled"] = *input.IsNodeEnabled
		}
		if input.IsAuditRequired != nil {
			updates["IsAuditRequired"] = *input.IsAuditRequired
		}
		if len(updates) > 0 {
			if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	nodeEnabled := input.IsNodeEnabled
	if nodeEnabled == nil {
		nodeEnabled = utils.NewTrue()
	}
	auditRequired := input.IsAuditRequired
	if auditRequired == nil {
		auditRequired = utils.NewTrue()
	}
	nodeConfig := TenantNodeConfig{
		TenantId:        tenantId,
		DocumentType:    input.DocumentType,
		IsNodeEnabled:   nodeEnabled,
		IsAuditRequired: auditRequired,
	}
	if err := db.WithContext(ctx).Create(&nodeConfig).Error; err != nil {
		return nil, err
	}
	return &nodeConfig, nil
}

// NodeConfigFor resolves the effective node config, defaulting to enabled
// with audit required when the tenant never configured the family.
func NodeConfigFor(ctx context.Context, tenantId string, documentType string) (*TenantNodeConfig, error) {
	db := config.GetDB()
	var nodeConfig TenantNodeConfig
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND document_type = ?", tenantId, documentType).
		First(&nodeConfig).Error
	if err == gorm.ErrRecordNotFound {
		return &TenantNodeConfig{
			TenantId:        tenantId,
			DocumentType:    documentType,
			IsNodeEnabled:   utils.NewTrue(),
			IsAuditRequired: utils.NewTrue(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &nodeConfig, nil
}

// OpenApprovalInstance returns the running instance of one document, nil when
// none is open.
func OpenApprovalInstance(ctx context.Context, tx *gorm.DB, tenantId string, referenceType string, referenceId int) (*ApprovalInstance, error) {
	var instance ApprovalInstance
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND reference_type = ? AND reference_id = ? AND is_open = ?",
			tenantId, referenceType, referenceId, true).
		First(&instance).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &instance, nil
}
