package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// The audit orchestrator sits between the lifecycle and the approval tables.
// Submitting routes through the tenant's node config: a non-audit node
// approves inline, an audit node opens an approval instance and parks the
// document in pending_review until the outcome callback lands. Callbacks are
// deduplicated through the idempotency table, replays are harmless.

type txApplier func(ctx context.Context, tx *gorm.DB, tenantId string, id int, event models.LifecycleEvent) error

var lifecycleAppliers = map[string]txApplier{}

func registerLifecycle[T any](docType string) {
	lifecycleAppliers[docType] = func(ctx context.Context, tx *gorm.DB, tenantId string, id int, event models.LifecycleEvent) error {
		_, err := applyEventInTx[T](ctx, tx, tenantId, id, event)
		return err
	}
}

func init() {
	registerLifecycle[models.SalesForecast]("SalesForecast")
	registerLifecycle[models.SalesOrder]("SalesOrder")
	registerLifecycle[models.PurchaseOrder]("PurchaseOrder")
	registerLifecycle[models.Receipt]("Receipt")
	registerLifecycle[models.Picking]("Picking")
	registerLifecycle[models.Delivery]("Delivery")
	registerLifecycle[models.Stocktaking]("Stocktaking")
	registerLifecycle[models.PurchaseInvoice]("PurchaseInvoice")
	registerLifecycle[models.SalesInvoice]("SalesInvoice")
	registerLifecycle[models.OutsourceOrder]("OutsourceOrder")
}

// SubmitForApproval submits the document and routes it through the tenant's
// review node in one transaction.
func SubmitForApproval[T any](ctx context.Context, id int) (*T, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	doc, err := applyEventInTx[T](ctx, tx, tenantId, id, models.EventSubmit)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	holder := any(doc).(models.LifecycleDocument)
	docType := holder.DocumentType()

	nodeConfig, err := models.NodeConfigFor(ctx, tenantId, docType)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if nodeConfig.IsNodeEnabled == nil || !*nodeConfig.IsNodeEnabled {
		tx.Rollback()
		return nil, utils.NewConfigError("review node is disabled for " + docType)
	}

	if nodeConfig.IsAuditRequired == nil || !*nodeConfig.IsAuditRequired {
		// non-audit node approves inline
		doc, err = applyEventInTx[T](ctx, tx, tenantId, id, models.EventApprove)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		return doc, nil
	}

	open, err := models.OpenApprovalInstance(ctx, tx, tenantId, docType, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if open != nil {
		tx.Rollback()
		return nil, utils.NewConflictError("approval already running", open.Uuid)
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	instance := models.ApprovalInstance{
		TenantId:      tenantId,
		ReferenceType: docType,
		ReferenceId:   id,
		Applicant:     username,
		IsOpen:        utils.NewTrue(),
		StartedAt:     time.Now(),
	}
	if err := tx.Create(&instance).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	doc, err = applyEventInTx[T](ctx, tx, tenantId, id, models.EventStartApproval)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return doc, nil
}

// ApprovalOutcome is the callback payload from the review side.
type ApprovalOutcome struct {
	ReferenceType string                `json:"reference_type" binding:"required"`
	ReferenceId   int                   `json:"reference_id" binding:"required"`
	Result        models.ApprovalResult `json:"result" binding:"required"`
	Reviewer      string                `json:"reviewer"`
	Comment       string                `json:"comment"`
	CallbackKey   string                `json:"callback_key"`
}

func outcomeEvent(result models.ApprovalResult) (models.LifecycleEvent, error) {
	switch result {
	case models.ApprovalResultApproved:
		return models.EventApprove, nil
	case models.ApprovalResultRejected:
		return models.EventReject, nil
	case models.ApprovalResultCancelled:
		return models.EventCancel, nil
	}
	return "", utils.NewValidationError("unknown approval result")
}

// OnApprovalOutcome closes the open instance and reflects the result on the
// document. The idempotency key makes redelivered callbacks no-ops.
func OnApprovalOutcome(ctx context.Context, outcome *ApprovalOutcome) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return utils.NewValidationError("tenant id is required")
	}
	applier, known := lifecycleAppliers[outcome.ReferenceType]
	if !known {
		return utils.NewValidationError("unknown reference type " + outcome.ReferenceType)
	}
	event, err := outcomeEvent(outcome.Result)
	if err != nil {
		return err
	}

	key := outcome.CallbackKey
	if key == "" {
		key = fmt.Sprintf("approval:%s:%d:%s", outcome.ReferenceType, outcome.ReferenceId, outcome.Result)
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	record, claimed, err := models.ClaimIdempotencyKey(ctx, tx, tenantId, key)
	if err != nil {
		tx.Rollback()
		return err
	}
	if !claimed {
		tx.Rollback()
		if record.Status == models.IdempotencyStatusFailed {
			return utils.NewTemporaryError("previous callback attempt failed, retry later")
		}
		return nil
	}

	instance, err := models.OpenApprovalInstance(ctx, tx, tenantId, outcome.ReferenceType, outcome.ReferenceId)
	if err != nil {
		tx.Rollback()
		return err
	}
	if instance == nil {
		tx.Rollback()
		return utils.NewConflictError("no open approval for the document", "")
	}

	now := time.Now()
	result := outcome.Result
	if err := tx.Model(instance).Updates(map[string]interface{}{
		"IsOpen":      false,
		"Result":      &result,
		"Reviewer":    outcome.Reviewer,
		"Comment":     outcome.Comment,
		"CompletedAt": &now,
	}).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := applier(ctx, tx, tenantId, outcome.ReferenceId, event); err != nil {
		tx.Rollback()
		return err
	}
	if err := models.ResolveIdempotencyKey(ctx, tx, record, models.IdempotencyStatusSucceeded, string(result)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
