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

// The document lifecycle is one shared transition table. Anything not listed
// is rejected; document families add their own guards and side effects
// through the hook registries below.

var transitions = map[models.DocumentStatus]map[models.LifecycleEvent]models.DocumentStatus{
	models.DocumentStatusDraft: {
		models.EventSubmit: models.DocumentStatusSubmitted,
		models.EventCancel: models.DocumentStatusCancelled,
	},
	models.DocumentStatusSubmitted: {
		models.EventStartApproval: models.DocumentStatusPendingReview,
		models.EventApprove:       models.DocumentStatusAudited,
		models.EventCancel:        models.DocumentStatusCancelled,
	},
	models.DocumentStatusPendingReview: {
		models.EventApprove: models.DocumentStatusAudited,
		models.EventReject:  models.DocumentStatusRejected,
		models.EventCancel:  models.DocumentStatusCancelled,
	},
	models.DocumentStatusAudited: {
		models.EventUnaudit: models.DocumentStatusPendingReview,
		models.EventClose:   models.DocumentStatusClosed,
	},
	models.DocumentStatusRejected: {
		models.EventResubmit: models.DocumentStatusSubmitted,
		models.EventCancel:   models.DocumentStatusCancelled,
	},
	models.DocumentStatusCancelled: {},
	models.DocumentStatusClosed:    {},
}

// NextStatus resolves one lifecycle step. Unknown pairs fail with a business
// logic error naming both sides.
func NextStatus(current models.DocumentStatus, event models.LifecycleEvent) (models.DocumentStatus, error) {
	events, ok := transitions[current]
	if !ok {
		return "", utils.NewBusinessLogicError("unknown document status", string(current))
	}
	next, ok := events[event]
	if !ok {
		return "", utils.NewBusinessLogicError("invalid transition",
			fmt.Sprintf("%s does not accept %s", current, event))
	}
	return next, nil
}

// hookFunc runs inside the transition's transaction. Returning an error rolls
// the whole transition back.
type hookFunc func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from models.DocumentStatus, to models.DocumentStatus) error

var (
	guards  = map[string][]hookFunc{}
	effects = map[string][]hookFunc{}
)

func registerGuard(docType string, fn hookFunc) {
	guards[docType] = append(guards[docType], fn)
}

func registerEffect(docType string, fn hookFunc) {
	effects[docType] = append(effects[docType], fn)
}

// ApplyEvent moves one document through the transition table. The document
// row is locked for the duration; guards veto, effects follow, everything
// commits together with the audit trail row.
func ApplyEvent[T any](ctx context.Context, id int, event models.LifecycleEvent) (*T, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	doc, err := applyEventInTx[T](ctx, tx, tenantId, id, event)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func applyEventInTx[T any](ctx context.Context, tx *gorm.DB, tenantId string, id int, event models.LifecycleEvent) (*T, error) {
	doc, err := utils.FetchModelForUpdate[T](tx, tenantId, id)
	if err != nil {
		return nil, err
	}
	holder, ok := any(doc).(models.LifecycleDocument)
	if !ok {
		return nil, utils.NewIntegrityError("document does not carry a lifecycle", "")
	}
	from := holder.CurrentStatus()
	to, err := NextStatus(from, event)
	if err != nil {
		return nil, err
	}
	docType := holder.DocumentType()

	for _, guard := range guards[docType] {
		if err := guard(ctx, tx, tenantId, id, from, to); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{"status": to}
	switch event {
	case models.EventApprove, models.EventReject:
		username, _ := utils.GetUsernameFromContext(ctx)
		now := time.Now()
		updates["reviewer"] = username
		updates["reviewed_at"] = &now
	case models.EventUnaudit:
		updates["reviewer"] = ""
		updates["reviewed_at"] = nil
	}
	if err := tx.Model(doc).Updates(updates).Error; err != nil {
		return nil, err
	}

	for _, effect := range effects[docType] {
		if err := effect(ctx, tx, tenantId, id, from, to); err != nil {
			return nil, err
		}
	}

	if err := models.LogOperation(ctx, tx, tenantId, id, docType, models.OperationActionTransition,
		map[string]interface{}{"status": from},
		map[string]interface{}{"status": to, "event": event}); err != nil {
		return nil, err
	}

	refreshed, err := utils.FetchModelForUpdate[T](tx, tenantId, id)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}
