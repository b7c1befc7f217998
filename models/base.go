package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OperationLogRecord is the transactional outbox for the audit trail: rows are
// written inside the caller's DB transaction and published to Pub/Sub
// asynchronously by the outbox dispatcher after commit. The happy path never
// waits on delivery.
type OperationLogRecord struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	TenantId      string              `gorm:"index;not null" json:"tenant_id"`
	OccurredAt    time.Time           `gorm:"not null" json:"occurred_at"`
	ReferenceId   int                 `gorm:"index;not null" json:"reference_id"`
	ReferenceType string              `gorm:"size:100;index;not null" json:"reference_type"`
	Action        OperationAction     `gorm:"size:20;not null" json:"action"`
	OldObj        []byte              `gorm:"type:longtext" json:"old_obj"`
	NewObj        []byte              `gorm:"type:longtext" json:"new_obj"`
	PublishStatus OutboxPublishStatus `gorm:"size:20;index;not null" json:"publish_status"`
	PublishedAt   *time.Time          `json:"published_at"`
	Attempts      int                 `gorm:"default:0" json:"attempts"`
	CorrelationId string              `gorm:"size:64;index" json:"correlation_id"`
	Username      string              `gorm:"size:100" json:"username"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// LogOperation writes the outbox row for one state change. obj/oldObj may be
// nil depending on the action.
func LogOperation(ctx context.Context, tx *gorm.DB, tenantId string, refId int, refType string, action OperationAction, oldObj interface{}, obj interface{}) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if obj != nil {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if oldObj != nil {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	username, _ := utils.GetUsernameFromContext(ctx)

	record := OperationLogRecord{
		TenantId:      tenantId,
		OccurredAt:    time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		OldObj:        oldObjInByte,
		NewObj:        objInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
		Username:      username,
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ensureUuid backs the BeforeCreate hooks; external ids are opaque and never
// reused.
func ensureUuid(u *string) {
	if *u == "" {
		*u = uuid.NewString()
	}
}

// forUpdateClause is the row lock taken before read-modify-write on shared
// rows (counters, open draft orders).
func forUpdateClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func tenantIdFromContext(ctx context.Context) (string, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return "", utils.NewValidationError("tenant id is required")
	}
	return tenantId, nil
}
