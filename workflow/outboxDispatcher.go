package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
)

// The outbox dispatcher drains pending OperationLogRecord rows to Pub/Sub.
// Rows are committed with the business transaction that produced them, so a
// publish failure never loses the audit entry, it just stays pending. Delivery
// is at-least-once; consumers dedupe on the row id.

// RunOutboxDispatcher polls until ctx is cancelled.
func RunOutboxDispatcher(ctx context.Context) {
	ticker := time.NewTicker(config.OutboxDispatchInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := DispatchOutboxBatch(ctx); err != nil {
				config.LogError(config.GetLogger(), "workflow", "RunOutboxDispatcher", "outbox batch failed", nil, err)
			}
		}
	}
}

// DispatchOutboxBatch publishes one batch of pending rows and returns how many
// were published. A failing row has its attempt counted and is parked as DEAD
// once the attempt budget is spent; other rows in the batch still go out.
func DispatchOutboxBatch(ctx context.Context) (int, error) {
	db := config.GetDB()
	var records []models.OperationLogRecord
	err := db.WithContext(ctx).
		Where("publish_status = ?", models.OutboxPublishStatusPending).
		Order("id asc").
		Limit(config.OutboxBatchSize()).
		Find(&records).Error
	if err != nil {
		return 0, err
	}

	maxAttempts := config.OutboxMaxAttempts()
	published := 0
	for i := range records {
		record := &records[i]
		msg := config.OperationLogMessage{
			ID:            record.ID,
			TenantId:      record.TenantId,
			OccurredAt:    record.OccurredAt,
			ReferenceId:   record.ReferenceId,
			ReferenceType: record.ReferenceType,
			Action:        string(record.Action),
			OldObj:        record.OldObj,
			NewObj:        record.NewObj,
			CorrelationId: record.CorrelationId,
		}
		if _, pubErr := config.PublishOperationLog(ctx, &msg); pubErr != nil {
			attempts := record.Attempts + 1
			updates := map[string]interface{}{"Attempts": attempts}
			if attempts >= maxAttempts {
				updates["PublishStatus"] = models.OutboxPublishStatusDead
			}
			if err := db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
				return published, err
			}
			config.LogError(config.GetLogger(), "workflow", "DispatchOutboxBatch", "publish failed", record.ID, pubErr)
			continue
		}
		now := time.Now()
		err := db.WithContext(ctx).Model(record).Updates(map[string]interface{}{
			"PublishStatus": models.OutboxPublishStatusPublished,
			"PublishedAt":   &now,
			"Attempts":      record.Attempts + 1,
		}).Error
		if err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}

// RetryDeadOutboxRows requeues DEAD rows after the operator fixed the broker
// side. Attempts reset so the budget applies fresh.
func RetryDeadOutboxRows(ctx context.Context, tenantId string) (int64, error) {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&models.OperationLogRecord{}).
		Where("tenant_id = ? AND publish_status = ?", tenantId, models.OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"PublishStatus": models.OutboxPublishStatusPending,
			"Attempts":      0,
		})
	return result.RowsAffected, result.Error
}
