package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// IdempotencyKey deduplicates externally triggered effects, approval
// callbacks in particular. The unique index makes the first INSERT win;
// replays see duplicate key 1062 and read the recorded outcome instead of
// re-running the effect.
type IdempotencyKey struct {
	ID        int               `gorm:"primary_key" json:"id"`
	TenantId  string            `gorm:"index;not null;uniqueIndex:idx_idem_key" json:"tenant_id"`
	Key       string            `gorm:"size:191;not null;uniqueIndex:idx_idem_key" json:"key"`
	Status    IdempotencyStatus `gorm:"size:20;not null" json:"status"`
	Outcome   string            `gorm:"size:500" json:"outcome"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

const mysqlDuplicateEntry = 1062

// ClaimIdempotencyKey inserts the key in STARTED state inside the caller's
// transaction. The second claim of the same key returns the existing row and
// claimed=false.
func ClaimIdempotencyKey(ctx context.Context, tx *gorm.DB, tenantId string, key string) (*IdempotencyKey, bool, error) {
	record := IdempotencyKey{
		TenantId: tenantId,
		Key:      key,
		Status:   IdempotencyStatusStarted,
	}
	err := tx.WithContext(ctx).Create(&record).Error
	if err == nil {
		return &record, true, nil
	}

	if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == mysqlDuplicateEntry {
		var existing IdempotencyKey
		if err := tx.WithContext(ctx).
			Where("tenant_id = ? AND `key` = ?", tenantId, key).
			First(&existing).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return nil, false, err
}

// ResolveIdempotencyKey records the final outcome of the claimed effect.
func ResolveIdempotencyKey(ctx context.Context, tx *gorm.DB, record *IdempotencyKey, status IdempotencyStatus, outcome string) error {
	if record == nil {
		return utils.NewIntegrityError("idempotency key missing", "")
	}
	return tx.WithContext(ctx).Model(record).Updates(map[string]interface{}{
		"Status":  status,
		"Outcome": outcome,
	}).Error
}
