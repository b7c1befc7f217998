package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/bsm/redislock"
)

// One planning run per tenant at a time. The redis lock is taken without
// blocking: a second run while one is in flight is a client error, not a
// queueing problem. A MySQL named lock backs it up for deployments where
// redis is degraded.

func planningLockKey(tenantId string) string {
	return "plan:" + tenantId
}

// AcquirePlanningLock claims the tenant's planning slot. The returned release
// func is safe to call once, on any path out of the run.
func AcquirePlanningLock(ctx context.Context, tenantId string, ttl time.Duration) (func(), error) {
	locker := config.GetRedisLock()
	key := planningLockKey(tenantId)

	if locker != nil {
		lock, err := locker.Obtain(ctx, key, ttl, nil)
		if err == redislock.ErrNotObtained {
			return nil, utils.NewTemporaryError("plan_in_progress")
		}
		if err == nil {
			return func() {
				_ = lock.Release(context.Background())
			}, nil
		}
		config.LogError(config.GetLogger(), "workflow", "AcquirePlanningLock", "redis lock degraded, falling back to db lock", key, err)
	}

	db := config.GetDB()
	var got int
	if err := db.WithContext(ctx).Raw("SELECT GET_LOCK(?, 0)", key).Scan(&got).Error; err != nil {
		return nil, err
	}
	if got != 1 {
		return nil, utils.NewTemporaryError("plan_in_progress")
	}
	return func() {
		_ = db.Exec("SELECT RELEASE_LOCK(?)", key).Error
	}, nil
}
