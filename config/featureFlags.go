package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// PlanningDeadline bounds a single MRP/LRP run. Exceeding it aborts the run's
// transaction with no partial persistence.
//
// Set via env:
// - PLANNING_DEADLINE_SECONDS (default 120)
func PlanningDeadline() time.Duration {
	v := strings.TrimSpace(os.Getenv("PLANNING_DEADLINE_SECONDS"))
	if v == "" {
		return 120 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 120 * time.Second
	}
	return time.Duration(n) * time.Second
}

// AllowForcedPropagation gates the force flag on blocked upstream item edits
// (plan approved/locked). When disabled, the force flag is ignored and the
// edit is rejected.
//
// Set via env:
// - ALLOW_FORCED_PROPAGATION=true
func AllowForcedPropagation() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_FORCED_PROPAGATION")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// OutboxDispatchInterval is the poll interval of the operation-log outbox
// dispatcher.
//
// Set via env:
// - OUTBOX_DISPATCH_INTERVAL_SECONDS (default 5)
func OutboxDispatchInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("OUTBOX_DISPATCH_INTERVAL_SECONDS"))
	if v == "" {
		return 5 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n) * time.Second
}

// OutboxBatchSize caps rows drained per dispatcher tick.
//
// Set via env:
// - OUTBOX_BATCH_SIZE (default 100)
func OutboxBatchSize() int {
	v := strings.TrimSpace(os.Getenv("OUTBOX_BATCH_SIZE"))
	if v == "" {
		return 100
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 100
	}
	return n
}

// OutboxMaxAttempts is how many publish failures a row survives before it is
// parked as DEAD for manual inspection.
//
// Set via env:
// - OUTBOX_MAX_ATTEMPTS (default 10)
func OutboxMaxAttempts() int {
	v := strings.TrimSpace(os.Getenv("OUTBOX_MAX_ATTEMPTS"))
	if v == "" {
		return 10
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10
	}
	return n
}

// CodeGeneratorRetryBudget is the duplicate-probe retry budget when callers
// request duplicate-checking mode.
//
// Set via env:
// - CODEGEN_RETRY_BUDGET (default 5)
func CodeGeneratorRetryBudget() int {
	v := strings.TrimSpace(os.Getenv("CODEGEN_RETRY_BUDGET"))
	if v == "" {
		return 5
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 5
	}
	return n
}
