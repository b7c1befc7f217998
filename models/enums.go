package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

/* document lifecycle */

type DocumentStatus string

const (
	DocumentStatusDraft         DocumentStatus = "draft"
	DocumentStatusSubmitted     DocumentStatus = "submitted"
	DocumentStatusPendingReview DocumentStatus = "pending_review"
	DocumentStatusAudited       DocumentStatus = "audited"
	DocumentStatusRejected      DocumentStatus = "rejected"
	DocumentStatusCancelled     DocumentStatus = "cancelled"
	DocumentStatusClosed        DocumentStatus = "closed"
)

func (t *DocumentStatus) Scan(value interface{}) error {
	return scanEnum(t, value)
}

func (t DocumentStatus) Value() (driver.Value, error) {
	return string(t), nil
}

// LifecycleEvent drives the shared transition table. Any (status, event) pair
// not listed in the table is rejected.
type LifecycleEvent string

const (
	EventSubmit        LifecycleEvent = "submit"
	EventStartApproval LifecycleEvent = "start_approval"
	EventApprove       LifecycleEvent = "approve"
	EventReject        LifecycleEvent = "reject"
	EventResubmit      LifecycleEvent = "resubmit"
	EventUnaudit       LifecycleEvent = "unaudit"
	EventCancel        LifecycleEvent = "cancel"
	EventClose         LifecycleEvent = "close"
)

// ParseLifecycleEvent accepts the externally triggerable events. Approval
// events only arrive through the review callback, never over this path.
func ParseLifecycleEvent(s string) (LifecycleEvent, error) {
	switch LifecycleEvent(s) {
	case EventResubmit, EventUnaudit, EventCancel, EventClose:
		return LifecycleEvent(s), nil
	}
	return "", errors.New("invalid lifecycle event")
}

/* legacy lifecycle literals */

// The predecessor system stored lifecycle values in Chinese. The database
// holds canonical English values only; these tables translate legacy payloads
// at the boundary during the transition period.
var legacyStatusNames = map[DocumentStatus]string{
	DocumentStatusDraft:         "草稿",
	DocumentStatusSubmitted:     "已提交",
	DocumentStatusPendingReview: "待审核",
	DocumentStatusAudited:       "已审核",
	DocumentStatusRejected:      "已驳回",
	DocumentStatusCancelled:     "已作废",
	DocumentStatusClosed:        "已关闭",
}

var legacyStatusValues = func() map[string]DocumentStatus {
	m := make(map[string]DocumentStatus, len(legacyStatusNames))
	for status, legacy := range legacyStatusNames {
		m[legacy] = status
	}
	return m
}()

func (t DocumentStatus) LegacyName() string {
	return legacyStatusNames[t]
}

// ParseDocumentStatus accepts canonical values and legacy Chinese literals.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	switch DocumentStatus(s) {
	case DocumentStatusDraft, DocumentStatusSubmitted, DocumentStatusPendingReview,
		DocumentStatusAudited, DocumentStatusRejected, DocumentStatusCancelled, DocumentStatusClosed:
		return DocumentStatus(s), nil
	}
	if status, ok := legacyStatusValues[s]; ok {
		return status, nil
	}
	return "", errors.New("invalid document status")
}

var legacyDeliveryStatusNames = map[DeliveryStatus]string{
	DeliveryStatusPending:   "待交货",
	DeliveryStatusPartial:   "部分交货",
	DeliveryStatusDelivered: "已交货",
}

var legacyDeliveryStatusValues = func() map[string]DeliveryStatus {
	m := make(map[string]DeliveryStatus, len(legacyDeliveryStatusNames))
	for status, legacy := range legacyDeliveryStatusNames {
		m[legacy] = status
	}
	return m
}()

func (t DeliveryStatus) LegacyName() string {
	return legacyDeliveryStatusNames[t]
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	switch DeliveryStatus(s) {
	case DeliveryStatusPending, DeliveryStatusPartial, DeliveryStatusDelivered:
		return DeliveryStatus(s), nil
	}
	if status, ok := legacyDeliveryStatusValues[s]; ok {
		return status, nil
	}
	return "", errors.New("invalid delivery status")
}

/* material */

type MaterialType string

const (
	MaterialTypeRaw        MaterialType = "RAW"
	MaterialTypeSemi       MaterialType = "SEMI"
	MaterialTypeFinished   MaterialType = "FINISHED"
	MaterialTypePackaging  MaterialType = "PACKAGING"
	MaterialTypeConsumable MaterialType = "CONSUMABLE"
)

func (t *MaterialType) Scan(value interface{}) error { return scanEnum(t, value) }
func (t MaterialType) Value() (driver.Value, error)  { return string(t), nil }

type CodeAliasType string

const (
	CodeAliasTypeDepartment CodeAliasType = "DEPARTMENT"
	CodeAliasTypeCustomer   CodeAliasType = "CUSTOMER"
	CodeAliasTypeSupplier   CodeAliasType = "SUPPLIER"
	CodeAliasTypeVariant    CodeAliasType = "VARIANT"
)

func (t *CodeAliasType) Scan(value interface{}) error { return scanEnum(t, value) }
func (t CodeAliasType) Value() (driver.Value, error)  { return string(t), nil }

/* bom */

type BomApprovalStatus string

const (
	BomApprovalStatusDraft    BomApprovalStatus = "draft"
	BomApprovalStatusApproved BomApprovalStatus = "approved"
	BomApprovalStatusExpired  BomApprovalStatus = "expired"
)

func (t *BomApprovalStatus) Scan(value interface{}) error { return scanEnum(t, value) }
func (t BomApprovalStatus) Value() (driver.Value, error)  { return string(t), nil }

/* demand */

type DemandSourceType string

const (
	DemandSourceTypeSalesForecast DemandSourceType = "sales_forecast"
	DemandSourceTypeSalesOrder    DemandSourceType = "sales_order"
)

func (t *DemandSourceType) Scan(value interface{}) error { return scanEnum(t, value) }
func (t DemandSourceType) Value() (driver.Value, error)  { return string(t), nil }

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusPartial   DeliveryStatus = "partial"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

func (t *DeliveryStatus) Scan(value interface{}) error { return scanEnum(t, value) }
func (t DeliveryStatus) Value() (driver.Value, error)  { return string(t), nil }

/* planning */

type PlanType string

const (
	PlanTypeMRP PlanType = "MRP"
	PlanTypeLRP PlanType = "LRP"
)

func (t *PlanType) Scan(value interface{}) error { return scanEnum(t, value) }
func (t PlanType) Value() (driver.Value, error)  { return string(t), nil }

type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusSubmitted PlanStatus = "submitted"
	PlanStatusApproved  PlanStatus = "approved"
	PlanStatusLocked    PlanStatus = "locked"
	PlanStatusExecuting PlanStatus = "executing"
)

func (t *PlanStatus) Scan(value interface{}) error { return scanEnum(t, value) }
func (t PlanStatus) Value() (driver.Value, error)  { return string(t), nil }

type TimeBucket string

const (
	TimeBucketDay  TimeBucket = "day"
	TimeBucketWeek TimeBucket = "week"
)

func (t *TimeBucket) Scan(value interface{}) error { return scanEnum(t, value) }
func (t TimeBucket) Value() (driver.Value, error)  { return string(t), nil }

type SuggestedAction string

const (
	SuggestedActionMake SuggestedAction = "make"
	SuggestedActionBuy  SuggestedAction = "buy"
	SuggestedActionNone SuggestedAction = "none"
)

func (t *SuggestedAction) Scan(value interface{}) error { return scanEnum(t, value) }
func (t SuggestedAction) Value() (driver.Value, error)  { return string(t), nil }

type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusGenerated ExecutionStatus = "generated"
	ExecutionStatusDone      ExecutionStatus = "done"
)

func (t *ExecutionStatus) Scan(value interface{}) error { return scanEnum(t, value) }
func (t ExecutionStatus) Value() (driver.Value, error)  { return string(t), nil }

type PlanWarningKind string

const (
	PlanWarningLateStart PlanWarningKind = "LateStartWarning"
	PlanWarningSourcing  PlanWarningKind = "SourcingWarning"
	PlanWarningConflict  PlanWarningKind = "ConflictWarning"
)

func (t *PlanWarningKind) Scan(value interface{}) error { return scanEnum(t, value) }
func (t PlanWarningKind) Value() (driver.Value, error)  { return string(t), nil }

/* work order */

type WorkOrderStatus string

const (
	WorkOrderStatusDraft      WorkOrderStatus = "draft"
	WorkOrderStatusReleased   WorkOrderStatus = "released"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

func (t *WorkOrderStatus) Scan(value interface{}) error { return scanEnum(t, value) }
func (t WorkOrderStatus) Value() (driver.Value, error)  { return string(t), nil }

type ProductionMode string

const (
	ProductionModeMTS ProductionMode = "MTS"
	ProductionModeMTO ProductionMode = "MTO"
)

func (t *ProductionMode) Scan(value interface{}) error { return scanEnum(t, value) }
func (t ProductionMode) Value() (driver.Value, error)  { return string(t), nil }

type ReportingType string

const (
	ReportingTypeQuantity ReportingType = "quantity"
	ReportingTypeStatus   ReportingType = "status"
)

func (t *ReportingType) Scan(value interface{}) error { return scanEnum(t, value) }
func (t ReportingType) Value() (driver.Value, error)  { return string(t), nil }

type MaterialBindingType string

const (
	MaterialBindingTypeFeeding     MaterialBindingType = "feeding"
	MaterialBindingTypeDischarging MaterialBindingType = "discharging"
)

func (t *MaterialBindingType) Scan(value interface{}) error { return scanEnum(t, value) }
func (t MaterialBindingType) Value() (driver.Value, error)  { return string(t), nil }

/* approval */

type ApprovalResult string

const (
	ApprovalResultApproved  ApprovalResult = "approved"
	ApprovalResultRejected  ApprovalResult = "rejected"
	ApprovalResultCancelled ApprovalResult = "cancelled"
)

func (t *ApprovalResult) Scan(value interface{}) error { return scanEnum(t, value) }
func (t ApprovalResult) Value() (driver.Value, error)  { return string(t), nil }

/* code generator */

type CodeComponentKind string

const (
	CodeComponentLiteral CodeComponentKind = "literal"
	CodeComponentDate    CodeComponentKind = "date"
	CodeComponentField   CodeComponentKind = "field"
	CodeComponentCounter CodeComponentKind = "counter"
	CodeComponentRandom  CodeComponentKind = "random"
)

func (t *CodeComponentKind) Scan(value interface{}) error { return scanEnum(t, value) }
func (t CodeComponentKind) Value() (driver.Value, error)  { return string(t), nil }

type CounterReset string

const (
	CounterResetNever   CounterReset = "never"
	CounterResetDaily   CounterReset = "daily"
	CounterResetMonthly CounterReset = "monthly"
	CounterResetYearly  CounterReset = "yearly"
)

func (t *CounterReset) Scan(value interface{}) error { return scanEnum(t, value) }
func (t CounterReset) Value() (driver.Value, error)  { return string(t), nil }

/* idempotency */

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

/* operation log */

type OperationAction string

const (
	OperationActionCreate     OperationAction = "create"
	OperationActionUpdate     OperationAction = "update"
	OperationActionDelete     OperationAction = "delete"
	OperationActionTransition OperationAction = "transition"
)

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending   OutboxPublishStatus = "PENDING"
	OutboxPublishStatusPublished OutboxPublishStatus = "PUBLISHED"
	OutboxPublishStatusDead      OutboxPublishStatus = "DEAD"
)

/* alerting */

type AlertComparator string

const (
	AlertComparatorBelow AlertComparator = "below"
	AlertComparatorAbove AlertComparator = "above"
)

func (t *AlertComparator) Scan(value interface{}) error { return scanEnum(t, value) }
func (t AlertComparator) Value() (driver.Value, error)  { return string(t), nil }

func scanEnum[T ~string](dest *T, value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*dest = T(v)
	case string:
		*dest = T(v)
	default:
		return fmt.Errorf("unsupported enum scan type %T", value)
	}
	return nil
}
