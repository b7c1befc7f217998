package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesInvoice bills a customer against a sales order. Auditing one opens a
// receivable for its amount.
type SalesInvoice struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Uuid          string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId      string          `gorm:"index;not null" json:"tenant_id"`
	Code          string          `gorm:"size:100;not null" json:"code"`
	SalesOrderId  int             `gorm:"index;not null" json:"sales_order_id"`
	InvoiceNo     string          `gorm:"size:100" json:"invoice_no"`
	InvoiceDate   time.Time       `gorm:"not null" json:"invoice_date"`
	Currency      string          `gorm:"size:10;not null;default:'CNY'" json:"currency"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Status        DocumentStatus  `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Reviewer      string          `gorm:"size:100" json:"reviewer"`
	ReviewedAt    *time.Time      `json:"reviewed_at"`
	ReviewComment string          `gorm:"size:500" json:"review_comment"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// ReceivableRecord tracks the uncollected balance opened by an audited
// invoice.
type ReceivableRecord struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Uuid            string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId        string          `gorm:"index;not null" json:"tenant_id"`
	InvoiceId       int             `gorm:"index;not null" json:"invoice_id"`
	SalesOrderId    int             `gorm:"index;not null" json:"sales_order_id"`
	Currency        string          `gorm:"size:10;not null;default:'CNY'" json:"currency"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	CollectedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"collected_amount"`
	IsSettled       *bool           `gorm:"not null;default:false" json:"is_settled"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

type NewSalesInvoice struct {
	SalesOrderId int             `json:"sales_order_id" binding:"required"`
	InvoiceNo    string          `json:"invoice_no"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	Notes        string          `json:"notes"`
}

func (i *SalesInvoice) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&i.Uuid)
	return nil
}

func (r *ReceivableRecord) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&r.Uuid)
	return nil
}

func (i SalesInvoice) GetId() int { return i.ID }

func CreateSalesInvoice(ctx context.Context, input *NewSalesInvoice, code string) (*SalesInvoice, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	order, err := utils.FetchModel[SalesOrder](ctx, tenantId, input.SalesOrderId)
	if err != nil {
		return nil, utils.NewNotFoundError("sales order not found")
	}
	if order.Status != DocumentStatusAudited {
		return nil, utils.NewBusinessLogicError("only audited sales orders can be invoiced", "")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("invoice amount must be positive")
	}
	invoiceDate := input.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = utils.TruncateToDay(time.Now())
	}
	invoice := SalesInvoice{
		TenantId:     tenantId,
		Code:         code,
		SalesOrderId: order.ID,
		InvoiceNo:    input.InvoiceNo,
		InvoiceDate:  invoiceDate,
		Currency:     order.Currency,
		Amount:       input.Amount.Round(2),
		Status:       DocumentStatusDraft,
		Notes:        input.Notes,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, invoice.ID, "SalesInvoice", OperationActionCreate, nil, &invoice); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// OpenReceivableForInvoice creates the receivable once the invoice is
// audited. Idempotent per invoice.
func OpenReceivableForInvoice(ctx context.Context, tx *gorm.DB, invoice *SalesInvoice) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&ReceivableRecord{}).
		Where("tenant_id = ? AND invoice_id = ?", invoice.TenantId, invoice.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	receivable := ReceivableRecord{
		TenantId:     invoice.TenantId,
		InvoiceId:    invoice.ID,
		SalesOrderId: invoice.SalesOrderId,
		Currency:     invoice.Currency,
		Amount:       invoice.Amount,
		IsSettled:    utils.NewFalse(),
	}
	return tx.WithContext(ctx).Create(&receivable).Error
}
