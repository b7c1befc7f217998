package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseInvoice records supplier billing against a purchase order. Invoices
// are independent documents; auditing one opens a payable for its amount.
type PurchaseInvoice struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Uuid            string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId        string          `gorm:"index;not null" json:"tenant_id"`
	Code            string          `gorm:"size:100;not null" json:"code"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id"`
	SupplierId      int             `gorm:"index;not null" json:"supplier_id"`
	InvoiceNo       string          `gorm:"size:100" json:"invoice_no"`
	InvoiceDate     time.Time       `gorm:"not null" json:"invoice_date"`
	Currency        string          `gorm:"size:10;not null;default:'CNY'" json:"currency"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Status          DocumentStatus  `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes"`
	Reviewer        string          `gorm:"size:100" json:"reviewer"`
	ReviewedAt      *time.Time      `json:"reviewed_at"`
	ReviewComment   string          `gorm:"size:500" json:"review_comment"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// PayableRecord tracks the unpaid balance opened by an audited invoice.
type PayableRecord struct {
	ID         int             `gorm:"primary_key" json:"id"`
	Uuid       string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId   string          `gorm:"index;not null" json:"tenant_id"`
	InvoiceId  int             `gorm:"index;not null" json:"invoice_id"`
	SupplierId int             `gorm:"index;not null" json:"supplier_id"`
	Currency   string          `gorm:"size:10;not null;default:'CNY'" json:"currency"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PaidAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"paid_amount"`
	IsSettled  *bool           `gorm:"not null;default:false" json:"is_settled"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

type NewPurchaseInvoice struct {
	PurchaseOrderId int             `json:"purchase_order_id" binding:"required"`
	InvoiceNo       string          `json:"invoice_no"`
	InvoiceDate     time.Time       `json:"invoice_date"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Notes           string          `json:"notes"`
}

func (i *PurchaseInvoice) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&i.Uuid)
	return nil
}

func (p *PayableRecord) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&p.Uuid)
	return nil
}

func (i PurchaseInvoice) GetId() int { return i.ID }

func CreatePurchaseInvoice(ctx context.Context, input *NewPurchaseInvoice, code string) (*PurchaseInvoice, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	order, err := utils.FetchModel[PurchaseOrder](ctx, tenantId, input.PurchaseOrderId)
	if err != nil {
		return nil, utils.NewNotFoundError("purchase order not found")
	}
	if order.Status != DocumentStatusAudited {
		return nil, utils.NewBusinessLogicError("only audited purchase orders can be invoiced", "")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("invoice amount must be positive")
	}
	invoiceDate := input.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = utils.TruncateToDay(time.Now())
	}
	invoice := PurchaseInvoice{
		TenantId:        tenantId,
		Code:            code,
		PurchaseOrderId: order.ID,
		SupplierId:      order.SupplierId,
		InvoiceNo:       input.InvoiceNo,
		InvoiceDate:     invoiceDate,
		Currency:        order.Currency,
		Amount:          input.Amount.Round(2),
		Status:          DocumentStatusDraft,
		Notes:           input.Notes,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, invoice.ID, "PurchaseInvoice", OperationActionCreate, nil, &invoice); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// OpenPayableForInvoice creates the payable once the invoice is audited.
// Idempotent: an existing payable for the invoice is returned as is.
func OpenPayableForInvoice(ctx context.Context, tx *gorm.DB, invoice *PurchaseInvoice) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&PayableRecord{}).
		Where("tenant_id = ? AND invoice_id = ?", invoice.TenantId, invoice.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	payable := PayableRecord{
		TenantId:   invoice.TenantId,
		InvoiceId:  invoice.ID,
		SupplierId: invoice.SupplierId,
		Currency:   invoice.Currency,
		Amount:     invoice.Amount,
		IsSettled:  utils.NewFalse(),
	}
	return tx.WithContext(ctx).Create(&payable).Error
}
