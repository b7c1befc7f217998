package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// Per-family lifecycle hooks. Guards veto transitions, effects follow them;
// both run inside the transition transaction.

func init() {
	// warehouse documents feed quantities downstream on audit and cannot be
	// unaudited, the movements are already counted
	for _, docType := range []string{"Receipt", "Picking", "Delivery", "Stocktaking"} {
		docType := docType
		registerGuard(docType, func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
			if from == models.DocumentStatusAudited && to != models.DocumentStatusClosed {
				return utils.NewBusinessLogicError("warehouse documents cannot be unaudited",
					"post a correcting document instead")
			}
			return nil
		})
	}

	registerEffect("Receipt", func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
		if to != models.DocumentStatusAudited {
			return nil
		}
		return onReceiptAudited(ctx, tx, tenantId, docId)
	})

	registerEffect("Delivery", func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
		if to != models.DocumentStatusAudited {
			return nil
		}
		return onDeliveryAudited(ctx, tx, tenantId, docId)
	})

	registerGuard("PurchaseOrder", func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
		if from != models.DocumentStatusAudited {
			return nil
		}
		var received int64
		err := tx.WithContext(ctx).Model(&models.ReceiptItem{}).
			Joins("JOIN purchase_order_items poi ON poi.id = receipt_items.purchase_order_item_id").
			Where("receipt_items.tenant_id = ? AND poi.order_id = ?", tenantId, docId).
			Count(&received).Error
		if err != nil {
			return err
		}
		if received > 0 {
			return utils.NewBusinessLogicError("purchase order already has receipts",
				"cannot leave the audited state")
		}
		return nil
	})

	// a plan-generated purchase order leaving draft starts the owning plan's
	// execution; cancelling the draft does not
	registerEffect("PurchaseOrder", func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
		if from != models.DocumentStatusDraft || to == models.DocumentStatusCancelled {
			return nil
		}
		var items []models.PurchaseOrderItem
		if err := tx.WithContext(ctx).
			Where("tenant_id = ? AND order_id = ? AND plan_item_id IS NOT NULL", tenantId, docId).
			Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			if item.PlanItemId == nil {
				continue
			}
			if err := markPlanExecuting(ctx, tx, tenantId, *item.PlanItemId); err != nil {
				return err
			}
		}
		return nil
	})

	registerEffect("PurchaseInvoice", func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
		if to != models.DocumentStatusAudited {
			return nil
		}
		invoice, err := utils.FetchModelForUpdate[models.PurchaseInvoice](tx, tenantId, docId)
		if err != nil {
			return err
		}
		return models.OpenPayableForInvoice(ctx, tx, invoice)
	})

	registerEffect("SalesInvoice", func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
		if to != models.DocumentStatusAudited {
			return nil
		}
		invoice, err := utils.FetchModelForUpdate[models.SalesInvoice](tx, tenantId, docId)
		if err != nil {
			return err
		}
		return models.OpenReceivableForInvoice(ctx, tx, invoice)
	})
}

// onReceiptAudited rolls received quantities up into the linked purchase
// order items.
func onReceiptAudited(ctx context.Context, tx *gorm.DB, tenantId string, receiptId int) error {
	var items []models.ReceiptItem
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND receipt_id = ?", tenantId, receiptId).
		Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		if item.PurchaseOrderItemId == nil {
			continue
		}
		if err := models.RecordPurchaseReceipt(ctx, tx, tenantId, *item.PurchaseOrderItemId, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// onDeliveryAudited rolls delivered quantities into the sales order and the
// demand pool, so order progress and remaining demand stay consistent.
func onDeliveryAudited(ctx context.Context, tx *gorm.DB, tenantId string, deliveryId int) error {
	var items []models.DeliveryItem
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND delivery_id = ?", tenantId, deliveryId).
		Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		if err := models.RecordOrderDelivery(ctx, tx, tenantId, item.SalesOrderItemId, item.Quantity); err != nil {
			return err
		}
		if err := models.RecordDemandDelivery(ctx, tx, tenantId, models.DemandSourceTypeSalesOrder, item.SalesOrderItemId, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
