package models

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"github.com/shopspring/decimal"
)

// Inventory is a view, not a table. On-hand is derived from audited warehouse
// documents: receipts add, pickings and deliveries subtract, stocktaking
// differences adjust. Nothing below writes.

// InventoryBalance is one (material, warehouse, batch) bucket.
type InventoryBalance struct {
	MaterialId  int             `json:"material_id"`
	WarehouseId int             `json:"warehouse_id"`
	BatchNo     string          `json:"batch_no"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
	OnHand      decimal.Decimal `json:"on_hand"`
}

// MaterialInventory is the per-material rollup the planning engine and the
// snapshot endpoint read. In-transit is ordered-but-unreceived purchase
// quantity; open receipts add production still expected from active work
// orders on top of that.
type MaterialInventory struct {
	MaterialId          int             `json:"material_id"`
	OnHand              decimal.Decimal `json:"on_hand"`
	Available           decimal.Decimal `json:"available"`
	Reserved            decimal.Decimal `json:"reserved"`
	InTransit           decimal.Decimal `json:"in_transit"`
	SafetyStock         decimal.Decimal `json:"safety_stock"`
	OpenReceiptQuantity decimal.Decimal `json:"open_receipt_quantity"`
}

type balanceKey struct {
	materialId  int
	warehouseId int
	batchNo     string
}

type movementRow struct {
	MaterialId  int
	WarehouseId int
	BatchNo     string
	Total       decimal.Decimal
}

func collectBalances(ctx context.Context, tenantId string, materialId int, warehouseId *int) (map[balanceKey]decimal.Decimal, error) {
	db := config.GetDB()
	balances := make(map[balanceKey]decimal.Decimal)

	apply := func(rows []movementRow, sign decimal.Decimal) {
		for _, row := range rows {
			key := balanceKey{row.MaterialId, row.WarehouseId, row.BatchNo}
			balances[key] = balances[key].Add(row.Total.Mul(sign))
		}
	}

	scoped := func(table string, header string, quantityExpr string) ([]movementRow, error) {
		query := db.WithContext(ctx).Table(table).
			Select("material_id, warehouse_id, batch_no, "+quantityExpr+" as total").
			Joins("JOIN "+header+" h ON h.id = "+table+"."+headerColumn(table)).
			Where(table+".tenant_id = ? AND h.status = ? AND h.deleted_at IS NULL", tenantId, DocumentStatusAudited).
			Group("material_id, warehouse_id, batch_no")
		if materialId > 0 {
			query = query.Where(table+".material_id = ?", materialId)
		}
		if warehouseId != nil {
			query = query.Where(table+".warehouse_id = ?", *warehouseId)
		}
		var rows []movementRow
		if err := query.Scan(&rows).Error; err != nil {
			return nil, err
		}
		return rows, nil
	}

	in, err := scoped("receipt_items", "receipts", "sum(quantity)")
	if err != nil {
		return nil, err
	}
	apply(in, decimal.NewFromInt(1))

	picked, err := scoped("picking_items", "pickings", "sum(quantity)")
	if err != nil {
		return nil, err
	}
	apply(picked, decimal.NewFromInt(-1))

	delivered, err := scoped("delivery_items", "deliveries", "sum(quantity)")
	if err != nil {
		return nil, err
	}
	apply(delivered, decimal.NewFromInt(-1))

	// stocktaking items carry the warehouse on the header
	adjustQuery := db.WithContext(ctx).Table("stocktaking_items").
		Select("material_id, h.warehouse_id as warehouse_id, batch_no, sum(diff_quantity) as total").
		Joins("JOIN stocktakings h ON h.id = stocktaking_items.stocktaking_id").
		Where("stocktaking_items.tenant_id = ? AND h.status = ? AND h.deleted_at IS NULL", tenantId, DocumentStatusAudited).
		Group("material_id, h.warehouse_id, batch_no")
	if materialId > 0 {
		adjustQuery = adjustQuery.Where("stocktaking_items.material_id = ?", materialId)
	}
	if warehouseId != nil {
		adjustQuery = adjustQuery.Where("h.warehouse_id = ?", *warehouseId)
	}
	var adjustments []movementRow
	if err := adjustQuery.Scan(&adjustments).Error; err != nil {
		return nil, err
	}
	apply(adjustments, decimal.NewFromInt(1))

	return balances, nil
}

func headerColumn(table string) string {
	switch table {
	case "receipt_items":
		return "receipt_id"
	case "picking_items":
		return "picking_id"
	case "delivery_items":
		return "delivery_id"
	}
	return ""
}

// InventoryByBatch lists non-zero batch buckets of one material. Ordering is
// first-expiry-first-out: dated batches by expiry, undated ones last, batch
// number as tiebreak.
func InventoryByBatch(ctx context.Context, tenantId string, materialId int, warehouseId *int) ([]InventoryBalance, error) {
	balances, err := collectBalances(ctx, tenantId, materialId, warehouseId)
	if err != nil {
		return nil, err
	}
	expiries, err := batchExpiries(ctx, tenantId, materialId)
	if err != nil {
		return nil, err
	}

	result := make([]InventoryBalance, 0, len(balances))
	for key, onHand := range balances {
		if onHand.IsZero() {
			continue
		}
		result = append(result, InventoryBalance{
			MaterialId:  key.materialId,
			WarehouseId: key.warehouseId,
			BatchNo:     key.batchNo,
			ExpiryDate:  expiries[key.batchNo],
			OnHand:      onHand,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if a.BatchNo != b.BatchNo {
			return a.BatchNo < b.BatchNo
		}
		return a.WarehouseId < b.WarehouseId
	})
	return result, nil
}

func batchExpiries(ctx context.Context, tenantId string, materialId int) (map[string]*time.Time, error) {
	db := config.GetDB()
	var rows []struct {
		BatchNo    string
		ExpiryDate *time.Time
	}
	query := db.WithContext(ctx).Table("receipt_items").
		Select("batch_no, min(expiry_date) as expiry_date").
		Where("tenant_id = ? AND expiry_date IS NOT NULL", tenantId).
		Group("batch_no")
	if materialId > 0 {
		query = query.Where("material_id = ?", materialId)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	expiries := make(map[string]*time.Time, len(rows))
	for _, row := range rows {
		expiries[row.BatchNo] = row.ExpiryDate
	}
	return expiries, nil
}

// BatchOnHand is the book quantity of one batch bucket, used when a
// stocktaking snapshots its baseline.
func BatchOnHand(ctx context.Context, tenantId string, materialId int, warehouseId int, batchNo string) (decimal.Decimal, error) {
	balances, err := collectBalances(ctx, tenantId, materialId, &warehouseId)
	if err != nil {
		return decimal.Zero, err
	}
	return balances[balanceKey{materialId, warehouseId, batchNo}], nil
}

// AvailableInventory is total on-hand of one material across warehouses.
func AvailableInventory(ctx context.Context, tenantId string, materialId int) (decimal.Decimal, error) {
	balances, err := collectBalances(ctx, tenantId, materialId, nil)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, onHand := range balances {
		total = total.Add(onHand)
	}
	return total, nil
}

// ReservedQuantity is material committed to active work orders: quantities
// fed into released or in-progress orders and not yet discharged back.
func ReservedQuantity(ctx context.Context, tenantId string, materialId int) (decimal.Decimal, error) {
	db := config.GetDB()
	var rows []struct {
		BindingType MaterialBindingType
		Total       decimal.Decimal
	}
	err := db.WithContext(ctx).Table("material_bindings").
		Select("material_bindings.binding_type as binding_type, sum(material_bindings.quantity) as total").
		Joins("JOIN work_orders w ON w.id = material_bindings.work_order_id").
		Where("material_bindings.tenant_id = ? AND material_bindings.material_id = ?", tenantId, materialId).
		Where("w.status IN ? AND w.deleted_at IS NULL",
			[]WorkOrderStatus{WorkOrderStatusReleased, WorkOrderStatusInProgress}).
		Group("material_bindings.binding_type").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	reserved := decimal.Zero
	for _, row := range rows {
		switch row.BindingType {
		case MaterialBindingTypeFeeding:
			reserved = reserved.Add(row.Total)
		case MaterialBindingTypeDischarging:
			reserved = reserved.Sub(row.Total)
		}
	}
	if reserved.LessThan(decimal.Zero) {
		reserved = decimal.Zero
	}
	return reserved, nil
}

// OpenWorkOrderQuantity is production still expected from released or
// in-progress work orders of the material.
func OpenWorkOrderQuantity(ctx context.Context, tenantId string, materialId int) (decimal.Decimal, error) {
	db := config.GetDB()
	var rows []struct {
		Quantity  decimal.Decimal
		Completed decimal.Decimal
	}
	err := db.WithContext(ctx).Table("work_orders").
		Select("quantity, completed_quantity as completed").
		Where("tenant_id = ? AND material_id = ? AND deleted_at IS NULL AND status IN ?",
			tenantId, materialId,
			[]WorkOrderStatus{WorkOrderStatusReleased, WorkOrderStatusInProgress}).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		open := row.Quantity.Sub(row.Completed)
		if open.GreaterThan(decimal.Zero) {
			total = total.Add(open)
		}
	}
	return total, nil
}

// OpenPurchaseQuantity is ordered-but-unreceived quantity on audited purchase
// orders.
func OpenPurchaseQuantity(ctx context.Context, tenantId string, materialId int) (decimal.Decimal, error) {
	db := config.GetDB()
	var rows []struct {
		Quantity decimal.Decimal
		Received decimal.Decimal
	}
	err := db.WithContext(ctx).Table("purchase_order_items").
		Select("purchase_order_items.quantity as quantity, purchase_order_items.received_quantity as received").
		Joins("JOIN purchase_orders h ON h.id = purchase_order_items.order_id").
		Where("purchase_order_items.tenant_id = ? AND purchase_order_items.material_id = ?", tenantId, materialId).
		Where("h.status = ? AND h.deleted_at IS NULL", DocumentStatusAudited).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		open := row.Quantity.Sub(row.Received)
		if open.GreaterThan(decimal.Zero) {
			total = total.Add(open)
		}
	}
	return total, nil
}

// OpenReceiptQuantity is the inbound supply planning may count on: open
// purchase order quantity plus production still expected from active work
// orders.
func OpenReceiptQuantity(ctx context.Context, tenantId string, materialId int) (decimal.Decimal, error) {
	purchases, err := OpenPurchaseQuantity(ctx, tenantId, materialId)
	if err != nil {
		return decimal.Zero, err
	}
	workOrders, err := OpenWorkOrderQuantity(ctx, tenantId, materialId)
	if err != nil {
		return decimal.Zero, err
	}
	return purchases.Add(workOrders), nil
}

// materialInventoryFromParts assembles one snapshot row. Available never goes
// negative: over-reservation shows as reserved exceeding on-hand, not as a
// negative availability.
func materialInventoryFromParts(materialId int, onHand, reserved, inTransit, openWorkOrders, safetyStock decimal.Decimal) MaterialInventory {
	available := onHand.Sub(reserved)
	if available.LessThan(decimal.Zero) {
		available = decimal.Zero
	}
	return MaterialInventory{
		MaterialId:          materialId,
		OnHand:              onHand,
		Available:           available,
		Reserved:            reserved,
		InTransit:           inTransit,
		SafetyStock:         safetyStock,
		OpenReceiptQuantity: inTransit.Add(openWorkOrders),
	}
}

// InventorySnapshot rolls the supply position up per material.
func InventorySnapshot(ctx context.Context, tenantId string, materialIds []int) ([]MaterialInventory, error) {
	db := config.GetDB()
	result := make([]MaterialInventory, 0, len(materialIds))
	for _, materialId := range materialIds {
		var material Material
		if err := db.WithContext(ctx).Where("tenant_id = ?", tenantId).
			First(&material, materialId).Error; err != nil {
			return nil, err
		}
		onHand, err := AvailableInventory(ctx, tenantId, materialId)
		if err != nil {
			return nil, err
		}
		reserved, err := ReservedQuantity(ctx, tenantId, materialId)
		if err != nil {
			return nil, err
		}
		inTransit, err := OpenPurchaseQuantity(ctx, tenantId, materialId)
		if err != nil {
			return nil, err
		}
		openWorkOrders, err := OpenWorkOrderQuantity(ctx, tenantId, materialId)
		if err != nil {
			return nil, err
		}
		result = append(result, materialInventoryFromParts(materialId,
			onHand, reserved, inTransit, openWorkOrders, material.SafetyStock))
	}
	return result, nil
}
