package models

import "bitbucket.org/mmdatafocus/mes_backend/config"

// AutoMigrate owns the schema. Every table lives here; there is no separate
// migration tool.
func AutoMigrate() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&User{},
		&OperationLogRecord{},
		&IdempotencyKey{},

		&Material{},
		&CodeAlias{},
		&MaterialGroup{},
		&Supplier{},
		&MaterialSupplier{},
		&Warehouse{},
		&Bom{},
		&Route{},
		&RouteOperation{},

		&CodeRule{},
		&CodeRuleComponent{},
		&CodeCounter{},

		&SalesForecast{},
		&SalesForecastItem{},
		&SalesOrder{},
		&SalesOrderItem{},
		&Demand{},
		&DemandItem{},

		&ProductionPlan{},
		&ProductionPlanItem{},
		&PlanWarning{},

		&WorkOrder{},
		&WorkOrderOperation{},
		&ReportingRecord{},
		&DefectRecord{},
		&ScrapRecord{},
		&ReworkOrder{},
		&OutsourceOrder{},
		&MaterialBinding{},
		&PackingBinding{},

		&PurchaseOrder{},
		&PurchaseOrderItem{},
		&Receipt{},
		&ReceiptItem{},
		&Picking{},
		&PickingItem{},
		&Delivery{},
		&DeliveryItem{},
		&Stocktaking{},
		&StocktakingItem{},

		&PurchaseInvoice{},
		&PayableRecord{},
		&SalesInvoice{},
		&ReceivableRecord{},

		&InventoryAlertRule{},
		&InventoryAlert{},

		&TenantNodeConfig{},
		&ApprovalInstance{},
	)
}
