package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/mes_backend/middlewares"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"bitbucket.org/mmdatafocus/mes_backend/workflow"
	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine) {
	r.POST("/auth/login", loginHandler())

	api := r.Group("/api", middlewares.RequireTenant())

	api.POST("/users", createHandler(models.CreateUser))

	// master data
	api.POST("/materials", createHandler(models.CreateMaterial))
	api.PUT("/materials/:uuid", updateHandler(models.UpdateMaterial))
	api.DELETE("/materials/:uuid", deleteHandler(models.DeleteMaterial))
	api.POST("/material-groups", createHandler(models.CreateMaterialGroup))
	api.PUT("/material-groups/:uuid", updateHandler(models.UpdateMaterialGroup))
	api.DELETE("/material-groups/:uuid", deleteHandler(models.DeleteMaterialGroup))
	api.POST("/suppliers", createHandler(models.CreateSupplier))
	api.POST("/warehouses", createHandler(models.CreateWarehouse))
	api.POST("/boms", createHandler(models.CreateBom))
	api.POST("/routes", createHandler(models.CreateRoute))
	api.POST("/code-rules", createHandler(models.CreateCodeRule))
	api.PUT("/code-rules/:uuid", updateHandler(models.UpdateCodeRule))
	api.PUT("/node-configs", createHandler(models.UpsertTenantNodeConfig))

	// demand sources; audited edits go through the propagation rules
	api.POST("/sales-forecasts", createDocumentHandler[models.SalesForecast, models.NewSalesForecast]("SF", models.CreateSalesForecast))
	api.PUT("/sales-forecasts/:uuid", propagatingUpdateHandler(workflow.UpdateSalesForecast))
	lifecycleRoutes[models.SalesForecast](api, "/sales-forecasts")
	api.POST("/sales-orders", createDocumentHandler[models.SalesOrder, models.NewSalesOrder]("SO", models.CreateSalesOrder))
	api.PUT("/sales-orders/:uuid", propagatingUpdateHandler(workflow.UpdateSalesOrder))
	lifecycleRoutes[models.SalesOrder](api, "/sales-orders")

	// documents
	api.POST("/purchase-orders", createDocumentHandler[models.PurchaseOrder, models.NewPurchaseOrder]("PO", models.CreatePurchaseOrder))
	lifecycleRoutes[models.PurchaseOrder](api, "/purchase-orders")
	api.POST("/receipts", createDocumentHandler[models.Receipt, models.NewReceipt]("RC", models.CreateReceipt))
	lifecycleRoutes[models.Receipt](api, "/receipts")
	api.POST("/pickings", createDocumentHandler[models.Picking, models.NewPicking]("PK", models.CreatePicking))
	lifecycleRoutes[models.Picking](api, "/pickings")
	api.POST("/deliveries", createDocumentHandler[models.Delivery, models.NewDelivery]("DL", models.CreateDelivery))
	lifecycleRoutes[models.Delivery](api, "/deliveries")
	api.POST("/stocktakings", createDocumentHandler[models.Stocktaking, models.NewStocktaking]("ST", models.CreateStocktaking))
	lifecycleRoutes[models.Stocktaking](api, "/stocktakings")
	api.POST("/purchase-invoices", createDocumentHandler[models.PurchaseInvoice, models.NewPurchaseInvoice]("PI", models.CreatePurchaseInvoice))
	lifecycleRoutes[models.PurchaseInvoice](api, "/purchase-invoices")
	api.POST("/sales-invoices", createDocumentHandler[models.SalesInvoice, models.NewSalesInvoice]("SI", models.CreateSalesInvoice))
	lifecycleRoutes[models.SalesInvoice](api, "/sales-invoices")

	api.POST("/approvals/callback", approvalCallbackHandler())

	// demand pool
	api.GET("/demands", listDemandsHandler())
	api.POST("/demands/from-sales-order/:uuid", demandFromSalesOrderHandler())
	api.POST("/demands/:uuid/push", pushDemandHandler())
	api.POST("/demands/:uuid/withdraw", withdrawDemandHandler())

	// planning
	api.GET("/demand-items", openDemandItemsHandler())
	api.POST("/plans", runPlanHandler())
	api.GET("/plans/:uuid", fetchPlanHandler())
	api.POST("/plans/:uuid/status", advancePlanStatusHandler())
	api.POST("/plans/:uuid/recompute", recomputePlanHandler())
	api.POST("/plans/:uuid/unaudit", unauditPlanHandler())
	api.POST("/plans/:uuid/push", pushPlanItemsHandler())
	api.DELETE("/plans/:uuid", withdrawPlanHandler())

	// execution
	api.POST("/work-orders", createDocumentHandler[models.WorkOrder, models.NewWorkOrder]("WO", models.CreateWorkOrder))
	api.GET("/work-orders/:uuid", fetchHandler[models.WorkOrder]("Operations"))
	api.POST("/work-orders/:uuid/release", workOrderActionHandler(workflow.ReleaseWorkOrder))
	api.POST("/work-orders/:uuid/start", workOrderActionHandler(workflow.StartWorkOrder))
	api.POST("/work-orders/:uuid/freeze", freezeWorkOrderHandler())
	api.POST("/work-orders/:uuid/report", reportWorkOrderHandler())
	api.POST("/work-orders/:uuid/complete", completeWorkOrderHandler())
	api.POST("/work-orders/:uuid/cancel", workOrderActionHandler(workflow.CancelWorkOrder))
	api.POST("/material-bindings", createHandler(models.CreateMaterialBinding))

	// inventory view
	api.GET("/inventory/batches", inventoryByBatchHandler())
	api.GET("/inventory/snapshot", inventorySnapshotHandler())
	api.GET("/inventory/open-receipts", inventoryOpenReceiptsHandler())
	api.POST("/inventory/alert-rules", createHandler(models.CreateInventoryAlertRule))
	api.POST("/inventory/alerts/evaluate", evaluateAlertsHandler())
	api.POST("/inventory/alerts/:uuid/acknowledge", acknowledgeAlertHandler())

	// ops tooling: requeue DEAD outbox rows after the broker is fixed
	api.POST("/internal/ops/outbox/retry-dead", retryDeadOutboxHandler())
}

func respondError(c *gin.Context, err error) {
	if appErr, ok := utils.AsAppError(err); ok {
		c.JSON(utils.HTTPStatus(err), appErr)
		return
	}
	c.JSON(utils.HTTPStatus(err), gin.H{"kind": "Error", "message": err.Error()})
}

type identifiable interface {
	GetId() int
}

// resolveUuid translates the public uuid path parameter into the row's
// internal id. Unknown and cross-tenant uuids both read as not found, so the
// surface never leaks whether a row exists for another tenant.
func resolveUuid[T identifiable](c *gin.Context) (int, bool) {
	uuid := c.Param("uuid")
	if uuid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": "invalid uuid"})
		return 0, false
	}
	tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
	row, err := utils.FetchModelByUuid[T](c.Request.Context(), tenantId, uuid)
	if err != nil {
		respondError(c, err)
		return 0, false
	}
	return (*row).GetId(), true
}
