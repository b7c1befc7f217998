package main

import (
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"bitbucket.org/mmdatafocus/mes_backend/workflow"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("mes-backend")

func listDemandsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		demands, err := models.FetchActiveDemands(c.Request.Context(), tenantId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, demands)
	}
}

func demandFromSalesOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		salesOrderId, ok := resolveUuid[models.SalesOrder](c)
		if !ok {
			return
		}
		demand, err := workflow.CreateDemandFromSalesOrder(c.Request.Context(), salesOrderId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, demand)
	}
}

func pushDemandHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.Demand](c)
		if !ok {
			return
		}
		demand, err := workflow.PushDemandToComputation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, demand)
	}
}

func withdrawDemandHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.Demand](c)
		if !ok {
			return
		}
		demand, err := workflow.WithdrawDemandFromComputation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, demand)
	}
}

func openDemandItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		items, err := models.FetchOpenDemandItems(c.Request.Context(), tenantId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func runPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.NewPlanRun
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "planning.run")
		defer span.End()
		plan, err := workflow.RunPlan(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, plan)
	}
}

func fetchPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.ProductionPlan](c)
		if !ok {
			return
		}
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		plan, err := models.FetchPlanWithResults(c.Request.Context(), tenantId, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func advancePlanStatusHandler() gin.HandlerFunc {
	type request struct {
		To models.PlanStatus `json:"to" binding:"required"`
	}
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.ProductionPlan](c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		plan, err := workflow.AdvancePlanStatus(c.Request.Context(), id, req.To)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func recomputePlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.ProductionPlan](c)
		if !ok {
			return
		}
		plan, err := workflow.RecomputePlan(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func unauditPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.ProductionPlan](c)
		if !ok {
			return
		}
		plan, err := workflow.UnauditPlan(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func pushPlanItemsHandler() gin.HandlerFunc {
	type request struct {
		ItemIds []int `json:"item_ids"`
	}
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.ProductionPlan](c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		result, err := workflow.PushPlanItems(c.Request.Context(), id, req.ItemIds)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func withdrawPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.ProductionPlan](c)
		if !ok {
			return
		}
		if err := workflow.WithdrawPlan(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func retryDeadOutboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		requeued, err := workflow.RetryDeadOutboxRows(c.Request.Context(), tenantId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": requeued})
	}
}

func inventoryByBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		materialId, err := strconv.Atoi(c.Query("material_id"))
		if err != nil || materialId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": "material_id is required"})
			return
		}
		var warehouseId *int
		if v := c.Query("warehouse_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": "invalid warehouse_id"})
				return
			}
			warehouseId = &n
		}
		balances, err := models.InventoryByBatch(c.Request.Context(), tenantId, materialId, warehouseId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, balances)
	}
}

func inventorySnapshotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		var materialIds []int
		if csv := strings.TrimSpace(c.Query("material_ids")); csv != "" {
			for _, part := range strings.Split(csv, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(part))
				if err != nil || n <= 0 {
					c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": "invalid material_ids"})
					return
				}
				materialIds = append(materialIds, n)
			}
		}
		snapshot, err := models.InventorySnapshot(c.Request.Context(), tenantId, materialIds)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

func inventoryOpenReceiptsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		materialId, err := strconv.Atoi(c.Query("material_id"))
		if err != nil || materialId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": "material_id is required"})
			return
		}
		open, err := models.OpenReceiptQuantity(c.Request.Context(), tenantId, materialId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"material_id": materialId, "open_receipt_quantity": open})
	}
}

func evaluateAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		alerts, err := models.EvaluateInventoryAlerts(c.Request.Context(), tenantId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}

func acknowledgeAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.InventoryAlert](c)
		if !ok {
			return
		}
		if err := models.AcknowledgeInventoryAlert(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
