package main

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"bitbucket.org/mmdatafocus/mes_backend/workflow"
	"github.com/gin-gonic/gin"
)

func loginHandler() gin.HandlerFunc {
	type request struct {
		TenantId string `json:"tenant_id" binding:"required"`
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		user, err := models.Authenticate(c.Request.Context(), req.TenantId, req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"kind": "ValidationError", "message": "invalid credentials"})
			return
		}
		token, err := utils.JwtGenerate(user.ID, user.TenantId, user.Username)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

func workOrderActionHandler(fn func(ctx context.Context, id int) (*models.WorkOrder, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.WorkOrder](c)
		if !ok {
			return
		}
		order, err := fn(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func freezeWorkOrderHandler() gin.HandlerFunc {
	type request struct {
		Frozen *bool `json:"frozen" binding:"required"`
	}
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.WorkOrder](c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		order, err := workflow.FreezeWorkOrder(c.Request.Context(), id, *req.Frozen)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func reportWorkOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.WorkOrder](c)
		if !ok {
			return
		}
		var input workflow.NewReporting
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		record, err := workflow.ReportWorkOrder(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

func completeWorkOrderHandler() gin.HandlerFunc {
	type request struct {
		Manual bool `json:"manual"`
	}
	return func(c *gin.Context) {
		id, ok := resolveUuid[models.WorkOrder](c)
		if !ok {
			return
		}
		var req request
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
				return
			}
		}
		order, err := workflow.CompleteWorkOrder(c.Request.Context(), id, req.Manual)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
