package main

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"bitbucket.org/mmdatafocus/mes_backend/workflow"
	"github.com/gin-gonic/gin"
)

// Handlers stay thin: bind, call the model or workflow function, map the
// error. All business rules live below this layer.

func createHandler[I any, T any](fn func(ctx context.Context, input *I) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input I
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		result, err := fn(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func updateHandler[I any, T identifiable](fn func(ctx context.Context, id int, input *I) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[T](c)
		if !ok {
			return
		}
		var input I
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		result, err := fn(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func deleteHandler[T identifiable](fn func(ctx context.Context, id int) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[T](c)
		if !ok {
			return
		}
		result, err := fn(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func fetchHandler[T identifiable](associations ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[T](c)
		if !ok {
			return
		}
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		result, err := utils.FetchModel[T](c.Request.Context(), tenantId, id, associations...)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// createDocumentHandler generates the document code under the tenant's rule
// before handing off to the model constructor.
func createDocumentHandler[T any, I any](ruleCode string, fn func(ctx context.Context, input *I, code string) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input I
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		code, err := workflow.GenerateCode(c.Request.Context(), ruleCode, nil, workflow.CodeExists[T](tenantId))
		if err != nil {
			respondError(c, err)
			return
		}
		result, err := fn(c.Request.Context(), &input, code)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// propagatingUpdateHandler covers demand source edits; force comes from the
// query string and is only honored when forced propagation is enabled.
func propagatingUpdateHandler[I any, T identifiable](fn func(ctx context.Context, id int, input *I, force bool) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := resolveUuid[T](c)
		if !ok {
			return
		}
		var input I
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		force := c.Query("force") == "true"
		result, err := fn(c.Request.Context(), id, &input, force)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// lifecycleRoutes wires the shared document lifecycle for one document type:
// read, submit and the externally triggerable events.
func lifecycleRoutes[T identifiable](rg *gin.RouterGroup, path string) {
	rg.GET(path+"/:uuid", fetchHandler[T]())
	rg.POST(path+"/:uuid/submit", func(c *gin.Context) {
		id, ok := resolveUuid[T](c)
		if !ok {
			return
		}
		doc, err := workflow.SubmitForApproval[T](c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})
	rg.POST(path+"/:uuid/events/:event", func(c *gin.Context) {
		id, ok := resolveUuid[T](c)
		if !ok {
			return
		}
		event, err := models.ParseLifecycleEvent(c.Param("event"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		doc, err := workflow.ApplyEvent[T](c.Request.Context(), id, event)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})
}

func approvalCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var outcome workflow.ApprovalOutcome
		if err := c.ShouldBindJSON(&outcome); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"kind": "ValidationError", "message": err.Error()})
			return
		}
		if err := workflow.OnApprovalOutcome(c.Request.Context(), &outcome); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
