package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flexscale/flexscale/pkg/logging"
	"github.com/flexscale/flexscale/pkg/repository/storage"
	"github.com/flexscale/flexscale/pkg/types"
)

func HandleListFunctions(c *gin.Context) {
	ctx := c.Request.Context()
	stg := c.MustGet("storage").(*storage.Storage)

	ids, err := stg.ListFunctionIDs()
	if err != nil {
		logging.Errorf(ctx, "Failed to list functions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list functions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"functions": ids})
}

// HandleRegisterFunction upserts a function's sizing. Registration is
// idempotent; re-registering with new sizing keeps the accumulated state.
func HandleRegisterFunction(c *gin.Context) {
	ctx := c.Request.Context()
	stg := c.MustGet("storage").(*storage.Storage)
	functionID := c.Param("functionID")

	var sizing types.FunctionSizing
	if err := c.ShouldBindJSON(&sizing); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := stg.RegisterFunction(functionID, sizing); err != nil {
		logging.Errorf(ctx, "Failed to register function %s: %v", functionID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logging.Infof(ctx, "Registered function %s with sizing %+v", functionID, sizing)
	c.JSON(http.StatusOK, gin.H{"functionID": functionID, "sizing": sizing})
}

func HandleGetFunction(c *gin.Context) {
	ctx := c.Request.Context()
	stg := c.MustGet("storage").(*storage.Storage)
	functionID := c.Param("functionID")

	status, err := stg.GetFunctionStatus(functionID)
	if err != nil {
		logging.Errorf(ctx, "Failed to read status for %s: %v", functionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read function status"})
		return
	}
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "function not registered"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func HandleDeregisterFunction(c *gin.Context) {
	ctx := c.Request.Context()
	stg := c.MustGet("storage").(*storage.Storage)
	functionID := c.Param("functionID")

	if err := stg.DB.DeleteSizing(functionID); err != nil {
		logging.Errorf(ctx, "Failed to deregister function %s: %v", functionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deregister function"})
		return
	}

	logging.Infof(ctx, "Deregistered function %s", functionID)
	c.JSON(http.StatusOK, gin.H{"functionID": functionID, "deregistered": true})
}
