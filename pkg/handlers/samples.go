package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flexscale/flexscale/pkg/config"
	"github.com/flexscale/flexscale/pkg/logging"
	"github.com/flexscale/flexscale/pkg/metrics"
	"github.com/flexscale/flexscale/pkg/repository/storage"
	"github.com/flexscale/flexscale/pkg/types"
)

// HandlePushSamples buffers a sub-batch of call durations for the next
// rescale cycle. Producers may flush in any number of sub-batches; the
// aggregation is associative so the cycle result is the same.
func HandlePushSamples(c *gin.Context) {
	ctx := c.Request.Context()
	stg := c.MustGet("storage").(*storage.Storage)
	functionID := c.Param("functionID")

	var req types.PushSamplesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sizing, err := stg.GetSizing(functionID)
	if err != nil {
		logging.Errorf(ctx, "Failed to check registration for %s: %v", functionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check registration"})
		return
	}
	if sizing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "function not registered"})
		return
	}

	if err := stg.PushSamples(functionID, req.DurationsSecs, time.Now().UTC()); err != nil {
		logging.Errorf(ctx, "Failed to buffer samples for %s: %v", functionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to buffer samples"})
		return
	}

	metrics.SamplesReceivedTotal.WithLabelValues(functionID).Add(float64(len(req.DurationsSecs)))
	c.JSON(http.StatusOK, gin.H{"functionID": functionID, "buffered": len(req.DurationsSecs)})
}

// HandleForceSpinUp buffers a synthetic near-zero duration. The aggregator
// treats durations under the force threshold as a spin-up signal, so the
// next cycle decides scale 1 regardless of observed volume.
func HandleForceSpinUp(c *gin.Context) {
	ctx := c.Request.Context()
	stg := c.MustGet("storage").(*storage.Storage)
	cfg := config.GetConfigFromGinContext(c)
	functionID := c.Param("functionID")

	sizing, err := stg.GetSizing(functionID)
	if err != nil {
		logging.Errorf(ctx, "Failed to check registration for %s: %v", functionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check registration"})
		return
	}
	if sizing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "function not registered"})
		return
	}

	signal := cfg.Policy.ForceThresholdSecs / 2
	if err := stg.PushSamples(functionID, []float64{signal}, time.Now().UTC()); err != nil {
		logging.Errorf(ctx, "Failed to buffer force signal for %s: %v", functionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to buffer force signal"})
		return
	}

	logging.Infof(ctx, "Force spin-up requested for %s", functionID)
	c.JSON(http.StatusAccepted, gin.H{"functionID": functionID, "forceSpinUp": true})
}
