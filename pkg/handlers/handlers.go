package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "flexscale API Server",
		"endpoints": gin.H{
			"/functions":                         "Lists registered functions",
			"/functions/{functionID}":            "Register (PUT), inspect (GET) or deregister (DELETE) a function",
			"/functions/{functionID}/samples":    "Push call duration samples (POST)",
			"/functions/{functionID}/force-spin-up": "Request an immediate spin-up on the next cycle (POST)",
			"/tasks/{taskName}/trigger":          "Runs a controller task synchronously (POST)",
			"/health":                            "Health check endpoint",
		},
	})
}

func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
