package server

import (
	"github.com/flexscale/flexscale/pkg/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func SetupServerEngine(authAPI gin.HandlerFunc, middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("flexscale-api"))
	r.Use(middleware...)

	r.GET("/health", handlers.HandleHealth)

	apiV1Group := r.Group("/api/v1")
	{
		apiV1Group.GET("/", handlers.HandleRoot)
		apiV1Group.GET("/functions", authAPI, handlers.HandleListFunctions)
	}

	functionGroup := apiV1Group.Group("/functions/:functionID", authAPI)
	{
		functionGroup.PUT("", handlers.HandleRegisterFunction)
		functionGroup.GET("", handlers.HandleGetFunction)
		functionGroup.DELETE("", handlers.HandleDeregisterFunction)
		functionGroup.POST("/samples", handlers.HandlePushSamples)
		functionGroup.POST("/force-spin-up", handlers.HandleForceSpinUp)
	}

	taskGroup := apiV1Group.Group("/tasks", authAPI)
	{
		taskGroup.POST("/:taskName/trigger", handlers.HandleTaskTrigger)
	}

	return r
}

func SetupMetricsServerEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", handlers.HandleHealth)

	return r
}
