package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"order-service/clients"
	"order-service/config"
	"order-service/consumers"
	"order-service/controllers"
	"order-service/middlewares"
	"order-service/rabbitmq"
	"order-service/service"
	"order-service/store"
)

func main() {
	cfg := config.LoadConfig()

	db, err := store.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer db.Close()
	orderStore := store.NewMySQLStore(db)

	membership := clients.NewMembershipClient(cfg.MembershipServiceURL, cfg.ClientTimeout)
	catalog := clients.NewProductClient(cfg.ProductServiceURL, cfg.ClientTimeout)

	rmq, err := rabbitmq.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("RabbitMQ initialization failed: %v", err)
	}
	defer rmq.Close()

	if err := rmq.SetupQueues(); err != nil {
		log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
	}

	svc := service.New(orderStore, membership, catalog).
		WithObserver(middlewares.MetricsObserver{}).
		WithEvents(rmq)

	consumers.StartOrderConsumer(rmq.Channel, cfg, svc)

	ctl := controllers.NewOrderController(svc)

	r := gin.Default()
	r.Use(middlewares.RequestIDMiddleware())
	r.Use(middlewares.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/dead-letter", ctl.HandleDeadLetter)

	authGroup := r.Group("/api/v1")
	authGroup.Use(middlewares.AuthMiddleware(cfg.JWTSecret))
	{
		authGroup.POST("/orders", ctl.CreateOrder)
		authGroup.GET("/orders", ctl.GetOrders)
		authGroup.GET("/orders/:id", ctl.GetOrderDetails)
		authGroup.PUT("/orders/:id/status", ctl.UpdateOrderStatus)
		authGroup.DELETE("/orders/:id", ctl.CancelOrder)
		authGroup.GET("/product-usage/:productId", ctl.ProductUsage)
	}

	addr := ":" + cfg.Port
	log.Printf("Order service starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
