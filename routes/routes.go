package routes

import (
	"scrap-pickup/constants"
	bookingController "scrap-pickup/controllers/booking"
	collectorController "scrap-pickup/controllers/collector"
	messageController "scrap-pickup/controllers/message"
	notificationController "scrap-pickup/controllers/notification"
	wsController "scrap-pickup/controllers/ws"
	"scrap-pickup/middleware"
	"scrap-pickup/realtime"
	bookingSvc "scrap-pickup/services/booking"
	dispatchSvc "scrap-pickup/services/dispatch"
	messageSvc "scrap-pickup/services/message"
	notificationSvc "scrap-pickup/services/notification"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	hub := realtime.NewHub()
	notifications := notificationSvc.NewService(db)
	bookings := bookingSvc.NewService(db, hub, notifications)
	dispatch := dispatchSvc.NewService(db, bookings)
	messages := messageSvc.NewService(db, bookings, hub)

	bookingCtrl := bookingController.NewBookingController(bookings, dispatch)
	collectorCtrl := collectorController.NewCollectorController(dispatch)
	messageCtrl := messageController.NewMessageController(messages)
	notificationCtrl := notificationController.NewNotificationController(notifications)
	wsCtrl := wsController.NewWSController(hub, bookings, dispatch, messages)

	// Start the notification delivery goroutine
	go notifications.Run()

	// Index route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "scrap-pickup",
			"status":  "ok",
		})
	})

	api := app.Group("/api")

	/*=============================================================================
	| Booking Routes
	===============================================================================*/
	bookingGroup := api.Group("/bookings")

	bookingGroup.Post("/", middleware.IsAuthenticated(constants.RoleCustomer), bookingCtrl.Store)
	bookingGroup.Get("/", middleware.IsAuthenticated(), bookingCtrl.Index)
	bookingGroup.Get("/:id", middleware.IsAuthenticated(), bookingCtrl.Show)
	bookingGroup.Patch("/:id", middleware.IsAuthenticated(constants.RoleCustomer), bookingCtrl.Update)
	bookingGroup.Get("/:id/history", middleware.IsAuthenticated(), bookingCtrl.History)
	bookingGroup.Post("/:id/transition", middleware.IsAuthenticated(), bookingCtrl.Transition)
	bookingGroup.Post("/:id/assign", middleware.IsAuthenticated(constants.RoleAdmin), bookingCtrl.Assign)
	bookingGroup.Post("/:id/dispatch", middleware.IsAuthenticated(constants.RoleAdmin), bookingCtrl.Redispatch)
	bookingGroup.Post("/:id/complete", middleware.IsAuthenticated(constants.RoleCollector), bookingCtrl.Complete)
	bookingGroup.Post("/:id/cancel", middleware.IsAuthenticated(), bookingCtrl.Cancel)

	/*=============================================================================
	| Message Routes
	===============================================================================*/
	bookingGroup.Get("/:id/messages", middleware.IsAuthenticated(), messageCtrl.Index)
	bookingGroup.Post("/:id/messages/read", middleware.IsAuthenticated(), messageCtrl.MarkRead)
	api.Post("/messages", middleware.IsAuthenticated(), messageCtrl.Send)

	/*=============================================================================
	| Collector Routes
	===============================================================================*/
	collectorGroup := api.Group("/collectors")

	collectorGroup.Post("/location", middleware.IsAuthenticated(constants.RoleCollector), collectorCtrl.UpdateLocation)
	collectorGroup.Get("/nearby", middleware.IsAuthenticated(constants.RoleAdmin), collectorCtrl.Nearby)
	collectorGroup.Get("/:id/performance", middleware.IsAuthenticated(constants.RoleCollector), collectorCtrl.Performance)

	/*=============================================================================
	| Notification Routes
	===============================================================================*/
	notificationGroup := api.Group("/notifications")

	notificationGroup.Get("/", middleware.IsAuthenticated(), notificationCtrl.Index)
	notificationGroup.Post("/:id/read", middleware.IsAuthenticated(), notificationCtrl.MarkRead)

	/*=============================================================================
	| Realtime Routes
	===============================================================================*/
	app.Use("/ws", middleware.IsAuthenticated(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsCtrl.Handle))
}
