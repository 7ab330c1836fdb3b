package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmora/storefront/internal/handlers"
	"github.com/velmora/storefront/internal/service"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *handlers.CartHandler
	OrderHandler   *handlers.OrderHandler
	PaymentHandler *handlers.PaymentHandler
	SearchHandler  *handlers.SearchHandler
	TokenService   *service.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/verify-email", d.AuthHandler.VerifyEmail)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/verify-otp", d.AuthHandler.VerifyOTP)
	auth.POST("/logout", d.AuthHandler.LogOut)
	auth.POST("/reset-password/send-otp", d.AuthHandler.SendResetOTP)
	auth.POST("/reset-password/verify-otp", d.AuthHandler.VerifyResetOTP)
	auth.PUT("/reset-password/update-password", d.AuthHandler.UpdatePassword)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:slug", d.ProductHandler.GetProductBySlug)

	v1.GET("/search", d.SearchHandler.Search)

	cart := v1.Group("/cart", d.TokenService.AutoRefreshMiddleware)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.PUT("", d.CartHandler.UpdateCartItem)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.DELETE("/:productId", d.CartHandler.RemoveCartItem)

	payment := v1.Group("/payment", d.TokenService.AutoRefreshMiddleware)
	payment.POST("/create-order", d.PaymentHandler.CreatePaymentOrder)
	payment.POST("/verify-payment", d.PaymentHandler.VerifyPayment)

	orders := v1.Group("/orders", d.TokenService.AutoRefreshMiddleware)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:orderId", d.OrderHandler.GetOrder)

	admin := v1.Group("/admin", d.TokenService.AutoRefreshMiddlewareAdmin)
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	admin.PATCH("/orders/:orderId/status", d.OrderHandler.UpdateOrderStatus)
}
