package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"spaceremit/internal/config"
	"spaceremit/internal/handler"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	callbackHandler *handler.CallbackHandler,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// SpaceRemit callback entry point: webhook and browser form return share
	// the POST route, the GET route is the browser "come back to us" link.
	e.POST("/spaceremit/callback", callbackHandler.HandlePost)
	e.GET("/spaceremit/callback", callbackHandler.HandleGet)

	api := e.Group("/api")

	// Public admin auth routes
	api.POST("/admin/login", authHandler.Login)
	api.POST("/admin/refresh", authHandler.Refresh)

	// Secured admin routes (require JWT authentication)
	secured := api.Group("/admin", echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:" + echo.HeaderAuthorization,
	}))

	secured.POST("/logout", authHandler.Logout)
	secured.GET("/transactions", adminHandler.ListTransactions)
	secured.GET("/transactions/:id", adminHandler.GetTransaction)
	secured.POST("/transactions/:id/recheck", adminHandler.RecheckTransaction)
	secured.GET("/stats", adminHandler.Stats)
	secured.POST("/test-connection", adminHandler.TestConnection)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
