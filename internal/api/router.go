package api

import (
	"marketplace/internal/middleware" // Auth, logging and error middlewares
	"marketplace/internal/service"    // Business operations

	"github.com/gin-gonic/gin" // Gin web framework
)

// Services are the dependencies of the HTTP layer
type Services struct {
	Auth           *service.AuthService
	Users          *service.UserService
	Products       *service.ProductService
	Transactions   *service.TransactionEngine
	UploadDir      string // Served under /images
	MaxUploadBytes int64  // Per request upload limit
}

// NewRouter wires every route onto a gin engine
func NewRouter(s Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	auth := middleware.JWTAuthMiddleware(s.Auth)         // Session required
	optional := middleware.OptionalJWTMiddleware(s.Auth) // Session optional
	admin := middleware.AdminOnlyMiddleware(s.Auth)      // Admin required, after auth

	// User routes
	users := r.Group("/user")
	users.POST("/register", RegisterHandler(s.Auth))                 // Registration endpoint
	users.POST("/login", LoginHandler(s.Auth))                       // Login endpoint
	users.POST("/password/forgot", ForgotPasswordHandler(s.Auth))    // Reset mail endpoint
	users.POST("/password/restore", RestorePasswordHandler(s.Auth))  // New password endpoint
	users.GET("", auth, admin, ListUsersHandler(s.Users))            // List users endpoint
	users.GET("/:id", optional, GetUserHandler(s.Users))             // Profile endpoint, full record for self and admins
	users.PUT("/:id", auth, UpdateProfileHandler(s.Users))           // Profile edit endpoint
	users.DELETE("/:id", auth, admin, DeleteUserHandler(s.Auth))     // Delete user endpoint
	users.PUT("/:id/admin", auth, admin, PromoteUserHandler(s.Auth)) // Promote endpoint
	users.PUT("/:id/scores", auth, admin, AdjustScoresHandler(s.Users))

	// Product routes
	products := r.Group("/products")
	products.GET("", optional, SearchProductsHandler(s.Products))                   // Search endpoint
	products.GET("/unapproved", auth, admin, UnapprovedProductsHandler(s.Products)) // Approval queue
	products.GET("/:id", optional, GetProductHandler(s.Products))                   // Product endpoint
	products.POST("", auth, CreateProductHandler(s.Products))                       // Create endpoint
	products.PUT("/:id", auth, UpdateProductHandler(s.Products))                    // Edit endpoint
	products.DELETE("/:id", auth, DeleteProductHandler(s.Products))                 // Delete endpoint
	products.PUT("/:id/approve", auth, admin, ApproveProductHandler(s.Products))    // Approve endpoint
	products.POST("/:id/images", auth, UploadImageHandler(s.Products, s.MaxUploadBytes))
	r.Static("/images", s.UploadDir) // Uploaded product images

	// Transaction routes (protected by JWT)
	transactions := r.Group("/transaction")
	transactions.Use(auth)
	transactions.POST("", InitiateTransactionHandler(s.Transactions))           // Initiate endpoint
	transactions.GET("", ListTransactionsHandler(s.Transactions))               // History endpoint
	transactions.GET("/:id", GetTransactionHandler(s.Transactions))             // Transaction endpoint
	transactions.PUT("/confirm/:id", ConfirmTransactionHandler(s.Transactions)) // Confirm endpoint
	transactions.PUT("/decline/:id", DeclineTransactionHandler(s.Transactions)) // Decline endpoint

	return r
}
