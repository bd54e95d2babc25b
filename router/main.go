package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/config"
	"github.com/supportal/api/database"
	"github.com/supportal/api/handlers"
	admin_handlers "github.com/supportal/api/handlers/admin"
	article_handlers "github.com/supportal/api/handlers/article"
	auth_handlers "github.com/supportal/api/handlers/auth"
	category_handlers "github.com/supportal/api/handlers/category"
	chat_handlers "github.com/supportal/api/handlers/chat"
	search_handlers "github.com/supportal/api/handlers/search"
	ticket_handlers "github.com/supportal/api/handlers/ticket"
	user_handlers "github.com/supportal/api/handlers/user"
	"github.com/supportal/api/services"
	"github.com/supportal/api/services/storage"
	"github.com/supportal/api/utils/auth"
	"github.com/supportal/api/utils/cache"
	"github.com/supportal/api/utils/middleware"
	"gorm.io/gorm"
)

// SetupRoutes constructs every service and handler once at startup and wires
// the HTTP surface. Handlers hold their dependencies; nothing is constructed
// per request.
func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable) {
	jwtSecret := env.JWT_SECRET
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "supportal-api"
	}

	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis backs the brute force protection; the API still runs without it
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Embedding and chat completion share the OpenAI key; an empty key
	// degrades chat to the fixed fallback answer and disables vector search
	var embedder services.Embedder
	if env.OPENAI_API_KEY != "" {
		embedder = services.NewEmbeddingService(env.OPENAI_API_KEY)
	} else {
		log.Println("Warning: OPENAI_API_KEY not set. Vector search and chat answers are disabled.")
	}

	var spacesClient *storage.SpacesClient
	if env.SPACES_ACCESS_KEY != "" {
		spacesClient, err = storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: env.SPACES_ACCESS_KEY,
			SecretKey: env.SPACES_SECRET_KEY,
			Bucket:    env.SPACES_BUCKET,
			Region:    env.SPACES_REGION,
			Endpoint:  env.SPACES_ENDPOINT,
			CDNURL:    env.SPACES_CDN_URL,
		})
		if err != nil {
			log.Printf("Warning: Failed to create Spaces client: %v. Attachments are disabled.", err)
		}
	}

	// Services
	searchService := services.NewSearchService(db, embedder, env.SEARCH_UNEMBEDDED_IN_FALLBACK)
	articleService := services.NewArticleService(db, embedder)
	categoryService := services.NewCategoryService(db)
	chatService := services.NewChatService(db, searchService, env.OPENAI_API_KEY)
	ticketService := services.NewTicketService(db, spacesClient)
	activityService := services.NewActivityService(db)
	importer := services.NewArticleImporter(articleService)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	articleHandler := article_handlers.NewArticleHandler(db, articleService, importer)
	categoryHandler := category_handlers.NewCategoryHandler(db, categoryService)
	searchHandler := search_handlers.NewSearchHandler(db, searchService)
	chatHandler := chat_handlers.NewChatHandler(db, chatService)
	ticketHandler := ticket_handlers.NewTicketHandler(db, ticketService)
	userHandler := user_handlers.NewUserHandler(db, activityService, articleService)
	adminHandler := admin_handlers.NewAdminHandler(db, store)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/oauth", authHandler.OAuthLogin)
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.GetProfile)
	authGroup.Put("/me", authMiddleware.Required(), authHandler.UpdateProfile)

	// Article routes
	articles := api.Group("/articles")
	articles.Get("/", authMiddleware.Optional(), articleHandler.List)                       // Public: published articles; staff can filter by status
	articles.Post("/", authMiddleware.RequireStaff(), articleHandler.Create)                // Staff: create draft
	articles.Post("/import", authMiddleware.RequireAdmin(), articleHandler.ImportPDF)       // Admin: PDF -> draft
	articles.Get("/:idOrSlug", authMiddleware.Optional(), articleHandler.Get)               // Public: by id or slug
	articles.Get("/:idOrSlug/related", articleHandler.Related)                              // Public: curated related set
	articles.Put("/:id", authMiddleware.RequireStaff(), articleHandler.Update)              // Staff: partial update
	articles.Delete("/:id", authMiddleware.RequireAdmin(), articleHandler.Delete)           // Admin: delete
	articles.Post("/:id/publish", authMiddleware.RequireStaff(), articleHandler.Publish)    // Staff: publish + embed
	articles.Post("/:id/archive", authMiddleware.RequireStaff(), articleHandler.Archive)    // Staff: archive
	articles.Put("/:id/related", authMiddleware.RequireStaff(), articleHandler.SetRelated)  // Staff: replace related set

	// Category routes
	categories := api.Group("/categories")
	categories.Get("/", authMiddleware.Optional(), categoryHandler.List)               // Public: active categories with counts
	categories.Get("/:slug", categoryHandler.Get)                                      // Public: by slug
	categories.Post("/", authMiddleware.RequireAdmin(), categoryHandler.Create)        // Admin: create
	categories.Put("/:id", authMiddleware.RequireAdmin(), categoryHandler.Update)      // Admin: update
	categories.Delete("/:id", authMiddleware.RequireAdmin(), categoryHandler.Delete)   // Admin: delete, articles keep existing

	// Search (public; activity recorded when authenticated)
	api.Get("/search", authMiddleware.Optional(), searchHandler.Search)

	// Chat widget routes (anonymous visitors allowed)
	chat := api.Group("/chat")
	chat.Post("/messages", authMiddleware.Optional(), chatHandler.SendMessage)
	chat.Get("/conversations/:id", authMiddleware.Optional(), chatHandler.GetConversation)
	chat.Get("/conversations/:id/messages", authMiddleware.Optional(), chatHandler.GetMessages)
	chat.Post("/conversations/:id/close", authMiddleware.Optional(), chatHandler.CloseConversation)
	chat.Delete("/conversations/:id", authMiddleware.RequireAdmin(), chatHandler.DeleteConversation)

	// Ticket routes (authenticated)
	tickets := api.Group("/tickets", authMiddleware.Required())
	tickets.Get("/", ticketHandler.List)
	tickets.Post("/", ticketHandler.Create)
	tickets.Get("/:id", ticketHandler.Get)
	tickets.Put("/:id/status", authMiddleware.RequireStaff(), ticketHandler.UpdateStatus)
	tickets.Post("/:id/assign", authMiddleware.RequireStaff(), ticketHandler.Assign)
	tickets.Post("/:id/comments", ticketHandler.AddComment)
	tickets.Post("/:id/attachments", ticketHandler.AddAttachment)
	tickets.Delete("/:id", authMiddleware.RequireAdmin(), ticketHandler.Delete)

	// User activity routes (authenticated)
	users := api.Group("/users", authMiddleware.Required())
	users.Post("/track-activity", userHandler.TrackActivity)
	users.Post("/submit-feedback", userHandler.SubmitFeedback)
	users.Get("/me/activity", userHandler.GetActivity)
	users.Get("/me/recommendations", userHandler.Recommendations)

	// Admin routes
	admin := api.Group("/admin", authMiddleware.RequireAdmin())
	admin.Get("/dashboard", adminHandler.Dashboard)
	admin.Get("/health", adminHandler.Health)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Put("/users/:id", middleware.AdminAuditLog(db, "update", "user"), adminHandler.UpdateUser)
	admin.Delete("/users/:id", middleware.AdminAuditLog(db, "delete", "user"), adminHandler.DeleteUser)
	admin.Get("/conversations", adminHandler.ListConversations)
	admin.Get("/audit", adminHandler.ListAuditLog)
}
