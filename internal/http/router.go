package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// UserRepository is the storage surface the routes need. Both the GORM and
// the in-memory repositories satisfy it.
type UserRepository interface {
	Create(ctx context.Context, in user.CreateInput) (user.User, error)
	FindByEmail(ctx context.Context, email string) (user.User, bool, error)
	FindByID(ctx context.Context, id string) (user.User, bool, error)
	Update(ctx context.Context, id string, in user.UpdateInput) (user.User, error)
	FindAll(ctx context.Context, f user.ListFilter) ([]user.Public, int64, error)
	VerifyPassword(plain, hash string) bool
}

type TokenManager interface {
	handlers.TokenIssuer
	middlewares.TokenVerifier
}

type Deps struct {
	Users   UserRepository
	Tokens  TokenManager
	Limiter middlewares.Limiter
	Prom    *observability.Prom
	// readiness probe; nil means always ready
	Ping func(ctx context.Context) error
}

const metricsPath = "/metrics"

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// global middleware
	r.Use(middlewares.ErrorBoundary(log))
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(cfg.IsProduction()))
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins, cfg.CORSCredentials))

	var onLimited func()
	if deps.Prom != nil {
		onLimited = deps.Prom.RecordRateLimited
	}

	// the limit covers unmatched routes and docs too; only scrapes are exempt
	r.Use(middlewares.RateLimit(deps.Limiter, middlewares.KeyByIPExcept(metricsPath), log, onLimited))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))

	r.NoRoute(middlewares.NotFound())
	r.NoMethod(middlewares.MethodNotAllowed())

	if deps.Prom != nil {
		r.GET(metricsPath, gin.WrapH(deps.Prom.Handler()))
	}

	docs := handlers.NewDocsHandler()
	r.GET("/docs", docs.SwaggerUI)
	r.GET("/docs/openapi.yaml", docs.OpenAPI)

	api := r.Group(cfg.APIPrefix, middlewares.RequireJSON())

	health := handlers.NewHealthHandler(deps.Ping, log)
	api.GET("/health", health.Health)
	api.GET("/readyz", health.Readyz)

	// avoid storing a typed nil in the interface
	var authMetrics handlers.AuthRecorder
	if deps.Prom != nil {
		authMetrics = deps.Prom
	}

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Users, deps.Tokens, authMetrics, log)
	usersHandler := handlers.NewUsersHandler(deps.Users, log)
	authMw := middlewares.NewAuthMiddleware(deps.Tokens)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", middlewares.ValidateBody[user.RegisterRequest](), authHandler.Register)
		authGroup.POST("/login", middlewares.ValidateBody[user.LoginRequest](), authHandler.Login)

		authGroup.GET("/profile", authMw.RequireAuth(), usersHandler.GetProfile)
		authGroup.PUT("/profile",
			middlewares.ValidateBody[user.UpdateProfileRequest](),
			authMw.RequireAuth(),
			usersHandler.UpdateProfile,
		)

		// admin
		authGroup.GET("/users",
			middlewares.ValidateQuery[user.ListUsersQuery](),
			authMw.RequireAuth(),
			authMw.RequireRole(user.RoleAdmin),
			usersHandler.GetAllUsers,
		)
		authGroup.GET("/users/:id",
			middlewares.ValidateURI[user.IDParam](),
			authMw.RequireAuth(),
			authMw.RequireRole(user.RoleAdmin),
			usersHandler.GetUserByID,
		)
	}

	return r
}
