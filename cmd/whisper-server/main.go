package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/whisperecho/whisper-server/internal/config"
	"github.com/whisperecho/whisper-server/internal/domain/principal"
	"github.com/whisperecho/whisper-server/internal/http/handler"
	mw "github.com/whisperecho/whisper-server/internal/http/middleware"
	"github.com/whisperecho/whisper-server/internal/repo"
	"github.com/whisperecho/whisper-server/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func init() {
	handleVersion()
}

func main() {
	isDev := os.Getenv("ENV") == "dev"

	cfg, err := config.Load("whisper-server.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := buildLogger(isDev)
	defer log.Sync()
	log = log.Named("main")

	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer()
	r := gin.New()

	// Services
	repos := repo.NewRepository(log, cfg.RedisAddr)
	defer repos.Close()

	authsvc, err := service.NewAuthService(log, cfg.Auth, repos.Users)
	if err != nil {
		log.Fatal("auth service creation failed", zap.Error(err))
	}
	postsvc := service.NewPostService(log, repos.Posts)

	// Middleware chain
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID()) // Correlation ID early so it's available everywhere

		if isDev { // Local Vite dev needs CORS
			r.Use(cors.New(cors.Config{
				AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
				AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowHeaders:     []string{"X-Request-ID", "Content-Type", "Authorization", service.HeaderAdminMode, service.HeaderAdminToken},
				ExposeHeaders:    []string{"X-Request-ID"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			}))
		} else { // Behind Nginx + TLS
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
			}))
		}

		r.Use(accessLog(log))

		r.Use(func(c *gin.Context) {
			// Hard 1MB max request body; posts and logins are small.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
			c.Next()
		})
	}

	// Routes
	{
		authhndlr := handler.NewAuthHandler(log, authsvc)
		postshndlr := handler.NewPostsHandler(log, postsvc)

		r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
		r.POST("/api/login", authhndlr.Login)

		// Anonymous-tolerant: unauthenticated requests get a derived
		// session identifier instead of a rejection.
		open := r.Group("", mw.RequireCapability(log, authsvc, principal.CapAnonymous))
		open.GET("/api/posts", postshndlr.Feed)

		users := r.Group("", mw.RequireCapability(log, authsvc, principal.CapUser))
		users.GET("/api/me", authhndlr.Me)
		users.POST("/api/posts", postshndlr.Create)

		admins := r.Group("", mw.RequireCapability(log, authsvc, principal.CapAdmin))
		admins.DELETE("/api/posts/:id", postshndlr.Delete)
	}

	httpsrv := &http.Server{
		Addr:              cfg.ServerAddr + ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      15 * time.Second, // avoid forever-hangs on writes
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpsrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server closed")
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("whisper-server %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// accessLog records HTTP request/response details with Zap after handling.
func accessLog(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("access")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
		}
		if id := principal.GetIdentity(c); id != nil {
			if id.Anonymous() {
				fields = append(fields, zap.Dict("auth",
					zap.Bool("anonymous", true),
					zap.String("session_id", id.SessionID),
				))
			} else {
				fields = append(fields, zap.Dict("auth",
					zap.String("id", id.Principal.ID),
					zap.String("role", id.Principal.Role.String()),
				))
			}
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func buildLogger(isDev bool) *zap.Logger {
	if isDev {
		logConfig := zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.TimeKey = ""
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logConfig.DisableStacktrace = true
		logConfig.DisableCaller = true
		logConfig.Level.SetLevel(zap.DebugLevel)
		return zap.Must(logConfig.Build())
	}
	return zap.Must(zap.NewProduction())
}
