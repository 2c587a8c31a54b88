package main

import (
	"context"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	"github.com/MarcoPoloResearchLab/remarks/internal/claims"
	"github.com/MarcoPoloResearchLab/remarks/internal/comments"
	"github.com/MarcoPoloResearchLab/remarks/internal/config"
	"github.com/MarcoPoloResearchLab/remarks/internal/database"
	"github.com/MarcoPoloResearchLab/remarks/internal/feedback"
	"github.com/MarcoPoloResearchLab/remarks/internal/ids"
	"github.com/MarcoPoloResearchLab/remarks/internal/logging"
	"github.com/MarcoPoloResearchLab/remarks/internal/ownership"
	"github.com/MarcoPoloResearchLab/remarks/internal/server"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application holds the wired process-wide collaborators.
type application struct {
	logger  *zap.Logger
	db      *gorm.DB
	linker  *claims.Linker
	handler http.Handler
}

func buildApplication(appConfig config.AppConfig) (*application, error) {
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		return nil, err
	}
	app := &application{logger: logger, db: db}

	services, err := serviceAuthorizer(appConfig)
	if err != nil {
		app.Close()
		return nil, err
	}
	moderators := auth.NewStaticKeyAuthorizer(auth.RoleModerator, appConfig.AdminKey)
	if appConfig.AdminKey == "" {
		logger.Warn("moderator credential not configured; moderation endpoints will report not_configured")
	}

	commentStore := comments.NewGormStore(db)
	commentService, err := comments.NewService(comments.ServiceConfig{
		Store:       commentStore,
		Codec:       ownership.NewCodec(),
		Moderators:  moderators,
		IDProvider:  ids.NewUUIDProvider(),
		Clock:       time.Now,
		AutoVisible: appConfig.AutoVisible,
		Logger:      logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	feedbackService, err := feedback.NewService(feedback.ServiceConfig{
		Store:      feedback.NewGormStore(db),
		Moderators: moderators,
		IDProvider: ids.NewUUIDProvider(),
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.linker, err = claims.NewLinker(claims.LinkerConfig{
		Store:    commentStore,
		Services: services,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.handler, err = server.NewHTTPHandler(server.Dependencies{
		Comments:       commentService,
		Feedback:       feedbackService,
		Claims:         app.linker,
		HealthCheck:    app.ping,
		AllowedOrigins: appConfig.AllowedOrigins,
		TrustedProxies: appConfig.TrustedProxies,
		RateLimit: server.RateLimitConfig{
			PerMinute: appConfig.RatePerMinute,
			Burst:     appConfig.RateBurst,
		},
		Logger: logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// serviceAuthorizer accepts the static service key and, when a signing secret is configured,
// HS256 service tokens.
func serviceAuthorizer(appConfig config.AppConfig) (auth.Authorizer, error) {
	members := []auth.Authorizer{auth.NewStaticKeyAuthorizer(auth.RoleService, appConfig.ServiceKey)}
	if appConfig.ServiceTokenSecret != "" {
		signed, err := auth.NewSignedTokenAuthorizer(auth.SignedTokenConfig{
			SigningSecret: []byte(appConfig.ServiceTokenSecret),
			Issuer:        appConfig.ServiceTokenIssuer,
		})
		if err != nil {
			return nil, err
		}
		members = append(members, signed)
	}
	return auth.NewChainAuthorizer(members...), nil
}

func (a *application) ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *application) Close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.logger.Sync()
}
