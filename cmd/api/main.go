package main

import (
	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/event"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（本番は環境変数だけ）
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.GoEnv == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.TrackingEvent{},
		&model.AuditLog{},
	); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)

	//決済セッションキャッシュ（redis）
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	sessionCache := cache.NewRedisPaymentSessionCache(redisClient)

	//注文イベント（kafka）
	publisher := event.NewKafkaOrderEventPublisher(cfg.KafkaBrokers, cfg.ServiceName)
	defer publisher.Close()

	//決済ゲートウェイ（stripe）
	gateway, err := payment.NewStripeGateway(cfg.StripeAPIKey, nil)
	if err != nil {
		logger.Fatal("stripe init failed", zap.Error(err))
	}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, validator.NewAuthValidator(), []byte(cfg.JWTSecret))
	orderUC := usecase.NewOrderUsecase(txManager, publisher)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, publisher, logger)
	paymentUC := usecase.NewPaymentUsecase(txManager, gateway, sessionCache, logger)

	//Handler生成
	h := server.Handlers{
		Auth:       handler.NewAuthHandler(authUC),
		Orders:     handler.NewOrderHandler(orderUC),
		AdminOrder: handler.NewAdminOrderHandler(adminOrderUC),
		Payment:    handler.NewPaymentHandler(paymentUC),
	}

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	e := server.New(cfg, logger, h)
	logger.Info("listening", zap.String("addr", addr))
	if err := server.Start(e, addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
