package wire

import (
	"Magpie/internal/api"
	"Magpie/internal/api/config"
	"Magpie/internal/api/handler"
	"Magpie/internal/chat"
	"Magpie/internal/job"
	"Magpie/internal/pkg/bus"
	"Magpie/internal/pkg/cron"
	"Magpie/internal/pkg/es"
	"Magpie/internal/pkg/kafka"
	"Magpie/internal/pkg/mongo"
	"Magpie/internal/pkg/redis"
	"Magpie/internal/repository"
	"Magpie/internal/service"

	"github.com/gin-gonic/gin"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	KafkaManager *kafka.ConsumerManager
	CronManager  *cron.Manager
	Hub          *chat.Hub
	IMService    service.IMService
}

func BuildApplication(db *gorm.DB, mongoDB *mongodrv.Database, cfg *config.Config) (*ApplicationContainer, error) {
	userRepo := repository.NewUserRepo(db)
	chatRepo := repository.NewChatRepo(db)
	contactRepo := repository.NewContactRepo(db)
	metricRepo := repository.NewMetricRepo(db)
	messageRepo := mongo.NewMessageRepo(mongoDB)
	esUserRepo := es.NewUserRepo()

	eventBus := bus.NewRedisBus(redis.GetRdbClient())

	imService := service.NewIMService(chatRepo, userRepo, messageRepo, eventBus)
	userService := service.NewUserService(userRepo, contactRepo, esUserRepo)
	contactService := service.NewContactService(contactRepo, userRepo)
	mediaService := service.NewMediaService()
	smsService := service.NewSmsService()

	hub, err := chat.NewHub(imService, userRepo, eventBus, &cfg.Chat)
	if err != nil {
		return nil, err
	}

	handlers := &api.HandlersGroup{
		UserHandler:    handler.NewUserHandler(userService, smsService),
		IMHandler:      handler.NewIMHandler(imService),
		WsHandler:      handler.NewWsHandler(hub),
		ContactHandler: handler.NewContactHandler(contactService),
		MediaHandler:   handler.NewMediaHandler(mediaService),
		StatusHandler:  handler.NewStatusHandler(hub),
	}

	router := api.SetupRouter(handlers)

	kafkaMgr, err := kafka.NewConsumerManager(cfg, esUserRepo, metricRepo)
	if err != nil {
		return nil, err
	}

	cronMgr := cron.NewCronManager(
		job.NewMediaCleanupJob(messageRepo),
		job.NewMessagePurgeJob(messageRepo),
	)

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		KafkaManager: kafkaMgr,
		CronManager:  cronMgr,
		Hub:          hub,
		IMService:    imService,
	}, nil
}
