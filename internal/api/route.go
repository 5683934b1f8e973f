package api

import (
	"Magpie/internal/api/config"
	"Magpie/internal/api/middleware"
	"Magpie/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		apiGroup.GET("/status", group.StatusHandler.GetStatus)

		userGroup := apiGroup.Group("/user")
		{
			// 无需登录即可访问的接口
			userGroup.POST("/register", group.UserHandler.Register)
			userGroup.POST("/login", group.UserHandler.Login)
			userGroup.POST("/sms/send", group.UserHandler.SendSmsCode)
			userGroup.POST("/sms/check", group.UserHandler.CheckSmsCode)

			authGroup := userGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.POST("/logout", group.UserHandler.Logout)
				authGroup.GET("/info", group.UserHandler.GetUserInfo)
				authGroup.PUT("/info", group.UserHandler.UpdateUserInfo)
				authGroup.GET("/batch/simple", group.UserHandler.GetUserSimpleInfoByIds)
				authGroup.GET("/search", group.UserHandler.SearchUser)
				authGroup.GET("/search/name", group.UserHandler.SearchUserByName)
				authGroup.POST("/cancel", group.UserHandler.CancelUser)
			}
		}

		imGroup := apiGroup.Group("/im")
		{
			// WebSocket 入口在协议内鉴权
			imGroup.GET("", group.WsHandler.Connect)

			authGroup := imGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.GET("/list", group.IMHandler.GetChatList)
				authGroup.GET("/history", group.IMHandler.GetChatHistory)
				authGroup.GET("/unread", group.IMHandler.GetTotalUnread)
				authGroup.POST("/read", group.IMHandler.MarkAsRead)
				authGroup.POST("/archive", group.IMHandler.ArchiveChat)
				authGroup.PUT("/message/:message_id", group.IMHandler.EditMessage)
				authGroup.DELETE("/message/:message_id", group.IMHandler.DeleteMessage)

				sendGroup := authGroup.Group("")
				sendGroup.Use(middleware.RateLimitMiddleware(&config.Cfg.RateLimit))
				{
					sendGroup.POST("/send", group.IMHandler.SendMessage)
				}
			}
		}

		contactGroup := apiGroup.Group("/contact")
		contactGroup.Use(middleware.AuthMiddleware())
		{
			contactGroup.POST("", group.ContactHandler.AddContact)
			contactGroup.GET("", group.ContactHandler.ListContacts)
			contactGroup.DELETE("/:contact_id", group.ContactHandler.RemoveContact)
			contactGroup.PUT("/:contact_id/remark", group.ContactHandler.UpdateRemark)
		}

		mediaGroup := apiGroup.Group("/media")
		mediaGroup.Use(middleware.AuthMiddleware())
		{
			mediaGroup.POST("/upload", group.MediaHandler.UploadChatMedia)
		}
	}

	return r
}
