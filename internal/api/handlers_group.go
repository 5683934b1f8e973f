package api

import "Magpie/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	UserHandler    *handler.UserHandler
	IMHandler      *handler.IMHandler
	WsHandler      *handler.WsHandler
	ContactHandler *handler.ContactHandler
	MediaHandler   *handler.MediaHandler
	StatusHandler  *handler.StatusHandler
}
