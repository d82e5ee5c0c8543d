package handler

import (
	"growchat/internal/app/chat"
	"growchat/internal/configs"
	"growchat/internal/pkg/limiter"
)

const (
	// ConnectRate is the sustained number of WebSocket upgrades allowed per client IP each second.
	ConnectRate = 0.5

	// ConnectBurst is how many upgrades one client IP may open back to back.
	ConnectBurst = 10
)

// AppDeps carries everything the HTTP layer needs from the rest of the application.
type AppDeps struct {
	Router         *chat.Router
	Config         *configs.AppConfig
	ConnectLimiter *limiter.IPRateLimiter
}
