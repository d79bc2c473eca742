package handler

import (
	"linechat/internal/app/directory"
	"linechat/internal/configs"
	"linechat/internal/transport"
)

// AppDeps bundles the dependencies the HTTP handlers need.
type AppDeps struct {
	Hub    transport.Hub
	Store  directory.Store
	Config *configs.AppConfig
}
