package main

import (
	cfg "nkpgallery/src/configuration"
	"nkpgallery/src/logging"
	server "nkpgallery/src/server"
)

func main() {
	config := cfg.ReadProperties()
	logger := logging.New(config.LogLevel, config.LogFormat)
	if err := server.RunServer(config, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
