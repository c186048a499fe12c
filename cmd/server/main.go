package main

import (
	"github.com/askgraph/askgraph/internal/server"
	"github.com/askgraph/askgraph/internal/util"
	"github.com/askgraph/askgraph/pkg/logger"
	"github.com/askgraph/askgraph/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Prefix: "api",
		Debug:  util.GetEnvBool("DEBUG", false),
	})
	logger.Init(consoleLogger)

	server.Init()
}
