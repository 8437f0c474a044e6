package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/NimaFathima/astrobiomers/internal/app"
	"github.com/NimaFathima/astrobiomers/internal/config"
	"github.com/NimaFathima/astrobiomers/internal/server"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app.InitLogger(cfg.Server, "server")
	defer logger.Close()

	server.Init(cfg)
}
