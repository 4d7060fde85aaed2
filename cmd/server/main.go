package main

import (
	"flag"
	"fmt"

	"github.com/docmem/docmem/internal/api"
	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/service"
	"github.com/docmem/docmem/pkg/config"
	"github.com/docmem/docmem/pkg/embeddings"
	"github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to optional config file (env vars take precedence)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	db, err := database.NewDatabase(cfg.Database.DataDir)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	if err := db.EnsureSystemRoles(); err != nil {
		log.WithError(err).Fatal("failed to seed system roles")
	}

	provider, err := embeddings.NewProvider(
		cfg.Embedding.Provider,
		cfg.Embedding.Endpoint,
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		cfg.Embedding.Dimension,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize embedding provider")
	}

	indexer := service.NewIndexer(db, provider, cfg.Embedding.Workers, log)
	indexer.Start()
	defer indexer.Stop()

	router := api.SetupRouter(db, indexer, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("starting server")

	if err := router.Run(addr); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
