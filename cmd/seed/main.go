package main

import (
	"flag"
	"os"

	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/docmem/docmem/pkg/config"
	"github.com/docmem/docmem/pkg/crypto"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Seeds the system roles and the first admin user. ADMIN_EMAIL and
// ADMIN_PASSWORD must be set; reruns are idempotent.
func main() {
	var configPath string
	var withSamples bool
	flag.StringVar(&configPath, "config", "", "Path to optional config file")
	flag.BoolVar(&withSamples, "samples", false, "Also create sample documents")
	flag.Parse()

	log := logrus.New()

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
	log.Info("system roles in place")

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	var adminRole models.Role
	if err := db.Where("name = ?", database.SystemRoleAdmin).First(&adminRole).Error; err != nil {
		log.WithError(err).Fatal("admin role missing")
	}

	if _, err := db.FindUserByEmail(email); err == nil {
		log.WithField("email", email).Info("admin user already exists")
	} else if err != gorm.ErrRecordNotFound {
		log.WithError(err).Fatal("failed to look up admin user")
	} else {
		hash, err := crypto.HashPassword(password)
		if err != nil {
			log.WithError(err).Fatal("failed to hash admin password")
		}

		admin := models.User{
			Email:        email,
			Name:         "Administrator",
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := db.Create(&admin).Error; err != nil {
			log.WithError(err).Fatal("failed to create admin user")
		}
		if err := db.AssignRole(admin.ID, adminRole.ID); err != nil {
			log.WithError(err).Fatal("failed to assign admin role")
		}
		log.WithField("email", email).Info("admin user created")
	}

	if withSamples {
		seedSampleDocuments(db, log)
	}
}

func seedSampleDocuments(db *database.Database, log *logrus.Logger) {
	project := models.Project{
		Name:        "getting-started",
		Description: "Sample project created by the seed command",
	}
	if err := db.Where("name = ?", project.Name).FirstOrCreate(&project).Error; err != nil {
		log.WithError(err).Fatal("failed to create sample project")
	}

	samples := []models.Document{
		{
			ProjectID: project.ID,
			Title:     "Welcome to docmem",
			Content:   "docmem stores documentation and code context and retrieves it by meaning, not keywords.",
			Tags:      "intro",
		},
		{
			ProjectID: project.ID,
			Title:     "Token basics",
			Content:   "Authenticate with a bearer token from POST /auth/login. Each token acts as exactly one role.",
			Tags:      "auth",
		},
	}
	for i := range samples {
		err := db.Where("title = ?", samples[i].Title).FirstOrCreate(&samples[i]).Error
		if err != nil {
			log.WithError(err).Fatal("failed to create sample document")
		}
	}
	log.WithField("count", len(samples)).Info("sample documents in place")
}
