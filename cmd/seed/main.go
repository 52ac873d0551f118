package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"alcove/internal/config"
	"alcove/internal/domain/repositories"
	"alcove/internal/repository/postgres"
	"alcove/internal/repository/sqlite"
	"alcove/internal/seed"
	"alcove/internal/service"
)

func main() {
	manifestPath := flag.String("manifest", "seed.yaml", "Path to the YAML seed manifest")
	userOverride := flag.String("user", "", "Seed for this user id instead of the manifest's")
	drop := flag.Bool("drop", false, "Drop the folders table before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up the schema, don't seed folders")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *drop {
		log.Fatalf("BLOCKED: cannot run --drop in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	var folderRepo repositories.FolderRepository
	var txManager repositories.TransactionManager

	if cfg.UsePostgres() {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		tables := postgres.NewTableNames(cfg.TablePrefix)

		if *drop {
			log.Println("Dropping folders table...")
			if err := postgres.DropSchema(ctx, pool, tables); err != nil {
				log.Fatalf("Failed to drop schema: %v", err)
			}
		}

		log.Println("Ensuring database schema is up to date...")
		if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}

		folderRepo = postgres.NewFolderRepository(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		})
		txManager = postgres.NewTransactionManager(pool)
	} else {
		db, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open sqlite database: %v", err)
		}
		defer db.Close()

		if *drop {
			log.Println("Dropping folders table...")
			if err := sqlite.Drop(ctx, db); err != nil {
				log.Fatalf("Failed to drop schema: %v", err)
			}
			if _, err := db.ExecContext(ctx, sqlite.Schema); err != nil {
				log.Fatalf("Failed to reapply schema: %v", err)
			}
		}

		folderRepo = sqlite.NewFolderRepository(&sqlite.RepositoryConfig{
			DB:     db,
			Logger: logger,
		})
		txManager = sqlite.NewTransactionManager(db)
	}

	if *schemaOnly {
		log.Println("Schema setup complete (schema-only mode)")
		return
	}

	manifest, err := seed.LoadManifest(*manifestPath)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}

	userID := manifest.User
	if *userOverride != "" {
		userID = *userOverride
	}

	folderService := service.NewFolderService(folderRepo, txManager, logger)

	log.Printf("Seeding folder trees for user %s...", userID)
	if err := seed.Apply(ctx, folderService, userID, manifest, logger); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seeding complete")
}
