package database

import (
	"fmt"
	"log"
	"time"

	"github.com/supportal/api/config"
	"github.com/supportal/api/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GORMStore struct {
	db *gorm.DB
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM() (*GORMStore, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	// Build DSN (Data Source Name)
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		getEnv.DB_HOST,
		getEnv.DB_USER_NAME,
		getEnv.DB_PASSWORD,
		getEnv.DB_NAME,
		getEnv.DB_PORT,
		getEnv.DB_SSL_MODE,
	)

	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if getEnv.GO_ENV == "production" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	// Open GORM connection
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: false,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		log.Println("Unable to connect to PostgreSQL with GORM:", err)
		return nil, err
	}

	// Get underlying *sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Successfully connected to PostgreSQL Database with GORM.")

	return &GORMStore{db: db}, nil
}

// Init enables the pgvector extension, runs AutoMigrate for all models and
// creates the search indexes
func (s *GORMStore) Init() error {
	// Vector extension has to exist before the articles table migrates its
	// vector(1536) column
	if err := s.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		log.Println("Error creating vector extension:", err)
		return err
	}

	log.Println("Running GORM AutoMigrate for all models...")

	err := s.db.AutoMigrate(
		// User model
		&model.User{},

		// Knowledge base models
		&model.Category{},
		&model.Article{},
		&model.ArticleFeedback{},

		// Chat models
		&model.Conversation{},
		&model.Message{},

		// Ticketing models
		&model.Ticket{},
		&model.TicketComment{},
		&model.TicketAttachment{},

		// Token blacklist
		&model.JWTTokenBlacklist{},

		// Audit & logging models
		&model.CronJobLog{},
		&model.AdminAuditLog{},
	)
	if err != nil {
		log.Println("Error running AutoMigrate:", err)
		return err
	}

	if err := s.createSearchIndexes(); err != nil {
		log.Println("Error creating search indexes:", err)
		return err
	}

	log.Println("GORM AutoMigrate completed successfully!")
	return nil
}

// createSearchIndexes creates the nearest-neighbor and full-text indexes
// the retriever depends on
func (s *GORMStore) createSearchIndexes() error {
	statements := []string{
		// Cosine nearest-neighbor index over article embeddings
		`CREATE INDEX IF NOT EXISTS idx_articles_embedding ON articles
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		// Full-text index over title, short description and content
		`CREATE INDEX IF NOT EXISTS idx_articles_fts ON articles
			USING gin (to_tsvector('english', coalesce(title, '') || ' ' || coalesce(short_description, '') || ' ' || coalesce(content, '')))`,
	}

	for _, stmt := range statements {
		if err := s.db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	log.Println("Closing GORM PostgreSQL connection...")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the GORM DB instance for use in services/handlers
func (s *GORMStore) GetDB() interface{} {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
