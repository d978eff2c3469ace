package db

import (
  "fmt"

  "gorm.io/driver/postgres"
  "gorm.io/gorm"

  "github.com/spur-store/spur-chat-backend/internal/logger"
  "github.com/spur-store/spur-chat-backend/internal/types"
  "github.com/spur-store/spur-chat-backend/internal/utils"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  //1) Get and Set Environment Variables
  log.Info("Attempting to load environment variables for Postgres now...")
  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "spurchat", log)
  log.Info("Environment variables loaded for Postgres :)")

  //2) Construct DSN From Environment Variables
  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)
  log.Debug("Postgres DSN built :)", "host", postgresHost, "port", postgresPort, "dbname", postgresName)

  //3) Attempt DB Connection
  log.Info("Attempting to connect to Postgres DB now...")
  gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres DB", "error", err)
    return nil, fmt.Errorf("failed to connect to Postgres DB: %w", err)
  }
  log.Info("Successfully Connected to Postgres DB :)")

  //4) Enable uuid-ossp Extension
  if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    log.Error("Failed to enable uuid-ossp extension :(", "error", err)
    return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
  }
  log.Info("uuid-ossp extension enabled or already exists :)")

  return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Starting AutoMigrateAll for all GORM models now...")

  err := s.db.AutoMigrate(
    &types.Conversation{},
    &types.Message{},
  )
  if err != nil {
    s.log.Error("AutoMigrateAll failed for Base Tables :(", "error", err)
    return err
  }
  s.log.Info("AutoMigrateAll completed successfully for Base Tables :)")

  s.log.Info("Configuring Constraints for Base Tables now...")
  // -- Message.conversation_id => conversations.id (ON DELETE CASCADE)
  if err := s.db.Exec(`
      ALTER TABLE "messages"
      DROP CONSTRAINT IF EXISTS "fk_messages_conversation_id";
  `).Error; err != nil {
    return fmt.Errorf("failed to drop stale fk_messages_conversation_id: %w", err)
  }
  if err := s.db.Exec(`
      ALTER TABLE "messages"
      ADD CONSTRAINT "fk_messages_conversation_id"
      FOREIGN KEY ("conversation_id")
      REFERENCES "conversations"("id")
      ON DELETE CASCADE
  `).Error; err != nil {
    return fmt.Errorf("failed to add fk_messages_conversation_id: %w", err)
  }
  // -- Message.sender restricted to the two wire values
  if err := s.db.Exec(`
      ALTER TABLE "messages"
      DROP CONSTRAINT IF EXISTS "chk_messages_sender";
  `).Error; err != nil {
    return fmt.Errorf("failed to drop stale chk_messages_sender: %w", err)
  }
  if err := s.db.Exec(`
      ALTER TABLE "messages"
      ADD CONSTRAINT "chk_messages_sender"
      CHECK ("sender" IN ('user', 'ai'))
  `).Error; err != nil {
    return fmt.Errorf("failed to add chk_messages_sender: %w", err)
  }
  s.log.Info("Successfully Added Constraints to Base Tables :)")

  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
