package migrations

import (
	"errors"

	"github.com/recodarr/recodarr/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
// - 001: Schema creation using GORM AutoMigrate
// - 002: Partial unique index guarding one active queue item per path
// - 003: Seed the singleton transcoding schedule
// - 004: Seed a default encoding profile for fresh installations
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002ActivePathIndex(),
		migration003DefaultSchedule(),
		migration004DefaultProfile(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Profile{},
				&models.ScanRoot{},
				&models.FolderWatch{},
				&models.ExternalConnection{},
				&models.QueueItem{},
				&models.HistoryRecord{},
				&models.Schedule{},
				&models.Setting{},
			)
		},
		Down: func(tx *gorm.DB) error {
			// Drop tables in reverse dependency order
			tables := []string{
				"settings",
				"schedule",
				"history_records",
				"queue_items",
				"external_connections",
				"folder_watches",
				"scan_roots",
				"profiles",
			}
			for _, table := range tables {
				if tx.Migrator().HasTable(table) {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

// migration002ActivePathIndex enforces at most one non-terminal queue item
// per file path. SQLite and PostgreSQL support partial indexes; MySQL does
// not, so there the repository-level duplicate check is the only guard and
// we only add a plain lookup index.
func migration002ActivePathIndex() Migration {
	return Migration{
		Version:     "002",
		Description: "Unique index on active queue item paths",
		Up: func(tx *gorm.DB) error {
			switch tx.Dialector.Name() {
			case "sqlite", "postgres":
				return tx.Exec(
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_items_active_path
					 ON queue_items (file_path)
					 WHERE status NOT IN ('completed', 'failed')`,
				).Error
			default:
				return tx.Exec(
					`CREATE INDEX idx_queue_items_path ON queue_items (file_path)`,
				).Error
			}
		},
		Down: func(tx *gorm.DB) error {
			switch tx.Dialector.Name() {
			case "sqlite", "postgres":
				return tx.Exec(`DROP INDEX IF EXISTS idx_queue_items_active_path`).Error
			default:
				return tx.Exec(`DROP INDEX idx_queue_items_path ON queue_items`).Error
			}
		},
	}
}

// migration003DefaultSchedule seeds the singleton schedule row. The
// scheduler treats a missing row as "no restriction", but having a concrete
// row means the API always has something to show and update.
func migration003DefaultSchedule() Migration {
	return Migration{
		Version:     "003",
		Description: "Seed the transcoding schedule",
		Up: func(tx *gorm.DB) error {
			var existing models.Schedule
			err := tx.First(&existing).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return tx.Create(models.DefaultSchedule()).Error
		},
		Down: func(tx *gorm.DB) error {
			return tx.Where("1 = 1").Delete(&models.Schedule{}).Error
		},
	}
}

// migration004DefaultProfile seeds a sensible h265 profile so that webhook
// pushes and scans have a fallback before the user configures their own.
func migration004DefaultProfile() Migration {
	return Migration{
		Version:     "004",
		Description: "Seed default encoding profile",
		Up: func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Profile{}).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}

			profile := &models.Profile{
				Name:             "Default (H.265)",
				Codec:            models.CodecH265,
				Quality:          22,
				Container:        models.ContainerMKV,
				AudioStrategy:    models.AudioPreserveAll,
				SubtitleStrategy: models.SubtitlePreserveAll,
				IsDefault:        true,
			}
			return tx.Create(profile).Error
		},
		Down: func(tx *gorm.DB) error {
			return tx.Where("name = ? AND is_default = ?", "Default (H.265)", true).
				Delete(&models.Profile{}).Error
		},
	}
}
