package reports

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "0_initial_reports",
			Migrate: func(txn *gorm.DB) error {
				// Frozen copy of the table at this version.
				type Report struct {
					Id               uuid.UUID `gorm:"type:uuid;primaryKey"`
					CacheKey         string    `gorm:"size:64;not null;index"`
					CompanyName      string    `gorm:"size:500"`
					CompanyWebsite   string    `gorm:"size:2048;not null;index"`
					CompanyLinkedin  string    `gorm:"size:2048"`
					AnalysisDate     string    `gorm:"size:10;not null"`
					Model            string    `gorm:"size:100;not null"`
					Data             string    `gorm:"type:text;not null"`
					SchemaViolations string    `gorm:"type:text"`
					CreatedAt        time.Time `gorm:"not null;index"`
				}
				return txn.AutoMigrate(&Report{})
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable("reports")
			},
		},
	}
}

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	return m.Migrate()
}
