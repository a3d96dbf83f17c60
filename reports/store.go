package reports

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrDbAccessFailed = errors.New("db access failed")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Store struct {
	db *gorm.DB
}

func postgresDsn(uri string) (string, error) {
	parts, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("error parsing db uri: %w", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	dsn := fmt.Sprintf("host=%v user=%v password=%v dbname=%v", parts.Hostname(), parts.User.Username(), pwd, dbname)
	if port := parts.Port(); port != "" {
		dsn += fmt.Sprintf(" port=%v", port)
	}
	if sslmode := parts.Query().Get("sslmode"); sslmode != "" {
		dsn += fmt.Sprintf(" sslmode=%v", sslmode)
	}
	return dsn, nil
}

// Dialector selects the database driver for a DATABASE_URI. An empty uri is a
// shared in-memory sqlite database, which lives as long as the instance.
func Dialector(uri string) (gorm.Dialector, error) {
	switch {
	case uri == "":
		return sqlite.Open("file::memory:?cache=shared"), nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		dsn, err := postgresDsn(uri)
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	case strings.HasPrefix(uri, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(uri, "sqlite://")), nil
	}
	return nil, fmt.Errorf("unsupported database uri scheme in '%v'", uri)
}

func Open(uri string) (*Store, error) {
	dialector, err := Dialector(uri)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// sqlite allows a single writer, serialize access through one connection.
		sqlDb, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("error accessing sqlite connection pool: %w", err)
		}
		sqlDb.SetMaxOpenConns(1)
	}

	return NewStore(db)
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("error migrating db schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

func (s *Store) Ping() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Ping()
}

func (s *Store) Save(report *Report) error {
	if report.Id == uuid.Nil {
		report.Id = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	if result := s.db.Create(report); result.Error != nil {
		slog.Error("sql error saving report", "report_id", report.Id, "error", result.Error, "code", logging.REPORT_STORE)
		return ErrDbAccessFailed
	}

	slog.Info("saved report", "report_id", report.Id, "company_website", report.CompanyWebsite, "code", logging.REPORT_STORE)
	return nil
}

func (s *Store) Get(id uuid.UUID) (*Report, error) {
	var report Report

	result := s.db.First(&report, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		slog.Error("sql error in get report", "report_id", id, "error", result.Error, "code", logging.REPORT_STORE)
		return nil, ErrDbAccessFailed
	}

	return &report, nil
}

// FindFresh returns the newest report with the given cache key created after
// since, or nil if there is none.
func (s *Store) FindFresh(cacheKey string, since time.Time) (*Report, error) {
	var reports []Report

	result := s.db.Where("cache_key = ? AND created_at > ?", cacheKey, since).Order("created_at desc").Limit(1).Find(&reports)
	if result.Error != nil {
		slog.Error("sql error in cache lookup", "cache_key", cacheKey, "error", result.Error, "code", logging.REPORT_STORE)
		return nil, ErrDbAccessFailed
	}

	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}

type ListFilter struct {
	CompanyWebsite string
	Limit          int
	Offset         int
}

func (s *Store) List(filter ListFilter) ([]Report, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := s.db.Model(&Report{})
	if filter.CompanyWebsite != "" {
		query = query.Where("company_website = ?", filter.CompanyWebsite)
	}

	var reports []Report
	result := query.Order("created_at desc").Limit(limit).Offset(max(filter.Offset, 0)).Find(&reports)
	if result.Error != nil {
		slog.Error("sql error listing reports", "error", result.Error, "code", logging.REPORT_STORE)
		return nil, ErrDbAccessFailed
	}

	return reports, nil
}

func (s *Store) Delete(id uuid.UUID) error {
	result := s.db.Delete(&Report{}, "id = ?", id)
	if result.Error != nil {
		slog.Error("sql error deleting report", "report_id", id, "error", result.Error, "code", logging.REPORT_STORE)
		return ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}

	slog.Info("deleted report", "report_id", id, "code", logging.REPORT_STORE)
	return nil
}
