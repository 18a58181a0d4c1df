package record

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordModel is the persistence model for Record
type recordModel struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	EmployeeID   string          `gorm:"size:64;not null;index"`
	EmployeeName string          `gorm:"size:255;not null"`
	ProviderName string          `gorm:"size:255"`
	BreadCount   int             `gorm:"not null;default:0"`
	// Stored as text so SQLite keeps every digit
	CashAmount   decimal.Decimal `gorm:"type:text;not null;default:'0'"`
	ImagePayload string          `gorm:"type:text;not null"`
	CapturedAt   time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (recordModel) TableName() string {
	return "records"
}

func (m *recordModel) toRecord() *Record {
	return &Record{
		ID:           m.ID,
		EmployeeID:   m.EmployeeID,
		EmployeeName: m.EmployeeName,
		ProviderName: m.ProviderName,
		BreadCount:   m.BreadCount,
		CashAmount:   m.CashAmount,
		ImagePayload: m.ImagePayload,
		CapturedAt:   m.CapturedAt,
	}
}

// tallyColumns are the columns aggregation needs
var tallyColumns = []string{"id", "employee_id", "employee_name", "provider_name", "bread_count", "cash_amount", "captured_at"}

// GormDB implements the DB interface on a relational database via GORM
type GormDB struct {
	db *gorm.DB
}

// NewSQLiteDB opens (or creates) a SQLite database at path
func NewSQLiteDB(path string) (*GormDB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// SQLite allows a single writer; one connection avoids "database is locked"
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sqlite connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return NewGormDB(db)
}

// NewGormDB wraps an open GORM connection and migrates the records table
func NewGormDB(db *gorm.DB) (*GormDB, error) {
	if err := db.AutoMigrate(&recordModel{}); err != nil {
		return nil, fmt.Errorf("migrating records table: %w", err)
	}
	return &GormDB{db: db}, nil
}

// CreateRecord inserts the record; the database assigns the ID
func (g *GormDB) CreateRecord(record *Record) error {
	model := recordModel{
		EmployeeID:   record.EmployeeID,
		EmployeeName: record.EmployeeName,
		ProviderName: record.ProviderName,
		BreadCount:   record.BreadCount,
		CashAmount:   record.CashAmount,
		ImagePayload: record.ImagePayload,
		CapturedAt:   record.CapturedAt.UTC(),
	}
	if err := g.db.Create(&model).Error; err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	record.ID = model.ID
	return nil
}

// ListRecordsForEmployee returns the records owned by employeeID
func (g *GormDB) ListRecordsForEmployee(employeeID string) ([]*Record, error) {
	return g.list(g.db.Where("employee_id = ?", employeeID))
}

// ListRecords returns all records
func (g *GormDB) ListRecords() ([]*Record, error) {
	return g.list(g.db)
}

// ListTallies returns all records without reading the image column
func (g *GormDB) ListTallies() ([]*Record, error) {
	return g.list(g.db.Select(tallyColumns))
}

func (g *GormDB) list(query *gorm.DB) ([]*Record, error) {
	var models []recordModel
	if err := query.Order("captured_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	records := make([]*Record, 0, len(models))
	for i := range models {
		records = append(records, models[i].toRecord())
	}
	return records, nil
}

// Close closes the underlying connection pool
func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
