package tierstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/quota"
)

// Store persistent tier table and user subscriptions
type Store struct {
	db     *gorm.DB
	logger logger.CtxLogger
}

// Open connects to the configured database
func Open(cfg Config, log logger.CtxLogger) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger("tierstore")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}

	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
	if cfg.EnableLog {
		loggerCfg := logger.DefaultGormLoggerConfig()
		loggerCfg.SlowThreshold = cfg.SlowThreshold
		loggerCfg.EnableAudit = cfg.EnableAudit
		if cfg.EnableAudit {
			loggerCfg.LogLevel = gormlogger.Info
		}
		gormLog = logger.NewGormLogger(nil, loggerCfg)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", cfg.Driver, err)
	}
	if err := db.Use(newTracePlugin(nil).withTraceSQL(cfg.TraceSQL)); err != nil {
		return nil, fmt.Errorf("register trace plugin failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB failed: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return NewStore(db, log), nil
}

// NewStore wraps an open gorm handle
func NewStore(db *gorm.DB, log logger.CtxLogger) *Store {
	if log == nil {
		log = logger.GetLogger("tierstore")
	}
	return &Store{db: db, logger: log}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the tier and subscription tables
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&TierPolicyRow{}, &Subscription{}); err != nil {
		return fmt.Errorf("migrate tierstore failed: %w", err)
	}
	return nil
}

// LoadTable reads the persisted tier table; an empty table means nothing was saved yet
func (s *Store) LoadTable(ctx context.Context) (quota.PolicyTable, error) {
	var rows []TierPolicyRow
	if err := s.db.WithContext(ctx).Order("tier, category").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load tier table failed: %w", err)
	}

	table := make(quota.PolicyTable)
	for _, row := range rows {
		tier := quota.Tier(row.Tier)
		if table[tier] == nil {
			table[tier] = make(map[quota.Category]quota.Policy)
		}
		table[tier][quota.Category(row.Category)] = row.Policy()
	}
	return table, nil
}

// SaveTable replaces the persisted tier table in one transaction
func (s *Store) SaveTable(ctx context.Context, table quota.PolicyTable) error {
	rows := tableRows(table)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TierPolicyRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("save tier table failed: %w", err)
	}

	s.logger.InfoCtx(ctx, "Tier table saved", zap.Int("rows", len(rows)))
	return nil
}

func tableRows(table quota.PolicyTable) []TierPolicyRow {
	rows := make([]TierPolicyRow, 0, len(table)*6)
	for tier, policies := range table {
		for category, p := range policies {
			rows = append(rows, TierPolicyRow{
				Tier:     string(tier),
				Category: string(category),
				Limit:    p.Limit,
				WindowMs: p.Window.Milliseconds(),
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Tier != rows[j].Tier {
			return rows[i].Tier < rows[j].Tier
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// SetSubscription creates or changes a user's tier
func (s *Store) SetSubscription(ctx context.Context, userID string, tier quota.Tier) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	sub := Subscription{UserID: userID, Tier: string(tier)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("save subscription failed: %w", err)
	}
	return nil
}

// Subscription tier of userID; ok is false when the user has no row
func (s *Store) Subscription(ctx context.Context, userID string) (tier quota.Tier, ok bool, err error) {
	var sub Subscription
	err = s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query subscription failed: %w", err)
	}
	return quota.Tier(sub.Tier), true, nil
}

// DeleteSubscription drops a user back to the fallback tier
func (s *Store) DeleteSubscription(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Delete(&Subscription{UserID: userID}).Error; err != nil {
		return fmt.Errorf("delete subscription failed: %w", err)
	}
	return nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB failed: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
