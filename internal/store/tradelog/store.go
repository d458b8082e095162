package tradelog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kestrel/internal/trader"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// TradeModel is the persistent row for one trade cycle, from entry fill to
// bracket-driven close.
type TradeModel struct {
	ID              uint           `gorm:"primaryKey;autoIncrement"`
	CycleID         string         `gorm:"column:cycle_id;size:64;uniqueIndex"`
	Symbol          string         `gorm:"column:symbol;size:32;index"`
	Side            string         `gorm:"column:side;size:8"`
	Quantity        float64        `gorm:"column:quantity"`
	EntryPrice      float64        `gorm:"column:entry_price"`
	Leverage        int            `gorm:"column:leverage"`
	StopLossPrice   float64        `gorm:"column:stop_loss_price"`
	TakeProfitPrice float64        `gorm:"column:take_profit_price"`
	Confidence      float64        `gorm:"column:confidence"`
	Snapshot        datatypes.JSON `gorm:"column:snapshot;type:TEXT"`
	Status          string         `gorm:"column:status;size:16;index"`
	RealizedPnL     float64        `gorm:"column:realized_pnl"`
	OpenedAt        time.Time      `gorm:"column:opened_at;index"`
	ClosedAt        *time.Time     `gorm:"column:closed_at"`
}

func (TradeModel) TableName() string { return "trades" }

// Summary aggregates closed trades over a window.
type Summary struct {
	Trades      int     `json:"trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	RealizedPnL float64 `json:"realized_pnl"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("trade log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newStore(db)
}

func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&TradeModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) RecordEntry(ctx context.Context, rec trader.TradeRecord) error {
	snapshot, err := json.Marshal(map[string]float64{
		"momentum":   rec.Momentum,
		"confidence": rec.Confidence,
	})
	if err != nil {
		return err
	}
	row := TradeModel{
		CycleID:         rec.CycleID,
		Symbol:          rec.Symbol,
		Side:            rec.Side,
		Quantity:        rec.Quantity,
		EntryPrice:      rec.EntryPrice,
		Leverage:        rec.Leverage,
		StopLossPrice:   rec.StopLossPrice,
		TakeProfitPrice: rec.TakeProfitPrice,
		Confidence:      rec.Confidence,
		Snapshot:        datatypes.JSON(snapshot),
		Status:          StatusOpen,
		OpenedAt:        rec.OpenedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) RecordExit(ctx context.Context, cycleID string, realizedPnL float64, closedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&TradeModel{}).
		Where("cycle_id = ? AND status = ?", cycleID, StatusOpen).
		Updates(map[string]interface{}{
			"status":       StatusClosed,
			"realized_pnl": realizedPnL,
			"closed_at":    closedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no open trade with cycle %s", cycleID)
	}
	return nil
}

func (s *Store) RecentTrades(ctx context.Context, limit int) ([]TradeModel, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []TradeModel
	err := s.db.WithContext(ctx).
		Order("opened_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// SummarySince aggregates closed trades opened at or after the cutoff.
func (s *Store) SummarySince(ctx context.Context, since time.Time) (Summary, error) {
	var rows []TradeModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND opened_at >= ?", StatusClosed, since).
		Find(&rows).Error
	if err != nil {
		return Summary{}, err
	}
	var out Summary
	for _, r := range rows {
		out.Trades++
		out.RealizedPnL += r.RealizedPnL
		if r.RealizedPnL >= 0 {
			out.Wins++
		} else {
			out.Losses++
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
