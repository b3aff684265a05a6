// Package sqlstore keeps ledger sheets in a relational database through gorm.
// Each sheet row is stored with its 1-based position and its cells encoded as a
// JSON array.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// appendAttempts bounds position conflicts between concurrent appenders.
const appendAttempts = 3

type sheetRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Sheet     string `gorm:"size:128;not null;uniqueIndex:idx_ledger_sheet_position"`
	Position  int    `gorm:"not null;uniqueIndex:idx_ledger_sheet_position"`
	Cells     string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (sheetRow) TableName() string { return "ledger_rows" }

type sheetMeta struct {
	Name      string `gorm:"primaryKey;size:128"`
	CreatedAt time.Time
}

func (sheetMeta) TableName() string { return "ledger_sheets" }

// Store is a ledger.Gateway over gorm.
type Store struct {
	db *gorm.DB
}

var _ ledger.Gateway = (*Store)(nil)

// Open connects to driver/dsn and migrates the ledger tables.
func Open(driver, dsn string) (*Store, error) {
	db, err := OpenGorm(driver, dsn)
	if err != nil {
		return nil, ledger.ErrBackend.MsgErr("open ledger database", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, ledger.ErrBackend.MsgErr("migrate ledger database", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	return s.db.AutoMigrate(&sheetMeta{}, &sheetRow{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) sheetExists(tx *gorm.DB, sheet string) (bool, error) {
	var count int64
	if err := tx.Model(&sheetMeta{}).Where("name = ?", sheet).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func sheetMissing(sheet string) error {
	return ledger.ErrSheetNotFound.Msg(fmt.Sprintf("sheet %q not found", sheet))
}

func (s *Store) ReadAllRows(ctx context.Context, sheet string) ([][]string, error) {
	db := s.db.WithContext(ctx)
	ok, err := s.sheetExists(db, sheet)
	if err != nil {
		return nil, ledger.ErrBackend.MsgErr("read sheet", err)
	}
	if !ok {
		return nil, sheetMissing(sheet)
	}

	var rows []sheetRow
	if err := db.Where("sheet = ?", sheet).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, ledger.ErrBackend.MsgErr("read sheet rows", err)
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		// positions are dense; fill any hole left by a manual delete
		for len(out) < r.Position-1 {
			out = append(out, []string{})
		}
		cells, err := decodeCells(r.Cells)
		if err != nil {
			return nil, ledger.ErrBackend.MsgErr(fmt.Sprintf("decode row %d of %q", r.Position, sheet), err)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (s *Store) AppendRow(ctx context.Context, sheet string, row []string) error {
	encoded, err := encodeCells(row)
	if err != nil {
		return ledger.ErrBackend.MsgErr("encode row", err)
	}
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.sheetExists(tx, sheet)
			if err != nil {
				return err
			}
			if !ok {
				return sheetMissing(sheet)
			}
			var last int
			if err := tx.Model(&sheetRow{}).
				Where("sheet = ?", sheet).
				Select("COALESCE(MAX(position), 0)").
				Scan(&last).Error; err != nil {
				return fmt.Errorf("position lookup: %w", err)
			}
			return tx.Create(&sheetRow{Sheet: sheet, Position: last + 1, Cells: encoded}).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt == appendAttempts {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrSheetNotFound):
		return err
	default:
		return ledger.ErrBackend.MsgErr("append row", err)
	}
}

func (s *Store) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	if row < 1 || col < 1 {
		return ledger.ErrRowOutOfRange.Msg(fmt.Sprintf("invalid cell %d:%d", row, col))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.sheetExists(tx, sheet)
		if err != nil {
			return err
		}
		if !ok {
			return sheetMissing(sheet)
		}
		var r sheetRow
		if err := tx.Where("sheet = ? AND position = ?", sheet, row).Take(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrRowOutOfRange.Msg(fmt.Sprintf("row %d is past the end of %q", row, sheet))
			}
			return err
		}
		cells, err := decodeCells(r.Cells)
		if err != nil {
			return err
		}
		for len(cells) < col {
			cells = append(cells, "")
		}
		cells[col-1] = value
		if r.Cells, err = encodeCells(cells); err != nil {
			return err
		}
		return tx.Save(&r).Error
	})
	return wrapBackend("update cell", err)
}

func (s *Store) EnsureHeaders(ctx context.Context, sheet string, headers []string) error {
	encoded, err := encodeCells(headers)
	if err != nil {
		return ledger.ErrBackend.MsgErr("encode headers", err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.sheetExists(tx, sheet)
		if err != nil {
			return err
		}
		if !ok {
			if err := tx.Create(&sheetMeta{Name: sheet}).Error; err != nil {
				return err
			}
		}
		var first sheetRow
		err = tx.Where("sheet = ? AND position = 1", sheet).Take(&first).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&sheetRow{Sheet: sheet, Position: 1, Cells: encoded}).Error
		}
		if err != nil {
			return err
		}
		have, err := decodeCells(first.Cells)
		if err == nil && ledger.SameHeaders(have, headers) {
			return nil
		}
		first.Cells = encoded
		return tx.Save(&first).Error
	})
	return wrapBackend("ensure headers", err)
}

func wrapBackend(op string, err error) error {
	if err == nil || errors.Is(err, ledger.ErrLedger) {
		return err
	}
	return ledger.ErrBackend.MsgErr(op, err)
}

func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCells(s string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(s), &cells); err != nil {
		return nil, err
	}
	if cells == nil {
		cells = []string{}
	}
	return cells, nil
}
