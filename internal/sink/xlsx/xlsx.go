// Package xlsx writes datasets into a styled spreadsheet workbook, one sheet
// per venue-year.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/sink"
)

const (
	defaultSheet    = "Sheet1"
	replaceSheet    = "~replace"
	maxSheetNameLen = 31
	cellFont        = "Sitka Text"
	cellFontSize    = 11
)

var columnWidths = []float64{20, 140, 140}

// Config controls the workbook location and cell rendering.
type Config struct {
	Path            string `mapstructure:"path"`
	AuthorSeparator string `mapstructure:"author_separator"`
}

// Sink keeps an open workbook and saves it after every dataset.
type Sink struct {
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	file        *excelize.File
	headerStyle int
	bodyStyle   int
	pristine    bool
}

// New validates cfg. The workbook is created lazily on the first Reset or Write.
func New(cfg Config, logger *zap.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("xlsx path is required")
	}
	if cfg.AuthorSeparator == "" {
		cfg.AuthorSeparator = sink.DefaultAuthorSeparator
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{cfg: cfg, logger: logger}, nil
}

// Reset deletes any workbook left at the path and starts a fresh one.
func (s *Sink) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.cfg.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.cfg.Path, err)
	}
	return s.newWorkbook()
}

// Write adds ds as its own sheet, replacing a sheet with the same name, and
// saves the workbook.
func (s *Sink) Write(_ context.Context, ds crawler.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := s.newWorkbook(); err != nil {
			return err
		}
	}
	name := SheetName(ds.ID)
	if err := s.prepareSheet(name); err != nil {
		return fmt.Errorf("prepare sheet %s: %w", name, err)
	}
	if err := s.fill(name, ds); err != nil {
		return fmt.Errorf("fill sheet %s: %w", name, err)
	}
	if s.pristine {
		if err := s.file.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("drop default sheet: %w", err)
		}
		s.pristine = false
	}
	if dir := filepath.Dir(s.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := s.file.SaveAs(s.cfg.Path); err != nil {
		return fmt.Errorf("save %s: %w", s.cfg.Path, err)
	}
	s.logger.Debug("sheet saved", zap.String("sheet", name), zap.Int("rows", len(ds.Records)))
	return nil
}

// Close releases the workbook.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Sink) newWorkbook() error {
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.logger.Warn("close previous workbook", zap.Error(err))
		}
	}
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Family: cellFont, Size: cellFontSize},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	body, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: cellFont, Size: cellFontSize},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("body style: %w", err)
	}
	s.file = f
	s.headerStyle = header
	s.bodyStyle = body
	s.pristine = true
	return nil
}

// prepareSheet leaves an empty sheet called name. An existing sheet is swapped
// for a new one so a workbook never drops to zero sheets.
func (s *Sink) prepareSheet(name string) error {
	idx, err := s.file.GetSheetIndex(name)
	if err != nil {
		return err
	}
	if idx < 0 {
		_, err := s.file.NewSheet(name)
		return err
	}
	if _, err := s.file.NewSheet(replaceSheet); err != nil {
		return err
	}
	if err := s.file.DeleteSheet(name); err != nil {
		return err
	}
	return s.file.SetSheetName(replaceSheet, name)
}

func (s *Sink) fill(name string, ds crawler.Dataset) error {
	header := append([]string(nil), sink.Header...)
	if err := s.file.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	rows := sink.Rows(ds, s.cfg.AuthorSeparator)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := s.file.SetSheetRow(name, cell, &rows[i]); err != nil {
			return err
		}
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := s.file.SetColWidth(name, col, col, width); err != nil {
			return err
		}
	}
	if err := s.file.SetCellStyle(name, "A1", "C1", s.headerStyle); err != nil {
		return err
	}
	if len(rows) > 0 {
		last := fmt.Sprintf("C%d", len(rows)+1)
		if err := s.file.SetCellStyle(name, "A2", last, s.bodyStyle); err != nil {
			return err
		}
	}
	return nil
}

// SheetName maps a dataset ID onto a legal worksheet name.
func SheetName(id string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.Trim(strings.TrimSpace(id), "'"))
	if cleaned == "" {
		cleaned = "dataset"
	}
	if runes := []rune(cleaned); len(runes) > maxSheetNameLen {
		cleaned = string(runes[:maxSheetNameLen])
	}
	return cleaned
}
