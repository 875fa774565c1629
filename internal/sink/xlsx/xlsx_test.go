package xlsx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
)

func dataset(id string, recs ...crawler.PublicationRecord) crawler.Dataset {
	return crawler.Dataset{ID: id, VenueID: strings.ToLower(id), VenueName: id, Year: 2019, Records: recs}
}

func readSheet(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestSinkWritesOneSheetPerDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "all_papers.xlsx")
	s, err := New(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Write(ctx, dataset("ICML2019",
		crawler.PublicationRecord{Title: "Paper A", Authors: []string{"Ada", "Grace"}},
		crawler.PublicationRecord{Title: "Paper B"},
	)))
	require.NoError(t, s.Write(ctx, dataset("TPAMI2018",
		crawler.PublicationRecord{Title: "Paper C", Authors: []string{"Alan"}},
	)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ICML2019", "TPAMI2018"}, f.GetSheetList())
	width, err := f.GetColWidth("ICML2019", "B")
	require.NoError(t, err)
	assert.InDelta(t, 140, width, 0.01)
	require.NoError(t, f.Close())

	rows := readSheet(t, path, "ICML2019")
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Conference/Journal", "Title", "Authors"}, rows[0])
	assert.Equal(t, []string{"ICML2019", "Paper A", "Ada; Grace"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 2)
	assert.Equal(t, []string{"ICML2019", "Paper B"}, rows[2][:2])
}

func TestSinkStylesEveryCellWithSitkaText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cvpr.xlsx")
	s, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Write(context.Background(), dataset("CVPR2025",
		crawler.PublicationRecord{Title: "Paper A", Authors: []string{"Ada"}},
	)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	for _, cell := range []string{"A1", "B2", "C2"} {
		id, err := f.GetCellStyle("CVPR2025", cell)
		require.NoError(t, err)
		style, err := f.GetStyle(id)
		require.NoError(t, err)
		require.NotNil(t, style.Font, cell)
		assert.Equal(t, "Sitka Text", style.Font.Family, cell)
		assert.InDelta(t, 11, style.Font.Size, 0.01, cell)
		require.NotNil(t, style.Alignment, cell)
		assert.True(t, style.Alignment.WrapText, cell)
	}
}

func TestSinkReplacesSheetWithSameName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.xlsx")
	s, err := New(Config{Path: path, AuthorSeparator: ", "}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, dataset("CVPR2019",
		crawler.PublicationRecord{Title: "Old 1"},
		crawler.PublicationRecord{Title: "Old 2"},
	)))
	require.NoError(t, s.Write(ctx, dataset("CVPR2019",
		crawler.PublicationRecord{Title: "New", Authors: []string{"A", "B"}},
	)))

	rows := readSheet(t, path, "CVPR2019")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"CVPR2019", "New", "A, B"}, rows[1])
}

func TestResetRemovesExistingWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	s, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Reset(context.Background()))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Close())
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "ICML2019", SheetName("ICML2019"))
	assert.Equal(t, "S_P2019", SheetName("S/P2019"))
	assert.Equal(t, "a_b_c_d_e_f_g", SheetName("a:b\\c?d*e[f]g"))
	assert.Equal(t, "dataset", SheetName("  "))
	assert.Len(t, []rune(SheetName(strings.Repeat("x", 40))), 31)
}
