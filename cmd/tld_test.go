package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/verifact/internal/source"
)

func writeTldSheet(t *testing.T, rows [][]string) string {
	t.Helper()

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("TLDs")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}

	path := filepath.Join(t.TempDir(), "tlds.xlsx")
	require.NoError(t, file.Save(path))
	return path
}

func TestParseTldSheet(t *testing.T) {
	path := writeTldSheet(t, [][]string{
		{"TLD", "Score"}, // header, non-numeric score
		{".gov", "95"},
		{"", "80"}, // blank tld
		{".org", "70"},
		{"partial"}, // too few cells
		{" .co.uk ", " 65 "},
	})

	entries, err := parseTldSheet(path)
	require.NoError(t, err)

	assert.Equal(t, []source.TldScore{
		{TLD: ".gov", Score: 95},
		{TLD: ".org", Score: 70},
		{TLD: ".co.uk", Score: 65},
	}, entries)
}

func TestParseTldSheet_ScoreOutOfRange(t *testing.T) {
	path := writeTldSheet(t, [][]string{
		{".gov", "101"},
	})

	_, err := parseTldSheet(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestParseTldSheet_MissingFile(t *testing.T) {
	_, err := parseTldSheet(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}
