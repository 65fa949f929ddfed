package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	in := "date,amount,note\n2021-01-01,10,a\n2021-01-02,15.5,b\n"

	ds, err := ParseCSV("sales.csv", strings.NewReader(in), "date", "amount")
	require.NoError(t, err)

	assert.Equal(t, "sales.csv", ds.ID)
	require.Len(t, ds.Table, 2)
	assert.True(t, ds.Table[0].DS.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 10.0, ds.Table[0].Y)
	assert.Equal(t, 15.5, ds.Table[1].Y)
}

func TestParseCSVFailsFast(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		date    string
		numeric string
		column  string
		row     int
	}{
		{"missing date column", "d,amount\n2021-01-01,1\n", "date", "amount", "date", 0},
		{"missing numeric column", "date,v\n2021-01-01,1\n", "date", "amount", "amount", 0},
		{"bad date", "date,amount\n2021-01-01,1\nnope,2\n", "date", "amount", "date", 2},
		{"bad number", "date,amount\n2021-01-01,1\n2021-01-02,x\n", "date", "amount", "amount", 2},
		{"header only", "date,amount\n", "date", "amount", "", 0},
		{"no columns named", "date,amount\n2021-01-01,1\n", "", "amount", "", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCSV("x.csv", strings.NewReader(tc.in), tc.date, tc.numeric)
			require.Error(t, err)

			var dsErr *Error
			require.True(t, errors.As(err, &dsErr), "got %T", err)
			assert.Equal(t, tc.column, dsErr.Column)
			assert.Equal(t, tc.row, dsErr.Row)
		})
	}
}

func TestMissingColumnListsAvailable(t *testing.T) {
	_, err := ParseCSV("x.csv", strings.NewReader("a,b\n1,2\n"), "date", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available columns: a, b")
}

func TestColumns(t *testing.T) {
	cols, err := Columns(strings.NewReader(" date , value\n2021-01-01,1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "value"}, cols)

	_, err = Columns(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, os.WriteFile(path, []byte("ds,y\n2021-01-01,1\n"), 0644))

	ds, err := LoadFile(path, "ds", "y")
	require.NoError(t, err)
	assert.Equal(t, "series.csv", ds.Name)
	assert.Len(t, ds.Table, 1)
}
