package factsource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "pitalign/internal/errors"
	"pitalign/pkg/contracts/domain"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

const feesCSV = `Sid,Date,FeeRate,Status
FI12345,2018-05-01,1.75,active
FI12345,2018-05-02,1.79,halted
FI23456,2018-05-03,0.35,active
FI99999,2018-05-03,9.99,active
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(feesCSV), "Date", "fees.csv")
	require.NoError(t, err)
	require.Len(t, records, 4)

	first := records[0]
	assert.Equal(t, "FI12345", first.EntityID)
	assert.Equal(t, date("2018-05-01"), first.EventTime)
	assert.Equal(t, domain.String("1.75"), first.Field("FeeRate"))
	assert.Equal(t, domain.String("2018-05-01"), first.Field("Date"), "event column stays readable as a field")
	_, hasSid := first.Fields["Sid"]
	assert.False(t, hasSid)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "missing event column", input: "Sid,When\nA,2018-01-01\n", wantMsg: "must have Sid and Date columns"},
		{name: "bad event time", input: "Sid,Date\nA,yesterday\n", wantMsg: "row 2: invalid Date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), "Date", "x.csv")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
		})
	}
}

func TestReadCSV_UTCInstants(t *testing.T) {
	input := "Sid,Date,Quantity\nFI12345,2018-04-20T21:45:02,10000\nFI12345,2018-05-01T13:45:00Z,9000\n"
	records, err := ReadCSV(strings.NewReader(input), "Date", "shortable.csv")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, time.Date(2018, 4, 20, 21, 45, 2, 0, time.UTC), records[0].EventTime)
	assert.True(t, records[1].EventTime.Equal(time.Date(2018, 5, 1, 13, 45, 0, 0, time.UTC)))
}

func TestMemorySource_Fetch(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(feesCSV), "Date", "fees.csv")
	require.NoError(t, err)
	source := NewMemorySource()
	source.Add("ibkr_borrow_fees", records...)

	tests := []struct {
		name      string
		query     Query
		wantCount int
		noData    bool
	}{
		{
			name:      "entities only",
			query:     Query{Feed: "ibkr_borrow_fees", Entities: []string{"FI12345", "FI23456"}},
			wantCount: 3,
		},
		{
			name:      "date window is inclusive",
			query:     Query{Feed: "ibkr_borrow_fees", Entities: []string{"FI12345", "FI23456"}, Start: date("2018-05-02"), End: date("2018-05-03")},
			wantCount: 2,
		},
		{
			name:      "filters match case-insensitively",
			query:     Query{Feed: "ibkr_borrow_fees", Entities: []string{"FI12345"}, Filters: map[string][]string{"Status": {"ACTIVE"}}},
			wantCount: 1,
		},
		{
			name:   "nothing matches",
			query:  Query{Feed: "ibkr_borrow_fees", Entities: []string{"FI00000"}},
			noData: true,
		},
		{
			name:   "unknown feed",
			query:  Query{Feed: "alpaca_etb", Entities: []string{"FI12345"}},
			noData: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := source.Fetch(context.Background(), tt.query)
			if tt.noData {
				require.Error(t, err)
				assert.True(t, apperrors.IsNoFactData(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
		})
	}
}

func TestMemorySource_FetchProjectsFields(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(feesCSV), "Date", "fees.csv")
	require.NoError(t, err)
	source := NewMemorySource()
	source.Add("ibkr_borrow_fees", records...)

	got, err := source.Fetch(context.Background(), Query{
		Feed:     "ibkr_borrow_fees",
		Entities: []string{"FI23456"},
		Fields:   []string{"FeeRate"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Fields, 1)
	assert.Equal(t, domain.String("0.35"), got[0].Field("FeeRate"))
	assert.Len(t, records[2].Fields, 3, "stored records are not modified")
}

func TestMemorySource_FetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemorySource().Fetch(ctx, Query{Feed: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func writeXLSX(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpaca_etb.xlsx")
	writeXLSX(t, path, [][]interface{}{
		{"Sid", "Date", "EasyToBorrow"},
		{"FI12345", "2018-05-01", "1"},
		{"FI23456", "2018-05-02", "0"},
	})

	records, err := LoadFile(path, "Date")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "FI23456", records[1].EntityID)
	assert.Equal(t, date("2018-05-02"), records[1].EventTime)
	assert.Equal(t, domain.String("0"), records[1].Field("EasyToBorrow"))
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFile("facts.json", "Date")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ibkr_borrow_fees.csv"), []byte(feesCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mystery.csv"), []byte("Sid,Date\nA,2018-01-01\n"), 0644))
	writeXLSX(t, filepath.Join(dir, "alpaca_etb.xlsx"), [][]interface{}{
		{"Sid", "Date", "EasyToBorrow"},
		{"FI12345", "2018-05-01", "1"},
	})

	source, err := LoadDirectory(context.Background(), dir, map[string]string{
		"ibkr_borrow_fees": "Date",
		"alpaca_etb":       "Date",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, source.Len("ibkr_borrow_fees"))
	assert.Equal(t, 1, source.Len("alpaca_etb"))
	assert.Equal(t, 0, source.Len("mystery"))
	assert.ElementsMatch(t, []string{"ibkr_borrow_fees", "alpaca_etb"}, source.Feeds())
}

func TestLoadDirectory_BadFileFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpaca_etb.csv"), []byte("Sid,Date\nA,not-a-date\n"), 0644))

	_, err := LoadDirectory(context.Background(), dir, map[string]string{"alpaca_etb": "Date"}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
}
