package alignment

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	apperrors "pitalign/internal/errors"
	"pitalign/internal/infrastructure"
	"pitalign/internal/shared/testutil"
	"pitalign/pkg/contracts/domain"
)

func reportRecords() []domain.FactRecord {
	return []domain.FactRecord{
		rec("E1", day("2018-04-23"), map[string]domain.Value{"Value": num(20), "Period": domain.String("2018-03-31")}),
		rec("E1", day("2018-07-22"), map[string]domain.Value{"Value": num(30), "Period": domain.String("2018-06-30")}),
	}
}

func TestEngineAlign_ShiftAndForwardFill(t *testing.T) {
	cal := domain.NewDailyCalendar(day("2018-07-20"), 6, "E1")

	tests := []struct {
		name string
		cfg  AlignmentConfig
		want []float64
	}{
		{
			name: "default shift of one row",
			want: []float64{20, 20, 20, 30, 30, 30},
		},
		{
			name: "no shift",
			cfg:  AlignmentConfig{Shift: Int(0)},
			want: []float64{20, 20, 30, 30, 30, 30},
		},
		{
			name: "no forward fill keeps only landing rows",
			cfg:  AlignmentConfig{Shift: Int(0), ForwardFill: BoolPtr(false)},
			want: []float64{-1, -1, 30, -1, -1, -1},
		},
		{
			name: "max lag masks stale values",
			cfg:  AlignmentConfig{MaxLag: "100D"},
			want: []float64{-1, -1, -1, 30, 30, 30},
		},
		{
			name: "max lag boundary is inclusive",
			cfg:  AlignmentConfig{MaxLag: "23D"},
			want: []float64{-1, -1, -1, 30, -1, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(slog.Default())
			result, err := engine.Align(context.Background(), Request{
				Schema:   reportSchema(),
				Calendar: cal,
				Config:   tt.cfg,
				Records:  reportRecords(),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, seriesFloats(result.Series("", "Value", "E1")))
		})
	}
}

func TestEngineAlign_MaxLagWindow(t *testing.T) {
	schema := reportSchema()
	schema.ReferenceField = ""
	schema.DefaultShift = 0
	cal := domain.NewDailyCalendar(day("2018-05-01"), 4, "E1")
	records := []domain.FactRecord{
		rec("E1", day("2018-05-01"), map[string]domain.Value{"Value": num(1.5)}),
	}

	tests := []struct {
		maxLag string
		want   []float64
	}{
		{maxLag: "", want: []float64{1.5, 1.5, 1.5, 1.5}},
		{maxLag: "0D", want: []float64{1.5, -1, -1, -1}},
		{maxLag: "0s", want: []float64{1.5, -1, -1, -1}},
		{maxLag: "1D", want: []float64{1.5, 1.5, -1, -1}},
	}

	for _, tt := range tests {
		t.Run("max_lag="+tt.maxLag, func(t *testing.T) {
			engine := NewEngine(slog.Default())
			result, err := engine.Align(context.Background(), Request{
				Schema:   schema,
				Calendar: cal,
				Config:   AlignmentConfig{MaxLag: tt.maxLag},
				Records:  records,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, seriesFloats(result.Series("", "Value", "E1")))
		})
	}
}

func TestEngineAlign_ShiftLaw(t *testing.T) {
	cal := domain.NewDailyCalendar(day("2018-07-20"), 6, "E1")
	records := []domain.FactRecord{
		rec("E1", day("2018-07-20"), map[string]domain.Value{"Value": num(1)}),
		rec("E1", day("2018-07-21"), map[string]domain.Value{"Value": num(2)}),
		rec("E1", day("2018-07-22"), map[string]domain.Value{"Value": num(3)}),
		rec("E1", day("2018-07-23"), map[string]domain.Value{"Value": num(4)}),
	}
	engine := NewEngine(nil)

	align := func(shift int) []float64 {
		result, err := engine.Align(context.Background(), Request{
			Schema:   reportSchema(),
			Calendar: cal,
			Config:   AlignmentConfig{Shift: Int(shift)},
			Records:  records,
		})
		require.NoError(t, err)
		return seriesFloats(result.Series("", "Value", "E1"))
	}

	base := align(0)
	for k := 1; k <= 3; k++ {
		shifted := align(k)
		for i := range shifted {
			if i < k {
				assert.Equal(t, float64(-1), shifted[i], "row %d shift %d", i, k)
				continue
			}
			assert.Equal(t, base[i-k], shifted[i], "row %d shift %d", i, k)
		}
	}
}

func TestEngineAlign_EmptyRecordsKeepCalendarExtent(t *testing.T) {
	cal := domain.NewDailyCalendar(day("2018-07-20"), 4, "E1", "E2")

	result, err := NewEngine(nil).Align(context.Background(), Request{
		Schema:   reportSchema(),
		Calendar: cal,
	})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	frame := result.Frame("", "Value")
	require.NotNil(t, frame)
	require.Len(t, frame.Values, 4)
	for _, row := range frame.Values {
		require.Len(t, row, 2)
		for _, v := range row {
			assert.True(t, v.IsNull())
		}
	}
	assert.Equal(t, cal.Dates, result.Dates)
	assert.Equal(t, cal.Entities, result.Entities)
}

func TestEngineAlign_Deduplication(t *testing.T) {
	cal := domain.NewDailyCalendar(day("2018-07-22"), 2, "E1")
	records := []domain.FactRecord{
		rec("E1", day("2018-07-22"), map[string]domain.Value{"Value": num(30), "Period": domain.String("2018-06-30")}),
		rec("E1", day("2018-07-22"), map[string]domain.Value{"Value": num(99), "Period": domain.String("2018-03-31")}),
	}

	tests := []struct {
		name     string
		tieBreak []string
		want     float64
	}{
		{name: "later source position wins", want: 99},
		{name: "greater tie-break field wins", tieBreak: []string{"Period"}, want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := reportSchema()
			schema.TieBreakFields = tt.tieBreak
			result, err := NewEngine(nil).Align(context.Background(), Request{
				Schema:   schema,
				Calendar: cal,
				Config:   AlignmentConfig{Shift: Int(0)},
				Records:  records,
			})
			require.NoError(t, err)
			assert.Equal(t, []float64{tt.want, tt.want}, seriesFloats(result.Series("", "Value", "E1")))
		})
	}
}

func TestEngineAlign_PeriodOffset(t *testing.T) {
	cal := domain.NewDailyCalendar(day("2018-07-14"), 4, "E1")
	records := []domain.FactRecord{
		rec("E1", day("2018-01-15"), map[string]domain.Value{"Value": num(1), "Period": domain.String("2017-12-31")}),
		rec("E1", day("2018-04-15"), map[string]domain.Value{"Value": num(2), "Period": domain.String("2018-03-31")}),
		rec("E1", day("2018-07-15"), map[string]domain.Value{"Value": num(3), "Period": domain.String("2018-06-30")}),
	}

	tests := []struct {
		name   string
		offset int
		want   []float64
	}{
		{name: "current period", offset: 0, want: []float64{2, 3, 3, 3}},
		{name: "previous period", offset: -1, want: []float64{1, 2, 2, 2}},
		{name: "two periods back", offset: -2, want: []float64{-1, 1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewEngine(nil).Align(context.Background(), Request{
				Schema:   reportSchema(),
				Calendar: cal,
				Config:   AlignmentConfig{Shift: Int(0), PeriodOffset: tt.offset},
				Records:  records,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, seriesFloats(result.Series("", "Value", "E1")))
		})
	}
}

func TestEngineAlign_Groups(t *testing.T) {
	schema := reportSchema()
	schema.GroupField = "Indicator"
	cal := domain.NewDailyCalendar(day("2018-07-20"), 2, "E1")
	records := []domain.FactRecord{
		rec("E1", day("2018-07-19"), map[string]domain.Value{"Indicator": domain.String("REV"), "Value": num(5)}),
		rec("E1", day("2018-07-19"), map[string]domain.Value{"Indicator": domain.String("EPS"), "Value": num(1.5)}),
	}

	t.Run("every group sorted", func(t *testing.T) {
		result, err := NewEngine(nil).Align(context.Background(), Request{
			Schema: schema, Calendar: cal, Records: records,
		})
		require.NoError(t, err)
		require.Len(t, result.Groups, 2)
		assert.Equal(t, "EPS", result.Groups[0].Key)
		assert.Equal(t, "REV", result.Groups[1].Key)
		assert.Equal(t, "Indicator", result.GroupLabel)
		assert.Equal(t, []float64{1.5, 1.5}, seriesFloats(result.Series("EPS", "Value", "E1")))
		assert.Equal(t, []float64{5, 5}, seriesFloats(result.Series("REV", "Value", "E1")))
	})

	t.Run("requested groups only", func(t *testing.T) {
		result, err := NewEngine(nil).Align(context.Background(), Request{
			Schema: schema, Calendar: cal, Records: records, Groups: []string{"REV", "ROE"},
		})
		require.NoError(t, err)
		require.Len(t, result.Groups, 2)
		assert.Equal(t, []float64{5, 5}, seriesFloats(result.Series("REV", "Value", "E1")))
		assert.Equal(t, []float64{-1, -1}, seriesFloats(result.Series("ROE", "Value", "E1")))
	})
}

func quantityRecords() []domain.FactRecord {
	q := func(entity, at string, v float64) domain.FactRecord {
		return rec(entity, instant(at), map[string]domain.Value{"Quantity": num(v)})
	}
	return []domain.FactRecord{
		q("FI12345", "2018-04-20T21:45:00Z", 10000),
		q("FI12345", "2018-05-01T13:45:00Z", 9000),
		q("FI12345", "2018-05-02T12:30:00Z", 80000),
		q("FI23456", "2018-04-20T21:45:00Z", 3500),
		q("FI23456", "2018-05-01T14:15:00Z", 3600),
		q("FI23456", "2018-05-02T14:30:00Z", 3800),
		q("FI23456", "2018-05-03T08:30:00Z", 3100),
	}
}

func TestEngineAlign_IntradayAsOfTime(t *testing.T) {
	cal := domain.NewDailyCalendar(day("2018-05-01"), 3, "FI12345", "FI23456")

	tests := []struct {
		name      string
		time      string
		want12345 []float64
		want23456 []float64
	}{
		{
			name:      "new york open",
			time:      "09:30:00 America/New_York",
			want12345: []float64{10000, 80000, 80000},
			want23456: []float64{3500, 3600, 3100},
		},
		{
			name:      "london open",
			time:      "09:30:00 Europe/London",
			want12345: []float64{10000, 9000, 80000},
			want23456: []float64{3500, 3600, 3100},
		},
		{
			name:      "tokyo open",
			time:      "09:30:00 Japan",
			want12345: []float64{10000, 9000, 80000},
			want23456: []float64{3500, 3600, 3800},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at, err := ParseAsOfTime(tt.time)
			require.NoError(t, err)

			result, err := NewEngine(nil).Align(context.Background(), Request{
				Schema:   quantitySchema(),
				Calendar: cal,
				Config:   AlignmentConfig{Intraday: at},
				Records:  quantityRecords(),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want12345, seriesFloats(result.Series("", "Quantity", "FI12345")))
			assert.Equal(t, tt.want23456, seriesFloats(result.Series("", "Quantity", "FI23456")))
		})
	}
}

func TestEngineAlign_IntradayCalendarMidnight(t *testing.T) {
	ny := mustLoad("America/New_York")
	cal := domain.NewDailyCalendar(day("2018-05-01"), 3, "FI12345", "FI23456").InLocation(ny)

	result, err := NewEngine(nil).Align(context.Background(), Request{
		Schema:   quantitySchema(),
		Calendar: cal,
		Records:  quantityRecords(),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{10000, 9000, 80000}, seriesFloats(result.Series("", "Quantity", "FI12345")))
	assert.Equal(t, []float64{3500, 3600, 3800}, seriesFloats(result.Series("", "Quantity", "FI23456")))
	assert.Equal(t, "America/New_York", result.Dates[0].Location().String())
}

func TestEngineAlign_IntradayShiftAfterTrim(t *testing.T) {
	cal := domain.NewDailyCalendar(day("2018-05-01"), 3, "FI12345")
	at, err := ParseAsOfTime("09:30:00 America/New_York")
	require.NoError(t, err)

	result, err := NewEngine(nil).Align(context.Background(), Request{
		Schema:   quantitySchema(),
		Calendar: cal,
		Config:   AlignmentConfig{Intraday: at, Shift: Int(1)},
		Records:  quantityRecords(),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 10000, 80000}, seriesFloats(result.Series("", "Quantity", "FI12345")))
}

func TestEngineAlign_DailyAggregate(t *testing.T) {
	ny := mustLoad("America/New_York")
	cal := domain.NewDailyCalendar(day("2018-05-01"), 2, "FI12345").InLocation(ny)
	records := []domain.FactRecord{
		rec("FI12345", instant("2018-05-01T13:45:00Z"), map[string]domain.Value{"Quantity": num(9000)}),
		rec("FI12345", instant("2018-05-01T18:00:00Z"), map[string]domain.Value{"Quantity": num(11000)}),
		rec("FI12345", instant("2018-05-02T12:30:00Z"), map[string]domain.Value{"Quantity": num(80000)}),
	}

	result, err := NewEngine(nil).Align(context.Background(), Request{
		Schema:   quantitySchema(),
		Calendar: cal,
		Config:   AlignmentConfig{Intraday: DailyAggregate{}},
		Records:  records,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"MinQuantity", "MaxQuantity", "MeanQuantity", "LastQuantity"}, result.FieldNames())
	assert.Equal(t, []float64{9000, 80000}, seriesFloats(result.Series("", "MinQuantity", "FI12345")))
	assert.Equal(t, []float64{11000, 80000}, seriesFloats(result.Series("", "MaxQuantity", "FI12345")))
	assert.Equal(t, []float64{10000, 80000}, seriesFloats(result.Series("", "MeanQuantity", "FI12345")))
	assert.Equal(t, []float64{11000, 80000}, seriesFloats(result.Series("", "LastQuantity", "FI12345")))

	t.Run("raw field rejected in aggregate mode", func(t *testing.T) {
		_, err := NewEngine(nil).Align(context.Background(), Request{
			Schema:   quantitySchema(),
			Calendar: cal,
			Config:   AlignmentConfig{Intraday: DailyAggregate{}, Fields: []string{"Quantity"}},
			Records:  records,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsParameterError(err))
	})
}

func TestEngineAlign_Errors(t *testing.T) {
	ny := mustLoad("America/New_York")
	base := domain.NewDailyCalendar(day("2018-05-01"), 3, "FI12345", "FI23456")

	withTime := base
	withTime.IndexNames = []string{"Date", "Time"}
	misnamed := base
	misnamed.IndexNames = []string{"Day"}

	london, err := ParseAsOfTime("09:30:00 Europe/London")
	require.NoError(t, err)

	tests := []struct {
		name    string
		schema  *Schema
		cal     domain.TargetCalendar
		cfg     AlignmentConfig
		lookup  ReferenceLookup
		wantMsg string
		check   func(error) bool
	}{
		{
			name:    "calendar with time level",
			schema:  reportSchema(),
			cal:     withTime,
			wantMsg: "reindex_like should not have 'Time' in index",
			check:   apperrors.IsParameterError,
		},
		{
			name:    "calendar index misnamed",
			schema:  reportSchema(),
			cal:     misnamed,
			wantMsg: "reindex_like must have index called 'Date'",
			check:   apperrors.IsParameterError,
		},
		{
			name:    "positive period offset",
			schema:  reportSchema(),
			cal:     base,
			cfg:     AlignmentConfig{PeriodOffset: 1},
			wantMsg: "period_offset must be a negative integer or 0",
			check:   apperrors.IsParameterError,
		},
		{
			name:    "time on a daily feed",
			schema:  reportSchema(),
			cal:     base,
			cfg:     AlignmentConfig{Intraday: london},
			wantMsg: "the time argument is only supported for intraday feeds",
			check:   apperrors.IsParameterError,
		},
		{
			name:    "time zone conflicts with calendar",
			schema:  quantitySchema(),
			cal:     base.InLocation(ny),
			cfg:     AlignmentConfig{Intraday: london},
			wantMsg: "cannot use timezone Europe/London because reindex_like timezone is America/New_York, these must match",
			check:   apperrors.IsParameterError,
		},
		{
			name:    "entities disagree on timezone",
			schema:  quantitySchema(),
			cal:     base,
			lookup:  staticLookup{"FI12345": "America/New_York", "FI23456": "Japan"},
			wantMsg: "multiple timezones are present in data, please specify timezone (timezones in data: America/New_York, Japan)",
			check:   apperrors.IsAmbiguousTimezone,
		},
		{
			name:    "unknown max lag unit",
			schema:  reportSchema(),
			cal:     base,
			cfg:     AlignmentConfig{MaxLag: "3 fortnights"},
			wantMsg: "invalid max_lag",
			check:   apperrors.IsParameterError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, handler := testutil.NewTestLogger(t)
			_, err := NewEngine(logger).Align(context.Background(), Request{
				Schema:   tt.schema,
				Calendar: tt.cal,
				Config:   tt.cfg,
				Records:  quantityRecords(),
				Lookup:   tt.lookup,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.True(t, tt.check(err), "unexpected error type %s", apperrors.TypeOf(err))
			testutil.AssertLogContains(t, handler, slog.LevelWarn, "alignment failed")
		})
	}
}

func TestEngineAlign_LogsAndMetrics(t *testing.T) {
	metrics, err := infrastructure.CreateMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	logger, handler := testutil.NewTestLogger(t)
	engine := NewEngine(logger, WithMetrics(metrics))

	_, err = engine.Align(context.Background(), Request{
		Schema:   reportSchema(),
		Calendar: domain.NewDailyCalendar(day("2018-07-20"), 6, "E1"),
		Config:   AlignmentConfig{MaxLag: "23D"},
		Records:  reportRecords(),
	})
	require.NoError(t, err)

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "alignment complete")
	testutil.AssertLogAttr(t, handler, "feed", "reports")
	testutil.AssertNoErrors(t, handler)
}
