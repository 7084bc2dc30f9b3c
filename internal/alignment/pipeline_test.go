package alignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pitalign/internal/errors"
	"pitalign/pkg/contracts/domain"
)

func TestValidateCalendar(t *testing.T) {
	valid := domain.NewDailyCalendar(day("2018-05-01"), 3, "A", "B")

	tests := []struct {
		name    string
		mutate  func(c *domain.TargetCalendar)
		wantErr string
	}{
		{name: "valid", mutate: func(*domain.TargetCalendar) {}},
		{name: "time level", mutate: func(c *domain.TargetCalendar) { c.IndexNames = []string{"Date", "Time"} }, wantErr: "reindex_like should not have 'Time' in index"},
		{name: "wrong index name", mutate: func(c *domain.TargetCalendar) { c.IndexNames = []string{"Day"} }, wantErr: "reindex_like must have index called 'Date'"},
		{name: "no dates", mutate: func(c *domain.TargetCalendar) { c.Dates = nil }, wantErr: "reindex_like must have a DatetimeIndex"},
		{name: "unordered dates", mutate: func(c *domain.TargetCalendar) {
			c.Dates = []time.Time{day("2018-05-02"), day("2018-05-01")}
		}, wantErr: "strictly increasing"},
		{name: "no entities", mutate: func(c *domain.TargetCalendar) { c.Entities = nil }, wantErr: "at least one column"},
		{name: "duplicate entity", mutate: func(c *domain.TargetCalendar) { c.Entities = []string{"A", "A"} }, wantErr: "duplicate column A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := valid
			tt.mutate(&cal)
			err := ValidateCalendar(cal)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsParameterError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalize_Coercion(t *testing.T) {
	schema := &Schema{
		Feed:           "mixed",
		ReferenceField: "Period",
		Fields: []FieldSpec{
			{Name: "Amount", Kind: domain.KindNumber},
			{Name: "Status", Kind: domain.KindBool, TrueValues: []string{"added"}},
			{Name: "Flag", Kind: domain.KindBool},
			{Name: "Event", Kind: domain.KindBool, Presence: true},
			{Name: "Label", Kind: domain.KindString},
		},
		SkipEmptyRecords: true,
	}
	n := &Normalizer{
		Schema:   schema,
		Fields:   []string{"Amount", "Status", "Flag", "Event", "Label"},
		Entities: []string{"E1"},
	}

	rows, err := n.Normalize([]domain.FactRecord{
		rec("E1", day("2018-05-01"), map[string]domain.Value{
			"Amount": domain.String("1.5"),
			"Status": domain.String("removed"),
			"Flag":   num(1),
			"Event":  domain.String("8.01"),
			"Label":  domain.String("x"),
			"Period": domain.String("2018-03-31"),
		}),
		rec("E1", day("2018-05-02"), map[string]domain.Value{"Status": domain.String("ADDED")}),
		rec("E1", day("2018-05-03"), map[string]domain.Value{"Amount": domain.String("")}),
		rec("E2", day("2018-05-03"), map[string]domain.Value{"Amount": num(7)}),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2, "empty and foreign records are skipped")

	first := rows[0]
	assert.Equal(t, num(1.5), first.Values["Amount"])
	assert.Equal(t, domain.Bool(false), first.Values["Status"])
	assert.Equal(t, domain.Bool(true), first.Values["Flag"])
	assert.Equal(t, domain.Bool(true), first.Values["Event"])
	assert.Equal(t, domain.String("x"), first.Values["Label"])
	assert.Equal(t, day("2018-03-31"), first.Ref)

	second := rows[1]
	assert.Equal(t, domain.Bool(true), second.Values["Status"])
	assert.True(t, second.Values["Event"].IsNull())
	assert.True(t, second.Ref.IsZero())

	_, err = n.Normalize([]domain.FactRecord{
		rec("E1", day("2018-05-01"), map[string]domain.Value{"Amount": domain.String("lots")}),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
}

func TestDeduplicate(t *testing.T) {
	rows := []Row{
		{Entity: "B", Stamp: day("2018-05-01"), Values: map[string]domain.Value{"v": num(1)}, Seq: 0},
		{Entity: "A", Stamp: day("2018-05-02"), Event: instant("2018-05-02T10:00:00Z"), Values: map[string]domain.Value{"v": num(2)}, Seq: 1},
		{Entity: "A", Stamp: day("2018-05-02"), Event: instant("2018-05-02T09:00:00Z"), Values: map[string]domain.Value{"v": num(3)}, Seq: 2},
		{Entity: "A", Stamp: day("2018-05-01"), Values: map[string]domain.Value{"v": num(4)}, Seq: 3},
	}

	out := Deduplicate(rows)
	require.Len(t, out, 3)
	assert.Equal(t, "A", out[0].Entity)
	assert.Equal(t, day("2018-05-01"), out[0].Stamp)
	assert.Equal(t, num(2), out[1].Values["v"], "latest event time survives")
	assert.Equal(t, "B", out[2].Entity)

	assert.Equal(t, out, Deduplicate(out), "deduplication is idempotent")
	assert.Len(t, rows, 4, "input is not modified")
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, compareValues(domain.Null(), num(1)))
	assert.Equal(t, 1, compareValues(num(1), domain.Null()))
	assert.Equal(t, 0, compareValues(domain.Null(), domain.Null()))
	assert.Equal(t, -1, compareValues(domain.String("2018-03-31"), domain.String("2018-06-30")))
	assert.Equal(t, 1, compareValues(domain.String("10"), num(9)))
	assert.Equal(t, -1, compareValues(domain.String("abc"), domain.String("abd")))
}

func TestAggregateDaily(t *testing.T) {
	at := func(s string) time.Time { return civil(instant(s)) }
	rows := []Row{
		{Entity: "E1", Stamp: at("2018-05-01T14:00:00Z"), Values: map[string]domain.Value{"Q": num(30)}},
		{Entity: "E1", Stamp: at("2018-05-01T09:30:00Z"), Values: map[string]domain.Value{"Q": num(10)}},
		{Entity: "E1", Stamp: at("2018-05-01T12:00:00Z"), Values: map[string]domain.Value{"Q": domain.Null()}},
		{Entity: "E1", Stamp: at("2018-05-02T10:00:00Z"), Values: map[string]domain.Value{"Q": domain.Null()}},
	}

	out := AggregateDaily(rows, []string{"Q"})
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, day("2018-05-01"), first.Stamp)
	assert.Equal(t, num(10), first.Values["MinQ"])
	assert.Equal(t, num(30), first.Values["MaxQ"])
	assert.Equal(t, num(20), first.Values["MeanQ"])
	assert.Equal(t, num(30), first.Values["LastQ"])

	second := out[1]
	for _, name := range aggregateNames("Q") {
		assert.True(t, second.Values[name].IsNull(), name)
	}
}

func TestPanel_ForwardFillIsMonotone(t *testing.T) {
	stamps := calendarStamps(domain.NewDailyCalendar(day("2018-05-01"), 5, "E1"), nil)
	rows := []Row{
		{Entity: "E1", Stamp: day("2018-05-02"), Ref: day("2018-03-31"), Values: map[string]domain.Value{"v": num(1)}},
		{Entity: "E1", Stamp: day("2018-05-04"), Ref: day("2018-04-30"), Values: map[string]domain.Value{"v": num(2)}},
	}
	p := NewPanel(stamps, []string{"E1"}, []string{"v"}, rows)
	require.Equal(t, 4, p.Rows(), "calendar rows before the first fact are pruned")

	before := make([]bool, p.Rows())
	for r := 0; r < p.Rows(); r++ {
		before[r] = !p.At("v", r, 0).IsNull()
	}
	p.ForwardFill()
	for r := 0; r < p.Rows(); r++ {
		if before[r] {
			assert.False(t, p.At("v", r, 0).IsNull(), "row %d lost a value", r)
		}
	}
	assert.Equal(t, num(1), p.At("v", 1, 0))
	assert.Equal(t, day("2018-03-31"), p.Ref(1, 0))
	assert.Equal(t, num(2), p.At("v", 3, 0))

	frame := p.Trim("v", stamps)
	require.Len(t, frame, 5)
	assert.True(t, frame[0][0].IsNull())
	assert.Equal(t, num(1), frame[1][0])
	assert.Equal(t, num(2), frame[4][0])
}

func TestPanel_UnionTimelineKeepsIntradayFacts(t *testing.T) {
	stamps := []time.Time{day("2018-05-01"), day("2018-05-02")}
	rows := []Row{
		{Entity: "E1", Stamp: civil(instant("2018-05-01T09:45:00Z")), Values: map[string]domain.Value{"v": num(1)}},
		{Entity: "E1", Stamp: day("2018-05-02"), Values: map[string]domain.Value{"v": num(2)}},
	}
	p := NewPanel(stamps, []string{"E1"}, []string{"v"}, rows)
	require.Equal(t, 2, p.Rows())
	assert.Equal(t, civil(instant("2018-05-01T09:45:00Z")), p.Timeline[0])
	assert.Equal(t, day("2018-05-02"), p.Timeline[1])
}

func TestApplyPeriodOffset(t *testing.T) {
	rows := []Row{
		{Entity: "A", Stamp: day("2018-01-15"), Ref: day("2017-12-31"), Values: map[string]domain.Value{"v": num(1)}},
		{Entity: "A", Stamp: day("2018-04-15"), Ref: day("2018-03-31"), Values: map[string]domain.Value{"v": domain.Null()}},
		{Entity: "A", Stamp: day("2018-07-15"), Ref: day("2018-06-30"), Values: map[string]domain.Value{"v": num(3)}},
		{Entity: "B", Stamp: day("2018-02-01"), Ref: day("2017-12-31"), Values: map[string]domain.Value{"v": num(9)}},
	}

	out := ApplyPeriodOffset(rows, []string{"v"}, -1)
	require.Len(t, out, 4)
	assert.True(t, out[0].Values["v"].IsNull())
	assert.True(t, out[0].Ref.IsZero())
	assert.Equal(t, num(1), out[1].Values["v"])
	assert.Equal(t, day("2017-12-31"), out[1].Ref)
	assert.Equal(t, num(1), out[2].Values["v"], "previous report was null so its fill carries")
	assert.Equal(t, day("2018-03-31"), out[2].Ref)
	assert.True(t, out[3].Values["v"].IsNull(), "entities do not leak into each other")

	assert.True(t, rows[1].Values["v"].IsNull(), "input values are not modified")
	assert.Equal(t, num(3), rows[2].Values["v"])
}

func TestFillNulls(t *testing.T) {
	dates := []time.Time{day("2018-04-15"), day("2018-04-16"), day("2018-04-17")}
	frame := [][]domain.Value{{domain.Null()}, {domain.Null()}, {num(5)}}

	fillNulls(frame, dates, num(0), day("2018-04-16"))
	assert.True(t, frame[0][0].IsNull())
	assert.Equal(t, num(0), frame[1][0])
	assert.Equal(t, num(5), frame[2][0])

	frame = [][]domain.Value{{domain.Null()}, {domain.Bool(true)}, {domain.Null()}}
	fillNulls(frame, dates, domain.Bool(false), time.Time{})
	assert.Equal(t, domain.Bool(false), frame[0][0])
	assert.Equal(t, domain.Bool(true), frame[1][0])
	assert.Equal(t, domain.Bool(false), frame[2][0])
}

func TestShiftFrame(t *testing.T) {
	frame := [][]domain.Value{{num(1)}, {num(2)}, {num(3)}}
	out := shiftFrame(frame, 2)
	assert.True(t, out[0][0].IsNull())
	assert.True(t, out[1][0].IsNull())
	assert.Equal(t, num(1), out[2][0])
	assert.Equal(t, num(1), frame[0][0])
}
