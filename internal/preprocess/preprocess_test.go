package preprocess

import (
	"math"
	"reflect"
	"testing"
	"time"

	"nidwatch/internal/models"
)

func canonicalTable() *models.Table {
	return models.FromRecords([]models.PacketRecord{
		{TS: 1700000005.5, Src: "10.0.0.1", Dst: "10.0.0.2", Length: 60},
		{TS: 1700000065, Src: "10.0.0.1", Dst: "10.0.0.3", Length: 1500},
		{TS: math.NaN(), Src: "10.0.0.4", Dst: "10.0.0.1", Length: 0},
	})
}

func TestApplyAddsMinuteFromTS(t *testing.T) {
	out := Apply(canonicalTable())

	want := []string{"ts", "src", "dst", "length", "minute"}
	if !reflect.DeepEqual(out.Columns, want) {
		t.Fatalf("columns = %v, want %v", out.Columns, want)
	}
	if out.Len() != 3 {
		t.Fatalf("rows = %d, want 3 (unparseable ts rows are retained)", out.Len())
	}

	mins := out.Column(models.ColMinute)
	if got := mins[0].(time.Time); !got.Equal(time.Unix(1699999980, 0)) {
		t.Errorf("minute[0] = %v", got)
	}
	if got := mins[1].(time.Time); !got.Equal(time.Unix(1700000040, 0)) {
		t.Errorf("minute[1] = %v", got)
	}
	if mins[2] != nil {
		t.Errorf("minute[2] = %v, want nil", mins[2])
	}
	if ts := out.Column(models.ColTS); ts[0] != 1700000005.5 {
		t.Errorf("ts should stay a float, got %#v", ts[0])
	}
}

func TestApplyDefaultsLength(t *testing.T) {
	in := models.NewTable("col1", "col2")
	in.AddRow(int64(1), int64(2))
	in.AddRow(int64(3), int64(4))

	out := Apply(in)
	if out.Len() != 2 {
		t.Fatalf("rows = %d, want 2", out.Len())
	}
	if out.HasColumn(models.ColMinute) {
		t.Error("minute column should be absent without a timestamp column")
	}
	for i, v := range out.Column(models.ColLength) {
		if v != int64(0) {
			t.Errorf("length[%d] = %#v, want int64(0)", i, v)
		}
	}
	if in.HasColumn(models.ColLength) {
		t.Error("input table was mutated")
	}
}

func TestApplyCoercesLength(t *testing.T) {
	in := models.NewTable("length")
	for _, v := range []any{
		"120", nil, "junk", float64(64.0), int64(-3),
		"9223372036854775807", int64(math.MaxInt64), float64(math.MaxInt64), "9223372036854775808",
	} {
		in.AddRow(v)
	}
	got := Apply(in).Column(models.ColLength)
	want := []any{
		int64(120), int64(0), int64(0), int64(64), int64(0),
		int64(math.MaxInt64), int64(math.MaxInt64), int64(0), int64(0),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("length = %#v, want %#v", got, want)
	}
}

func TestApplyTimeColumn(t *testing.T) {
	in := models.NewTable("time", "src")
	in.AddRow("2024-03-01 10:15:42", "a")
	in.AddRow("not a date", "b")
	in.AddRow("1709288142.9", "c")

	out := Apply(in)
	if out.Len() != 3 {
		t.Fatalf("rows = %d, want 3", out.Len())
	}
	times := out.Column(models.ColTime)
	if _, ok := times[0].(time.Time); !ok {
		t.Errorf("time[0] = %#v, want time.Time", times[0])
	}
	if times[1] != nil {
		t.Errorf("time[1] = %#v, want nil", times[1])
	}
	mins := out.Column(models.ColMinute)
	want := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	if m := mins[0].(time.Time); !m.Equal(want) {
		t.Errorf("minute[0] = %v, want %v", m, want)
	}
	if mins[1] != nil {
		t.Errorf("minute[1] = %v, want nil", mins[1])
	}
	if mins[2] == nil {
		t.Error("epoch string should parse")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	tables := map[string]*models.Table{
		"canonical": canonicalTable(),
		"empty":     models.NewTable(),
		"time": func() *models.Table {
			t := models.NewTable("time", "length")
			t.AddRow("2024-03-01T10:15:42Z", "77")
			t.AddRow("", nil)
			return t
		}(),
	}
	for name, tbl := range tables {
		t.Run(name, func(t *testing.T) {
			once := Apply(tbl)
			twice := Apply(once)
			if !reflect.DeepEqual(once, twice) {
				t.Fatalf("not idempotent:\nonce:  %#v\ntwice: %#v", once, twice)
			}
		})
	}
}

func TestParseTimeLayouts(t *testing.T) {
	for _, s := range []string{
		"2024-03-01T10:15:42.123Z",
		"2024-03-01 10:15:42.5",
		"2024-03-01",
		"1709288142",
	} {
		if _, ok := ParseTime(s); !ok {
			t.Errorf("ParseTime(%q) failed", s)
		}
	}
	if _, ok := ParseTime(math.NaN()); ok {
		t.Error("NaN should not parse")
	}
}

func TestParseTimeEpochUnits(t *testing.T) {
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	for _, v := range []any{
		int64(1700000000),
		int64(1700000000000),
		int64(1700000000000000),
		int64(1700000000000000000),
		"1700000000000",
		float64(1700000000000),
	} {
		got, ok := ParseTime(v)
		if !ok || !got.Truncate(time.Second).Equal(want) {
			t.Errorf("ParseTime(%v) = %v, %v; want %v", v, got, ok, want)
		}
	}
}

func TestParseTimeOutOfRange(t *testing.T) {
	for _, v := range []any{float64(1e30), float64(-1e30), "1e25", math.Inf(1)} {
		if got, ok := ParseTime(v); ok {
			t.Errorf("ParseTime(%v) = %v, want unparseable", v, got)
		}
	}
}

func TestApplyMillisecondTimeColumn(t *testing.T) {
	in := models.NewTable("time", "src")
	in.AddRow(int64(1700000000123), "a")
	mins := Apply(in).Column(models.ColMinute)
	want := time.Date(2023, 11, 14, 22, 13, 0, 0, time.UTC)
	if m, ok := mins[0].(time.Time); !ok || !m.Equal(want) {
		t.Fatalf("minute = %#v, want %v", mins[0], want)
	}
}
