package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	cases := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2024-10-10T10:10:10Z", want, true},
		{"rfc3339 offset", "2024-10-10T17:10:10+07:00", want, true},
		{"nano", "2024-10-10T10:10:10.5Z", want.Add(500 * time.Millisecond), true},
		{"naive", "2024-10-10T10:10:10", want, true},
		{"date", "2024-10-10", time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC), true},
		{"unix seconds", strconv.FormatInt(want.Unix(), 10), want, true},
		{"unix millis", strconv.FormatInt(want.UnixMilli(), 10), want, true},
		{"empty", "", time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, false},
		{"negative", "-5", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTime(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.True(t, tc.want.Equal(got), "got %v", got)
		})
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("nope", def).Equal(def))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 42, ParseIntDefault(" 42 ", 7))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "SPY", NormalizeSymbol(" spy "))
}
