package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	ref := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-10-10T10:10:10Z", ref, true},
		{"2024-10-10T10:10:10.5Z", ref.Add(500 * time.Millisecond), true},
		{strconv.FormatInt(ref.Unix(), 10), ref, true},
		{strconv.FormatInt(ref.UnixMilli()+250, 10), ref.Add(250 * time.Millisecond), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"-5", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseTime(tc.in)
		if ok != tc.ok || !got.Equal(tc.want) {
			t.Fatalf("ParseTime(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Unix(42, 0)
	if got := ParseTimeDefault("bad", def); !got.Equal(def) {
		t.Fatalf("got %v", got)
	}
}

func TestParseIntDefault(t *testing.T) {
	if ParseIntDefault("", 7) != 7 || ParseIntDefault("x", 7) != 7 || ParseIntDefault("12", 7) != 12 {
		t.Fatalf("ParseIntDefault")
	}
}
