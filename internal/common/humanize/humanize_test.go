package humanize

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0.0B"},
		{512, "512.0B"},
		{1024, "1.0KiB"},
		{6 << 30, "6.0GiB"},
		{int64(1.5 * float64(1<<30)), "1.5GiB"},
		{1 << 50, "1.0PiB"},
	}
	for _, tc := range cases {
		if got := Bytes(tc.n); got != tc.want {
			t.Fatalf("Bytes(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250 ms"},
		{1500 * time.Millisecond, "1.50 s"},
		{59 * time.Second, "59.00 s"},
		{145 * time.Second, "2m 25.0s"},
		{time.Hour, "60m 0.0s"},
	}
	for _, tc := range cases {
		if got := Duration(tc.d); got != tc.want {
			t.Fatalf("Duration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
