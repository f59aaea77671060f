package timegrid

import "testing"

func TestMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"00:00", 0},
		{"09:00", 540},
		{"09:30", 570},
		{"23:58", 1438},
		{"24:00", 1440},
		{"", 0},
		{"garbage", 0},
		{"9", 0},
		{"25:00", 0},
		{"24:01", 0},
		{"10:60", 0},
		{"-1:30", 0},
	}
	for _, c := range cases {
		if got := Minutes(c.in); got != c.want {
			t.Errorf("Minutes(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestValidRange(t *testing.T) {
	if !ValidRange("09:00", "10:00") {
		t.Error("09:00-10:00 should be valid")
	}
	if !ValidRange("23:58", "24:00") {
		t.Error("23:58-24:00 should be valid")
	}
	if ValidRange("10:00", "10:00") {
		t.Error("equal times are not a valid range")
	}
	if ValidRange("11:00", "10:00") {
		t.Error("inverted range should be invalid")
	}
	if ValidRange("", "10:00") {
		t.Error("malformed start should be invalid")
	}
}

func TestFormatMinutes(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{540, "09:00"},
		{1438, "23:58"},
		{1440, "24:00"},
		{-5, "00:00"},
		{2000, "24:00"},
	}
	for _, c := range cases {
		if got := FormatMinutes(c.in); got != c.want {
			t.Errorf("FormatMinutes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMinutesFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"00:00", "07:15", "12:00", "23:59", "24:00"} {
		if got := FormatMinutes(Minutes(s)); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}
