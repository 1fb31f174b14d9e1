package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	cases := []struct {
		page, size          int
		wantLimit, wantOffs int
	}{
		{1, 20, 20, 0},
		{0, 0, DefaultPageSize, 0},
		{-3, 10, 10, 0},
		{3, 10, 10, 20},
		{2, 1000, MaxPageSize, MaxPageSize},
	}
	for _, tc := range cases {
		l, o := Paginate(tc.page, tc.size)
		if l != tc.wantLimit || o != tc.wantOffs {
			t.Fatalf("Paginate(%d, %d) = (%d, %d); want (%d, %d)", tc.page, tc.size, l, o, tc.wantLimit, tc.wantOffs)
		}
	}
}
