package shm

import (
	"errors"
	"testing"
)

func TestPermHas(t *testing.T) {
	cases := []struct {
		have, want Perm
		ok         bool
	}{
		{PermNone, PermNone, true},
		{PermNone, PermRead, false},
		{PermRead, PermRead, true},
		{PermRead, PermWrite, false},
		{PermRead, PermRW, false},
		{PermWrite, PermWrite, true},
		{PermWrite, PermRead, false},
		{PermRW, PermRead, true},
		{PermRW, PermWrite, true},
		{PermRW, PermRW, true},
	}
	for _, tc := range cases {
		if got := tc.have.Has(tc.want); got != tc.ok {
			t.Errorf("%s.Has(%s) = %v, want %v", tc.have, tc.want, got, tc.ok)
		}
	}
}

func TestParsePerm(t *testing.T) {
	for s, want := range map[string]Perm{
		"":           PermNone,
		"none":       PermNone,
		"read":       PermRead,
		"r":          PermRead,
		"write":      PermWrite,
		"w":          PermWrite,
		"rw":         PermRW,
		"read_write": PermRW,
	} {
		got, err := ParsePerm(s)
		if err != nil {
			t.Errorf("ParsePerm(%q) failed: %v", s, err)
			continue
		}
		if got != want {
			t.Errorf("ParsePerm(%q) = %s, want %s", s, got, want)
		}
	}

	_, err := ParsePerm("root")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParsePerm(root): got %v, want ErrInvalidArgument", err)
	}
}

func TestPermStringRoundTrip(t *testing.T) {
	for _, p := range []Perm{PermNone, PermRead, PermWrite, PermRW} {
		got, err := ParsePerm(p.String())
		if err != nil || got != p {
			t.Errorf("round trip for %s: got %s, err %v", p, got, err)
		}
	}
}
