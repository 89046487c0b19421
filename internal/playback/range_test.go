package playback

import "testing"

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   error
	}{
		{"no header streams whole file", "", 1000, 0, 0, true, nil},
		{"full range", "bytes=0-999", 1000, 0, 999, false, nil},
		{"open ended", "bytes=500-", 1000, 500, 999, false, nil},
		{"suffix", "bytes=-500", 1000, 500, 999, false, nil},
		{"single byte", "bytes=0-0", 1000, 0, 0, false, nil},
		{"middle", "bytes=100-199", 1000, 100, 199, false, nil},
		{"end clamped to file", "bytes=0-2000", 1000, 0, 999, false, nil},
		{"suffix longer than file", "bytes=-2000", 500, 0, 499, false, nil},
		{"last byte open ended", "bytes=999-", 1000, 999, 999, false, nil},
		{"multi range answers first spec", "bytes=0-99, 200-299", 1000, 0, 99, false, nil},

		{"start at size", "bytes=1000-", 1000, 0, 0, false, ErrUnsatisfiable},
		{"span past eof", "bytes=1500-2000", 1000, 0, 0, false, ErrUnsatisfiable},
		{"no unit", "invalid", 1000, 0, 0, false, ErrInvalidRange},
		{"wrong unit", "chars=0-100", 1000, 0, 0, false, ErrInvalidRange},
		{"no dash", "bytes=100", 1000, 0, 0, false, ErrInvalidRange},
		{"garbage start", "bytes=abc-100", 1000, 0, 0, false, ErrInvalidRange},
		{"garbage end", "bytes=0-abc", 1000, 0, 0, false, ErrInvalidRange},
		{"zero suffix", "bytes=-0", 1000, 0, 0, false, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("ParseRange(%q) error = %v, want %v", tt.header, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange(%q) error = %v", tt.header, err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseRange(%q) = %+v, want nil", tt.header, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseRange(%q) = nil", tt.header)
			}
			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Errorf("ParseRange(%q) = %d-%d, want %d-%d", tt.header, got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestRange_Headers(t *testing.T) {
	r := Range{Start: 500, End: 999}
	if got := r.ContentLength(); got != 500 {
		t.Errorf("ContentLength() = %d, want 500", got)
	}
	if got := r.ContentRange(1000); got != "bytes 500-999/1000" {
		t.Errorf("ContentRange() = %q", got)
	}

	one := Range{Start: 0, End: 0}
	if got := one.ContentLength(); got != 1 {
		t.Errorf("single byte ContentLength() = %d, want 1", got)
	}
	if got := one.ContentRange(1); got != "bytes 0-0/1" {
		t.Errorf("single byte ContentRange() = %q", got)
	}
}
