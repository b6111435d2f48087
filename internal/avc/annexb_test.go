package avc

import (
	"bytes"
	"testing"
)

func TestParseProfile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Profile
		wantErr bool
	}{
		{"", ProfileDefault, false},
		{"default", ProfileDefault, false},
		{"quicksync", ProfileQuickSync, false},
		{"x264", "", true},
		{"Default", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProfile(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseProfile(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseProfile(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProfile(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStartCodeSelection(t *testing.T) {
	t.Parallel()
	tests := []struct {
		profile Profile
		nalType byte
		wantLen int
	}{
		// Quick Sync: coded slices (IDR and non-IDR) take the short code.
		{ProfileQuickSync, NALTypeSlice, 3},
		{ProfileQuickSync, NALTypeIDR, 3},
		{ProfileQuickSync, NALTypeSEI, 4},
		{ProfileQuickSync, NALTypeSPS, 4},
		{ProfileQuickSync, NALTypePPS, 4},
		// Software encoder: IDR and SEI take the short code, non-IDR does not.
		{ProfileDefault, NALTypeIDR, 3},
		{ProfileDefault, NALTypeSEI, 3},
		{ProfileDefault, NALTypeSlice, 4},
		{ProfileDefault, NALTypeSPS, 4},
		{ProfileDefault, NALTypeAUD, 4},
	}
	for _, tt := range tests {
		got := StartCode(tt.profile, tt.nalType)
		if len(got) != tt.wantLen {
			t.Errorf("StartCode(%s, type %d): got %d-byte code, want %d",
				tt.profile, tt.nalType, len(got), tt.wantLen)
		}
	}
}

func TestStartCodeUnknownProfileFallsBackToDefault(t *testing.T) {
	t.Parallel()
	if got := StartCode(Profile("nvenc"), NALTypeSEI); len(got) != 3 {
		t.Errorf("unknown profile SEI: got %d-byte code, want 3", len(got))
	}
	if got := StartCode(Profile("nvenc"), NALTypeSlice); len(got) != 4 {
		t.Errorf("unknown profile slice: got %d-byte code, want 4", len(got))
	}
}

func TestToAnnexB(t *testing.T) {
	t.Parallel()
	// 0x65 = IDR slice (type 5), short code under both profiles.
	idr := []byte{0x65, 0x88, 0x84, 0x00}
	got := ToAnnexB(nil, idr, ProfileDefault)
	want := append([]byte{0x00, 0x00, 0x01}, idr...)
	if !bytes.Equal(got, want) {
		t.Errorf("ToAnnexB(IDR) = %x, want %x", got, want)
	}

	// 0x67 = SPS (type 7), long code under both profiles; appended after
	// the IDR unit to verify the buffer grows in place.
	sps := []byte{0x67, 0x42, 0xE0, 0x1E}
	got = ToAnnexB(got, sps, ProfileDefault)
	want = append(want, 0x00, 0x00, 0x00, 0x01)
	want = append(want, sps...)
	if !bytes.Equal(got, want) {
		t.Errorf("ToAnnexB(IDR+SPS) = %x, want %x", got, want)
	}
}

func TestStartCodeKeysOnLowNibbleOnly(t *testing.T) {
	t.Parallel()
	// 0x15 carries the IDR nibble with a high type bit set; framing must
	// follow the low nibble alone, as the matched encoders do.
	got := ToAnnexB(nil, []byte{0x15, 0xAA}, ProfileDefault)
	want := []byte{0x00, 0x00, 0x01, 0x15, 0xAA}
	if !bytes.Equal(got, want) {
		t.Errorf("ToAnnexB(0x15..) = %x, want %x", got, want)
	}
	if n := NALType(0x75); n != NALTypeIDR {
		t.Errorf("NALType(0x75) = %d, want %d", n, NALTypeIDR)
	}
}

func TestToAnnexBPayloadUnchanged(t *testing.T) {
	t.Parallel()
	nal := []byte{0x41, 0x9A, 0x00, 0x00, 0x01, 0xFF} // payload bytes must never be mutated
	out := ToAnnexB(nil, nal, ProfileQuickSync)
	if !bytes.Equal(out[3:], nal) {
		t.Errorf("NAL bytes mutated: got %x, want %x", out[3:], nal)
	}
}
