package avc

import "fmt"

// Profile identifies the encoder implementation whose Annex B framing the
// output must reproduce. Encoders differ in which NAL unit types they emit
// with a 3-byte start code, and downstream consumers compare output
// byte-for-byte against a specific encoder's native elementary stream, so
// the per-profile rules are kept distinct rather than unified.
type Profile string

// Recognized encoder profiles.
const (
	// ProfileDefault matches software encoders (libx264): IDR slices and
	// SEI units carry the short start code.
	ProfileDefault Profile = "default"
	// ProfileQuickSync matches Intel Quick Sync (h264_qsv): non-IDR and
	// IDR coded slices carry the short start code.
	ProfileQuickSync Profile = "quicksync"
)

// ParseProfile validates an encoder profile name from configuration.
// An empty name selects ProfileDefault.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case "":
		return ProfileDefault, nil
	case ProfileDefault, ProfileQuickSync:
		return Profile(s), nil
	default:
		return "", fmt.Errorf("avc: unknown encoder profile %q", s)
	}
}

// Annex B start codes. Shared read-only slices; never mutated.
var (
	startCode3 = []byte{0x00, 0x00, 0x01}
	startCode4 = []byte{0x00, 0x00, 0x00, 0x01}
)

// shortStartCode maps each profile to the set of NAL unit types that take
// the 3-byte start code. Every other type takes the 4-byte code.
var shortStartCode = map[Profile]map[byte]bool{
	ProfileQuickSync: {NALTypeSlice: true, NALTypeIDR: true},
	ProfileDefault:   {NALTypeIDR: true, NALTypeSEI: true},
}

// StartCode returns the Annex B start code for a NAL unit of the given type
// under the given encoder profile. Unknown profiles behave as ProfileDefault.
func StartCode(profile Profile, nalType byte) []byte {
	short, ok := shortStartCode[profile]
	if !ok {
		short = shortStartCode[ProfileDefault]
	}
	if short[nalType] {
		return startCode3
	}
	return startCode4
}

// ToAnnexB appends one NAL unit to dst in Annex B framing: the start code
// selected for the unit's type nibble, followed by the NAL bytes unchanged.
// It returns the extended buffer. nal must be non-empty.
func ToAnnexB(dst, nal []byte, profile Profile) []byte {
	dst = append(dst, StartCode(profile, NALType(nal[0]))...)
	return append(dst, nal...)
}
