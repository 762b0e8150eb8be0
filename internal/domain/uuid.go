package domain

import "strings"

// ChangeUUIDFormat converts a 36-character UUID string between its
// big-endian and mixed-endian (classic GUID) representations by reversing
// byte order pairwise within the first three hyphen-delimited groups.
// Groups four and five are unchanged. The transform is its own inverse.
// Inputs that are not exactly 36 characters are returned unchanged.
func ChangeUUIDFormat(s string) string {
	if len(s) != 36 {
		return s
	}
	parts := strings.Split(s, "-")
	if len(parts) != 5 {
		return s
	}
	return strings.Join([]string{
		reverseBytePairs(parts[0]),
		reverseBytePairs(parts[1]),
		reverseBytePairs(parts[2]),
		parts[3],
		parts[4],
	}, "-")
}

// reverseBytePairs reverses a hex string two characters at a time:
// "AABBCCDD" -> "DDCCBBAA".
func reverseBytePairs(s string) string {
	if len(s)%2 != 0 {
		return s
	}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i += 2 {
		j := len(s) - i - 2
		out[i] = s[j]
		out[i+1] = s[j+1]
	}
	return string(out)
}

// MACFromUUID extracts the MAC address embedded in an all-zero-prefixed
// UUID ("00000000-0000-0000-0000-D4BED9A3E5E5"). Agents on hardware without
// a usable DMI UUID report this form. The fallback only applies when the
// leading groups are all zero.
func MACFromUUID(uuid string) (string, bool) {
	if len(uuid) != 36 {
		return "", false
	}
	if !strings.HasPrefix(uuid, "00000000-0000-0000-0000-") {
		return "", false
	}
	mac := uuid[24:]
	if strings.Trim(mac, "0") == "" {
		return "", false
	}
	return strings.ToUpper(mac), true
}
