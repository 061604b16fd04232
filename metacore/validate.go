package metacore

// DefaultFileRole is the role applied to uploads when none is given.
const DefaultFileRole = "001"

// ValidateDecryptionKey checks a hex decryption key as typed by a user: it
// must be 32, 48 or 64 hex characters (an AES-128/192/256 key). Valid input is
// returned unchanged.
func ValidateDecryptionKey(s string) (string, error) {
	for _, r := range s {
		if !isHex(r) {
			return "", usageError("decryption_key", nil, "string has non-hexadecimal characters")
		}
	}
	switch len(s) {
	case 32, 48, 64:
		return s, nil
	default:
		return "", usageError("decryption_key", nil,
			"key must be either 32, 48, or 64 characters long, in the hexadecimal-string representation")
	}
}

// ValidateFileRole checks that role is a three-digit policy tag.
func ValidateFileRole(role string) error {
	if len(role) != 3 {
		return usageError("file_role", nil, "role %q must be three digits", role)
	}
	for _, r := range role {
		if r < '0' || r > '9' {
			return usageError("file_role", nil, "role %q must be three digits", role)
		}
	}
	return nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
