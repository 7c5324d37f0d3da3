package enums

import "fmt"

// KeyClass classifies a content key as public (preview, image) or
// protected (digital).
type KeyClass string

const (
	KeyClassDigital KeyClass = "digital"
	KeyClassPreview KeyClass = "preview"
	KeyClassImage   KeyClass = "image"
)

var validKeyClasses = []KeyClass{
	KeyClassDigital,
	KeyClassPreview,
	KeyClassImage,
}

// IsValid reports whether the value matches the canonical key class enum.
func (k KeyClass) IsValid() bool {
	for _, candidate := range validKeyClasses {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsPublic reports whether keys of this class are served without an
// entitlement check.
func (k KeyClass) IsPublic() bool {
	return k == KeyClassPreview || k == KeyClassImage
}

// ParseKeyClass converts the raw string to KeyClass.
func ParseKeyClass(value string) (KeyClass, error) {
	for _, candidate := range validKeyClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid key class %q", value)
}
