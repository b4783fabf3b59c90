package session

import (
	"fmt"
	"regexp"
)

var (
	profileRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)
	nameRegexp    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// ValidateProfile checks that profile conforms to profile naming rules.
func ValidateProfile(profile string) error {
	if !profileRegexp.MatchString(profile) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", profile)
	}
	return nil
}

// ValidateName checks that an identity name can be used as a store key.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid user name %q: must match ^[A-Za-z0-9_-]{1,64}$", name)
	}
	return nil
}
