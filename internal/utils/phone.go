package utils

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhone is returned for numbers that do not parse or are not
// valid for their region.
var ErrInvalidPhone = errors.New("invalid phone number")

var phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone formats raw as E.164.  Numbers without a leading "+" are
// read in defaultRegion, except those that already start with the region's
// country code (e.g. "2348012345678" for NG).
func NormalizePhone(raw, defaultRegion string) (string, error) {
	s := phoneNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidPhone
	}
	if !strings.HasPrefix(s, "+") {
		if cc := phonenumbers.GetCountryCodeForRegion(defaultRegion); cc > 0 {
			prefix := strconv.Itoa(cc)
			if strings.HasPrefix(s, prefix) && !strings.HasPrefix(s, "0") && len(s) > len(prefix)+7 {
				s = "+" + s
			}
		}
	}
	num, err := phonenumbers.Parse(s, defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
