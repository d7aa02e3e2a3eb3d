package sponsorfile

import "errors"

var (
	// ErrDecode wraps YAML syntax and shape errors.
	ErrDecode = errors.New("decode sponsor file")
	// ErrEmpty is returned when a file declares no sponsors at all.
	ErrEmpty = errors.New("sponsor file has no entries")
)
