package custody

import (
	"time"

	"github.com/iov-one/custody/errors"
)

// UnixTime represents a point in time as POSIX time with seconds precision.
// Account layouts store it as a little endian int64.
type UnixTime int64

// Time returns a time.Time structure that represents the same moment in time.
func (t UnixTime) Time() time.Time {
	return time.Unix(int64(t), 0)
}

// IsZero returns true if this time represents a zero value.
func (t UnixTime) IsZero() bool {
	return t == 0
}

// Add modifies this UNIX time by given duration. This is compatible with
// time.Time.Add method.
func (t UnixTime) Add(d time.Duration) UnixTime {
	return t + UnixTime(d/time.Second)
}

// AddHours returns the time moved by given amount of hours. An error is
// returned if the result does not fit in the type.
func (t UnixTime) AddHours(hours uint64) (UnixTime, error) {
	const maxHours = (1<<63 - 1) / 3600
	if hours > maxHours {
		return 0, errors.Wrap(errors.ErrOverflow, "hours")
	}
	delta := int64(hours) * 3600
	if int64(t) > (1<<63-1)-delta {
		return 0, errors.Wrap(errors.ErrOverflow, "unlock time")
	}
	return t + UnixTime(delta), nil
}

// AsUnixTime converts given Time structure into its UNIX time representation.
func AsUnixTime(t time.Time) UnixTime {
	return UnixTime(t.Unix())
}

// Validate returns an error if this time value is invalid.
func (t UnixTime) Validate() error {
	if t < 0 {
		return errors.Wrap(errors.ErrState, "negative value")
	}
	return nil
}

// String returns the usual string representation of this time as the
// time.Time structure would.
func (t UnixTime) String() string {
	return t.Time().UTC().String()
}
