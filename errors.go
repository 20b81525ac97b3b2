package outkit

import "github.com/pkg/errors"

var (
	// ErrConfiguration marks bad construction or bad values; it is never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrDeviceClosed is returned by any operation on a closed device.
	ErrDeviceClosed = errors.New("device closed")
	ErrNoChild      = errors.New("no such child device")
)

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
