package util

import (
	"errors"
	"fmt"
	"io"
)

const (
	// KB is the number of bytes in a kilobyte
	KB = 1024
	// MB is the number of bytes in a megabyte
	MB = 1024 * KB
	// GB is the number of bytes in a gigabyte
	GB = 1024 * MB
)

// ErrDataTooLarge is returned by CopyMax when the reader holds more than max bytes.
var ErrDataTooLarge = errors.New("data too large")

// CopyMax will copy until a certain point and error after that point
func CopyMax(writer io.Writer, it io.Reader, max int64) error {
	if _, err := io.CopyN(writer, it, max); err != nil {
		if err != io.EOF {
			return err
		}
		return nil
	}
	extra := make([]byte, 1)
	if n, _ := io.ReadFull(it, extra); n > 0 {
		return ErrDataTooLarge
	}
	return nil
}

// TruncateWithEllipsis truncates s to at most i runes, appending "..." when truncated.
func TruncateWithEllipsis(s string, i int) string {
	asRunes := []rune(s)
	if len(asRunes) > i {
		return string(asRunes[:i]) + "..."
	}
	return s
}

// InByteSizeFormat converts a number of bytes to a human-readable string
func InByteSizeFormat(bytes uint64) string {
	var unit string
	var size float64
	switch {
	case bytes >= GB:
		unit = "GB"
		size = float64(bytes) / GB
	case bytes >= MB:
		unit = "MB"
		size = float64(bytes) / MB
	case bytes >= KB:
		unit = "KB"
		size = float64(bytes) / KB
	default:
		unit = "B"
		size = float64(bytes)
	}

	return fmt.Sprintf("%.2f %s", size, unit)
}

// ErrorAs returns true if the error or any of its wrapped errors is of type T.
func ErrorAs[T error](err error) bool {
	var t T
	return errors.As(err, &t)
}

// Map applies a function to each element of a slice, returning a new slice of the same length.
func Map[T, U any](xs []T, f func(T) (U, error)) ([]U, error) {
	result := make([]U, len(xs))
	for i, x := range xs {
		it, err := f(x)
		if err != nil {
			return nil, err
		}
		result[i] = it
	}
	return result, nil
}

// MapWithoutError applies a pure function to each element of a slice.
func MapWithoutError[T, U any](xs []T, f func(T) U) []U {
	result := make([]U, len(xs))
	for i, x := range xs {
		result[i] = f(x)
	}
	return result
}

// FindFirst returns the first element of the slice satisfying the predicate.
func FindFirst[T any](xs []T, f func(T) bool) (T, bool) {
	for _, x := range xs {
		if f(x) {
			return x, true
		}
	}
	return *new(T), false
}

// Contains checks whether an item exists in a slice
func Contains[T comparable](s []T, item T) bool {
	for _, v := range s {
		if v == item {
			return true
		}
	}
	return false
}
