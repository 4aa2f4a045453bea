package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Виды ошибок, которые различает слой представления
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrStorageFailure     = errors.New("object storage operation failed")
	ErrPersistenceFailure = errors.New("database operation failed")
	ErrTransientNetwork   = errors.New("dependency timed out")
)

var (
	ErrOnlyVersion       = fmt.Errorf("%w: cannot delete the only version", ErrInvalidOperation)
	ErrEmptyFile         = fmt.Errorf("%w: file is empty", ErrInvalidOperation)
	ErrFileTooLarge      = fmt.Errorf("%w: file size exceeds maximum allowed size", ErrInvalidOperation)
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrInvalidOperation)
)

// Wrap помечает ошибку зависимости видом kind. Таймауты всегда
// получают вид ErrTransientNetwork.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTransientNetwork) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrTransientNetwork, err)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
