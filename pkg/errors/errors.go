package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath  = fmt.Errorf("config file path cannot be empty")
	ErrConfigNotFound   = fmt.Errorf("config file not found")
	ErrConfigParse      = fmt.Errorf("failed to parse config")
	ErrConfigValidation = fmt.Errorf("invalid configuration")
	ErrConfigEncode     = fmt.Errorf("failed to encode config")
	ErrConfigDirectory  = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate = fmt.Errorf("failed to create config file")
	ErrSourceNotFound   = fmt.Errorf("source not found in configuration")
	ErrPatternNotFound  = fmt.Errorf("pattern not found in configuration")

	// Discovery errors.
	ErrUnexpectedStatus     = fmt.Errorf("unexpected status code")
	ErrUnsupportedTransport = fmt.Errorf("unsupported transport")

	// Queue errors.
	ErrQueueClosed      = fmt.Errorf("queue is closed")
	ErrQueueUnavailable = fmt.Errorf("queue backend unavailable")

	// Download errors.
	ErrDownloadFailed = fmt.Errorf("download failed")
	ErrInvalidPath    = fmt.Errorf("invalid path")

	// Hook errors.
	ErrHookScript = fmt.Errorf("hook script error")

	// Scheduler errors.
	ErrInvalidSchedule = fmt.Errorf("invalid schedule")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
