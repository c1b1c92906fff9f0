package errors

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Exit statuses from sysexits.h, used by ExitCode.
const (
	ExitFailure     = 1
	ExitDataErr     = 65
	ExitUnavailable = 69
	ExitSoftware    = 70
	ExitIOErr       = 74
	ExitConfig      = 78
)

// FormatForCLI formats an error for terminal display: message, hint and
// code. Verbose output adds the cause and any details.
func FormatForCLI(err error, verbose bool) string {
	if err == nil {
		return ""
	}

	se, ok := As(err)
	if !ok {
		se = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", se.Message)
	if se.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", se.Suggestion)
	}
	if verbose {
		if se.Cause != nil && se.Cause.Error() != se.Message {
			fmt.Fprintf(&sb, "  Cause: %s\n", se.Cause.Error())
		}
		for _, k := range slices.Sorted(maps.Keys(se.Details)) {
			fmt.Fprintf(&sb, "  %s: %s\n", k, se.Details[k])
		}
	}
	fmt.Fprintf(&sb, "  Code: %s\n", se.Code)
	return sb.String()
}

// LogArgs describes err as slog attributes. A SynError in the chain adds
// its code, category, severity, retryability and details.
// It returns nil for a nil error.
func LogArgs(err error) []any {
	if err == nil {
		return nil
	}

	args := []any{slog.String("error", err.Error())}
	se, ok := As(err)
	if !ok {
		return args
	}

	args = append(args,
		slog.String("error_code", se.Code),
		slog.String("category", string(se.Category)),
		slog.String("severity", string(se.Severity)),
		slog.Bool("retryable", se.Retryable))
	if len(se.Details) > 0 {
		details := make([]any, 0, len(se.Details))
		for _, k := range slices.Sorted(maps.Keys(se.Details)) {
			details = append(details, slog.String(k, se.Details[k]))
		}
		args = append(args, slog.Group("details", details...))
	}
	return args
}

// ExitCode maps an error to a process exit status by category. Errors
// without a SynError in the chain exit with ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	se, ok := As(err)
	if !ok {
		return ExitFailure
	}
	switch se.Category {
	case CategoryConfig:
		return ExitConfig
	case CategoryIO:
		return ExitIOErr
	case CategoryProvider:
		return ExitUnavailable
	case CategoryValidation:
		return ExitDataErr
	default:
		return ExitSoftware
	}
}
