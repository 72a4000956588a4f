package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrQuotaExhausted is returned when the remaining API quota is below the hard floor.
	ErrQuotaExhausted = errors.New("remote api quota exhausted")
	// ErrUnsupportedSource is returned for catalog entries without a known source variant.
	ErrUnsupportedSource = errors.New("unsupported source type")
	// ErrAssetNotFound is returned when an entry carries no installable asset.
	ErrAssetNotFound = errors.New("installable asset not found")
)

// NetworkError wraps transport, DNS and HTTP failures.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ExtractionError is returned once every extraction attempt has failed.
type ExtractionError struct {
	Archive  string
	Target   string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract %s to %s after %d attempts: %v", e.Archive, e.Target, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// SecurityError reports an archive entry that would be written outside the target directory.
type SecurityError struct {
	Entry  string
	Target string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("archive entry %q would expand outside %s", e.Entry, e.Target)
}

// MetadataParseError reports an install directory whose metadata file could not be read.
type MetadataParseError struct {
	Path string
	Err  error
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("could not parse %s: %v", e.Path, e.Err)
}

func (e *MetadataParseError) Unwrap() error {
	return e.Err
}

// IsSecurityError reports whether err carries a SecurityError.
func IsSecurityError(err error) bool {
	var se *SecurityError
	return errors.As(err, &se)
}

func formatError(es []error) string {
	if len(es) == 1 {
		return fmt.Sprintf("1 error occurred:\n\t* %s", es[0])
	}

	points := make([]string, len(es))
	for i, err := range es {
		points[i] = fmt.Sprintf("* %s", err)
	}

	return fmt.Sprintf(
		"%d errors occurred:\n\t%s",
		len(es), strings.Join(points, "\n\t"))
}

func FormatErrorOrNil(err *multierror.Error) error {
	if err != nil {
		err.ErrorFormat = formatError
	}
	return err.ErrorOrNil()
}
