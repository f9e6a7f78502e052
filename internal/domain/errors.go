package domain

import "errors"

// Domain errors.
var (
	// ErrNoLinks is returned when a batch or upload has no URLs to work on.
	ErrNoLinks = errors.New("no links available")

	// ErrFetchFailed is returned when retrieving a URL failed after retries.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNoOutputFile is returned when the fetcher reported success but no file materialized.
	ErrNoOutputFile = errors.New("no output file produced")

	// ErrUnsupportedFile is returned when an upload is not an .xlsx spreadsheet.
	ErrUnsupportedFile = errors.New("unsupported file type, expected .xlsx")

	// ErrMissingColumn is returned when the spreadsheet has no video_link column.
	ErrMissingColumn = errors.New("spreadsheet is missing the video_link column")

	// ErrUnreadableSpreadsheet is returned when the spreadsheet cannot be parsed.
	ErrUnreadableSpreadsheet = errors.New("spreadsheet could not be read")

	// ErrFileNotFound is returned when a session file cannot be found.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFilename is returned for names that would escape the session directory.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrInvalidSession is returned when an operation is attempted without a session.
	ErrInvalidSession = errors.New("invalid session")
)

// FetchError wraps an error with the URL it belongs to.
type FetchError struct {
	URL string
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	if e.URL != "" {
		return e.Op + " [" + e.URL + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(url, op string, err error) *FetchError {
	return &FetchError{
		URL: url,
		Op:  op,
		Err: err,
	}
}
