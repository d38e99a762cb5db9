package pagination

import "errors"

var (
	// ErrInvalidArgument is returned before any network call when a request,
	// keyword group, match condition or output format is malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyResult is returned when a result holds no items but the caller
	// needs the first or last one.
	ErrEmptyResult = errors.New("empty result")

	// ErrPageLimit is returned when MaxPages pages were fetched and the server
	// still advertised a next page.
	ErrPageLimit = errors.New("page limit reached")

	// ErrDecode is returned when a page body is not a valid page document.
	ErrDecode = errors.New("decode page")
)
