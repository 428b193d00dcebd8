package gtfs

import "fmt"

// FeedFetchError reports a transport-level failure retrieving a feed.
// For the static feed it propagates to the caller; for the live feed it
// is logged and swallowed.
type FeedFetchError struct {
	URL string
	Err error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("fetching feed %s: %v", e.URL, e.Err)
}

func (e *FeedFetchError) Unwrap() error { return e.Err }

// FeedParseError reports a payload that could not be understood: a
// missing required table, a table without a parseable header row, or an
// undecodable protobuf message.
type FeedParseError struct {
	Source string
	Err    error
}

func (e *FeedParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Source, e.Err)
}

func (e *FeedParseError) Unwrap() error { return e.Err }
