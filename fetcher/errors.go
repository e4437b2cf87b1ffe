package fetcher

import "fmt"

// SourceError reports a failure of one upstream endpoint. Other endpoints of the
// same source keep being fetched.
type SourceError struct {
	Source string
	URL    string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s failed to fetch %s with %v", e.Source, e.URL, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
