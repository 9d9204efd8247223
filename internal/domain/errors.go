package domain

import "errors"

var (
	// ErrFetchFailure is returned when the results page could not be fetched
	// (transport error, timeout or non-2xx status)
	ErrFetchFailure = errors.New("marketplace fetch failed")

	// ErrInvalidQuery is returned when the search query is missing or unusable
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrStructuralMiss marks a block that lacks a required field (title or link)
	ErrStructuralMiss = errors.New("required field not found in result block")

	// ErrNumericParse is returned when price text cannot be parsed as an amount
	ErrNumericParse = errors.New("unparseable currency amount")

	// ErrBlockProcessing marks an unexpected fault while extracting one block
	ErrBlockProcessing = errors.New("result block processing failed")

	// ErrDocumentParse is returned when the fetched markup cannot be parsed at all
	ErrDocumentParse = errors.New("results document could not be parsed")

	// ErrRateLimited is returned when a caller exceeds its request budget
	ErrRateLimited = errors.New("rate limit exceeded")
)
