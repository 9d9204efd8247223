package domain

import "context"

// DocumentFetcher retrieves the marketplace search-results page for a query
type DocumentFetcher interface {
	FetchSearchPage(ctx context.Context, query string) (*RawDocument, error)
}

// ProductExtractor turns a fetched results page into ordered product records
type ProductExtractor interface {
	Extract(ctx context.Context, doc *RawDocument) ([]Product, error)
}
