package marketplace

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/fhsinchy/geb-deals/internal/domain"
	"github.com/fhsinchy/geb-deals/internal/infrastructure/metrics"
)

// Skip reasons reported for blocks that produce no record
const (
	skipReasonStructuralMiss = "structural_miss"
	skipReasonPanic          = "panic"
)

// Field names used in fault events
const (
	fieldTitle = "title"
	fieldLink  = "link"
	fieldCover = "cover"
	fieldPrice = "price"
)

// blockFields are the extractors run against every candidate block
type blockFields struct {
	title func(*goquery.Selection) string
	href  func(*goquery.Selection) string
	cover func(*goquery.Selection) *string
	price func(*goquery.Selection) PriceFacts
}

var defaultBlockFields = blockFields{
	title: extractTitle,
	href:  extractHref,
	cover: extractCoverImage,
	price: gatherPriceFacts,
}

// ParserConfig holds configuration for the extraction pipeline
type ParserConfig struct {
	BaseURL        string
	TrackingParams []string
}

// Parser converts a results page into product records.
// It keeps no per-run state and is safe for concurrent use.
type Parser struct {
	links   *LinkCanonicalizer
	fields  blockFields
	metrics *metrics.Metrics
}

// NewParser creates a new extraction pipeline
func NewParser(cfg ParserConfig, m *metrics.Metrics) (*Parser, error) {
	params := cfg.TrackingParams
	if params == nil {
		params = DefaultTrackingParams
	}

	links, err := NewLinkCanonicalizer(cfg.BaseURL, params)
	if err != nil {
		return nil, err
	}

	return &Parser{links: links, fields: defaultBlockFields, metrics: m}, nil
}

// blockResult is the outcome of one candidate block: a product, or the
// reason the block was skipped. faults holds recovered extractor panics
// for optional fields that did not prevent the record.
type blockResult struct {
	product     domain.Product
	priceSource PriceSource
	cause       error
	faults      []error
}

// fieldFault is a panic recovered from a single field extractor
type fieldFault struct {
	field string
	value any
}

func (f *fieldFault) Error() string {
	return fmt.Sprintf("%s extractor panicked: %v", f.field, f.value)
}

func (f *fieldFault) Unwrap() error { return domain.ErrBlockProcessing }

// Extract parses doc and returns its products in document order.
// A page with no result blocks yields an empty, non-nil slice.
func (p *Parser) Extract(ctx context.Context, doc *domain.RawDocument) ([]domain.Product, error) {
	if doc == nil {
		return []domain.Product{}, nil
	}

	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return []domain.Product{}, fmt.Errorf("%w: %v", domain.ErrDocumentParse, err)
	}

	return p.ExtractDocument(ctx, root), nil
}

// ExtractDocument runs the pipeline over an already parsed document
func (p *Parser) ExtractDocument(ctx context.Context, root *goquery.Document) []domain.Product {
	log := zerolog.Ctx(ctx)
	blocks := locateBlocks(root.Selection)

	products := make([]domain.Product, 0, blocks.Length())
	blocks.Each(func(i int, block *goquery.Selection) {
		res := p.processBlock(block)
		for _, err := range append(res.faults, res.cause) {
			var fault *fieldFault
			if errors.As(err, &fault) {
				p.metrics.RecordFieldFault(fault.field)
				log.Warn().
					Int("block", i).
					Str("field", fault.field).
					Err(err).
					Msg("Result block field extractor failed")
			}
		}

		if res.cause != nil {
			reason := skipReasonStructuralMiss
			if errors.Is(res.cause, domain.ErrBlockProcessing) {
				reason = skipReasonPanic
			}
			p.metrics.RecordSkippedBlock(reason)
			log.Debug().
				Int("block", i).
				Str("outcome", "skipped").
				Str("reason", reason).
				Err(res.cause).
				Msg("Result block skipped")
			return
		}

		p.metrics.RecordProduct(string(res.priceSource))
		log.Debug().
			Int("block", i).
			Str("outcome", "extracted").
			Str("price_source", string(res.priceSource)).
			Bool("subscription", res.product.IsSubscriptionIncluded).
			Msg("Result block extracted")
		products = append(products, res.product)
	})

	log.Info().
		Int("blocks", blocks.Length()).
		Int("products", len(products)).
		Msg("Extraction finished")

	return products
}

// locateBlocks finds the candidate result blocks, falling back to the
// presentation-class selector only when the marker attribute is absent.
func locateBlocks(root *goquery.Selection) *goquery.Selection {
	blocks := root.FindMatcher(resultBlockSelector)
	if blocks.Length() > 0 {
		return blocks
	}

	return root.FindMatcher(legacyResultBlockSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		asin, _ := s.Attr("data-asin")
		return normalizeSpace(asin) != ""
	})
}

// processBlock extracts one record. Each field runs isolated so a panic
// in one extractor leaves the others intact; a fault in a required field
// skips the block, a fault in an optional one only leaves it empty.
func (p *Parser) processBlock(block *goquery.Selection) blockResult {
	var (
		title string
		link  string
		found bool
		image *string
		price = PriceResolution{Source: PriceSourceUnparsed}
	)

	titleErr := isolate(fieldTitle, func() { title = p.fields.title(block) })
	linkErr := isolate(fieldLink, func() { link, found = p.links.Canonicalize(p.fields.href(block)) })
	coverErr := isolate(fieldCover, func() { image = p.fields.cover(block) })
	priceErr := isolate(fieldPrice, func() { price = ResolvePrice(p.fields.price(block)) })

	switch {
	case titleErr != nil:
		return blockResult{cause: titleErr}
	case title == "":
		return blockResult{cause: fmt.Errorf("%w: title", domain.ErrStructuralMiss)}
	case linkErr != nil:
		return blockResult{cause: linkErr}
	case !found || link == "":
		return blockResult{cause: fmt.Errorf("%w: product link", domain.ErrStructuralMiss)}
	}

	var faults []error
	for _, err := range []error{coverErr, priceErr} {
		if err != nil {
			faults = append(faults, err)
		}
	}

	return blockResult{
		product: domain.Product{
			Title:                  title,
			Price:                  price.Price,
			CoverImageURL:          image,
			ProductLink:            link,
			IsSubscriptionIncluded: price.IsSubscriptionIncluded,
			SubscriptionBuyPrice:   price.SubscriptionBuyPrice,
		},
		priceSource: price.Source,
		faults:      faults,
	}
}

// isolate runs a single field extractor and returns a *fieldFault if it
// panics. The extractor's target keeps whatever it held before the panic.
func isolate(field string, extract func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &fieldFault{field: field, value: r}
		}
	}()
	extract()
	return nil
}
