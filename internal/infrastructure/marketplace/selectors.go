package marketplace

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Selectors are compiled once; cascadia.Selector satisfies goquery.Matcher.
// Each field lists its primary selector first, followed by fallbacks.
var (
	// Candidate blocks are keyed on the "is a search result" marker attribute.
	resultBlockSelector = cascadia.MustCompile(`div[data-component-type="s-search-result"]`)

	// Presentation-class fallback, only used when the marker finds nothing
	legacyResultBlockSelector = cascadia.MustCompile(`div.s-result-item[data-asin]`)

	titleSelectors = []cascadia.Selector{
		cascadia.MustCompile(`div[data-cy="title-recipe"] > a > h2 > span`),
		cascadia.MustCompile(`div[data-cy="title-recipe"] h2 span`),
		cascadia.MustCompile(`h2 a span`),
		cascadia.MustCompile(`h2 span`),
	}

	linkSelectors = []cascadia.Selector{
		cascadia.MustCompile(`div[data-cy="title-recipe"] > a[href]`),
		cascadia.MustCompile(`h2 > a[href]`),
		cascadia.MustCompile(`a[href]:has(h2)`),
	}

	coverImageSelectors = []cascadia.Selector{
		cascadia.MustCompile(`div[data-cy="image-container"] > div > span > a > div > img`),
		cascadia.MustCompile(`img.s-image`),
	}

	offscreenPriceSelectors = []cascadia.Selector{
		cascadia.MustCompile(`div[data-cy="price-recipe"] > div > div > a > span.a-price > span.a-offscreen`),
		cascadia.MustCompile(`span.a-price > span.a-offscreen`),
	}

	subscriptionBadgeSelector = cascadia.MustCompile(`span.apex-kindle-program-badge img[alt="Kindle Unlimited"]`)
	subscriptionRowSelector   = cascadia.MustCompile(`.a-row.a-size-small.a-color-secondary`)
	secondaryOfferSelector    = cascadia.MustCompile(`div[data-cy="secondary-offer-recipe"] .a-row.a-size-base.a-color-secondary`)
	priceWholeSelector        = cascadia.MustCompile(`span.a-price-whole`)
	priceFractionSelector     = cascadia.MustCompile(`span.a-price-fraction`)
)

// firstText returns the trimmed text of the first selector that yields
// non-empty text inside block.
func firstText(block *goquery.Selection, selectors []cascadia.Selector) string {
	for _, sel := range selectors {
		if text := normalizeSpace(block.FindMatcher(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the trimmed attribute value of the first selector whose
// first match carries a non-empty value for attr.
func firstAttr(block *goquery.Selection, selectors []cascadia.Selector, attr string) string {
	for _, sel := range selectors {
		found := ""
		block.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr(attr); ok {
				if v = normalizeSpace(v); v != "" {
					found = v
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}
