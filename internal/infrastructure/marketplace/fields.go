package marketplace

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// extractTitle returns the block's title, or "" when no selector matches
func extractTitle(block *goquery.Selection) string {
	return norm.NFC.String(firstText(block, titleSelectors))
}

// extractCoverImage returns the cover image source, or nil when missing
func extractCoverImage(block *goquery.Selection) *string {
	src := firstAttr(block, coverImageSelectors, "src")
	if src == "" {
		return nil
	}
	return &src
}

// extractHref returns the raw href of the title anchor
func extractHref(block *goquery.Selection) string {
	return firstAttr(block, linkSelectors, "href")
}

// gatherPriceFacts reads every node the price rules depend on
func gatherPriceFacts(block *goquery.Selection) PriceFacts {
	facts := PriceFacts{
		OffscreenText:        firstText(block, offscreenPriceSelectors),
		HasSubscriptionBadge: block.FindMatcher(subscriptionBadgeSelector).Length() > 0,
		SecondaryOfferText:   normalizeSpace(block.FindMatcher(secondaryOfferSelector).Text()),
		WholeText:            strings.TrimSpace(block.FindMatcher(priceWholeSelector).First().Text()),
		FractionText:         strings.TrimSpace(block.FindMatcher(priceFractionSelector).First().Text()),
	}

	block.FindMatcher(subscriptionRowSelector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if strings.Contains(normalizeSpace(row.Text()), subscriptionPhrase) {
			facts.HasSubscriptionPhrase = true
			return false
		}
		return true
	})

	return facts
}

// normalizeSpace trims s and collapses inner runs of whitespace
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
