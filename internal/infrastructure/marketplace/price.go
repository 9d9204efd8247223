package marketplace

import (
	"regexp"
	"strings"

	"github.com/fhsinchy/geb-deals/internal/domain"
)

// zeroPriceSentinel is what the offscreen node reads for subscription and
// free listings alike.
const zeroPriceSentinel = "$0.00"

const subscriptionPhrase = "Free with Kindle Unlimited membership"

var (
	nonAmountCharsRegex = regexp.MustCompile(`[^0-9.]`)
	buyOutrightRegex    = regexp.MustCompile(`Or \$([\d,]+\.\d{2}) to buy`)
)

// PriceSource names the rule that resolved a price
type PriceSource string

const (
	PriceSourceOffscreen     PriceSource = "offscreen"
	PriceSourceZero          PriceSource = "zero"
	PriceSourceSubscription  PriceSource = "subscription"
	PriceSourceReconciled    PriceSource = "reconciled"
	PriceSourceWholeFraction PriceSource = "whole-fraction"
	PriceSourceUnparsed      PriceSource = "unparsed"
)

// PriceFacts is everything the price rules look at, read out of one block
type PriceFacts struct {
	OffscreenText         string
	HasSubscriptionBadge  bool
	HasSubscriptionPhrase bool
	SecondaryOfferText    string
	WholeText             string
	FractionText          string
}

// PriceResolution is the output of the price rules
type PriceResolution struct {
	Price                  *domain.Money
	IsSubscriptionIncluded bool
	SubscriptionBuyPrice   *domain.Money
	Source                 PriceSource
}

// priceRule inspects facts and the resolution built so far. It returns true
// when the price is final and no later rule should run.
type priceRule func(f PriceFacts, res *PriceResolution) bool

// priceRules are evaluated top to bottom; first success wins
var priceRules = []priceRule{
	applyOffscreenPrice,
	applyZeroPrice,
	applyReconciliation,
	applyWholeFraction,
}

// ResolvePrice runs the rule list over facts. It never fails: when no rule
// produces an amount the price stays nil.
func ResolvePrice(f PriceFacts) PriceResolution {
	var res PriceResolution
	for _, rule := range priceRules {
		if rule(f, &res) {
			return res
		}
	}
	res.Source = PriceSourceUnparsed
	return res
}

func applyOffscreenPrice(f PriceFacts, res *PriceResolution) bool {
	if f.OffscreenText == zeroPriceSentinel {
		return false
	}
	price, err := parseAmount(f.OffscreenText)
	if err != nil {
		return false
	}
	res.Price = price
	res.Source = PriceSourceOffscreen
	return true
}

func applyZeroPrice(f PriceFacts, res *PriceResolution) bool {
	if f.OffscreenText != zeroPriceSentinel {
		return false
	}

	res.Price = domain.ZeroMoney()
	if !f.HasSubscriptionBadge && !f.HasSubscriptionPhrase {
		res.Source = PriceSourceZero
		return true
	}

	res.IsSubscriptionIncluded = true
	res.Source = PriceSourceSubscription
	if match := buyOutrightRegex.FindStringSubmatch(f.SecondaryOfferText); match != nil {
		if buy, err := domain.ParseMoney(strings.ReplaceAll(match[1], ",", "")); err == nil {
			res.SubscriptionBuyPrice = buy
		}
	}
	return true
}

// applyReconciliation treats a captured buy price as the real price when no
// primary price was found.
func applyReconciliation(_ PriceFacts, res *PriceResolution) bool {
	if res.Price != nil || !res.IsSubscriptionIncluded || res.SubscriptionBuyPrice == nil {
		return false
	}
	res.Price = res.SubscriptionBuyPrice
	res.IsSubscriptionIncluded = false
	res.SubscriptionBuyPrice = nil
	res.Source = PriceSourceReconciled
	return true
}

func applyWholeFraction(f PriceFacts, res *PriceResolution) bool {
	if res.Price != nil {
		return false
	}

	// The whole part carries grouping separators and often a trailing "."
	whole := strings.NewReplacer(",", "", ".", "").Replace(strings.TrimSpace(f.WholeText))
	fraction := strings.TrimSpace(f.FractionText)
	if whole == "" || fraction == "" {
		return false
	}

	price, err := domain.ParseMoney(whole + "." + fraction)
	if err != nil {
		return false
	}
	res.Price = price
	res.Source = PriceSourceWholeFraction
	return true
}

// parseAmount strips everything but digits and the decimal point, then
// parses what is left. "$1,234.56" parses as 1234.56.
func parseAmount(text string) (*domain.Money, error) {
	cleaned := nonAmountCharsRegex.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil, domain.ErrNumericParse
	}
	return domain.ParseMoney(cleaned)
}
