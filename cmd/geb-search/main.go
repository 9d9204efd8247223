package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/fhsinchy/geb-deals/config"
	"github.com/fhsinchy/geb-deals/internal/app"
	"github.com/fhsinchy/geb-deals/internal/domain"
	"github.com/fhsinchy/geb-deals/internal/logging"
)

type options struct {
	Timeout     time.Duration `long:"timeout" short:"t" description:"Override the marketplace request timeout (e.g. 20s)"`
	Fingerprint string        `long:"fingerprint" description:"TLS fingerprint: chrome, firefox, safari or go"`
	Pretty      bool          `long:"pretty" short:"p" description:"Indent the JSON output"`
	Verbose     bool          `long:"verbose" short:"v" description:"Log extraction events to stderr"`

	Args struct {
		Query []string `positional-arg-name:"query" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] query..."

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	code, err := run(opts, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "geb-search: %v\n", err)
	}
	os.Exit(code)
}

// run performs one search and writes the products as JSON to out.
// It exits 1 when the search produced a cause, even if it is printed.
func run(opts options, out, errOut io.Writer) (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return 2, err
	}
	if opts.Timeout > 0 {
		cfg.Marketplace.Timeout = opts.Timeout
	}
	if opts.Fingerprint != "" {
		cfg.Marketplace.Fingerprint = opts.Fingerprint
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console", errOut)
	if err != nil {
		return 2, err
	}

	svc, err := app.NewSearchService(cfg, nil)
	if err != nil {
		return 2, err
	}

	ctx := logger.WithContext(context.Background())
	result, err := svc.Search(ctx, strings.Join(opts.Args.Query, " "))
	if err != nil {
		return 2, err
	}

	if err := writeProducts(out, result.Products, opts.Pretty); err != nil {
		return 2, err
	}

	if result.Cause != nil {
		zerolog.Ctx(ctx).Error().Err(result.Cause).Msg("Search failed")
		return 1, nil
	}
	return 0, nil
}

func writeProducts(w io.Writer, products []domain.Product, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(products)
}
