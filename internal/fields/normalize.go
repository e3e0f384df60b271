package fields

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// AmountFormat names the two numeric conventions this system disambiguates.
type AmountFormat string

const (
	// AmountFormatBelgian: '.' is the thousands separator, ',' the decimal mark.
	AmountFormatBelgian AmountFormat = "belgian"
	// AmountFormatEnglish: ',' is the thousands separator, '.' the decimal mark.
	AmountFormatEnglish AmountFormat = "english"
)

// DetectAmountFormat classifies a raw amount string. Any comma means the
// Belgian convention; everything else is treated as English.
func DetectAmountFormat(raw string) AmountFormat {
	if strings.Contains(raw, ",") {
		return AmountFormatBelgian
	}
	return AmountFormatEnglish
}

var currencyStripper = strings.NewReplacer(
	"€", "", "$", "", "£", "",
	"EUR", "", "eur", "", "USD", "", "usd", "", "GBP", "",
	" ", "", " ", "", "\t", "",
)

// StandardizeAmount converts a raw amount candidate into an exact decimal.
// Invoice amounts are money; binary floats are never acceptable here.
func StandardizeAmount(raw string, format AmountFormat) (decimal.Decimal, error) {
	s := currencyStripper.Replace(strings.TrimSpace(raw))
	if format == AmountFormatBelgian {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d, nil
}

// belgianDateRe matches DD-MM-YYYY / DD/MM/YYYY exactly.
var belgianDateRe = regexp.MustCompile(`^(\d{2})[-/](\d{2})[-/](\d{4})$`)

// StandardizeDate converts a raw date candidate to ISO YYYY-MM-DD. Belgian
// DD-MM-YYYY strings are reassigned positionally, without range-checking day
// or month: historical records were produced this way and changing it would
// alter output for ambiguous inputs. Anything else goes through a fuzzy
// parse. Unparsable input returns ok=false and is logged, never raised.
func StandardizeDate(raw string, logger *slog.Logger) (string, bool) {
	if logger == nil {
		logger = slog.Default()
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if m := belgianDateRe.FindStringSubmatch(raw); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1], true
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		logger.Warn("unparsable date candidate", "raw", raw, "error", err)
		return "", false
	}
	return t.Format("2006-01-02"), true
}
