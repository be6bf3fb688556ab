package invoice

import (
	_ "embed"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

//go:embed invoice.html.tmpl
var pageSource string

var page = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(currency string, d decimal.Decimal) string {
		return currency + d.StringFixed(2)
	},
	"percent": func(rate decimal.Decimal) string {
		return rate.Mul(decimal.NewFromInt(100)).StringFixed(0)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"lower": strings.ToLower,
}).Parse(pageSource))

// Render writes inv as a printable HTML page. Line prices are shown net of
// tax and rounded to two places.
func Render(w io.Writer, inv *Invoice) error {
	if err := page.Execute(w, inv); err != nil {
		return errors.Wrap(err, "render invoice")
	}
	return nil
}
