// Package views renders the HTML pages as templ components.
package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/eduquest/internal/i18n"
	"github.com/pavelanni/eduquest/internal/model"
)

// out accumulates the first write error so page bodies stay linear.
type out struct {
	w   io.Writer
	err error
}

func (o *out) raw(s string) {
	if o.err != nil {
		return
	}
	_, o.err = io.WriteString(o.w, s)
}

func (o *out) text(s string) {
	o.raw(templ.EscapeString(s))
}

func (o *out) rawf(format string, args ...any) {
	o.raw(fmt.Sprintf(format, args...))
}

func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

// csrfField writes the hidden CSRF input every POST form carries.
func csrfField(ctx context.Context, o *out) {
	o.raw(`<input type="hidden" name="csrf_token" value="`)
	o.text(model.CSRFTokenFromContext(ctx))
	o.raw(`">`)
}

// postButton writes a one-button form posting to action.
func postButton(ctx context.Context, o *out, action, class, label string) {
	o.raw(`<form method="post" class="inline" action="`)
	o.text(path(ctx, action))
	o.raw(`">`)
	csrfField(ctx, o)
	o.raw(`<button type="submit" class="` + class + `">`)
	o.text(label)
	o.raw(`</button></form>`)
}

func formatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// Clock formats seconds as MM:SS.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// OptionLetter returns A for 0, B for 1 and so on.
func OptionLetter(idx int) string {
	return string(rune('A' + idx))
}

const styles = `
body{font-family:system-ui,sans-serif;background:#f8fafc;color:#1f2937;margin:0}
header{display:flex;justify-content:space-between;align-items:center;padding:1rem 2rem;background:#fff;border-bottom:1px solid #e5e7eb}
main{max-width:48rem;margin:2rem auto;padding:0 1rem}
.card{background:#fff;border:1px solid #e5e7eb;border-radius:1rem;padding:1.5rem;margin-bottom:1rem}
.timer{font-family:monospace;font-weight:700;font-size:1.2rem;padding:.4rem 1rem;border-radius:999px;background:#dbeafe;color:#2563eb}
.timer.urgent{background:#ffe4e6;color:#e11d48}
.bar{height:.5rem;background:#e5e7eb;border-radius:999px}.bar div{height:100%;background:#2563eb;border-radius:999px}
.option{display:flex;gap:1rem;width:100%;text-align:left;padding:1rem;margin:.5rem 0;border:2px solid #f3f4f6;border-radius:.75rem;background:#fff;cursor:pointer}
.option.chosen{border-color:#2563eb;background:#eff6ff}
.letter{font-weight:700}
.inline{display:inline}
.danger{color:#e11d48}
.error{color:#e11d48}
table{width:100%;border-collapse:collapse}td,th{text-align:left;padding:.4rem;border-bottom:1px solid #f3f4f6}
`

// page wraps body in the shared layout.
func page(title string, body func(ctx context.Context, o *out)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.raw(`<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		o.text(title)
		o.raw(` | `)
		o.text(appI18n.T(ctx, "AppTitle"))
		o.raw(`</title><style>` + styles + `</style></head><body><header><a href="`)
		o.text(path(ctx, "/"))
		o.raw(`"><strong>`)
		o.text(appI18n.T(ctx, "AppTitle"))
		o.raw(`</strong></a><span>`)
		o.raw(`<a href="?lang=vi">VI</a> | <a href="?lang=en">EN</a> `)
		if u := model.UserFromContext(ctx); u != nil {
			o.text(u.DisplayName)
			o.raw(` `)
			postButton(ctx, o, "/logout", "", appI18n.T(ctx, "Logout"))
		}
		o.raw(`</span></header><main>`)
		body(ctx, o)
		o.raw(`</main></body></html>`)
		return o.err
	})
}
