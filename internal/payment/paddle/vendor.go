package paddle

import (
	"bytes"
	"encoding/json"
	"html/template"
	"sort"
	"strconv"

	"paygate/internal/payment"
	"paygate/internal/ui"
)

// SetupOptions mirrors Paddle.Setup.
type SetupOptions struct {
	VendorID      string
	Environment   payment.Environment
	EventCallback func(Event)
}

// CheckoutSettings mirrors Paddle.Checkout.open for an inline frame.
type CheckoutSettings struct {
	Title         string
	CustomMessage string
	Amount        float64
	Currency      string
	CustomData    map[string]string
	Locale        string
	DisplayMode   string
	FrameTarget   string
	FrameStyle    map[string]string
}

// Checkout is an open inline checkout frame.
type Checkout interface {
	ui.Element
	Close()
}

// Vendor is the client-side Paddle surface.
type Vendor interface {
	Setup(opts SetupOptions) error
	OpenCheckout(settings CheckoutSettings) (Checkout, error)
}

type VendorFactory func() Vendor

func DefaultVendor() Vendor {
	return &vendor{}
}

type vendor struct {
	setup SetupOptions
}

func (v *vendor) Setup(opts SetupOptions) error {
	v.setup = opts
	return nil
}

var frameTmpl = template.Must(template.New("frame").Parse(
	`<div class="paddle-checkout" data-vendor="{{.Vendor}}" data-environment="{{.Env}}"` +
		` data-display-mode="{{.Mode}}" data-locale="{{.Locale}}"` +
		` data-amount="{{.Amount}}" data-currency="{{.Currency}}" data-title="{{.Title}}"` +
		`{{if .Message}} data-message="{{.Message}}"{{end}}` +
		` data-custom="{{.Custom}}" style="{{range .Style}}{{.Prop}}: {{.Value}}; {{end}}"></div>`))

func (v *vendor) OpenCheckout(s CheckoutSettings) (Checkout, error) {
	custom, err := json.Marshal(s.CustomData)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = frameTmpl.Execute(&buf, map[string]interface{}{
		"Vendor":   v.setup.VendorID,
		"Env":      string(v.setup.Environment),
		"Mode":     s.DisplayMode,
		"Locale":   s.Locale,
		"Amount":   strconv.FormatFloat(s.Amount, 'f', -1, 64),
		"Currency": s.Currency,
		"Title":    s.Title,
		"Message":  s.CustomMessage,
		"Custom":   string(custom),
		"Style":    frameStyle(s.FrameStyle),
	})
	if err != nil {
		return nil, err
	}
	return &frame{html: template.HTML(buf.String())}, nil
}

type styleDecl struct {
	Prop  string
	Value string
}

// frameStyle orders declarations by property. The template escapes each
// property and value on its own, so unsafe input renders as ZgotmplZ.
func frameStyle(m map[string]string) []styleDecl {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]styleDecl, 0, len(keys))
	for _, k := range keys {
		out = append(out, styleDecl{Prop: k, Value: m[k]})
	}
	return out
}

type frame struct {
	html   template.HTML
	closed bool
}

func (f *frame) Kind() string { return "checkout" }

func (f *frame) HTML() template.HTML {
	if f.closed {
		return ""
	}
	return f.html
}

func (f *frame) Destroy() { f.closed = true }
func (f *frame) Close()   { f.closed = true }
