package stripe

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"sort"
	"strings"

	"github.com/stripe/stripe-go/v81"

	"paygate/internal/ui"
)

// ElementsOptions configures an Elements group.
type ElementsOptions struct {
	ClientSecret string
	Appearance   map[string]string
	Locale       string
}

// ElementOptions configures a single element.
type ElementOptions struct {
	Layout       string
	BillingName  string
	BillingEmail string
	BillingPhone string
}

// Elements creates mountable UI elements bound to one client secret.
type Elements interface {
	Create(kind string, opts ElementOptions) (ui.Element, error)
}

// Vendor is the client-side Stripe surface: element creation plus intent
// confirmation.
type Vendor interface {
	Elements(opts ElementsOptions) Elements
	ConfirmPayment(ctx context.Context, clientSecret, returnURL string) error
	RetrievePaymentIntent(ctx context.Context, clientSecret string) (*stripe.PaymentIntent, error)
}

// VendorFactory builds a Vendor from the publishable and secret keys.
type VendorFactory func(publicKey, secretKey string) (Vendor, error)

// DefaultVendor is the VendorFactory backed by stripe-go.
func DefaultVendor(publicKey, secretKey string) (Vendor, error) {
	if publicKey == "" {
		return nil, errors.New("stripe publishable key is required")
	}
	return &vendor{publicKey: publicKey, api: NewAPI(secretKey)}, nil
}

type vendor struct {
	publicKey string
	api       API
}

func (v *vendor) Elements(opts ElementsOptions) Elements {
	return &elements{publicKey: v.publicKey, opts: opts}
}

func (v *vendor) ConfirmPayment(ctx context.Context, clientSecret, returnURL string) error {
	params := &stripe.PaymentIntentConfirmParams{}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	pi, err := v.api.ConfirmPaymentIntent(ctx, intentIDFromSecret(clientSecret), params)
	if err != nil {
		return errors.New(stripeErrorMessage(err))
	}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return errors.New(pi.LastPaymentError.Msg)
	}
	return nil
}

func (v *vendor) RetrievePaymentIntent(ctx context.Context, clientSecret string) (*stripe.PaymentIntent, error) {
	pi, err := v.api.GetPaymentIntent(ctx, intentIDFromSecret(clientSecret))
	if err != nil {
		return nil, errors.New(stripeErrorMessage(err))
	}
	return pi, nil
}

type elements struct {
	publicKey string
	opts      ElementsOptions
}

var elementTmpl = template.Must(template.New("element").Parse(
	`<div class="stripe-element" data-element="{{.Kind}}" data-key="{{.Key}}"` +
		`{{if .Secret}} data-client-secret="{{.Secret}}"{{end}}` +
		`{{if .Layout}} data-layout="{{.Layout}}"{{end}}` +
		`{{if .Locale}} data-locale="{{.Locale}}"{{end}}` +
		`{{if .Appearance}} data-appearance="{{.Appearance}}"{{end}}` +
		`{{if .Name}} data-billing-name="{{.Name}}"{{end}}` +
		`{{if .Email}} data-billing-email="{{.Email}}"{{end}}` +
		`{{if .Phone}} data-billing-phone="{{.Phone}}"{{end}}></div>`))

func (e *elements) Create(kind string, opts ElementOptions) (ui.Element, error) {
	var buf bytes.Buffer
	err := elementTmpl.Execute(&buf, map[string]interface{}{
		"Kind":       kind,
		"Key":        e.publicKey,
		"Secret":     e.opts.ClientSecret,
		"Layout":     opts.Layout,
		"Locale":     e.opts.Locale,
		"Appearance": encodeAppearance(e.opts.Appearance),
		"Name":       opts.BillingName,
		"Email":      opts.BillingEmail,
		"Phone":      opts.BillingPhone,
	})
	if err != nil {
		return nil, err
	}
	return &element{kind: kind, html: template.HTML(buf.String())}, nil
}

// encodeAppearance flattens appearance variables into "key:value;" pairs in
// key order.
func encodeAppearance(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + ":" + m[k] + ";")
	}
	return b.String()
}

type element struct {
	kind      string
	html      template.HTML
	destroyed bool
}

func (e *element) Kind() string { return e.kind }

func (e *element) HTML() template.HTML {
	if e.destroyed {
		return ""
	}
	return e.html
}

func (e *element) Destroy() { e.destroyed = true }
