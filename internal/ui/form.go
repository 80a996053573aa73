package ui

import (
	"bytes"
	"html/template"
)

// Ids used inside the rendered payment form.
const (
	FormID         = "payment-form"
	ElementSlot    = "payment-element"
	ErrorSlot      = "error-message"
	SubmitButtonID = "submit-button"
)

var formTmpl = template.Must(template.New("form").Parse(`<form id="{{.FormID}}">
  <div id="{{.ElementSlot}}"></div>
  <div id="{{.ErrorSlot}}" style="color: #df1b41; margin-top: 8px;"></div>
  <button type="submit" id="{{.SubmitButtonID}}" style="margin-top: 16px; padding: 8px 16px;">{{.Label}}</button>
</form>`))

// PaymentForm renders the form that hosts a vendor payment element.
func PaymentForm(buttonLabel string) (template.HTML, error) {
	if buttonLabel == "" {
		buttonLabel = "Pay"
	}
	var buf bytes.Buffer
	err := formTmpl.Execute(&buf, map[string]string{
		"FormID":         FormID,
		"ElementSlot":    ElementSlot,
		"ErrorSlot":      ErrorSlot,
		"SubmitButtonID": SubmitButtonID,
		"Label":          buttonLabel,
	})
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
