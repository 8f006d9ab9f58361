// Package form fills the signup and login forms from a record.
package form

import (
	"context"
	"fmt"

	"github.com/copyleftdev/authscry/internal/auth"
	"github.com/copyleftdev/authscry/internal/page"
	"github.com/copyleftdev/authscry/internal/selectors"
	"github.com/copyleftdev/authscry/internal/userdata"
)

// FieldError names the field whose interaction failed.
type FieldError struct {
	Field    string
	Selector string
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s (%s): %v", e.Field, e.Selector, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

type fieldKind int

const (
	text fieldKind = iota
	option
	checkbox
)

type field struct {
	name  string
	kind  fieldKind
	value string
	check bool
}

type fillOptions struct {
	terms    bool
	setTerms bool
}

type Option func(*fillOptions)

// WithTerms sets the terms checkbox to checked. Without it the checkbox is
// left untouched.
func WithTerms(checked bool) Option {
	return func(o *fillOptions) {
		o.terms = checked
		o.setTerms = true
	}
}

// FillSignup fills every signup field in page order. The first failing field
// aborts the fill.
func FillSignup(ctx context.Context, p page.Page, reg *selectors.Registry, u userdata.UserRecord, opts ...Option) error {
	var o fillOptions
	for _, opt := range opts {
		opt(&o)
	}

	fields := []field{
		{name: selectors.FirstName, kind: text, value: u.FirstName},
		{name: selectors.LastName, kind: text, value: u.LastName},
		{name: selectors.Email, kind: text, value: u.Email},
		{name: selectors.Password, kind: text, value: u.Password},
		{name: selectors.CountryCode, kind: option, value: u.CountryCode},
		{name: selectors.Phone, kind: text, value: u.Phone},
	}
	if o.setTerms {
		fields = append(fields, field{name: selectors.AgreeToTerms, kind: checkbox, check: o.terms})
	}
	return fill(ctx, p, reg, fields)
}

// FillLogin fills the login credentials.
func FillLogin(ctx context.Context, p page.Page, reg *selectors.Registry, email, password string) error {
	return fill(ctx, p, reg, []field{
		{name: selectors.Email, kind: text, value: email},
		{name: selectors.Password, kind: text, value: password},
	})
}

// Submit clicks the form's submit button.
func Submit(ctx context.Context, p page.Page, reg *selectors.Registry) error {
	return click(ctx, p, reg, selectors.Submit)
}

// Continue clicks the signup "Accept and Continue" button.
func Continue(ctx context.Context, p page.Page, reg *selectors.Registry) error {
	return click(ctx, p, reg, selectors.ContinueButton)
}

// CompleteTwoFactor enters the current TOTP code for secret and submits it.
func CompleteTwoFactor(ctx context.Context, p page.Page, reg *selectors.Registry, secret string) error {
	code, err := auth.GenerateTOTP(secret)
	if err != nil {
		return err
	}
	if err := fill(ctx, p, reg, []field{{name: selectors.OTP, kind: text, value: code}}); err != nil {
		return err
	}
	return Submit(ctx, p, reg)
}

func click(ctx context.Context, p page.Page, reg *selectors.Registry, name string) error {
	sel, err := reg.Get(name)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, sel); err != nil {
		return &FieldError{Field: name, Selector: sel, Err: err}
	}
	return nil
}

func fill(ctx context.Context, p page.Page, reg *selectors.Registry, fields []field) error {
	for _, f := range fields {
		sel, err := reg.Get(f.name)
		if err != nil {
			return err
		}

		switch f.kind {
		case text:
			err = p.Fill(ctx, sel, f.value)
		case option:
			err = p.SelectOption(ctx, sel, f.value)
		case checkbox:
			err = p.SetChecked(ctx, sel, f.check)
		}
		if err != nil {
			return &FieldError{Field: f.name, Selector: sel, Err: err}
		}
	}
	return nil
}
