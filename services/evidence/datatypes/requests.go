// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requestValidate is the validator instance for request datatypes.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("notblank", validateNotBlank)
}

// validateNotBlank rejects strings made only of whitespace.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// =============================================================================
// Warnings
// =============================================================================

// Warning types, mirroring the severities shown to the user.
const (
	WarningTypeWarning = "warning"
	WarningTypeError   = "error"
	WarningTypeInfo    = "info"
)

// Warning is a user-visible notice attached to a response.
//
// # Description
//
// Warnings replace popup messages: malformed numeric input, expired
// downloads and documentation fallbacks all surface here instead of
// failing the request.
type Warning struct {
	Type    string `json:"type"`
	Header  string `json:"header"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// Lookup Requests
// =============================================================================

// GeneLookupRequest is the body of gene evidence and related-disease lookups.
// Gene may be a symbol ("ACE2") or a numeric gene id ("59272").
type GeneLookupRequest struct {
	Gene string `form:"gene" json:"gene" validate:"required,notblank,max=256"`
}

// Validate checks the request against its struct tags.
func (r *GeneLookupRequest) Validate() error {
	r.Gene = strings.TrimSpace(r.Gene)
	return requestValidate.Struct(r)
}

// DiseaseLookupRequest is the body of disease evidence and related-gene lookups.
// Disease may be a name ("Communicable Diseases") or an id ("C0009450").
type DiseaseLookupRequest struct {
	Disease string `form:"disease" json:"disease" validate:"required,notblank,max=256"`
}

// Validate checks the request against its struct tags.
func (r *DiseaseLookupRequest) Validate() error {
	r.Disease = strings.TrimSpace(r.Disease)
	return requestValidate.Struct(r)
}

// CorrelationRequest carries the raw correlation form values. They stay
// text because malformed input degrades to defaults with a warning
// instead of being rejected.
type CorrelationRequest struct {
	Rows       FormValue `form:"rows" json:"rows"`
	Occurrence FormValue `form:"occurrence" json:"occurrence"`
}

// FormValue is a raw form field. In JSON bodies it accepts a string or
// any other scalar, kept as its literal text: {"rows": 5} and
// {"rows": "5"} bind the same way. null is empty.
type FormValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
	default:
		*v = FormValue(data)
	}
	return nil
}

// DownloadRequest is the body of POST /download.
type DownloadRequest struct {
	NameFile string `form:"name_file" json:"name_file" validate:"omitempty,max=128,excludesall=/\\"`
}

// Validate checks the request against its struct tags.
func (r *DownloadRequest) Validate() error {
	return requestValidate.Struct(r)
}
