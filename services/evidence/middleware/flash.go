// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
)

// FlashCookie carries warnings across a redirect.
const FlashCookie = "evidence_flash"

// maxFlashes bounds the cookie size. Older warnings are dropped first.
const maxFlashes = 8

// flashState is the per-request view of the flash cookie.
type flashState struct {
	warnings []datatypes.Warning
}

// state returns the request's flash state, decoding the cookie on first use.
// An undecodable cookie is treated as empty.
func state(c *gin.Context) *flashState {
	if v, ok := c.Get(flashKey); ok {
		if st, ok := v.(*flashState); ok {
			return st
		}
	}
	st := &flashState{}
	if raw, err := c.Cookie(FlashCookie); err == nil && raw != "" {
		st.warnings = decodeFlashes(raw)
	}
	c.Set(flashKey, st)
	return st
}

func encodeFlashes(warnings []datatypes.Warning) (string, error) {
	data, err := json.Marshal(warnings)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeFlashes(raw string) []datatypes.Warning {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var warnings []datatypes.Warning
	if err := json.Unmarshal(data, &warnings); err != nil {
		return nil
	}
	return warnings
}

// AddFlash queues a warning for the next response of this client.
//
// # Description
//
// Used before a redirect: the warning is written to the flash cookie and
// shown by whichever handler calls ConsumeFlashes next.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//   - w: Warning to queue.
func AddFlash(c *gin.Context, w datatypes.Warning) {
	st := state(c)
	st.warnings = append(st.warnings, w)
	if len(st.warnings) > maxFlashes {
		st.warnings = st.warnings[len(st.warnings)-maxFlashes:]
	}

	value, err := encodeFlashes(st.warnings)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FlashCookie, value, 0, "/", "", false, true)
}

// ConsumeFlashes returns the queued warnings and clears them.
//
// # Outputs
//
//   - []datatypes.Warning: Queued warnings, never nil.
func ConsumeFlashes(c *gin.Context) []datatypes.Warning {
	st := state(c)
	warnings := st.warnings
	st.warnings = nil

	if _, err := c.Cookie(FlashCookie); err == nil {
		c.SetCookie(FlashCookie, "", -1, "/", "", false, true)
	}
	if warnings == nil {
		return []datatypes.Warning{}
	}
	return warnings
}
