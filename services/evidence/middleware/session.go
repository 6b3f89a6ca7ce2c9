// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the evidence service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestLogger ──► Session ──► RateLimit (/v1, /download)
//	                     │              │
//	                     │              ▼
//	                     │          Handler (SessionID, AddFlash, ConsumeFlashes)
//	                     │
//	                     ├─► read or issue "evidence_session" cookie
//	                     └─► store session id in context
//
// The session id keys the export cache: each browser downloads the last
// table it computed, never another client's.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// =============================================================================
// Context Keys
// =============================================================================

const (
	// SessionCookie is the cookie holding the client's session id.
	SessionCookie = "evidence_session"

	sessionKey = "evidence_session_id"
	flashKey   = "evidence_flash_state"
)

// sessionMaxAge keeps the session cookie for a week.
const sessionMaxAge = 7 * 24 * 60 * 60

// =============================================================================
// Session
// =============================================================================

// Session ensures every request carries a session id.
//
// # Description
//
// Reads the session cookie. When it is missing or does not hold a UUID, a
// new UUID is issued and set on the response. The id is stored in the Gin
// context for SessionID.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware to install before the handlers.
//
// # Thread Safety
//
// Safe for concurrent use.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", false, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID returns the session id stored by Session, or "" when the
// middleware did not run.
func SessionID(c *gin.Context) string {
	v, ok := c.Get(sessionKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
