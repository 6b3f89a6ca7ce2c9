// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, ck := range cookies {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

// =============================================================================
// Session Tests
// =============================================================================

func TestSession_IssuesCookie(t *testing.T) {
	router := gin.New()
	router.Use(Session())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	ck := cookieNamed(w.Result().Cookies(), SessionCookie)
	require.NotNil(t, ck)
	assert.NoError(t, uuid.Validate(ck.Value))
	assert.Equal(t, ck.Value, w.Body.String())
	assert.True(t, ck.HttpOnly)
}

func TestSession_ReusesValidCookie(t *testing.T) {
	router := gin.New()
	router.Use(Session())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, id, w.Body.String())
	assert.Nil(t, cookieNamed(w.Result().Cookies(), SessionCookie), "no new cookie for a valid session")
}

func TestSession_ReplacesInvalidCookie(t *testing.T) {
	router := gin.New()
	router.Use(Session())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "../../etc"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEqual(t, "../../etc", w.Body.String())
	assert.NoError(t, uuid.Validate(w.Body.String()))
}

func TestSessionID_WithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", SessionID(c))
}

// =============================================================================
// Flash Tests
// =============================================================================

func flashRouter() *gin.Engine {
	router := gin.New()
	router.POST("/add", func(c *gin.Context) {
		AddFlash(c, datatypes.Warning{Type: datatypes.WarningTypeWarning, Header: "Warning!", Message: c.Query("m")})
		c.Redirect(http.StatusFound, "/show")
	})
	router.GET("/show", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"warnings": ConsumeFlashes(c)})
	})
	return router
}

func TestFlash_SurvivesRedirect(t *testing.T) {
	router := flashRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/add?m=first", nil))
	require.Equal(t, http.StatusFound, w.Code)
	flash := cookieNamed(w.Result().Cookies(), FlashCookie)
	require.NotNil(t, flash)

	req := httptest.NewRequest(http.MethodPost, "/add?m=second", nil)
	req.AddCookie(flash)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	flash = cookieNamed(w.Result().Cookies(), FlashCookie)
	require.NotNil(t, flash)

	req = httptest.NewRequest(http.MethodGet, "/show", nil)
	req.AddCookie(flash)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body struct {
		Warnings []datatypes.Warning `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Warnings, 2)
	assert.Equal(t, "first", body.Warnings[0].Message)
	assert.Equal(t, "second", body.Warnings[1].Message)

	cleared := cookieNamed(w.Result().Cookies(), FlashCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestConsumeFlashes_Empty(t *testing.T) {
	router := flashRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/show", nil))

	assert.JSONEq(t, `{"warnings":[]}`, w.Body.String())
	assert.Nil(t, cookieNamed(w.Result().Cookies(), FlashCookie))
}

func TestConsumeFlashes_GarbageCookie(t *testing.T) {
	router := flashRouter()
	req := httptest.NewRequest(http.MethodGet, "/show", nil)
	req.AddCookie(&http.Cookie{Name: FlashCookie, Value: "not-base64-json"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.JSONEq(t, `{"warnings":[]}`, w.Body.String())
}

func TestAddFlash_SameRequest(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	for i := 0; i < maxFlashes+3; i++ {
		AddFlash(c, datatypes.Warning{Message: string(rune('a' + i))})
	}
	got := ConsumeFlashes(c)
	require.Len(t, got, maxFlashes)
	assert.Equal(t, "d", got[0].Message, "oldest warnings are dropped")
	assert.Empty(t, ConsumeFlashes(c))
}

// =============================================================================
// RateLimit Tests
// =============================================================================

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(1, 2))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
			assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(0, 0))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

// =============================================================================
// RequestLogger Tests
// =============================================================================

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(RequestLogger(logger), Session())
	router.GET("/v1/genes", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/genes?page=2", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/broken", nil))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "/v1/genes", first["path"])
	assert.Equal(t, "/v1/genes", first["route"])
	assert.Equal(t, float64(200), first["status"])
	assert.NotEmpty(t, first["session"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, float64(500), second["status"])
}
