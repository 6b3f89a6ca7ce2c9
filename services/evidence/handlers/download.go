// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/export"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/middleware"
)

// Download failure messages.
const (
	MsgDownloadMissingName = "Error in downloading the table, please try reloading the page!"
	MsgDownloadCacheMiss   = "I could not get the table to let you download it, please try reloading the page!"

	detailsMissingName = "\"name_file\" not found in the forms. It means that the page that " +
		"requested the download did not send any value."
)

// Download streams a dataset file or the session's last computed table.
//
// # Description
//
// Serves POST /download with the form field "name_file":
//
//  1. Missing or empty name_file: redirect back with a warning.
//  2. name_file is a configured dataset file name: send that file.
//  3. Otherwise: send the session's cached table as "<name_file>.tsv".
//     No cached table (never computed or expired): redirect back with a
//     warning asking the user to reload the page.
//
// "Back" is the path of the Referer header. Without a Referer the warning
// is returned as JSON instead (400 or 404).
//
// # Inputs
//
//   - exports: Per-session table cache.
//   - files: Dataset files that may be downloaded by name.
func Download(exports *Exports, files []DatasetFile) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DownloadRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := req.Validate(); err != nil {
			badRequest(c, err)
			return
		}

		if req.NameFile == "" {
			redirectBack(c, http.StatusBadRequest, datatypes.Warning{
				Type:    datatypes.WarningTypeWarning,
				Header:  headerSomethingWrong,
				Message: MsgDownloadMissingName,
				Details: detailsMissingName,
			})
			return
		}

		if f, ok := findDataset(files, req.NameFile); ok {
			c.FileAttachment(f.Path, f.Name())
			return
		}

		table, err := exports.lookup(c)
		if err != nil {
			redirectBack(c, http.StatusNotFound, datatypes.Warning{
				Type:    datatypes.WarningTypeWarning,
				Header:  headerSomethingWrong,
				Message: MsgDownloadCacheMiss,
				Details: fmt.Sprintf("%q was not found or the data was not in the cache!", req.NameFile),
			})
			return
		}

		c.Header("Content-Disposition", export.ContentDisposition(req.NameFile))
		c.Header("Content-Type", export.ContentType)
		c.Status(http.StatusOK)
		if err := export.WriteTSV(c.Writer, table); err != nil {
			_ = c.Error(err)
		}
	}
}

// redirectBack queues w and redirects to the referring page. Only the path
// and query of the Referer are used, so the redirect stays on this host.
func redirectBack(c *gin.Context, status int, w datatypes.Warning) {
	target := refererPath(c.Request.Referer())
	if target == "" {
		c.JSON(status, gin.H{"error": w.Message, "warnings": []datatypes.Warning{w}})
		return
	}
	middleware.AddFlash(c, w)
	c.Redirect(http.StatusFound, target)
}

func refererPath(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.RequestURI()
}
