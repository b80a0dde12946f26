package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/portfolio-tracker/internal/services"
)

type BackupHandler struct {
	backup    *services.BackupService
	snapshots *services.SnapshotService
}

func NewBackupHandler(backup *services.BackupService, snapshots *services.SnapshotService) *BackupHandler {
	return &BackupHandler{
		backup:    backup,
		snapshots: snapshots,
	}
}

// Backup serves the full state as a downloadable JSON document.
func (h *BackupHandler) Backup(c *gin.Context) {
	doc, filename, err := h.backup.Export()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", data)
}

// Restore replaces the whole state with an uploaded backup document.
func (h *BackupHandler) Restore(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := h.backup.Restore(data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.snapshots.EnsureTodaySnapshot(); err != nil {
		c.JSON(http.StatusOK, gin.H{"restored": true, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": true})
}
