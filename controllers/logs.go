package controllers

import (
	"io"
	"strconv"

	"recuperi_go/database"
	"recuperi_go/models"
	"recuperi_go/services"

	"github.com/gofiber/fiber/v2"
)

type LogController struct {
	archives *services.LogArchiveService
}

func NewLogController(archives *services.LogArchiveService) *LogController {
	return &LogController{archives: archives}
}

// GetLogs lists audit log entries with filters (admin only)
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset := (page - 1) * limit

	query := database.DB.Model(&models.ActivityLog{})

	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if resource := c.Query("resource"); resource != "" {
		query = query.Where("resource = ?", resource)
	}
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	query.Count(&total)

	var logs []models.ActivityLog
	if err := query.Preload("User").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch logs",
		})
	}

	return c.JSON(fiber.Map{
		"logs": logs,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetArchives lists exported log archives (admin only)
func (lc *LogController) GetArchives(c *fiber.Ctx) error {
	archives, err := lc.archives.GetArchivedLogs()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch log archives",
		})
	}
	return c.JSON(fiber.Map{"archives": archives})
}

// DownloadArchive streams an archived log bundle from S3 (admin only)
func (lc *LogController) DownloadArchive(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid archive ID"})
	}

	body, fileName, err := lc.archives.DownloadArchivedLogs(uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Archive not found"})
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read archive",
		})
	}

	c.Set("Content-Type", "application/zip")
	c.Set("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	return c.Send(data)
}
