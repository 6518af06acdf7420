package controllers

import (
	"encoding/csv"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"recuperi_go/config"
	"recuperi_go/database"
	"recuperi_go/middleware"
	"recuperi_go/services"
	"recuperi_go/storage"
	"recuperi_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

type ImportController struct {
	importer *services.ImportService
	years    *services.SchoolYearService
}

func NewImportController() *ImportController {
	return &ImportController{
		importer: services.NewImportService(database.DB),
		years:    services.NewSchoolYearService(database.DB),
	}
}

// ImportBudgets loads teacher budget allowances from an uploaded CSV or XLSX (admin only)
func (ic *ImportController) ImportBudgets(c *fiber.Ctx) error {
	file, yearID, errResp := ic.acceptUpload(c)
	if errResp != nil {
		return errResp
	}

	rows, err := readUploadRows(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := ic.importer.ImportBudgets(rows, yearID)
	if err != nil {
		return handleServiceError(c, err)
	}

	ic.archiveUpload(c, file, "budgets")
	middleware.LogActivity(c, "IMPORT", "budgets", yearID, fiber.Map{
		"file":     file.Filename,
		"imported": result.Imported,
		"failed":   result.Failed,
	})

	status := fiber.StatusOK
	if !result.Success() {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{
		"message": fmt.Sprintf("Import completed: %d budgets imported, %d rows failed", result.Imported, result.Failed),
		"result":  result,
	})
}

// ImportActivities wipes and reloads a school year's activity registry from an upload (admin only)
func (ic *ImportController) ImportActivities(c *fiber.Ctx) error {
	file, yearID, errResp := ic.acceptUpload(c)
	if errResp != nil {
		return errResp
	}

	rows, err := readUploadRows(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := ic.importer.ImportActivities(rows, yearID)
	if err != nil {
		return handleServiceError(c, err)
	}

	ic.archiveUpload(c, file, "activities")
	middleware.LogActivity(c, "IMPORT", "activities", yearID, fiber.Map{
		"file":     file.Filename,
		"deleted":  result.Deleted,
		"imported": result.Imported,
		"failed":   result.Failed,
	})

	status := fiber.StatusOK
	if !result.Success() {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{
		"message": fmt.Sprintf("Import completed: %d existing activities replaced, %d imported, %d rows failed",
			result.Deleted, result.Imported, result.Failed),
		"result": result,
	})
}

// acceptUpload validates the multipart file and resolves the target school year.
func (ic *ImportController) acceptUpload(c *fiber.Ctx) (*multipart.FileHeader, uint, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, 0, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file uploaded"})
	}
	if file.Size > config.AppConfig.MaxFileSize {
		return nil, 0, c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "File exceeds the maximum allowed size",
		})
	}
	if !utils.IsValidFileExtension(file.Filename, []string{"csv", "xlsx"}) {
		return nil, 0, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported file type, expected .csv or .xlsx",
		})
	}

	var yearID uint
	if v := c.FormValue("school_year_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, 0, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid school_year_id"})
		}
		yearID = uint(parsed)
	} else {
		year, err := ic.years.Active()
		if err != nil {
			return nil, 0, handleServiceError(c, err)
		}
		yearID = year.ID
	}
	return file, yearID, nil
}

// archiveUpload pushes the original upload to S3 when archiving is enabled. Failure is logged, never surfaced.
func (ic *ImportController) archiveUpload(c *fiber.Ctx, file *multipart.FileHeader, kind string) {
	if !config.AppConfig.ArchiveImportFiles {
		return
	}
	svc, err := storage.NewStorageService()
	if err != nil {
		logrus.WithError(err).Warn("Import archive skipped: storage unavailable")
		return
	}
	var userID uint
	if claims, err := middleware.GetCurrentClaims(c); err == nil {
		userID = claims.UserID
	}
	if key, err := svc.ArchiveImportFile(file, kind, userID); err != nil {
		logrus.WithError(err).WithField("file", file.Filename).Warn("Failed to archive import file")
	} else {
		logrus.WithField("key", key).Info("Archived import file")
	}
}

// readUploadRows turns a CSV or XLSX upload into raw string rows.
func readUploadRows(file *multipart.FileHeader) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	if ext == ".xlsx" {
		wb, err := excelize.OpenReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
		}
		defer wb.Close()
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("spreadsheet has no sheets")
		}
		rows, err := wb.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
		}
		return rows, nil
	}

	// Registry exports use semicolon-separated CSV
	reader := csv.NewReader(src)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rows, nil
}
