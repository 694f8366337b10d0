package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-directory-api/internal/service"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
	"github.com/noah-isme/sis-directory-api/pkg/export"
	"github.com/noah-isme/sis-directory-api/pkg/response"
)

// ImportHandler exposes bulk registration.
type ImportHandler struct {
	imports *service.ImportService
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService, csv *export.CSVExporter, pdf *export.PDFExporter) *ImportHandler {
	return &ImportHandler{imports: imports, csv: csv, pdf: pdf}
}

type bulkCreateRequest struct {
	Rows []service.ImportRow `json:"rows"`
}

// BulkCreate godoc
// @Summary Bulk-register people with batch-allocated codes
// @Tags Imports
// @Accept json
// @Produce json
// @Param payload body bulkCreateRequest true "Import rows"
// @Param slips query string false "Render credential slips (csv or pdf)"
// @Success 200 {object} response.Envelope
// @Router /imports/people [post]
func (h *ImportHandler) BulkCreate(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	results, err := h.imports.BulkCreate(c.Request.Context(), req.Rows)
	if err != nil {
		response.Error(c, err)
		return
	}

	created := 0
	for _, r := range results {
		if r.Created {
			created++
		}
	}

	switch c.Query("slips") {
	case "csv":
		data, err := h.csv.Render(slipDataset(results))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="credential-slips.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	case "pdf":
		data, err := h.pdf.Render(slipDataset(results), "Credential Slips")
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="credential-slips.pdf"`)
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		response.JSON(c, http.StatusOK, results, map[string]interface{}{
			"total":   len(results),
			"created": created,
			"failed":  len(results) - created,
		})
	}
}

func slipDataset(results []service.RowResult) export.Dataset {
	data := export.Dataset{Headers: []string{"Row", "Code", "Username", "Password", "Status"}}
	for _, r := range results {
		status := "created"
		if !r.Created {
			status = "failed"
			if r.Error != nil {
				status = "failed: " + r.Error.Code
			}
		}
		data.Rows = append(data.Rows, map[string]string{
			"Row":      fmt.Sprintf("%d", r.Index+1),
			"Code":     r.Code,
			"Username": r.Username,
			"Password": r.Password,
			"Status":   status,
		})
	}
	return data
}
