package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/export"
	"fintrack/internal/services"
)

// ExportHandler renders transactions and reports as downloadable files.
type ExportHandler struct {
	transactionService services.TransactionServicer
	reportService      services.ReportServicer
	auditService       services.AuditServicer
	now                func() time.Time
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(transactionService services.TransactionServicer, reportService services.ReportServicer, auditService services.AuditServicer) *ExportHandler {
	return &ExportHandler{
		transactionService: transactionService,
		reportService:      reportService,
		auditService:       auditService,
		now:                time.Now,
	}
}

// ExportTransactions streams the user's transactions in the requested format.
// @Summary     Export transactions
// @Description Download transactions in a date range as CSV, XLSX or PDF. Defaults to the current month.
// @Tags        export
// @Produce     octet-stream
// @Security    BearerAuth
// @Param       format    query string false "csv, xlsx or pdf (default csv)"
// @Param       from_date query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {file}   file "Export file"
// @Failure     400 {object} ErrorResponse "Invalid input or unsupported format"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /export/transactions [get]
func (h *ExportHandler) ExportTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, to, err := parseDateRange(c, h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	txs, err := h.transactionService.ListTransactions(userID, services.TransactionFilter{
		FromDate: &from,
		ToDate:   &to,
		SortAsc:  true,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTransactions(&buf, format, services.TransactionLines(txs)); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "EXPORT_TRANSACTIONS", "transaction", "", c.ClientIP(),
		map[string]interface{}{"format": format, "rows": len(txs)})

	base := fmt.Sprintf("transactions_%s_%s", from.Format(dateLayout), to.Format(dateLayout))
	sendFile(c, format, format.Filename(base), buf.Bytes())
}

// ExportReport renders the monthly report in the requested format.
// @Summary     Export monthly report
// @Description Download a monthly report with summary, category breakdown and transactions
// @Tags        export
// @Produce     octet-stream
// @Security    BearerAuth
// @Param       format query string false "xlsx or pdf (default pdf)"
// @Param       month  query string false "Report month as YYYY-MM (default current month)"
// @Success     200 {file}   file "Report file"
// @Failure     400 {object} ErrorResponse "Invalid input or unsupported format"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /export/report [get]
func (h *ExportHandler) ExportReport(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", string(services.DefaultReportFormat)))
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, _ := services.MonthRange(h.now().UTC())
	if v := c.Query("month"); v != "" {
		month, err = services.ParseReportMonth(v)
		if err != nil {
			respondWithError(c, err)
			return
		}
	}

	report, err := h.reportService.BuildMonthlyReport(c.Request.Context(), userID, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReport(&buf, format, report); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "EXPORT_REPORT", "report", month.Format(services.ReportMonthLayout), c.ClientIP(),
		map[string]interface{}{"format": format})

	sendFile(c, format, format.Filename("report_"+month.Format(services.ReportMonthLayout)), buf.Bytes())
}

func sendFile(c *gin.Context, format export.Format, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.ContentType(), body)
}

// EmailReportRequest asks for a monthly report delivered by email.
type EmailReportRequest struct {
	Month  string `json:"month" binding:"required"`
	Format string `json:"format" binding:"omitempty,export_format"`
}

// EmailReport queues a monthly report for email delivery.
// @Summary     Email a monthly report
// @Description Queue a report request on the broker. The report worker renders and mails it.
// @Tags        export
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body EmailReportRequest true "Month and format"
// @Success     202 {object} services.ReportRequest "Queued request"
// @Failure     400 {object} ErrorResponse "Invalid input or unsupported format"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Broker unavailable"
// @Router      /reports/email [post]
func (h *ExportHandler) EmailReport(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req EmailReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	month, err := services.ParseReportMonth(req.Month)
	if err != nil {
		respondWithError(c, err)
		return
	}
	format := services.DefaultReportFormat
	if req.Format != "" {
		format = export.Format(req.Format)
	}

	queued, err := h.reportService.RequestEmailReport(c.Request.Context(), userID, month, format)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REQUEST_REPORT", "report", queued.MessageID, c.ClientIP(),
		map[string]interface{}{"month": queued.Month, "format": queued.Format})

	c.JSON(http.StatusAccepted, gin.H{"report": queued})
}
