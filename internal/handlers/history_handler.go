package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stocktrail/internal/analytics"
	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/export"
	"stocktrail/internal/models"
	"stocktrail/internal/period"
	"stocktrail/internal/services"
)

// HistoryHandler serves the inventory history and the analytics derived from it
type HistoryHandler struct {
	historyService services.HistoryServicer
	auditService   services.AuditServicer
	now            func() time.Time
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(historyService services.HistoryServicer, auditService services.AuditServicer) *HistoryHandler {
	return &HistoryHandler{historyService: historyService, auditService: auditService, now: time.Now}
}

// HistoryQuery filters the history listing
type HistoryQuery struct {
	Kind      string  `form:"kind" binding:"omitempty,record_kind"`
	ProductID *string `form:"product_id" binding:"omitempty,uuid"`
}

// TableQuery selects the kind of an itemized table
type TableQuery struct {
	Kind string `form:"kind" binding:"required,record_kind"`
}

// TopSellingQuery selects the grouping of the ranking
type TopSellingQuery struct {
	GroupBy string `form:"group_by" binding:"omitempty,group_by"`
}

// HistoryResponse lists records newest first
type HistoryResponse struct {
	Records []models.TransactionRecord `json:"records"`
	Count   int                        `json:"count"`
	Period  period.Range               `json:"period"`
}

// DailySummaryResponse is today's summary
type DailySummaryResponse struct {
	TotalBuyValue  float64 `json:"total_buy_value"`
	TotalSellValue float64 `json:"total_sell_value"`
	DailyProfit    float64 `json:"daily_profit"`
}

// MonthlySummaryResponse is the month-to-date summary
type MonthlySummaryResponse struct {
	TotalBuyValue  float64 `json:"total_buy_value"`
	TotalSellValue float64 `json:"total_sell_value"`
	MonthlyProfit  float64 `json:"monthly_profit"`
}

// SummaryResponse is the summary over a requested period
type SummaryResponse struct {
	analytics.Summary
	Period period.Range `json:"period"`
}

// TopSellingResponse is the top-selling ranking
type TopSellingResponse struct {
	Products []analytics.ProductSales `json:"products"`
	GroupBy  analytics.GroupBy        `json:"group_by"`
	Period   period.Range             `json:"period"`
}

// WeeklyResponse is the seven-day sales chart
type WeeklyResponse struct {
	Days   []analytics.DayBucket `json:"days"`
	Period period.Range          `json:"period"`
}

// GetHistory lists history records
// @Summary     List history records
// @Description Records newest first, filtered by period, kind and product
// @Tags        history
// @Produce     json
// @Security    BearerAuth
// @Param       period     query string false "day, 10days, thisMonth, lastMonth, last3Months, custom, all"
// @Param       startDate  query string false "Custom period start"
// @Param       endDate    query string false "Custom period end"
// @Param       kind       query string false "add, reduce, new_item, delete_item, edit_item"
// @Param       product_id query string false "Product ID"
// @Success     200 {object} HistoryResponse
// @Failure     400 {object} ErrorResponse "Invalid range or filter"
// @Router      /history [get]
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	r, err := bindPeriod(c, h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	filter := services.HistoryFilter{ProductID: q.ProductID}
	if q.Kind != "" {
		kind := models.RecordKind(q.Kind)
		filter.Kind = &kind
	}

	records, err := h.historyService.History(userID, r, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if records == nil {
		records = []models.TransactionRecord{}
	}

	c.JSON(http.StatusOK, HistoryResponse{Records: records, Count: len(records), Period: r})
}

// GetDailySummary returns today's totals
// @Summary     Daily summary
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} DailySummaryResponse
// @Router      /analytics/daily [get]
func (h *HistoryHandler) GetDailySummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	s, err := h.historyService.DailySummary(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, DailySummaryResponse{
		TotalBuyValue:  s.TotalBuyValue,
		TotalSellValue: s.TotalSellValue,
		DailyProfit:    s.Profit,
	})
}

// GetMonthlySummary returns totals from the first of the month to the end of today
// @Summary     Monthly summary
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MonthlySummaryResponse
// @Router      /analytics/monthly [get]
func (h *HistoryHandler) GetMonthlySummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	s, err := h.historyService.MonthlySummary(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MonthlySummaryResponse{
		TotalBuyValue:  s.TotalBuyValue,
		TotalSellValue: s.TotalSellValue,
		MonthlyProfit:  s.Profit,
	})
}

// GetSummary returns totals over a period
// @Summary     Summary over a period
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       period    query string false "Period name"
// @Param       startDate query string false "Custom period start"
// @Param       endDate   query string false "Custom period end"
// @Success     200 {object} SummaryResponse
// @Failure     400 {object} ErrorResponse "Invalid range"
// @Router      /analytics/summary [get]
func (h *HistoryHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	r, err := bindPeriod(c, h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	s, err := h.historyService.Summary(userID, r)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, SummaryResponse{Summary: s, Period: r})
}

// GetTopSelling ranks products by units sold
// @Summary     Top-selling products
// @Description Up to ten entries, most units sold first. group_by=name merges products sharing a name.
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       period    query string false "Period name, including month and 3months"
// @Param       startDate query string false "Custom period start"
// @Param       endDate   query string false "Custom period end"
// @Param       group_by  query string false "name (default) or product"
// @Success     200 {object} TopSellingResponse
// @Failure     400 {object} ErrorResponse "Invalid range"
// @Router      /analytics/top-selling [get]
func (h *HistoryHandler) GetTopSelling(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	r, err := bindPeriod(c, h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q TopSellingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	groupBy := analytics.GroupBy(q.GroupBy)
	if groupBy == "" {
		groupBy = analytics.GroupByName
	}

	products, err := h.historyService.TopSellers(userID, r, groupBy)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if products == nil {
		products = []analytics.ProductSales{}
	}

	c.JSON(http.StatusOK, TopSellingResponse{Products: products, GroupBy: groupBy, Period: r})
}

// GetTable returns the itemized table for one record kind
// @Summary     Itemized table
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       kind      query string true  "Record kind"
// @Param       period    query string false "Period name"
// @Param       startDate query string false "Custom period start"
// @Param       endDate   query string false "Custom period end"
// @Success     200 {object} analytics.Table
// @Failure     400 {object} ErrorResponse "Invalid kind or range"
// @Router      /analytics/table [get]
func (h *HistoryHandler) GetTable(c *gin.Context) {
	table, ok := h.table(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, table)
}

// ExportTable downloads the itemized table as a spreadsheet
// @Summary     Export itemized table
// @Tags        analytics
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       kind      query string true  "Record kind"
// @Param       period    query string false "Period name"
// @Param       startDate query string false "Custom period start"
// @Param       endDate   query string false "Custom period end"
// @Success     200 {file} file
// @Failure     400 {object} ErrorResponse "Invalid kind or range"
// @Router      /analytics/table/export [get]
func (h *HistoryHandler) ExportTable(c *gin.Context) {
	table, ok := h.table(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTable(&buf, table); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	userID, _ := getUserID(c)
	h.auditService.Log(userID, services.AuditExportTable, "inventory_history", "", c.ClientIP(),
		map[string]interface{}{"kind": table.Kind, "rows": len(table.Rows)})

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(table, h.now())+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *HistoryHandler) table(c *gin.Context) (analytics.Table, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return analytics.Table{}, false
	}

	var q TableQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidRecordKind, err.Error()))
		return analytics.Table{}, false
	}

	r, err := bindPeriod(c, h.now())
	if err != nil {
		respondWithError(c, err)
		return analytics.Table{}, false
	}

	table, err := h.historyService.Table(userID, r, models.RecordKind(q.Kind))
	if err != nil {
		respondWithError(c, err)
		return analytics.Table{}, false
	}
	return table, true
}

// GetWeekly returns daily sales and profit for one week
// @Summary     Weekly sales chart
// @Description Seven daily buckets, Sunday to Saturday, for the week containing startDate (default today)
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       startDate query string false "Any date within the week"
// @Success     200 {object} WeeklyResponse
// @Failure     400 {object} ErrorResponse "Invalid date"
// @Router      /analytics/weekly [get]
func (h *HistoryHandler) GetWeekly(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	now := h.now()
	anchor := now
	if s := c.Query("startDate"); s != "" {
		anchor, err = period.ParseDate(s, now.Location())
		if err != nil {
			respondWithError(c, err)
			return
		}
	}

	days, err := h.historyService.Weekly(userID, anchor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, WeeklyResponse{Days: days, Period: period.Week(anchor)})
}

// GetDashboard returns the landing view figures in one call
// @Summary     Dashboard
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.Dashboard
// @Router      /analytics/dashboard [get]
func (h *HistoryHandler) GetDashboard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	dashboard, err := h.historyService.Dashboard(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
