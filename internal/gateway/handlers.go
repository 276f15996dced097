package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hrportal/internal/apiclient"
	"hrportal/internal/auth"
	"hrportal/internal/envelope"
	"hrportal/internal/liststore"
	"hrportal/internal/notification"
	"hrportal/internal/worksystem"
)

const storesKey = "stores"

type handlers struct {
	sessions      *Sessions
	notifications *notification.API
	templates     *worksystem.API
	log           zerolog.Logger
}

type pageQuery struct {
	Page int `form:"page" binding:"omitempty,min=1"`
	Size int `form:"size" binding:"omitempty,min=1,max=100"`
}

type historyQuery struct {
	pageQuery
	StartDate string `form:"startDate" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" binding:"omitempty,datetime=2006-01-02"`
}

type inboxQuery struct {
	pageQuery
	Tab     string `form:"tab" binding:"omitempty,oneof=ALL PENDING REFERENCE COMPLETED"`
	Keyword string `form:"keyword"`
}

type settingsResponse struct {
	Settings                notification.Settings `json:"settings"`
	AllNotificationsEnabled bool                  `json:"allNotificationsEnabled"`
}

func (h *handlers) withStores(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return
	}
	st, err := h.sessions.For(claims)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(storesKey, st)
	c.Next()
}

func storesFrom(c *gin.Context) *Stores {
	return c.MustGet(storesKey).(*Stores)
}

func (h *handlers) attendancePersonal(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st := storesFrom(c).Attendance
	if q.Size > 0 {
		st.SetPageSize(q.Size)
	}
	if err := st.FetchPersonal(c.Request.Context(), q.Page); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st.Snapshot())
}

func (h *handlers) vacationHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rawEmployee, hasEmployee := c.GetQuery("employeeId")
	var employeeID *int64
	if hasEmployee && rawEmployee != "" {
		id, err := strconv.ParseInt(rawEmployee, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "employeeId must be a number"})
			return
		}
		employeeID = &id
	}

	// The store is only touched once every field has parsed.
	st := storesFrom(c).Vacation
	_, hasStart := c.GetQuery("startDate")
	_, hasEnd := c.GetQuery("endDate")
	if hasStart || hasEnd {
		st.SetFilterDates(q.StartDate, q.EndDate)
	}
	if hasEmployee {
		st.SetEmployeeID(employeeID)
	}
	if q.Size > 0 {
		st.SetPageSize(q.Size)
	}

	if err := st.FetchVacationHistory(c.Request.Context(), q.Page); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st.Snapshot())
}

func (h *handlers) resetVacationFilters(c *gin.Context) {
	st := storesFrom(c).Vacation
	if err := st.ResetFilters(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st.Snapshot())
}

func (h *handlers) approvalInbox(c *gin.Context) {
	var q inboxQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st := storesFrom(c).Inbox
	if _, ok := c.GetQuery("tab"); ok {
		st.SetTab(q.Tab)
	}
	if _, ok := c.GetQuery("keyword"); ok {
		st.SetKeyword(q.Keyword)
	}
	if q.Size > 0 {
		st.SetPageSize(q.Size)
	}
	if err := st.FetchInbox(c.Request.Context(), q.Page); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st.Snapshot())
}

func (h *handlers) organizationChart(c *gin.Context) {
	st := storesFrom(c).Organization
	if err := st.LoadOrganizationChart(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Msg("organization chart unavailable")
		c.JSON(http.StatusBadGateway, gin.H{"error": st.Snapshot().LastError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizationChart": st.Snapshot().Chart})
}

func (h *handlers) departmentHistory(c *gin.Context) {
	id, ok := employeeParam(c)
	if !ok {
		return
	}
	st := storesFrom(c).Organization
	if err := st.LoadDepartmentHistory(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deptHistoryList": st.Snapshot().DeptHistory})
}

func (h *handlers) gradeHistory(c *gin.Context) {
	id, ok := employeeParam(c)
	if !ok {
		return
	}
	st := storesFrom(c).Organization
	if err := st.LoadGradeHistory(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gradeHistoryList": st.Snapshot().GradeHist})
}

func employeeParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return 0, false
	}
	return id, true
}

func (h *handlers) getSettings(c *gin.Context) {
	st := storesFrom(c)
	if err := st.EnsureSettingsLoaded(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settingsBody(st.Settings))
}

func (h *handlers) putSettings(c *gin.Context) {
	st := storesFrom(c)
	if err := st.EnsureSettingsLoaded(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	patch, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if err := st.Settings.Apply(patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.save(c, st.Settings)
}

func (h *handlers) putAllSettings(c *gin.Context) {
	var body struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st := storesFrom(c)
	if err := st.EnsureSettingsLoaded(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	st.Settings.SetAllNotificationsEnabled(*body.Enabled)
	h.save(c, st.Settings)
}

func (h *handlers) resetSettings(c *gin.Context) {
	st := storesFrom(c)
	st.Settings.ResetSettings()
	h.save(c, st.Settings)
}

func (h *handlers) save(c *gin.Context, s *notification.SettingsStore) {
	if err := s.SaveSettings(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, settingsBody(s))
}

func settingsBody(s *notification.SettingsStore) settingsResponse {
	return settingsResponse{
		Settings:                s.Settings(),
		AllNotificationsEnabled: s.AllNotificationsEnabled(),
	}
}

// fail maps a store error onto a response. Backend auth failures pass through;
// everything else the backend did wrong is a 502.
func (h *handlers) fail(c *gin.Context, err error) {
	var statusErr *apiclient.StatusError
	var envErr *envelope.Error
	switch {
	case errors.Is(err, liststore.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer request"})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	case errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden):
		c.JSON(statusErr.StatusCode, gin.H{"error": http.StatusText(statusErr.StatusCode)})
	case errors.As(err, &envErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": envErr.Message})
	case errors.Is(err, envelope.ErrUnexpectedShape):
		c.JSON(http.StatusBadGateway, gin.H{"error": "unexpected backend response"})
	default:
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("backend call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
	}
}
