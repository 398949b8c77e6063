package handlers

import (
	"net/http"
	"strconv"

	"tablefilter/database"
	"tablefilter/filter"
	"tablefilter/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func ListPeriods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"periods":   models.DefaultPeriodCatalog(),
		"operators": models.Operators(),
	})
}

func CreateSession(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateSessionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		s := reg.Create(req)
		c.JSON(http.StatusCreated, s.Response())
	}
}

func GetSession(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.Response())
	}
}

func DeleteSession(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
			return
		}

		if err := reg.Delete(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// UpdateSearch edits the search text. The filter is emitted once typing
// pauses, so the response is 202.
func UpdateSearch(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}

		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var value any
		if req.Text != nil {
			value = *req.Text
		}
		if !editField(c, s, filter.FieldSearch, value) {
			return
		}
		c.JSON(http.StatusAccepted, s.Response())
	}
}

func UpdateOperator(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}

		var req models.OperatorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !editField(c, s, filter.FieldOperator, req.Operator) {
			return
		}
		c.JSON(http.StatusOK, s.Response())
	}
}

func UpdatePeriod(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}

		var req models.PeriodRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var value any
		if req.PeriodID != nil {
			p, found := models.FindPeriod(s.Controller.Catalog(), *req.PeriodID)
			if !found {
				c.JSON(http.StatusBadRequest, gin.H{"error": ErrUnknownPeriod.Error()})
				return
			}
			value = p
		}

		if !editField(c, s, filter.FieldPeriod, value) {
			return
		}
		c.JSON(http.StatusOK, s.Response())
	}
}

// UpdateRange edits both range fields together and re-evaluates a custom
// range. Values are stored as submitted. While a named period is selected the
// range belongs to it and edits are refused.
func UpdateRange(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}

		var req models.RangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if p := s.Controller.SelectedPeriod(); p != nil && !p.CustomRange {
			c.JSON(http.StatusConflict, gin.H{"error": ErrRangeDerived.Error(), "period": p.Period})
			return
		}

		edited := s.Store.EditAll(map[filter.Field]any{
			filter.FieldRangeStart: optionalString(req.Start),
			filter.FieldRangeEnd:   optionalString(req.End),
		})
		if !edited {
			c.JSON(http.StatusConflict, gin.H{"error": filter.ErrFieldDisabled.Error()})
			return
		}
		s.Controller.OnRangeChange()
		c.JSON(http.StatusOK, s.Response())
	}
}

func UpdateLoading(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}

		var req models.LoadingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s.Controller.SetLoading(req.Loading)
		c.JSON(http.StatusOK, s.Response())
	}
}

// GetQuery builds the listing statement for the last emitted filter.
// Accepts limit and offset query parameters.
func GetQuery(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}

		last := s.LastFilter()
		if last == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no filter emitted yet"})
			return
		}

		page := database.Page{
			Limit:  queryInt(c, "limit"),
			Offset: queryInt(c, "offset"),
		}
		stmt, err := database.BuildListQuery(database.DefaultTarget(), *last, page)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, models.QueryResponse{SQL: stmt.SQL, Args: stmt.Args})
	}
}

func lookupSession(c *gin.Context, reg *Registry) (*Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return nil, false
	}

	s, err := reg.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return s, true
}

func editField(c *gin.Context, s *Session, f filter.Field, value any) bool {
	if !s.Store.Edit(f, value) {
		c.JSON(http.StatusConflict, gin.H{"error": filter.ErrFieldDisabled.Error(), "field": f})
		return false
	}
	return true
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
