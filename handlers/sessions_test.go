package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tablefilter/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, _ := test.NewNullLogger()
	reg := NewRegistry(SessionDefaults{
		DebounceWindow:     20 * time.Millisecond,
		DefaultPeriodIndex: -1,
	}, logger)
	reg.now = func() time.Time { return testNow }
	t.Cleanup(reg.Close)
	return reg
}

func newTestServer(t *testing.T, apiKey string) (*gin.Engine, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := newTestRegistry(t)
	logger, _ := test.NewNullLogger()
	return NewRouter(reg, apiKey, logger), reg
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) models.SessionResponse {
	t.Helper()
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func createSession(t *testing.T, r http.Handler, body any) models.SessionResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeSession(t, w)
}

// waitForFilter polls the session until its last filter satisfies match.
func waitForFilter(t *testing.T, r http.Handler, id uuid.UUID, match func(*models.ResolvedFilter) bool) *models.ResolvedFilter {
	t.Helper()
	var last *models.ResolvedFilter
	require.Eventually(t, func() bool {
		w := doJSON(t, r, http.MethodGet, "/sessions/"+id.String(), nil)
		if w.Code != http.StatusOK {
			return false
		}
		last = decodeSession(t, w).LastFilter
		return last != nil && match(last)
	}, 2*time.Second, 10*time.Millisecond)
	return last
}

func TestHealthCheck(t *testing.T) {
	r, _ := newTestServer(t, "secret")

	w := doJSON(t, r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListPeriods(t *testing.T) {
	r, _ := newTestServer(t, "")

	w := doJSON(t, r, http.MethodGet, "/periods", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Periods   []models.Period          `json:"periods"`
		Operators []models.OperatorOption `json:"operators"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.DefaultPeriodCatalog(), resp.Periods)
	assert.Len(t, resp.Operators, 2)
}

func TestCreateSession_Defaults(t *testing.T) {
	r, reg := newTestServer(t, "")

	resp := createSession(t, r, nil)

	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, "enabled", resp.Status)
	assert.True(t, resp.ShowFilterButton)
	assert.Len(t, resp.PeriodCatalog, 10)
	assert.Equal(t, "OR", resp.Fields["operator"])
	assert.Nil(t, resp.LastFilter)
	assert.Equal(t, 1, reg.Len())
}

func TestCreateSession_DefaultPeriod(t *testing.T) {
	r, _ := newTestServer(t, "")

	index := 1
	resp := createSession(t, r, models.CreateSessionRequest{DefaultPeriodIndex: &index})

	last := waitForFilter(t, r, resp.ID, func(*models.ResolvedFilter) bool { return true })
	require.NotNil(t, last.SelectedPeriod)
	assert.Equal(t, models.PeriodYesterday, last.SelectedPeriod.Period)
	assert.Equal(t, "2024-03-14T00:00:00Z", last.RangeStart)
	assert.Equal(t, "2024-03-15T23:59:59.999Z", last.RangeEnd)
}

func TestCreateSession_InvalidCatalog(t *testing.T) {
	r, _ := newTestServer(t, "")

	w := doJSON(t, r, http.MethodPost, "/sessions", map[string]any{
		"period_catalog": []map[string]any{{"label": "no id"}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSession_Errors(t *testing.T) {
	r, _ := newTestServer(t, "")

	w := doJSON(t, r, http.MethodGet, "/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/sessions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), ErrSessionNotFound.Error())
}

func TestUpdatePeriod(t *testing.T) {
	r, _ := newTestServer(t, "")
	resp := createSession(t, r, nil)
	base := "/sessions/" + resp.ID.String()

	w := doJSON(t, r, http.MethodPut, base+"/period", map[string]any{"period_id": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	last := waitForFilter(t, r, resp.ID, func(f *models.ResolvedFilter) bool { return f.SelectedPeriod != nil })
	assert.Equal(t, models.PeriodLastMonth, last.SelectedPeriod.Period)
	assert.Equal(t, "2024-02-01T00:00:00Z", last.RangeStart)

	w = doJSON(t, r, http.MethodPut, base+"/period", map[string]any{"period_id": nil})
	require.Equal(t, http.StatusOK, w.Code)
	last = waitForFilter(t, r, resp.ID, func(f *models.ResolvedFilter) bool { return f.SelectedPeriod == nil })
	assert.Nil(t, last.RangeStart)
	assert.Nil(t, last.RangeEnd)

	w = doJSON(t, r, http.MethodPut, base+"/period", map[string]any{"period_id": 404})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrUnknownPeriod.Error())
}

func TestUpdateSearchAndOperator(t *testing.T) {
	r, _ := newTestServer(t, "")
	resp := createSession(t, r, nil)
	base := "/sessions/" + resp.ID.String()

	for _, text := range []string{"ti", "time", "timeout"} {
		w := doJSON(t, r, http.MethodPut, base+"/search", map[string]any{"text": text})
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	last := waitForFilter(t, r, resp.ID, func(f *models.ResolvedFilter) bool { return f.Search() == "timeout" })
	assert.Equal(t, models.OperatorOr, last.Operator)

	w := doJSON(t, r, http.MethodPut, base+"/operator", map[string]any{"operator": "AND"})
	require.Equal(t, http.StatusOK, w.Code)
	waitForFilter(t, r, resp.ID, func(f *models.ResolvedFilter) bool { return f.Operator == models.OperatorAnd })

	w = doJSON(t, r, http.MethodPut, base+"/operator", map[string]any{"operator": "XOR"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateRange_CustomRange(t *testing.T) {
	r, _ := newTestServer(t, "")
	resp := createSession(t, r, nil)
	base := "/sessions/" + resp.ID.String()

	w := doJSON(t, r, http.MethodPut, base+"/period", map[string]any{"period_id": 10})
	require.Equal(t, http.StatusOK, w.Code)

	start := "2024-03-01T08:00"
	w = doJSON(t, r, http.MethodPut, base+"/range", models.RangeRequest{Start: &start})
	require.Equal(t, http.StatusOK, w.Code)
	session := decodeSession(t, w)
	require.NotNil(t, session.Bounds.MinEnd)
	assert.Nil(t, session.Bounds.MaxStart)
	assert.Nil(t, session.LastFilter)

	end := "2024-03-04T18:30"
	w = doJSON(t, r, http.MethodPut, base+"/range", models.RangeRequest{Start: &start, End: &end})
	require.Equal(t, http.StatusOK, w.Code)

	last := waitForFilter(t, r, resp.ID, func(f *models.ResolvedFilter) bool { return f.RangeEnd != nil })
	assert.Equal(t, start, last.RangeStart)
	rangeEnd, ok := last.RangeEnd.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(rangeEnd, "2024-03-04T23:59:59.999"), rangeEnd)
}

func TestUpdateRange_RefusedUnderNamedPeriod(t *testing.T) {
	r, _ := newTestServer(t, "")

	index := 0
	resp := createSession(t, r, models.CreateSessionRequest{DefaultPeriodIndex: &index})
	base := "/sessions/" + resp.ID.String()
	waitForFilter(t, r, resp.ID, func(f *models.ResolvedFilter) bool { return f.SelectedPeriod != nil })

	start, end := "garbage-start", "garbage-end"
	w := doJSON(t, r, http.MethodPut, base+"/range", models.RangeRequest{Start: &start, End: &end})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), ErrRangeDerived.Error())

	w = doJSON(t, r, http.MethodPut, base+"/search", map[string]any{"text": "timeout"})
	require.Equal(t, http.StatusAccepted, w.Code)

	last := waitForFilter(t, r, resp.ID, func(f *models.ResolvedFilter) bool { return f.Search() == "timeout" })
	require.NotNil(t, last.SelectedPeriod)
	assert.Equal(t, models.PeriodToday, last.SelectedPeriod.Period)
	assert.Equal(t, "2024-03-15T00:00:00Z", last.RangeStart)
	assert.Equal(t, "2024-03-16T23:59:59.999Z", last.RangeEnd)

	// Clearing the period frees the range again.
	w = doJSON(t, r, http.MethodPut, base+"/period", map[string]any{"period_id": nil})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPut, base+"/range", models.RangeRequest{Start: &start})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateLoading_FreezesFields(t *testing.T) {
	r, _ := newTestServer(t, "")
	resp := createSession(t, r, nil)
	base := "/sessions/" + resp.ID.String()

	w := doJSON(t, r, http.MethodPut, base+"/loading", map[string]any{"loading": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disabled", decodeSession(t, w).Status)

	w = doJSON(t, r, http.MethodPut, base+"/search", map[string]any{"text": "blocked"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPut, base+"/period", map[string]any{"period_id": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	start := "2024-03-01"
	w = doJSON(t, r, http.MethodPut, base+"/range", models.RangeRequest{Start: &start})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPut, base+"/loading", map[string]any{"loading": false})
	require.Equal(t, http.StatusOK, w.Code)
	session := decodeSession(t, w)
	assert.Equal(t, "enabled", session.Status)
	assert.Nil(t, session.Fields["search"])
	assert.Nil(t, session.Fields["period"])
}

func TestGetQuery(t *testing.T) {
	r, _ := newTestServer(t, "")
	resp := createSession(t, r, nil)
	base := "/sessions/" + resp.ID.String()

	w := doJSON(t, r, http.MethodGet, base+"/query", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	doJSON(t, r, http.MethodPut, base+"/search", map[string]any{"text": "database error"})
	waitForFilter(t, r, resp.ID, func(f *models.ResolvedFilter) bool { return f.Search() != "" })

	w = doJSON(t, r, http.MethodGet, base+"/query?limit=10&offset=20", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var q models.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Contains(t, q.SQL, "to_tsquery('english', $1)")
	assert.Contains(t, q.SQL, "LIMIT $2 OFFSET $3")
	assert.Equal(t, []any{"database | error", float64(10), float64(20)}, q.Args)
}

func TestDeleteSession(t *testing.T) {
	r, reg := newTestServer(t, "")
	resp := createSession(t, r, nil)

	w := doJSON(t, r, http.MethodDelete, "/sessions/"+resp.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, reg.Len())

	w = doJSON(t, r, http.MethodDelete, "/sessions/"+resp.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionAPI_RequiresKey(t *testing.T) {
	r, _ := newTestServer(t, "secret")

	w := doJSON(t, r, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestStreamFilters(t *testing.T) {
	r, _ := newTestServer(t, "")
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	index := 0
	resp := createSession(t, r, models.CreateSessionRequest{DefaultPeriodIndex: &index})
	waitForFilter(t, r, resp.ID, func(*models.ResolvedFilter) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+resp.ID.String()+"/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.True(t, strings.HasPrefix(stream.Header.Get("Content-Type"), "text/event-stream"), stream.Header.Get("Content-Type"))

	reader := bufio.NewReader(stream.Body)
	readFilter := func() models.ResolvedFilter {
		t.Helper()
		var event string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:") && event == "filter":
				var rf models.ResolvedFilter
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &rf))
				return rf
			}
		}
	}

	first := readFilter()
	require.NotNil(t, first.SelectedPeriod)
	assert.Equal(t, models.PeriodToday, first.SelectedPeriod.Period)

	w := doJSON(t, r, http.MethodPut, "/sessions/"+resp.ID.String()+"/period", map[string]any{"period_id": nil})
	require.Equal(t, http.StatusOK, w.Code)

	second := readFilter()
	assert.Nil(t, second.SelectedPeriod)
	assert.Nil(t, second.RangeStart)
}
