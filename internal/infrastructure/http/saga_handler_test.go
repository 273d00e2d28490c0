package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appsaga "saga-coordinator/internal/application/saga"
	"saga-coordinator/internal/common/health"
	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/saga"
	"saga-coordinator/internal/infrastructure/eventstore"
	"saga-coordinator/internal/infrastructure/participant"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupTestRouter(invoker participant.Invoker) *gin.Engine {
	gin.SetMode(gin.TestMode)

	store := eventstore.NewMemoryEventStore()
	l := logger.NewNopLogger()
	coordinator := appsaga.NewCoordinator(store, invoker, l)
	query := appsaga.NewStatusQuery(store, l)
	checkers := []health.HealthChecker{health.NewStaticHealthChecker("coordinator")}

	router := gin.New()
	NewSagaHandler(coordinator, query, checkers, l).RegisterRoutes(router)
	return router
}

func submitBody(t *testing.T, requests ...saga.SagaRequest) string {
	t.Helper()
	raw, err := json.Marshal(saga.Definition{Requests: requests})
	assert.NoError(t, err)
	return string(raw)
}

func simpleRequest(id string, parents ...string) saga.SagaRequest {
	return saga.SagaRequest{
		ID:           id,
		Type:         "rest",
		ServiceName:  "svc-" + id,
		Transaction:  saga.Operation{Method: "POST", Path: "/" + id},
		Compensation: saga.Operation{Method: "PUT", Path: "/" + id + "/cancel"},
		Parents:      parents,
	}
}

func TestSagaHandler_SubmitAndQueryDetail(t *testing.T) {
	router := setupTestRouter(participant.NewMockParticipant())

	body := submitBody(t, simpleRequest("A"), simpleRequest("B", "A"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)

	var submitted struct {
		SagaID string `json:"sagaId"`
		Status string `json:"status"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))
	assert.NotEmpty(t, submitted.SagaID)
	assert.Equal(t, "COMMITTED", submitted.Status)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/requests/"+submitted.SagaID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var detail appsaga.ExecutionDetailView
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, map[string][]string{"A": {"B"}}, detail.Router)
	assert.Equal(t, "OK", detail.Status["A"])
	assert.Equal(t, "OK", detail.Status["B"])
}

func TestSagaHandler_SubmitFailureReportsDetail(t *testing.T) {
	invoker := participant.NewMockParticipant()
	invoker.FailRequest("A", "out of stock")
	router := setupTestRouter(invoker)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/requests",
		strings.NewReader(submitBody(t, simpleRequest("A")))))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var failure struct {
		FailedRequest string `json:"failedRequest"`
		Error         string `json:"error"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &failure))
	assert.Equal(t, "A", failure.FailedRequest)
	assert.Contains(t, failure.Error, "out of stock")
}

func TestSagaHandler_RejectsBadDefinitions(t *testing.T) {
	router := setupTestRouter(participant.NewMockParticipant())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cyclic := submitBody(t, simpleRequest("A", "B"), simpleRequest("B", "A"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(cyclic)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSagaHandler_QueryExecutionsValidation(t *testing.T) {
	router := setupTestRouter(participant.NewMockParticipant())

	for _, target := range []string{
		"/requests?pageIndex=-1",
		"/requests?pageSize=abc",
		"/requests?pageSize=0",
		"/requests?startTime=100&endTime=50",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "expected 400 for %s", target)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/requests", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSagaHandler_DetailNotFound(t *testing.T) {
	router := setupTestRouter(participant.NewMockParticipant())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/requests/unknown-saga", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSagaHandler_Health(t *testing.T) {
	router := setupTestRouter(participant.NewMockParticipant())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
