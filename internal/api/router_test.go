package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"gridsim/internal/api/middleware"
	"gridsim/internal/api/models"
	"gridsim/internal/area"
	"gridsim/internal/sim"
	"gridsim/internal/strategy"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T) (*gin.Engine, *sim.Simulation) {
	t.Helper()
	producer := area.New("commercial", strategy.NewCommercialProducer("commercial", strategy.CommercialProducerParams{
		EnergyRate:    3,
		EnergyPerSlot: 100,
	}))
	load := area.New("load", strategy.NewLoad("load", strategy.LoadParams{
		EnergyPerSlot: 5,
		MaxUnitPrice:  10,
	}))
	house := area.New("house", nil, load)
	root := area.New("grid", nil, producer, house)

	s, err := sim.New(sim.Config{
		Duration:    time.Hour,
		SlotLength:  15 * time.Minute,
		TickLength:  3 * time.Minute,
		StartPaused: true,
	}, root)
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(s), s
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(t, router, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStatusReflectsPauseState(t *testing.T) {
	router, s := newTestRouter(t)

	w := doRequest(t, router, "GET", "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st sim.Status
	decode(t, w, &st)
	if !st.Paused {
		t.Error("status not paused for a start-paused run")
	}

	if w := doRequest(t, router, "POST", "/api/resume", ""); w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}
	if s.Paused() {
		t.Error("simulation still paused after resume")
	}
	if w := doRequest(t, router, "POST", "/api/pause", ""); w.Code != http.StatusOK {
		t.Fatalf("pause status = %d", w.Code)
	}
	if !s.Paused() {
		t.Error("simulation not paused after pause")
	}
}

func TestSlowdownValidation(t *testing.T) {
	router, s := newTestRouter(t)

	if w := doRequest(t, router, "POST", "/api/slowdown", `{"slowdown": 25}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := s.Status().Slowdown; got != 25 {
		t.Errorf("slowdown = %d, want 25", got)
	}
	if w := doRequest(t, router, "POST", "/api/slowdown", `{"slowdown": 200}`); w.Code != http.StatusBadRequest {
		t.Errorf("out-of-range slowdown status = %d, want 400", w.Code)
	}
	if w := doRequest(t, router, "POST", "/api/slowdown", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

func TestListAreas(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(t, router, "GET", "/api/areas", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Areas []struct {
			Name         string   `json:"name"`
			Type         string   `json:"type"`
			StrategyType string   `json:"strategy_type"`
			Children     []string `json:"children"`
		} `json:"areas"`
	}
	decode(t, w, &resp)
	if len(resp.Areas) != 4 {
		t.Fatalf("listed %d areas, want 4", len(resp.Areas))
	}
	byName := map[string]int{}
	for i, a := range resp.Areas {
		byName[a.Name] = i
	}
	if resp.Areas[byName["house"]].Type != "house" {
		t.Errorf("house type = %q", resp.Areas[byName["house"]].Type)
	}
	if resp.Areas[byName["load"]].StrategyType != "load" {
		t.Errorf("load strategy type = %q", resp.Areas[byName["load"]].StrategyType)
	}
}

func TestGetAreaNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	if w := doRequest(t, router, "GET", "/api/areas/absent", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListTriggers(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(t, router, "GET", "/api/areas/load/triggers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Triggers []struct {
			Name string `json:"name"`
		} `json:"triggers"`
	}
	decode(t, w, &resp)
	names := make([]string, 0, len(resp.Triggers))
	for _, tr := range resp.Triggers {
		names = append(names, tr.Name)
	}
	if len(names) != 2 || names[0] != "enable" || names[1] != "disable" {
		t.Errorf("triggers = %v, want [enable disable]", names)
	}
}

func TestFireTrigger(t *testing.T) {
	router, s := newTestRouter(t)

	w := doRequest(t, router, "POST", "/api/areas/load/triggers/disable", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	load := s.Root().FindArea("load").Strategy.(*strategy.Load)
	if load.Enabled() {
		t.Error("load still enabled after disable trigger")
	}

	if w := doRequest(t, router, "POST", "/api/areas/load/triggers/self_destruct", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown trigger status = %d, want 404", w.Code)
	}
	if w := doRequest(t, router, "POST", "/api/areas/grid/triggers/disable", ""); w.Code != http.StatusNotFound {
		t.Errorf("strategyless area status = %d, want 404", w.Code)
	}
}

func TestRecoveryEnvelope(t *testing.T) {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.GET("/boom", func(c *gin.Context) {
		panic(errors.New("ledger unavailable"))
	})

	w := doRequest(t, router, "GET", "/boom", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp models.ErrorResponse
	decode(t, w, &resp)
	if resp.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if resp.Error.Message != "ledger unavailable" {
		t.Errorf("message = %q", resp.Error.Message)
	}
}
