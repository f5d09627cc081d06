package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkazarov/landpick/internal/api"
	"github.com/dkazarov/landpick/internal/catalog"
	"github.com/dkazarov/landpick/internal/config"
	"github.com/dkazarov/landpick/internal/fields"
	"github.com/dkazarov/landpick/internal/selector"
	"github.com/dkazarov/landpick/internal/session"
)

const testCatalogYAML = `
templates:
  physical_single:
    name: "Single product"
    description: "One product, one offer"
    required_fields:
      product_name: string
      old_price: number
      new_price: number
      features: list
  service_consultation:
    name: "Service"
  digital_course:
    name: "Online course"
  low_price_impulse:
    name: "Impulse buy"
  b2b:
    name: "B2B"
  pre_order:
    name: "Pre-order"
  limited_offer:
    name: "Limited offer"
`

const testLogicYAML = `
version: "1.0"
decision_tree:
  step_1_product_type:
    condition:
      if: "step_1_product_type == 'physical_product'"
      then:
        question: "Any special scenarios?"
        options:
          - id: b2b
            label: "B2B sales"
          - id: pre_order
            label: "Pre-order"
          - id: limited_offer
            label: "Limited offer"
          - id: seasonal
            label: "Seasonal"
        next_step: step_4_special_scenarios
      elif:
        - when: "step_1_product_type == 'service'"
          then:
            question: "Any special scenarios?"
            options:
              - id: b2b
                label: "B2B sales"
              - id: seasonal
                label: "Seasonal"
            next_step: step_4_special_scenarios
            template_suggestion: service_consultation
  step_4_special_scenarios:
    question: "Any special scenarios?"
    options:
      - id: b2b
        label: "B2B sales"
      - id: pre_order
        label: "Pre-order"
      - id: limited_offer
        label: "Limited offer"
      - id: seasonal
        label: "Seasonal"
  template_selection:
    rules:
      - priority: 1
        conditions:
          product_type: physical_product
        template: physical_single
        reason: "plain physical product"
quick_selection:
  keywords:
    physical_single:
      - pillow
    digital_course:
      - course
compatibility_matrix:
  matrix:
    low_price_impulse:
      not_compatible_with:
        - b2b
`

type testServer struct {
	srv       *httptest.Server
	logicPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logicPath := filepath.Join(t.TempDir(), "selection.yaml")
	require.NoError(t, os.WriteFile(logicPath, []byte(testLogicYAML), 0o644))

	cat, err := catalog.Parse([]byte(testCatalogYAML))
	require.NoError(t, err)
	loader, err := config.NewLoader(logicPath)
	require.NoError(t, err)
	require.NoError(t, config.Validate(loader.Logic(), cat.IDs()))
	loader.SetValidate(func(cfg *config.Logic) error {
		return config.Validate(cfg, cat.IDs())
	})

	eng := selector.New(loader.Logic(), cat)
	store := session.NewStore(eng, time.Minute)
	collector := fields.NewCollector(cat)

	srv := httptest.NewServer(api.New(eng, store, loader, collector))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, logicPath: logicPath}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "step_1_product_type", body["first_step"])

	// Before the first answer the walker reports the pending step.
	resp, body = ts.do(t, http.MethodGet, "/v1/sessions/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	assert.Equal(t, "question", result["kind"])
	assert.Equal(t, "step_1_product_type", result["step_id"])

	resp, body = ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/answers", map[string]any{
		"step_id": "step_1_product_type",
		"answer":  "physical_product",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = body["result"].(map[string]any)
	assert.Equal(t, "question", result["kind"])
	assert.Equal(t, "Any special scenarios?", result["prompt"])
	assert.Equal(t, "step_4_special_scenarios", result["step_id"])

	// Idempotent re-ask.
	_, again := ts.do(t, http.MethodGet, "/v1/sessions/"+id+"/next", nil)
	assert.Equal(t, result, again["result"])

	resp, _ = ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/answers", map[string]any{
		"step_id": "step_4_special_scenarios",
		"answer":  []string{"b2b"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/resolve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = body["result"].(map[string]any)
	assert.Equal(t, "template", result["kind"])
	assert.Equal(t, "b2b", result["template"])
	assert.Equal(t, "highest", result["priority"])
	compat := body["compatibility"].(map[string]any)
	assert.Equal(t, true, compat["compatible"])
	assert.Empty(t, body["modifications"])

	// Resolving again is side-effect free and returns the same answer.
	_, body2 := ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/resolve", nil)
	assert.Equal(t, body, body2)

	resp, _ = ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, body = ts.do(t, http.MethodGet, "/v1/sessions/"+id+"/next", nil)
	result = body["result"].(map[string]any)
	assert.Equal(t, "step_1_product_type", result["step_id"])

	resp, _ = ts.do(t, http.MethodDelete, "/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/v1/sessions/"+id+"/next", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionNotFoundAndBadInput(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/v1/sessions/ghost/next", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/v1/sessions/ghost/answers", map[string]any{
		"step_id": "step_1_product_type", "answer": "service",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, created := ts.do(t, http.MethodPost, "/v1/sessions", nil)
	id := created["session_id"].(string)
	resp, body := ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/answers", map[string]any{
		"answer": "service",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "step_id")
}

func TestResolveAppliesSuggestion(t *testing.T) {
	ts := newTestServer(t)

	_, created := ts.do(t, http.MethodPost, "/v1/sessions", nil)
	id := created["session_id"].(string)

	ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/answers", map[string]any{
		"step_id": "step_1_product_type", "answer": "service",
	})
	ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/answers", map[string]any{
		"step_id": "step_4_special_scenarios", "answer": []string{"seasonal"},
	})

	resp, body := ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/resolve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	assert.Equal(t, "service_consultation", result["template"])
	assert.Equal(t, "medium", result["priority"])

	mods := body["modifications"].([]any)
	require.Len(t, mods, 1)
	assert.Equal(t, "design", mods[0].(map[string]any)["type"])
}

func TestQuickSelect(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/quick-select", map[string]any{
		"text": "I want a landing for my PILLOW",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "physical_single", body["template"])
	assert.Equal(t, "medium", body["confidence"])

	resp, _ = ts.do(t, http.MethodPost, "/v1/quick-select", map[string]any{"text": "nothing known"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/v1/quick-select", map[string]any{"text": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuickSelectBatch(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/quick-select/batch", map[string]any{
		"texts": []string{"buy a pillow", "an online course", "no match here"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["job_id"])
	assert.Equal(t, float64(3), body["total"])

	results := body["results"].([]any)
	require.Len(t, results, 3)
	first := results[0].(map[string]any)
	assert.Equal(t, true, first["matched"])
	assert.Equal(t, "physical_single", first["result"].(map[string]any)["template"])
	second := results[1].(map[string]any)
	assert.Equal(t, "digital_course", second["result"].(map[string]any)["template"])
	third := results[2].(map[string]any)
	assert.Equal(t, false, third["matched"])
	assert.Nil(t, third["result"])

	resp, _ = ts.do(t, http.MethodPost, "/v1/quick-select/batch", map[string]any{"texts": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	big := make([]string, 101)
	for i := range big {
		big[i] = fmt.Sprintf("text %d", i)
	}
	resp, _ = ts.do(t, http.MethodPost, "/v1/quick-select/batch", map[string]any{"texts": big})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTemplateEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/v1/templates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	templates := body["templates"].([]any)
	assert.Len(t, templates, 7)

	resp, body = ts.do(t, http.MethodGet, "/v1/templates/physical_single", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "physical_single", body["id"])
	assert.Equal(t, "Single product", body["template"].(map[string]any)["name"])

	resp, _ = ts.do(t, http.MethodGet, "/v1/templates/no_such", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/v1/templates/physical_single/fields", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fieldList := body["fields"].([]any)
	require.Len(t, fieldList, 4)
	first := fieldList[0].(map[string]any)
	assert.Equal(t, "product_name", first["id"])
	assert.Equal(t, "string", first["type"])
	assert.Equal(t, "What is the product called?", first["question"])
}

func TestFieldEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/fields/validate", map[string]any{
		"template": "physical_single", "field": "old_price", "value": "152 BYN",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])

	_, body = ts.do(t, http.MethodPost, "/v1/fields/validate", map[string]any{
		"template": "physical_single", "field": "old_price", "value": "free",
	})
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["error"], "must be a number")

	resp, body = ts.do(t, http.MethodPost, "/v1/fields/format", map[string]any{
		"template": "physical_single",
		"data": map[string]any{
			"old_price": " 100 BYN ",
			"new_price": "70 BYN",
			"features":  "soft\nwashable",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "100 BYN", data["old_price"])
	assert.Equal(t, float64(30), data["discount_percent"])
	assert.Equal(t, []any{"soft", "washable"}, data["features"])
}

func TestCompatibilityAndModifications(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/compatibility", map[string]any{
		"template": "low_price_impulse", "scenarios": []string{"b2b", "seasonal"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["compatible"])
	warnings := body["warnings"].([]any)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "not compatible with b2b")

	_, body = ts.do(t, http.MethodPost, "/v1/compatibility", map[string]any{
		"template": "physical_single", "scenarios": []string{"b2b"},
	})
	assert.Equal(t, true, body["compatible"])

	_, body = ts.do(t, http.MethodPost, "/v1/modifications", map[string]any{
		"template": "physical_single", "scenarios": []string{"limited_offer"},
	})
	mods := body["modifications"].([]any)
	require.Len(t, mods, 1)
	assert.Equal(t, "urgency", mods[0].(map[string]any)["type"])

	_, body = ts.do(t, http.MethodPost, "/v1/modifications", map[string]any{
		"template": "physical_single", "scenarios": []string{},
	})
	assert.Empty(t, body["modifications"])
}

func TestRulesReload(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/v1/rules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.0", body["version"])
	assert.Equal(t, float64(3), body["steps"])

	// An invalid rewrite is rejected and the old logic keeps serving,
	// both through the engine and through the rules listing.
	require.NoError(t, os.WriteFile(ts.logicPath, []byte("version: \"9.9\"\ndecision_tree:\n  step_1_product_type:\n    question: \"broken\"\n"), 0o644))
	resp, _ = ts.do(t, http.MethodPost, "/v1/rules/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	_, body = ts.do(t, http.MethodPost, "/v1/quick-select", map[string]any{"text": "pillow"})
	assert.Equal(t, "physical_single", body["template"])
	_, body = ts.do(t, http.MethodGet, "/v1/rules", nil)
	assert.Equal(t, "1.0", body["version"])
	assert.Equal(t, float64(3), body["steps"])

	// A valid rewrite goes live.
	require.NoError(t, os.WriteFile(ts.logicPath, []byte(testLogicYAML), 0o644))
	resp, body = ts.do(t, http.MethodPost, "/v1/rules/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["reloaded"])
	assert.Equal(t, "1.0", body["version"])
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	ts.do(t, http.MethodPost, "/v1/sessions", nil)
	resp, body = ts.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
}
