package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	app, err := NewApp(db, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestRecordLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var created struct {
		ID        uint64 `json:"id"`
		DerivedID uint64 `json:"derived_id"`
		KindName  string `json:"kind_name"`
	}
	code := postJSON(t, srv.URL+"/v1/records", map[string]any{
		"derived_id": 7,
		"sources":    []uint64{3, 4},
		"kind_name":  "reasoned",
		"confidence": 0.8,
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", code)
	}
	if created.ID == 0 || created.KindName != "reasoned" {
		t.Fatalf("created = %+v, want assigned id and kind name", created)
	}

	var fetched struct {
		ID uint64 `json:"id"`
	}
	if code := getJSON(t, fmt.Sprintf("%s/v1/records/%d", srv.URL, created.ID), &fetched); code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", code)
	}
	if fetched.ID != created.ID {
		t.Errorf("fetched id = %d, want %d", fetched.ID, created.ID)
	}

	var listed struct {
		Count int `json:"count"`
	}
	if code := getJSON(t, srv.URL+"/v1/records?source=3", &listed); code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", code)
	}
	if listed.Count != 1 {
		t.Errorf("list count = %d, want 1", listed.Count)
	}

	if code := getJSON(t, srv.URL+"/v1/records?source=3&kind=seed", nil); code != http.StatusBadRequest {
		t.Errorf("list with two filters: status = %d, want 400", code)
	}
	if code := getJSON(t, srv.URL+"/v1/records/99999", nil); code != http.StatusNotFound {
		t.Errorf("get missing record: status = %d, want 404", code)
	}
}

func TestSupportAndRetractFlow(t *testing.T) {
	srv := newTestServer(t)

	resolve := func(label string) uint64 {
		var resp struct {
			ID uint64 `json:"id"`
		}
		if code := postJSON(t, srv.URL+"/v1/entities/resolve", map[string]any{"label": label}, &resp); code != http.StatusOK {
			t.Fatalf("resolve %q: status = %d, want 200", label, code)
		}
		return resp.ID
	}

	axiom := resolve("axiom")
	derived := resolve("derived")

	code := postJSON(t, srv.URL+"/v1/support", map[string]any{
		"derived":    derived,
		"premises":   []uint64{axiom},
		"confidence": 0.9,
	}, nil)
	if code != http.StatusCreated {
		t.Fatalf("add support: status = %d, want 201", code)
	}

	var status struct {
		Supported  bool    `json:"supported"`
		Confidence float64 `json:"confidence"`
	}
	if code := getJSON(t, fmt.Sprintf("%s/v1/entities/%d/confidence", srv.URL, derived), &status); code != http.StatusOK {
		t.Fatalf("confidence: status = %d, want 200", code)
	}
	if !status.Supported || status.Confidence != 0.9 {
		t.Fatalf("status before retraction = %+v", status)
	}

	var explanation struct {
		Entity   uint64 `json:"entity"`
		Label    string `json:"label"`
		Premises []struct {
			Entity uint64 `json:"entity"`
		} `json:"premises"`
	}
	if code := getJSON(t, fmt.Sprintf("%s/v1/entities/%d/explain", srv.URL, derived), &explanation); code != http.StatusOK {
		t.Fatalf("explain: status = %d, want 200", code)
	}
	if explanation.Label != "derived" || len(explanation.Premises) != 1 || explanation.Premises[0].Entity != axiom {
		t.Errorf("explanation = %+v, want one premise pointing at the axiom", explanation)
	}

	var result struct {
		Retracted    []uint64 `json:"retracted"`
		CascadeDepth int      `json:"cascade_depth"`
	}
	if code := postJSON(t, srv.URL+"/v1/retract", map[string]any{"entity": axiom}, &result); code != http.StatusOK {
		t.Fatalf("retract: status = %d, want 200", code)
	}
	if len(result.Retracted) != 2 {
		t.Fatalf("retracted = %v, want axiom and derived", result.Retracted)
	}

	if code := getJSON(t, fmt.Sprintf("%s/v1/entities/%d/confidence", srv.URL, derived), &status); code != http.StatusOK {
		t.Fatalf("confidence after retraction: status = %d, want 200", code)
	}
	if status.Supported || status.Confidence != 0 {
		t.Errorf("status after retraction = %+v, want unsupported", status)
	}
}

func TestResolveValidation(t *testing.T) {
	srv := newTestServer(t)

	if code := postJSON(t, srv.URL+"/v1/entities/resolve", map[string]any{"label": ""}, nil); code != http.StatusBadRequest {
		t.Errorf("empty label: status = %d, want 400", code)
	}
	if code := postJSON(t, srv.URL+"/v1/entities/resolve", map[string]any{"label": "ghost", "lookup_only": true}, nil); code != http.StatusNotFound {
		t.Errorf("lookup-only miss: status = %d, want 404", code)
	}
}
