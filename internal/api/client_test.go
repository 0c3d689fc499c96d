package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Username: "user",
		Password: "pw",
		BaseURL:  srv.URL + "/",
	})
}

func writeDat(w http.ResponseWriter, dat any) {
	b, _ := json.Marshal(dat)
	_ = json.NewEncoder(w).Encode(map[string]any{"err": 0, "dat": json.RawMessage(b)})
}

func writeErr(w http.ResponseWriter, code int, desc string) {
	_ = json.NewEncoder(w).Encode(map[string]any{"err": code, "desc": desc})
}

func TestAPIErrorFromPayload(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, 5, "device offline")
	})
	c.setSession("tok", "sec", 0)

	_, err := c.GetCollectorDevices(context.Background(), "PN")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != 5 || apiErr.Message != "device offline" {
		t.Fatalf("unexpected error: code=%d msg=%q", apiErr.Code, apiErr.Message)
	}
	if apiErr.Action != "queryCollectorDevices" {
		t.Fatalf("error should carry the action, got %q", apiErr.Action)
	}
}

func TestAPIErrorDefaultMessage(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"err": 7})
	})
	c.setSession("tok", "sec", 0)

	_, err := c.GetCollectorDevices(context.Background(), "PN")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %T: %v", err, err)
	}
	if apiErr.Message != "API error 7" {
		t.Fatalf("missing desc should fall back to code, got %q", apiErr.Message)
	}
}

func TestTransportErrorOnStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c.setSession("tok", "sec", 0)

	_, err := c.GetCollectorDevices(context.Background(), "PN")
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("want *TransportError, got %T: %v", err, err)
	}
	if tErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", tErr.StatusCode)
	}
}

func TestTransportErrorOnInvalidJSON(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	})
	c.setSession("tok", "sec", 0)

	_, err := c.GetCollectorDevices(context.Background(), "PN")
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("want *TransportError, got %T: %v", err, err)
	}
}

func TestTransportErrorOnContextTimeout(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeDat(w, map[string]any{"dev": []any{}})
	})
	c.setSession("tok", "sec", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetCollectorDevices(ctx, "PN")
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("want *TransportError, got %T: %v", err, err)
	}
}

func TestExpiredSessionReauthenticatesInline(t *testing.T) {
	t.Parallel()
	authCalls := 0
	var deviceToken string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "authSource":
			authCalls++
			writeDat(w, map[string]any{"token": "fresh", "secret": "s2", "expire": 3600})
		case "queryCollectorDevices":
			deviceToken = r.URL.Query().Get("token")
			writeDat(w, map[string]any{"dev": []any{}})
		default:
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
	})
	c.setSession("stale", "s1", time.Now().Unix()-10)

	if _, err := c.GetCollectorDevices(context.Background(), "PN"); err != nil {
		t.Fatalf("GetCollectorDevices: %v", err)
	}
	if authCalls != 1 {
		t.Fatalf("expected exactly one re-auth, got %d", authCalls)
	}
	if deviceToken != "fresh" {
		t.Fatalf("request after re-auth used token %q, want %q", deviceToken, "fresh")
	}
}

func TestAuthenticateMissingDat(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"err": 0})
	})

	err := c.Authenticate(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("want *AuthError, got %T: %v", err, err)
	}
}

func TestSetupRetriesAuthOnce(t *testing.T) {
	t.Parallel()
	authCalls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		authCalls++
		if authCalls == 1 {
			writeErr(w, 1, "transient rejection")
			return
		}
		writeDat(w, map[string]any{"token": "tok", "secret": "sec", "expire": 3600})
	})

	if err := c.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if authCalls != 2 {
		t.Fatalf("Setup should retry exactly once, saw %d auth calls", authCalls)
	}
}

func TestDiscoveryPagination(t *testing.T) {
	t.Parallel()
	const total = 120
	pageCalls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "queryPlants":
			writeDat(w, map[string]any{"plant": []map[string]any{{"pid": 7, "name": "Site"}}})
		case "webQueryCollectorsEs":
			pageCalls++
			page := q.Get("page")
			count := 50
			if page == "2" {
				count = 20
			}
			items := make([]map[string]any, count)
			for i := range items {
				items[i] = map[string]any{"pn": fmt.Sprintf("PN-%s-%02d", page, i), "alias": "c", "fireware": "1.0"}
			}
			writeDat(w, map[string]any{"collector": items, "total": total})
		default:
			t.Errorf("unexpected action %q", q.Get("action"))
		}
	})
	c.setSession("tok", "sec", 0)

	collectors, projects, err := c.GetCollectors(context.Background())
	if err != nil {
		t.Fatalf("GetCollectors: %v", err)
	}
	if len(collectors) != total {
		t.Fatalf("got %d collectors, want %d", len(collectors), total)
	}
	if pageCalls != 3 {
		t.Fatalf("120 collectors should take 3 pages, got %d calls", pageCalls)
	}
	if len(projects) != 1 || projects[0].ID != 7 {
		t.Fatalf("unexpected project summary: %+v", projects)
	}
}

func TestDiscoveryAllProjectsFail(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "queryPlants":
			writeDat(w, map[string]any{"plant": []map[string]any{
				{"pid": 1, "name": "A"}, {"pid": 2, "name": "B"},
			}})
		case "webQueryCollectorsEs":
			writeErr(w, 9, "backend down")
		default:
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
	})
	c.setSession("tok", "sec", 0)

	_, _, err := c.GetCollectors(context.Background())
	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("want *AggregateError, got %T: %v", err, err)
	}
	if len(agg.Reasons) != 2 {
		t.Fatalf("aggregate should carry both project failures, got %d", len(agg.Reasons))
	}
}

func TestDiscoveryPartialProjectFailure(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "queryPlants":
			writeDat(w, map[string]any{"plant": []map[string]any{
				{"pid": 1, "name": "A"}, {"pid": 2, "name": "B"},
			}})
		case "webQueryCollectorsEs":
			if q.Get("pid") == "1" {
				writeErr(w, 9, "backend down")
				return
			}
			writeDat(w, map[string]any{
				"collector": []map[string]any{{"pn": "PN-OK", "alias": "c", "fireware": "1.0"}},
				"total":     1,
			})
		default:
			t.Errorf("unexpected action %q", q.Get("action"))
		}
	})
	c.setSession("tok", "sec", 0)

	collectors, projects, err := c.GetCollectors(context.Background())
	if err != nil {
		t.Fatalf("one healthy project should keep discovery alive: %v", err)
	}
	if len(collectors) != 1 || collectors[0].PN != "PN-OK" {
		t.Fatalf("unexpected collectors: %+v", collectors)
	}
	if len(projects) != 1 || projects[0].ID != 2 {
		t.Fatalf("only the contributing project belongs in the summary: %+v", projects)
	}
}
