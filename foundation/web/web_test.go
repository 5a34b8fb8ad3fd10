package web_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/powchain/foundation/web"
)

type request struct {
	Name string `json:"name"`
}

func (r request) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func Test_Handle(t *testing.T) {
	var order []string
	mw := func(name string) web.Middleware {
		return func(handler web.Handler) web.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				order = append(order, name)
				return handler(ctx, w, r)
			}
		}
	}

	shutdown := make(chan os.Signal, 1)
	app := web.NewApp(shutdown, mw("app"))

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if web.GetTraceID(ctx) == "" {
			t.Fatalf("Should get a trace id.")
		}

		var req request
		if err := web.Decode(r, &req); err != nil {
			return web.Respond(ctx, w, err.Error(), http.StatusBadRequest)
		}

		return web.Respond(ctx, w, web.Param(r, "id")+":"+req.Name, http.StatusOK)
	}
	app.Handle(http.MethodPost, "v1", "/test/:id", h, mw("route"))

	fail := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.NewShutdownError("integrity issue")
	}
	app.Handle(http.MethodGet, "v1", "/fail", fail)

	r := httptest.NewRequest(http.MethodPost, "/v1/test/10", strings.NewReader(`{"name":"bill"}`))
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusOK || w.Body.String() != `"10:bill"` {
		t.Fatalf("Should get back the param and body: %d %s", w.Code, w.Body.String())
	}

	if len(order) != 2 || order[0] != "app" || order[1] != "route" {
		t.Fatalf("Should run the app middleware before the route middleware: %v", order)
	}

	r = httptest.NewRequest(http.MethodPost, "/v1/test/10", strings.NewReader(`{"name":""}`))
	w = httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Should validate the decoded value: %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/v1/fail", nil)
	w = httptest.NewRecorder()
	app.ServeHTTP(w, r)

	select {
	case <-shutdown:
	default:
		t.Fatalf("Should signal a shutdown for a shutdown error.")
	}
}
