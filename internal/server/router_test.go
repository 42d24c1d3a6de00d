package server

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterSetsRequestID(t *testing.T) {
	app := newTestApp(t)
	app.Get("/ping", func(c fiber.Ctx) error {
		if RequestID(c) == "" {
			t.Errorf("expected request id in locals")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 status, got %d", resp.StatusCode)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRouterRendersFiberErrorsAsJSON(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/nowhere", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"error"`)) {
		t.Fatalf("expected error payload, got %s", string(body))
	}
}

func TestRouterHidesInternalErrors(t *testing.T) {
	app := newTestApp(t)
	app.Get("/boom", func(c fiber.Ctx) error {
		return errors.New("disk on fire at /srv/secret")
	})
	app.Get("/panic", func(c fiber.Ctx) error {
		panic("unexpected")
	})

	for _, path := range []string{"/boom", "/panic"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusInternalServerError {
			t.Fatalf("%s: expected 500 status, got %d", path, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if bytes.Contains(body, []byte("/srv/secret")) {
			t.Fatalf("%s: internal details leaked: %s", path, string(body))
		}
		if !bytes.Contains(body, []byte(`"internal server error"`)) {
			t.Fatalf("%s: expected generic message, got %s", path, string(body))
		}
	}
}

func TestNewAppRequiresLogger(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{Logger: logger})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}
