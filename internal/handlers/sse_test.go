package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"cltv-analytics/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSSEHandlers(t *testing.T) {
	pipeline := createTestPipeline()
	logger := testLogger()

	handlers := NewSSEHandlers(pipeline, logger)

	if handlers == nil {
		t.Error("NewSSEHandlers() returned nil")
	}

	if handlers.pipeline != pipeline {
		t.Error("NewSSEHandlers() should set pipeline field")
	}

	if handlers.logger != logger {
		t.Error("NewSSEHandlers() should set logger field")
	}
}

func TestSSEHandlers_renderSegmentTable(t *testing.T) {
	handlers := NewSSEHandlers(createTestPipeline(), testLogger())

	data := []models.SegmentSummary{
		{Segment: models.SegmentA, Count: 12, Mean: 1520.456, Sum: 18245.47},
		{Segment: models.SegmentD, Count: 12, Mean: 35.1, Sum: 421.2},
	}

	html, err := handlers.renderSegmentTable(data, 6)
	if err != nil {
		t.Fatalf("renderSegmentTable() failed: %v", err)
	}

	expected := []string{
		`<div id="segments-content">`,
		"<table",
		"Mean CLV (6m)",
		`segment-A`,
		"1520.46",
		"18245.47",
		"421.20",
	}
	for _, want := range expected {
		if !strings.Contains(html, want) {
			t.Errorf("HTML should contain %q", want)
		}
	}

	if rows := strings.Count(html, "<tr>") - 1; rows != 2 {
		t.Errorf("expected 2 body rows, got %d", rows)
	}
}

func TestSSEHandlers_renderSegmentTable_Empty(t *testing.T) {
	handlers := NewSSEHandlers(createTestPipeline(), testLogger())

	html, err := handlers.renderSegmentTable(nil, 6)
	if err != nil {
		t.Fatalf("renderSegmentTable() failed: %v", err)
	}
	if !strings.Contains(html, "<tbody>") || strings.Count(html, "<tr>") != 1 {
		t.Errorf("empty data should render only the header row: %s", html)
	}
}

func TestSSEHandlers_HandleSegments(t *testing.T) {
	handlers := NewSSEHandlers(createTestPipeline(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/sse/segments", nil)
	w := httptest.NewRecorder()

	handlers.HandleSegments(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Check SSE headers (DataStar sets these)
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected content-type to contain 'text/event-stream', got %q", ct)
	}

	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected cache-control 'no-cache', got %q", cc)
	}

	body := w.Body.String()
	if !strings.Contains(body, "datastar-patch-elements") {
		t.Error("response should contain a patch-elements event")
	}
	if !strings.Contains(body, "<table") {
		t.Error("response should contain HTML table")
	}
}

func TestSSEHandlers_HandleTopCustomers(t *testing.T) {
	handlers := NewSSEHandlers(createTestPipeline(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/sse/top-customers", nil)
	w := httptest.NewRecorder()

	handlers.HandleTopCustomers(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "datastar-patch-signals") {
		t.Error("response should contain a patch-signals event")
	}
	if !strings.Contains(body, "topCustomers") {
		t.Error("response should contain topCustomers signal")
	}
	if strings.Index(body, "12347") > strings.Index(body, "12346") {
		t.Error("customers should be ordered by CLV")
	}
	if !strings.Contains(body, "customers-content") {
		t.Error("response should update the customers status element")
	}
}

func TestSSEHandlers_topCustomers(t *testing.T) {
	handlers := NewSSEHandlers(createTestPipeline(), testLogger())

	rows := handlers.topCustomers()
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].CustomerID != "12347" || rows[0].CLV != 1900 || rows[0].Segment != "A" {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[0].Purchases != 0.4 {
		t.Errorf("purchases should use the first purchase horizon, got %v", rows[0].Purchases)
	}
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	handlers := NewSSEHandlers(createTestPipeline(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/sse/refresh-all", nil)
	w := httptest.NewRecorder()

	handlers.HandleRefreshAll(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	body := w.Body.String()
	for _, signal := range []string{"topCustomers", "modelParams", "runStats"} {
		if !strings.Contains(body, signal) {
			t.Errorf("response should contain %q signal", signal)
		}
	}

	if !strings.Contains(body, "<table") {
		t.Error("response should contain HTML table for segments")
	}
}

// Test SSE headers consistency
func TestSSEHandlers_HeaderConsistency(t *testing.T) {
	handlers := NewSSEHandlers(createTestPipeline(), testLogger())

	sseEndpoints := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"segments", handlers.HandleSegments},
		{"top-customers", handlers.HandleTopCustomers},
		{"refresh-all", handlers.HandleRefreshAll},
	}

	for _, endpoint := range sseEndpoints {
		t.Run(endpoint.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			endpoint.handler(w, req)

			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
				t.Errorf("expected content-type to contain 'text/event-stream', got %q", ct)
			}
			if w.Body.Len() == 0 {
				t.Error("response should not be empty")
			}
		})
	}
}
