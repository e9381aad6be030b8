package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/courseforge/courseforge/internal/domain"
)

func TestCreateCourseEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	body := `{"repo_url": "https://github.com/acme/widgets", "title": "Widgets Internals", "complexity": "advanced"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/courses", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateCourse(c); err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var course domain.Course
	if err := json.Unmarshal(rec.Body.Bytes(), &course); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if course.CourseID == "" {
		t.Fatal("expected a course_id in the response")
	}
	if course.Complexity != domain.ComplexityAdvanced {
		t.Errorf("expected complexity advanced, got %s", course.Complexity)
	}
	if course.Stage != domain.StageDocuments {
		t.Errorf("expected stage documents, got %s", course.Stage)
	}
}

func TestCreateCourseEndpointRejectsBadRequests(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"repo_url": `},
		{"missing title", `{"repo_url": "https://github.com/acme/widgets"}`},
		{"unknown complexity", `{"repo_url": "https://github.com/acme/widgets", "title": "Widgets", "complexity": "impossible"}`},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/courses", strings.NewReader(tc.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := h.CreateCourse(c); err != nil {
			t.Fatalf("%s: CreateCourse failed: %v", tc.name, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestGetCourseEndpoint(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	e := echo.New()

	course, err := svc.CreateCourse(t.Context(), domain.CreateCourseRequest{
		RepoURL: "https://github.com/acme/widgets",
		Title:   "Widgets Internals",
	})
	if err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("course_id")
	c.SetParamValues(course.CourseID)

	if err := h.GetCourse(c); err != nil {
		t.Fatalf("GetCourse failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got domain.Course
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.CourseID != course.CourseID {
		t.Errorf("expected course %s, got %s", course.CourseID, got.CourseID)
	}
}

func TestGetCourseEndpointNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("course_id")
	c.SetParamValues("course_missing")

	if err := h.GetCourse(c); err != nil {
		t.Fatalf("GetCourse failed: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListCoursesEndpoint(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	e := echo.New()

	for _, title := range []string{"Widgets Internals", "Gadgets Internals"} {
		if _, err := svc.CreateCourse(t.Context(), domain.CreateCourseRequest{
			RepoURL: "https://github.com/acme/repo",
			Title:   title,
		}); err != nil {
			t.Fatalf("CreateCourse failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/courses", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListCourses(c); err != nil {
		t.Fatalf("ListCourses failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Courses []domain.Course `json:"courses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Courses) != 2 {
		t.Errorf("expected 2 courses, got %d", len(resp.Courses))
	}
}

func TestIngestDocumentsEndpoint(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	e := echo.New()

	course, err := svc.CreateCourse(t.Context(), domain.CreateCourseRequest{
		RepoURL: "https://github.com/acme/widgets",
		Title:   "Widgets Internals",
	})
	if err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}

	body := `{"documents": [
		{"path": "internal/server/server.go", "content": "package server", "summary": "HTTP entrypoint"},
		{"path": "internal/store/store.go", "content": "package store", "key_concepts": ["persistence"]}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("course_id")
	c.SetParamValues(course.CourseID)

	if err := h.IngestDocuments(c); err != nil {
		t.Fatalf("IngestDocuments failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		CourseID string `json:"course_id"`
		Ingested int    `json:"ingested"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Ingested != 2 {
		t.Errorf("expected 2 ingested documents, got %d", resp.Ingested)
	}
}

func TestIngestDocumentsEndpointUnknownCourse(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	body := `{"documents": [{"path": "main.go", "content": "package main"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("course_id")
	c.SetParamValues("course_missing")

	if err := h.IngestDocuments(c); err != nil {
		t.Fatalf("IngestDocuments failed: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListDocumentsEndpoint(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	e := echo.New()

	course, err := svc.CreateCourse(t.Context(), domain.CreateCourseRequest{
		RepoURL: "https://github.com/acme/widgets",
		Title:   "Widgets Internals",
	})
	if err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}
	if _, err := svc.IngestDocuments(t.Context(), course.CourseID, domain.IngestDocumentsRequest{
		Documents: []domain.DocumentInput{{Path: "main.go", Content: "package main"}},
	}); err != nil {
		t.Fatalf("IngestDocuments failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("course_id")
	c.SetParamValues(course.CourseID)

	if err := h.ListDocuments(c); err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Documents []domain.AnalyzedDocument `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Documents) != 1 {
		t.Errorf("expected 1 document, got %d", len(resp.Documents))
	}
	if resp.Documents[0].Filename != "main.go" {
		t.Errorf("expected filename main.go, got %s", resp.Documents[0].Filename)
	}
}
