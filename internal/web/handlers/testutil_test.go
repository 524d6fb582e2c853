package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	recmock "github.com/kozaktomas/face-attendance/internal/recognition/mock"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// testDay is the school day every handler test runs on
var testDay = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

const (
	testClass      = int64(1)
	testOtherClass = int64(2)
	testStudentA   = int64(21)
	testStudentB   = int64(22)
	testStudentX   = int64(23)
	testTeacherID  = int64(50)
)

var (
	adminPrincipal   = attendance.Principal{UserID: 1, Role: database.RoleAdmin}
	teacherPrincipal = attendance.Principal{UserID: 900, Role: database.RoleTeacher}
	studentPrincipal = attendance.Principal{UserID: testStudentA, Role: database.RoleStudent}
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Media: config.MediaConfig{URL: "/media/"},
		Policy: config.PolicyConfig{
			Match:  config.MatchPolicy{Tolerance: 0.4, DistanceMetric: "euclidean"},
			Index:  config.IndexPolicy{FreshnessSeconds: 30},
			Excuse: config.ExcusePolicy{DailyLimit: 5},
			Image:  config.ImagePolicy{MaxSide: 1600},
		},
	}
}

type testEnv struct {
	handler *AttendanceHandler
	roster  *mock.MockRoster
	store   *mock.MockLedgerStore
	ext     *recmock.MockExtractor
}

func int64Ptr(v int64) *int64 { return &v }

// newTestEnv wires an attendance handler over in-memory stores. Class 1 has
// students A (embedding {0,0}) and B, class 2 has X. The teacher (user 900)
// teaches class 1 only.
func newTestEnv(t *testing.T, ext *recmock.MockExtractor) *testEnv {
	t.Helper()
	roster := mock.NewMockRoster()
	roster.AddClass(database.SchoolClass{ID: testClass, Grade: 5, Section: "b", AcademicYearID: int64Ptr(7), AcademicYear: "2023-2024"})
	roster.AddClass(database.SchoolClass{ID: testOtherClass, Grade: 6, Section: "a", AcademicYearID: int64Ptr(7), AcademicYear: "2023-2024"})
	roster.AddStudent(database.Student{ID: testStudentA, Username: "alice", FirstName: "Alice", LastName: "Archer", RollNumber: "1", ClassID: int64Ptr(testClass), PhotoPath: "students/alice.jpg", FaceEncoding: database.Embedding{0, 0}})
	roster.AddStudent(database.Student{ID: testStudentB, Username: "bob", FirstName: "Bob", LastName: "Baker", RollNumber: "2", ClassID: int64Ptr(testClass)})
	roster.AddStudent(database.Student{ID: testStudentX, Username: "xena", FirstName: "Xena", RollNumber: "1", ClassID: int64Ptr(testOtherClass)})
	roster.AddTeacher(database.Teacher{ID: testTeacherID, UserID: teacherPrincipal.UserID, ClassIDs: []int64{testClass}})
	store := mock.NewMockLedgerStore(roster)

	clock := func() time.Time { return testDay.Add(9 * time.Hour) }
	l := ledger.New(roster, store, ledger.WithClock(clock), ledger.WithDailyLimit(2))
	cache := faceindex.NewCache(faceindex.NewBuilder(roster, ext, fstest.MapFS{}), time.Minute, faceindex.WithClock(clock))
	svc := attendance.NewService(roster, cache, facematch.NewMatcher(ext), l)

	return &testEnv{
		handler: NewAttendanceHandler(svc, nil),
		roster:  roster,
		store:   store,
		ext:     ext,
	}
}

// pngDataURL returns a tiny PNG frame as a data URL
func pngDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(3, 3, color.RGBA{0, 128, 255, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// requestAs creates a request authenticated as p. A nil body sends no body.
func requestAs(t *testing.T, p attendance.Principal, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.SetPrincipalInContext(req.Context(), p))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
