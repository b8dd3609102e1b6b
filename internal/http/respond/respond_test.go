package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, w.Body.String())
	}
	return out
}

func TestSuccessDefaults(t *testing.T) {
	w := serve(func(c *gin.Context) { respond.Success(c, gin.H{"a": 1}, "", 0) })

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["success"] != true || body["message"] != "Success" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["error"]; ok {
		t.Fatalf("success envelope must not carry error: %v", body)
	}
}

func TestSuccessCustomStatus(t *testing.T) {
	w := serve(func(c *gin.Context) { respond.Success(c, "x", "Created", http.StatusCreated) })
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
}

func TestErrorDefaults(t *testing.T) {
	w := serve(func(c *gin.Context) { respond.Error(c, "nope", 0) })

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decode(t, w)
	if body["success"] != false || body["error"] != "nope" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["data"]; ok {
		t.Fatalf("error envelope must not carry data: %v", body)
	}
}

func TestPaginated(t *testing.T) {
	w := serve(func(c *gin.Context) { respond.Paginated(c, []string{"a", "b"}, 2, 5, 12) })

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Success    bool                `json:"success"`
		Data       []string            `json:"data"`
		Pagination respond.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := respond.Pagination{Page: 2, Limit: 5, Total: 12, TotalPages: 3}
	if !body.Success || len(body.Data) != 2 || body.Pagination != want {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestPaginatedEmptyKeepsDataArray(t *testing.T) {
	w := serve(func(c *gin.Context) { respond.Paginated[string](c, nil, 1, 10, 0) })

	body := decode(t, w)
	data, ok := body["data"].([]any)
	if !ok || len(data) != 0 {
		t.Fatalf("expected empty data array, got %v", body["data"])
	}
}

func TestTotalPages(t *testing.T) {
	cases := map[[2]int64]int{
		{12, 5}: 3,
		{10, 5}: 2,
		{0, 5}:  0,
		{1, 10}: 1,
	}
	for in, want := range cases {
		if got := respond.TotalPages(in[0], int(in[1])); got != want {
			t.Fatalf("TotalPages(%d,%d) = %d, want %d", in[0], in[1], got, want)
		}
	}
}

func TestFail(t *testing.T) {
	w := serve(func(c *gin.Context) { respond.Fail(c, apperr.Forbidden("Insufficient permissions")) })
	if w.Code != http.StatusForbidden || decode(t, w)["error"] != "Insufficient permissions" {
		t.Fatalf("unexpected %d %s", w.Code, w.Body.String())
	}

	w = serve(func(c *gin.Context) { respond.Fail(c, errors.New("pq: password authentication failed")) })
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := decode(t, w)["error"]; got != "Internal server error" {
		t.Fatalf("internal details leaked: %v", got)
	}
}
