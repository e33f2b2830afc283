package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/cadence-api/internal/api/shared"
	"github.com/stretchr/testify/assert"
)

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	run := func(header string) (string, *httptest.ResponseRecorder) {
		var seen string
		h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = shared.GetTraceID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(shared.TraceIDHeader, header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return seen, rr
	}

	generated, rr := run("")
	assert.Len(t, generated, 32)
	assert.Equal(t, generated, rr.Header().Get(shared.TraceIDHeader))

	reused, _ := run("abc-12345-def")
	assert.Equal(t, "abc-12345-def", reused)

	replaced, _ := run("bad id with spaces")
	assert.NotEqual(t, "bad id with spaces", replaced)
	assert.Len(t, replaced, 32)
}
