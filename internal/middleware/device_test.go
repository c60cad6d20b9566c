package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/classboard/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(m *DeviceMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Identify())
	r.GET("/whoami", func(c *gin.Context) {
		id, err := response.GetDeviceID(c)
		if err != nil {
			response.ResponseError(c, err)
			return
		}
		c.String(http.StatusOK, id)
	})
	return r
}

func TestIssuesTokenForNewDevice(t *testing.T) {
	r := newRouter(NewDeviceMiddleware("secret", time.Hour, false))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	require.Equal(t, http.StatusOK, w.Code)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
	assert.NotEmpty(t, w.Header().Get(DeviceTokenHeader))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DeviceCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestReusesValidToken(t *testing.T) {
	m := NewDeviceMiddleware("secret", time.Hour, false)
	r := newRouter(m)
	id := uuid.NewString()
	token, err := m.Issue(id)
	require.NoError(t, err)

	sources := map[string]func(*http.Request){
		"cookie": func(req *http.Request) { req.AddCookie(&http.Cookie{Name: DeviceCookie, Value: token}) },
		"bearer": func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) },
		"query": func(req *http.Request) {
			q := req.URL.Query()
			q.Set("token", token)
			req.URL.RawQuery = q.Encode()
		},
	}
	for name, apply := range sources {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			apply(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, id, w.Body.String())
			assert.Empty(t, w.Header().Get(DeviceTokenHeader))
		})
	}
}

func TestReplacesForeignOrExpiredToken(t *testing.T) {
	m := NewDeviceMiddleware("secret", time.Hour, false)
	r := newRouter(m)
	id := uuid.NewString()

	other := NewDeviceMiddleware("other-secret", time.Hour, false)
	forged, err := other.Issue(id)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := m.Issue(id)
	require.NoError(t, err)
	m.now = time.Now

	for _, token := range []string{forged, expired, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.NotEqual(t, id, w.Body.String())
		assert.NotEmpty(t, w.Header().Get(DeviceTokenHeader))
	}
}
