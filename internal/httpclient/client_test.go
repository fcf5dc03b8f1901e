package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/internal/utils"
)

func TestCreateClientDefaults(t *testing.T) {
	f := NewFactory(Options{})
	c := f.CreateDefaultClient()
	assert.Zero(t, c.Timeout, "streaming clients rely on request contexts")

	c = f.CreateClient(Options{Timeout: 5 * time.Second})
	assert.Equal(t, 5*time.Second, c.Timeout)
}

func TestUserAgentIsSetWhenMissing(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c := NewFactory(Options{}).CreateDefaultClient()

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom/2")
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{utils.UserAgent, "custom/2"}, seen)
}
