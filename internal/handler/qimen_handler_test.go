package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"qimen-smart-go/internal/config"
	"qimen-smart-go/pkg/qimenapi"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQimenRouter(client qimenapi.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/qimen/proxy", NewQimenHandler(client, nil).Proxy)
	return r
}

func postForm(r *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/qimen/proxy",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestQimenProxyOverwritesAPIKey(t *testing.T) {
	var gotForm url.Values
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errcode":0,"data":{"gongli":"2024-01-01 12:00:00"}}`))
	}))
	defer upstream.Close()

	client := qimenapi.NewClient(config.QimenConfig{APIKey: "server-secret", APIURL: upstream.URL})
	r := newQimenRouter(client)

	// 客户端伪造的 api_key 必须被服务端凭证覆盖
	w := postForm(r, url.Values{
		"api_key": {"client-fake"},
		"year":    {"2024"},
		"month":   {"1"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"errcode":0,"data":{"gongli":"2024-01-01 12:00:00"}}`, w.Body.String())
	assert.Equal(t, "server-secret", gotForm.Get("api_key"))
	assert.Equal(t, "2024", gotForm.Get("year"))
}

func TestQimenProxyUpstreamNon2xx(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer upstream.Close()

	client := qimenapi.NewClient(config.QimenConfig{APIKey: "k", APIURL: upstream.URL})
	w := postForm(newQimenRouter(client), url.Values{"year": {"2024"}})

	// 上游状态码透传，响应体进入 details
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "排盘请求失败", body["error"])
	assert.Contains(t, body["details"], "upstream exploded")
}

func TestQimenProxyNetworkFailure(t *testing.T) {
	// 指向已关闭的地址，触发传输层错误
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	client := qimenapi.NewClient(config.QimenConfig{APIKey: "k", APIURL: upstream.URL})
	w := postForm(newQimenRouter(client), url.Values{"year": {"2024"}})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}
