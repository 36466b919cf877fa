package endpoint

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
)

// requestSpec describes one request against a router. A string body is sent
// as-is with a JSON content type; any other non-nil body is marshalled.
type requestSpec struct {
	method       string
	registerPath string
	requestPath  string
	handler      gin.HandlerFunc
	body         interface{}
	headers      map[string]string
}

func performRequest(r *gin.Engine, rs requestSpec) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	var reader *strings.Reader
	setJSONHeader := false
	switch v := rs.body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(v)
		setJSONHeader = true
	default:
		b, _ := json.Marshal(rs.body)
		reader = strings.NewReader(string(b))
		setJSONHeader = true
	}

	req := httptest.NewRequest(rs.method, rs.requestPath, reader)
	if setJSONHeader {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range rs.headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			return w, nil, err
		}
	}
	return w, response, nil
}

func doRequestWithHandler(r *gin.Engine, rs requestSpec) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	switch rs.method {
	case http.MethodGet:
		r.GET(rs.registerPath, rs.handler)
	case http.MethodPost:
		r.POST(rs.registerPath, rs.handler)
	case http.MethodPut:
		r.PUT(rs.registerPath, rs.handler)
	default:
		r.Handle(rs.method, rs.registerPath, rs.handler)
	}
	return performRequest(r, rs)
}
