package Controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func postLead(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/leads", CreateLead)

	req := httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateLead_ValidationBeforeAnyWrite(t *testing.T) {
	cases := map[string]string{
		"malformed json": `{"email":`,
		"no contact":     `{"name":"A","consent_share_with_therapists":true,"privacy_version":"v1"}`,
		"bad email":      `{"email":"not-an-email","consent_share_with_therapists":true,"privacy_version":"v1"}`,
		"bad phone":      `{"phone_number":"030 1234567","consent_share_with_therapists":true,"privacy_version":"v1"}`,
		"no consent":     `{"email":"a@example.com","privacy_version":"v1"}`,
		"no privacy":     `{"email":"a@example.com","consent_share_with_therapists":true}`,
	}
	for name, body := range cases {
		w := postLead(t, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "case %s", name)
	}
}
