package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLocalhostOnly(t *testing.T) {
	engine := gin.New()
	engine.GET("/admin", NewLocalhostOnly(logrus.StandardLogger(), []string{"10.0.0.0/8", "192.168.1.7", "bad/cidr"}).Restrict(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		remote string
		want   int
	}{
		{"127.0.0.1:1000", http.StatusNoContent},
		{"[::1]:1000", http.StatusNoContent},
		{"10.4.5.6:1000", http.StatusNoContent},
		{"192.168.1.7:1000", http.StatusNoContent},
		{"192.168.1.8:1000", http.StatusForbidden},
		{"203.0.113.9:1000", http.StatusForbidden},
	}
	for _, tc := range cases {
		w := serve(engine, http.MethodGet, "/admin", "", tc.remote)
		assert.Equal(t, tc.want, w.Code, tc.remote)
	}
}

func TestLocalhostOnlyWithoutWhitelist(t *testing.T) {
	l := NewLocalhostOnly(logrus.StandardLogger(), nil)
	assert.True(t, l.isAllowedIP("127.0.0.1"))
	assert.True(t, l.isAllowedIP("localhost"))
	assert.False(t, l.isAllowedIP("10.0.0.1"))
}
