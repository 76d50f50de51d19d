package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	billingAllowHeaders = []string{"Content-Type", "Stripe-Signature"}
	billingAllowMethods = []string{http.MethodPost, http.MethodOptions}
)

// CORSMiddleware handles CORS for the token-authenticated routes.
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:              []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:                    12 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	})
}

var (
	billingHeaderList = strings.Join(billingAllowHeaders, ", ")
	billingMethodList = strings.Join(billingAllowMethods, ", ")
)

// BillingCORSHeaders writes the billing CORS header set on every response,
// whether or not the request carries an Origin header.
func BillingCORSHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		SetBillingCORSHeaders(c.Writer.Header())
		c.Next()
	}
}

// SetBillingCORSHeaders sets the billing CORS header set on h. Handlers that
// run outside the billing route group use it directly.
func SetBillingCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", billingHeaderList)
	h.Set("Access-Control-Allow-Methods", billingMethodList)
}
