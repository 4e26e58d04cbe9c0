package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
)

const (
	// SupportedVersionsHeader lists every version the API serves
	SupportedVersionsHeader = "api-supported-versions"
	// DeprecatedVersionsHeader lists versions scheduled for removal
	DeprecatedVersionsHeader = "api-deprecated-versions"
)

// ReportAPIVersions advertises the supported and deprecated versions on
// every response
func ReportAPIVersions(supported, deprecated []apiversion.Version) gin.HandlerFunc {
	supportedValue := strings.Join(apiversion.Strings(apiversion.Sort(supported)), ", ")
	deprecatedValue := strings.Join(apiversion.Strings(apiversion.Sort(deprecated)), ", ")

	return func(c *gin.Context) {
		if supportedValue != "" {
			c.Header(SupportedVersionsHeader, supportedValue)
		}
		if deprecatedValue != "" {
			c.Header(DeprecatedVersionsHeader, deprecatedValue)
		}
		c.Next()
	}
}
