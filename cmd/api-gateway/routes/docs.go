package routes

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apitypes "github.com/lgulliver/openapi-gateway/cmd/api-gateway/types"
	"github.com/lgulliver/openapi-gateway/internal/openapi"
	"github.com/lgulliver/openapi-gateway/pkg/apiversion"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// DocsConfig controls the document endpoints and reference UIs
type DocsConfig struct {
	Title            string
	Exposed          []apiversion.Version
	Deprecated       []apiversion.Version
	PreferredSchemes []string
	UIEnabled        bool
}

// DocumentPath returns the URL of the JSON document of v
func DocumentPath(v apiversion.Version) string {
	return "/openapi/" + v.String() + ".json"
}

// DocsRoutes sets up the document endpoints and, when enabled, Swagger UI
// and the Scalar reference page
func DocsRoutes(router gin.IRouter, docs DocumentStoreInterface, cfg DocsConfig) {
	router.GET("/openapi", handleDocumentIndex(docs, cfg))
	router.GET("/openapi/:document", handleDocument(docs))

	if !cfg.UIEnabled || len(cfg.Exposed) == 0 {
		return
	}

	for _, v := range cfg.Exposed {
		router.GET("/swagger/"+v.String()+"/*any", ginSwagger.WrapHandler(
			swaggerFiles.NewHandler(),
			ginSwagger.URL(DocumentPath(v)),
			ginSwagger.PersistAuthorization(true),
			ginSwagger.DefaultModelsExpandDepth(-1),
		))
	}

	latest, _ := apiversion.Latest(cfg.Exposed)
	router.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/swagger/"+latest.String()+"/index.html")
	})
	router.GET("/scalar", handleScalar(cfg))
}

func handleDocumentIndex(docs DocumentStoreInterface, cfg DocsConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		index := apitypes.DocumentIndex{Documents: []apitypes.DocumentLink{}}
		for _, entry := range docs.Entries() {
			index.Documents = append(index.Documents, apitypes.DocumentLink{
				Version:    entry.Version.String(),
				URL:        DocumentPath(entry.Version),
				YAMLURL:    "/openapi/" + entry.Version.String() + ".yaml",
				ETag:       entry.ETag,
				BuildID:    entry.BuildID.String(),
				BuiltAt:    entry.BuiltAt,
				Restored:   entry.Restored,
				Deprecated: apiversion.Contains(cfg.Deprecated, entry.Version),
			})
		}
		c.JSON(http.StatusOK, index)
	}
}

func handleDocument(docs DocumentStoreInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("document")

		var format string
		switch {
		case strings.HasSuffix(name, ".json"):
			format = "json"
		case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
			format = "yaml"
		default:
			c.JSON(http.StatusNotFound, apitypes.ErrorResponse{Error: "document not found", Code: "DOCUMENT_NOT_FOUND"})
			return
		}

		v, err := apiversion.Parse(name[:strings.LastIndex(name, ".")])
		if err != nil {
			c.JSON(http.StatusNotFound, apitypes.ErrorResponse{Error: "document not found", Details: err.Error(), Code: "DOCUMENT_NOT_FOUND"})
			return
		}

		entry, err := docs.Get(v.String())
		if errors.Is(err, openapi.ErrDocumentNotFound) {
			// nothing published yet, build on demand
			entry, err = docs.Rebuild(c.Request.Context(), v)
		}
		if err != nil {
			if errors.Is(err, openapi.ErrDocumentNotFound) {
				c.JSON(http.StatusNotFound, apitypes.ErrorResponse{Error: "document not found", Details: err.Error(), Code: "DOCUMENT_NOT_FOUND"})
				return
			}
			log.Error().Err(err).Str("version", v.String()).Msg("Document unavailable")
			c.JSON(http.StatusServiceUnavailable, apitypes.ErrorResponse{Error: "document unavailable", Details: err.Error(), Code: "DOCUMENT_UNAVAILABLE"})
			return
		}

		etag := entry.ETag
		if format == "yaml" {
			etag = strings.TrimSuffix(etag, `"`) + `-yaml"`
		}
		c.Header("ETag", etag)
		c.Header("Cache-Control", "no-cache")
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}

		if format == "json" {
			c.Data(http.StatusOK, "application/json; charset=utf-8", entry.JSON)
			return
		}

		data, err := openapi.DocumentYAML(entry.JSON)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apitypes.ErrorResponse{Error: "failed to render document", Details: err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", data)
	}
}

var scalarPage = template.Must(template.New("scalar").Parse(`<!doctype html>
<html>
<head>
<title>{{.Title}}</title>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
</head>
<body>
<div id="app"></div>
<script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
<script>Scalar.createApiReference('#app', {{.Config}});</script>
</body>
</html>
`))

type scalarSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Default bool   `json:"default,omitempty"`
}

type scalarAuthentication struct {
	PreferredSecurityScheme []string `json:"preferredSecurityScheme,omitempty"`
}

type scalarConfig struct {
	Sources        []scalarSource       `json:"sources"`
	Authentication scalarAuthentication `json:"authentication"`
}

func handleScalar(cfg DocsConfig) gin.HandlerFunc {
	latest, _ := apiversion.Latest(cfg.Exposed)

	config := scalarConfig{Authentication: scalarAuthentication{PreferredSecurityScheme: cfg.PreferredSchemes}}
	for _, v := range cfg.Exposed {
		config.Sources = append(config.Sources, scalarSource{
			Title:   strings.TrimSpace(cfg.Title + " " + v.String()),
			URL:     DocumentPath(v),
			Default: v.Equal(latest),
		})
	}

	return func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		err := scalarPage.Execute(c.Writer, struct {
			Title  string
			Config scalarConfig
		}{Title: cfg.Title, Config: config})
		if err != nil {
			log.Error().Err(err).Msg("Failed to render reference page")
		}
	}
}
