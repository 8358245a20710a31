package server

import (
	"html/template"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/appcore/errors"
)

// DocsInfo describes the API in the generated OpenAPI document.
type DocsInfo struct {
	Title       string
	Version     string
	Description string
}

var pathParam = regexp.MustCompile(`[:*]([A-Za-z0-9_]+)`)

// RegisterDocs serves prefix/openapi.json, prefix/docs (Swagger UI) and
// prefix/redoc. The document is built and validated from the routes
// registered at the time of the first request, so routes added after
// RegisterDocs appear.
func (s *Server) RegisterDocs(prefix string, info DocsInfo) {
	prefix = strings.TrimRight(prefix, "/")
	specURL := prefix + "/openapi.json"

	var (
		once   sync.Once
		doc    *openapi3.T
		docErr error
	)
	s.engine.GET(specURL, func(c *gin.Context) {
		once.Do(func() {
			doc = buildOpenAPI(s.engine, prefix, info)
			if docErr = doc.Validate(c.Request.Context()); docErr != nil {
				s.log.Error("Generated OpenAPI document is invalid", map[string]interface{}{
					"error": docErr.Error(),
				})
			}
		})
		if docErr != nil {
			RespondWithError(c, apperrors.Internal(docErr))
			return
		}
		c.JSON(http.StatusOK, doc)
	})
	s.engine.GET(prefix+"/docs", renderDocsPage(swaggerPage, info.Title, specURL))
	s.engine.GET(prefix+"/redoc", renderDocsPage(redocPage, info.Title, specURL))
}

// buildOpenAPI produces an OpenAPI 3.0 document listing every route under
// prefix, excluding the docs routes themselves.
func buildOpenAPI(engine *gin.Engine, prefix string, info DocsInfo) *openapi3.T {
	version := info.Version
	if version == "" {
		version = "0.0.0"
	}
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       info.Title,
			Version:     version,
			Description: info.Description,
		},
		Paths: openapi3.NewPaths(),
	}

	for _, r := range sortedRoutes(engine) {
		if prefix != "" && r.Path != prefix && !strings.HasPrefix(r.Path, prefix+"/") {
			continue
		}
		if isDocsPath(r.Path) {
			continue
		}

		oaPath := pathParam.ReplaceAllString(r.Path, "{$1}")
		item := doc.Paths.Value(oaPath)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(oaPath, item)
		}

		op := openapi3.NewOperation()
		op.OperationID = operationID(r.Method, r.Path)
		op.Summary = formatHandlerName(r.Handler)
		op.Parameters = pathParams(r.Path)
		op.Responses = openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
				Value: openapi3.NewResponse().WithDescription("Successful response"),
			}),
			openapi3.WithName("default", openapi3.NewResponse().WithDescription("Error response")),
		)
		item.SetOperation(r.Method, op)
	}
	return doc
}

func isDocsPath(path string) bool {
	for _, suffix := range docsSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func pathParams(path string) openapi3.Parameters {
	matches := pathParam.FindAllStringSubmatch(path, -1)
	params := make(openapi3.Parameters, 0, len(matches))
	for _, m := range matches {
		params = append(params, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(m[1]).WithSchema(openapi3.NewStringSchema()),
		})
	}
	return params
}

// operationID turns "GET /api/notes/:id" into "get_api_notes_id".
func operationID(method, path string) string {
	cleaned := strings.NewReplacer(":", "", "*", "", "-", "_", ".", "_").Replace(path)
	parts := strings.FieldsFunc(cleaned, func(r rune) bool { return r == '/' })
	return strings.ToLower(method) + "_" + strings.Join(parts, "_")
}

type docsPage struct {
	Title   string
	SpecURL string
}

func renderDocsPage(tmpl *template.Template, title, specURL string) gin.HandlerFunc {
	data := docsPage{Title: title, SpecURL: specURL}
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		_ = tmpl.Execute(c.Writer, data)
	}
}

var swaggerPage = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{.Title}} - Swagger UI</title>
<meta charset="utf-8">
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.ui = SwaggerUIBundle({url: "{{.SpecURL}}", dom_id: "#swagger-ui"});
</script>
</body>
</html>
`))

var redocPage = template.Must(template.New("redoc").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{.Title}} - ReDoc</title>
<meta charset="utf-8">
</head>
<body>
<redoc spec-url="{{.SpecURL}}"></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc@2/bundles/redoc.standalone.js"></script>
</body>
</html>
`))
