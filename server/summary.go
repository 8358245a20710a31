package server

import (
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/appcore/component"
)

// System route paths registered by RegisterDefaultEndpoints.
var systemPaths = map[string]bool{
	"/health": true,
	"/alive":  true,
	"/ready":  true,
	"/info":   true,
}

// Docs routes live under the API prefix, so they are matched by suffix.
var docsSuffixes = []string{"/openapi.json", "/docs", "/redoc"}

func isSystemPath(path string) bool {
	if systemPaths[path] {
		return true
	}
	for _, suffix := range docsSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// sortedRoutes returns the engine routes with API routes first (by path,
// then method) and system routes last.
func sortedRoutes(engine *gin.Engine) gin.RoutesInfo {
	routes := engine.Routes()
	sort.SliceStable(routes, func(i, j int) bool {
		iSys := isSystemPath(routes[i].Path)
		jSys := isSystemPath(routes[j].Path)
		if iSys != jSys {
			return !iSys
		}
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return methodOrder(routes[i].Method) < methodOrder(routes[j].Method)
	})
	return routes
}

// summaryRoutes converts engine routes for the startup summary.
func summaryRoutes(engine *gin.Engine) []component.Route {
	ginRoutes := sortedRoutes(engine)
	routes := make([]component.Route, 0, len(ginRoutes))
	for _, r := range ginRoutes {
		handler := formatHandlerName(r.Handler)
		if isSystemPath(r.Path) {
			handler += " (system)"
		}
		routes = append(routes, component.Route{
			Method:  r.Method,
			Path:    r.Path,
			Handler: handler,
		})
	}
	return routes
}

// formatHandlerName extracts a short handler name from Gin's full handler
// path, e.g. "github.com/acme/svc/internal/api.(*NoteAPI).List-fm" becomes
// "NoteAPI.List".
func formatHandlerName(fullPath string) string {
	name := strings.TrimSuffix(fullPath, "-fm")

	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")

	// Closures such as "endpoint.Health.func1" keep the enclosing name.
	if strings.Contains(name, ".func") {
		parts := strings.Split(name, ".")
		for i := len(parts) - 1; i >= 0; i-- {
			if !strings.HasPrefix(parts[i], "func") {
				name = strings.ToLower(parts[i])
				break
			}
		}
	}

	// Drop a lowercase package prefix.
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 && len(parts[1]) > 0 && strings.ToLower(parts[0]) == parts[0] {
		name = parts[1]
	}

	return name
}

// methodOrder returns a sort key for HTTP methods (GET first, DELETE last).
func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}
