// Package swagger serves the OpenAPI description of the HTTP API and a
// Swagger UI page backed by it.
package swagger

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/gatehouse-io/gatehouse/pkg/httputil"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Handlers serves the API documentation endpoints
type Handlers struct{}

// NewHandlers creates the documentation handler group
func NewHandlers() *Handlers {
	return &Handlers{}
}

// RegisterRoutes registers the documentation routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/openapi.yaml", h.serveYAML).Methods("GET")
	router.HandleFunc("/openapi.json", h.serveJSON).Methods("GET")
	router.HandleFunc("/api-docs", h.serveUI).Methods("GET")
}

func (h *Handlers) serveYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(openapiSpec)
}

func (h *Handlers) serveJSON(w http.ResponseWriter, r *http.Request) {
	var doc interface{}
	if err := yaml.Unmarshal(openapiSpec, &doc); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(doc)
}

func (h *Handlers) serveUI(w http.ResponseWriter, r *http.Request) {
	tmpl := template.Must(template.New("swagger").Parse(swaggerUITemplate))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, nil); err != nil {
		httputil.WriteInternalError(w)
	}
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Gatehouse API</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({
    url: "/openapi.yaml",
    dom_id: '#swagger-ui',
    deepLinking: true,
    requestInterceptor: function(request) {
      const token = localStorage.getItem('gatehouse_session_token');
      if (token) {
        request.headers['Authorization'] = 'Bearer ' + token;
      }
      return request;
    }
  });
};
</script>
</body>
</html>`
