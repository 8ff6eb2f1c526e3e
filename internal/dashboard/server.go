// Package dashboard serves a read-only HTTP view of a relay base directory:
// per-worker task counts, the message store, output artifacts and activity
// logs. Nothing it serves marks a message read.
package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/relay/internal/config"
	"github.com/zulandar/relay/internal/messaging"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Config *config.Config
	Store  messaging.Store
	Port   int
	Out    io.Writer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("dashboard: config is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("dashboard: store is required")
	}

	router := gin.New()
	router.Use(gin.Recovery())

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, &source{cfg: opts.Config, layout: opts.Config.Layout(), store: opts.Store, now: time.Now})
	return router, nil
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 && opts.Config != nil {
		opts.Port = opts.Config.Dashboard.Port
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("index.html").Parse(indexHTML)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>relay dashboard</title>
<meta http-equiv="refresh" content="10">
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
td, th { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
.stale { color: #b91c1c; }
</style>
</head>
<body>
<h1>relay</h1>
<p>Base directory: <code>{{.Status.BaseDir}}</code> &middot; {{.Status.Time}}</p>

<h2>Workers</h2>
<table>
<tr><th>Worker</th><th>Pending</th><th>Completed</th><th>Last activity</th></tr>
{{range .Status.Workers}}<tr{{if .Stale}} class="stale"{{end}}><td>{{.Role}}</td><td>{{.Pending}}</td><td>{{.Completed}}</td><td>{{.LastActivity}}</td></tr>
{{end}}</table>

<h2>Recent messages</h2>
<table>
<tr><th>Time</th><th>From</th><th>To</th><th>Subject</th><th>Priority</th><th>Read</th></tr>
{{range .Messages}}<tr><td>{{.Timestamp}}</td><td>{{.From}}</td><td>{{.To}}</td><td>{{.Subject}}</td><td>{{.Priority}}</td><td>{{.Read}}</td></tr>
{{end}}</table>

<h2>Output</h2>
<ul>
{{range .Outputs}}<li>{{.Name}} ({{.Size}} bytes)</li>
{{end}}</ul>
</body>
</html>
`
