package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/Majd-SaaS/prospection/internal/domain"
	"github.com/Majd-SaaS/prospection/internal/result"
)

// Server is the loopback callback endpoint pair for one follow run. The
// launch route hands the browser a payload-carrying redirect page; the
// report route is the only write path into the result store. Binding to an
// ephemeral loopback port means concurrent runs on one host never collide
// and nothing is exposed off-machine.
type Server struct {
	Results *result.Store

	ln   net.Listener
	srv  *http.Server
	port int
}

func New(results *result.Store) *Server {
	return &Server{Results: results}
}

// Start binds 127.0.0.1:0 and serves in the background. Bind failure is
// fatal to the run.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("bind callback server: %w", err)
	}
	s.ln = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.srv = &http.Server{Handler: Handler(s.Results, s.port)}
	go s.srv.Serve(ln)
	return nil
}

// Port returns the bound callback port. Valid after Start.
func (s *Server) Port() int { return s.port }

// LaunchURL builds the launcher address for one task.
func (s *Server) LaunchURL(task domain.Task) string {
	q := url.Values{}
	q.Set("task_id", task.ID)
	q.Set("url", task.URL)
	q.Set("duration", strconv.Itoa(task.Duration))
	return fmt.Sprintf("http://127.0.0.1:%d/launch?%s", s.port, q.Encode())
}

// Shutdown stops listening and waits for in-flight handlers. Reports that
// arrive afterwards get connection refused at the sender.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type reportInput struct {
	Body domain.Report
}

// Handler builds the callback routes. The report operation goes through huma
// so the JSON body is schema-validated; the launch route serves HTML and is
// registered straight on chi.
func Handler(results *result.Store, port int) http.Handler {
	router := chi.NewRouter()

	hcfg := huma.DefaultConfig("Prospection callback", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// The extension treats anything but 204 as a client bug; keep
			// malformed bodies at 400.
			status = http.StatusBadRequest
		}
		return huma.NewError(status, msg, errs...)
	}
	api := humachi.New(router, hcfg)

	huma.Register(api, huma.Operation{
		OperationID:   "report-outcome",
		Method:        http.MethodPost,
		Path:          "/report",
		Summary:       "Receive the extension's outcome for one task",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, in *reportInput) (*struct{}, error) {
		r := in.Body
		if r.TaskID == "" || r.URL == "" || r.Status == "" {
			return nil, huma.Error400BadRequest("task_id, url and status are required")
		}
		results.Add(r.TaskID, r)
		return nil, nil
	})

	router.Get("/launch", launchHandler(port))
	return router
}

// launchPayload is what the content script reads from window.name on the
// target page; it must survive the client-side navigation.
type launchPayload struct {
	TaskID   string `json:"task_id"`
	Port     int    `json:"port"`
	Duration int    `json:"duration"`
}

var launchPage = template.Must(template.New("launch").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>prospection launcher</title></head>
<body>
<script>
window.name = JSON.stringify({{.Payload}});
window.location.replace({{.Target}});
</script>
</body>
</html>
`))

func launchHandler(port int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := r.URL.Query().Get("task_id")
		rawURL := r.URL.Query().Get("url")
		if taskID == "" || rawURL == "" {
			http.Error(w, "task_id and url are required", http.StatusBadRequest)
			return
		}
		parsed, err := url.Parse(rawURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			http.Error(w, "url must be an absolute http(s) URL", http.StatusBadRequest)
			return
		}
		duration, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("duration")))
		if err != nil || duration <= 0 {
			duration = 8
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := struct {
			Payload launchPayload
			Target  string
		}{
			Payload: launchPayload{TaskID: taskID, Port: port, Duration: duration},
			Target:  parsed.String(),
		}
		if err := launchPage.Execute(w, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
