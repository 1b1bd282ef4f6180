package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/jasonptoups/truckee-calendar/internal/domain"
)

const defaultRunsLimit = 20

var (
	errReadOnly = errors.New("calendar is read-only")
	errNotFound = errors.New("not found")
)

// RunLister provides recent run history
type RunLister interface {
	ListRuns(limit int) ([]*domain.RunReport, error)
}

// calendarFS exposes one calendar file over WebDAV. The directory holding it
// is visible only as an empty collection containing that file; every other
// name is missing and every change is refused.
type calendarFS struct {
	local webdav.LocalFileSystem
	name  string
}

func newCalendarFS(outputPath string) calendarFS {
	return calendarFS{
		local: webdav.LocalFileSystem(filepath.Dir(outputPath)),
		name:  "/" + filepath.Base(outputPath),
	}
}

func (fs calendarFS) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean != "/" && clean != fs.name {
		return "", webdav.NewHTTPError(http.StatusNotFound, errNotFound)
	}
	return clean, nil
}

func (fs calendarFS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	clean, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}
	if clean != fs.name {
		return nil, webdav.NewHTTPError(http.StatusNotFound, errNotFound)
	}
	return fs.local.Open(ctx, clean)
}

func (fs calendarFS) Stat(ctx context.Context, name string) (*webdav.FileInfo, error) {
	clean, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}
	fi, err := fs.local.Stat(ctx, clean)
	if err != nil {
		return nil, err
	}
	setCalendarType(fi)
	return fi, nil
}

func (fs calendarFS) ReadDir(ctx context.Context, name string, recursive bool) ([]webdav.FileInfo, error) {
	clean, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}

	var infos []webdav.FileInfo
	if clean == "/" {
		root, err := fs.local.Stat(ctx, "/")
		if err != nil {
			return nil, err
		}
		infos = append(infos, *root)
	}

	fi, err := fs.Stat(ctx, fs.name)
	if err == nil {
		infos = append(infos, *fi)
	} else if clean == fs.name {
		return nil, err
	}
	return infos, nil
}

func (calendarFS) Create(context.Context, string, io.ReadCloser, *webdav.CreateOptions) (*webdav.FileInfo, bool, error) {
	return nil, false, webdav.NewHTTPError(http.StatusForbidden, errReadOnly)
}

func (calendarFS) RemoveAll(context.Context, string, *webdav.RemoveAllOptions) error {
	return webdav.NewHTTPError(http.StatusForbidden, errReadOnly)
}

func (calendarFS) Mkdir(context.Context, string) error {
	return webdav.NewHTTPError(http.StatusForbidden, errReadOnly)
}

func (calendarFS) Copy(context.Context, string, string, *webdav.CopyOptions) (bool, error) {
	return false, webdav.NewHTTPError(http.StatusForbidden, errReadOnly)
}

func (calendarFS) Move(context.Context, string, string, *webdav.MoveOptions) (bool, error) {
	return false, webdav.NewHTTPError(http.StatusForbidden, errReadOnly)
}

// setCalendarType labels .ics files so calendar clients accept the download
func setCalendarType(fi *webdav.FileInfo) {
	if !fi.IsDir && strings.EqualFold(path.Ext(fi.Path), ".ics") {
		fi.MIMEType = ical.MIMEType
	}
}

// Server publishes the merged calendar
type Server struct {
	server *http.Server
}

// New creates a server for the calendar at outputPath listening on addr.
// runs may be nil when no history is kept.
func New(addr, outputPath string, runs RunLister) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(outputPath, runs),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler serves the calendar at outputPath read-only over WebDAV, a /health
// check and, when runs is set, the recent run history at /runs.
func Handler(outputPath string, runs RunLister) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if runs != nil {
		mux.HandleFunc("/runs", runsHandler(runs))
	}

	mux.Handle("/", &webdav.Handler{
		FileSystem: newCalendarFS(outputPath),
	})

	return mux
}

type runResponse struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Events     int       `json:"events"`
	Succeeded  int       `json:"succeeded"`
	Total      int       `json:"total"`
	OutputSize int64     `json:"output_size"`
}

// GET /runs?limit=N - recent runs, newest first
func runsHandler(runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit := defaultRunsLimit
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n <= 0 {
				jsonError(w, "limit must be a positive number", http.StatusBadRequest)
				return
			}
			limit = n
		}

		list, err := runs.ListRuns(limit)
		if err != nil {
			log.Printf("List runs: %v", err)
			jsonError(w, "Failed to list runs", http.StatusInternalServerError)
			return
		}

		resp := make([]runResponse, 0, len(list))
		for _, run := range list {
			resp = append(resp, runResponse{
				ID:         run.ID,
				StartedAt:  run.StartedAt,
				FinishedAt: run.FinishedAt,
				Events:     run.Events,
				Succeeded:  run.Succeeded,
				Total:      run.Total,
				OutputSize: run.OutputSize,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}

	go func() {
		log.Printf("Serving calendar on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
