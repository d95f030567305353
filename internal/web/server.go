package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/kuitang/blockcheck/internal/blocks"
	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/logutil"
	"github.com/kuitang/blockcheck/internal/obs"
	"github.com/kuitang/blockcheck/internal/ratelimit"
)

// maxInputBytes bounds the body of a single input event.
const maxInputBytes = 16 << 10

const bodyPreviewBytes = 256

// Options configures a Server.
type Options struct {
	// Apple selects Apple modifier conventions for the editor keymap.
	Apple bool
	// RateLimit throttles input per post. Zero values use ratelimit.DefaultConfig.
	RateLimit ratelimit.Config
}

// Server serves the local block editor.
type Server struct {
	posts    *PostStore
	renderer *Renderer
	limiter  *ratelimit.RateLimiter
	handler  http.Handler
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// PreviewData is the data of the preview page.
type PreviewData struct {
	Title      string
	PostID     string
	BlockCount int
	Content    string
}

// PostPageData is the data of the editor page.
type PostPageData struct {
	Editor EditorView
}

// NewServer creates a server with an empty post store.
func NewServer(opts Options) (*Server, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	rl := opts.RateLimit
	if rl.RPS <= 0 || rl.Burst <= 0 {
		rl = ratelimit.DefaultConfig
	}

	s := &Server{
		posts:    NewPostStore(blocks.WithApple(opts.Apple)),
		renderer: renderer,
		limiter:  ratelimit.NewRateLimiter(rl),
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	s.handler = obs.Correlate(obs.AccessLog("web", mux))
	return s, nil
}

// RegisterRoutes registers the editor routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	static, _ := fs.Sub(staticFS, "static")
	limited := ratelimit.Middleware(s.limiter, func(r *http.Request) string {
		return r.PathValue("id")
	})

	mux.HandleFunc("GET /{$}", s.HandleRoot)
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /post-new", s.HandleNewPost)
	mux.HandleFunc("GET /post/{id}", s.HandlePost)
	mux.HandleFunc("GET /post/{id}/preview", s.HandlePreview)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.Handle("POST /api/posts/{id}/input", limited(http.HandlerFunc(s.HandleInput)))
	mux.HandleFunc("GET /api/posts/{id}/fragment", s.HandleFragment)
	mux.HandleFunc("GET /api/posts/{id}/content", s.HandleContent)
	mux.HandleFunc("GET /api/posts/{id}/state", s.HandleState)
	mux.HandleFunc("DELETE /api/posts/{id}", s.HandleDeletePost)
}

// Handler returns the root handler with request correlation and access logs.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Posts returns the post store.
func (s *Server) Posts() *PostStore {
	return s.posts
}

// Close stops background work.
func (s *Server) Close() {
	s.limiter.Stop()
}

// HandleRoot redirects to a new post.
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/post-new", http.StatusFound)
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "posts": s.posts.Len()})
}

// HandleNewPost creates a post and redirects to its editor.
func (s *Server) HandleNewPost(w http.ResponseWriter, r *http.Request) {
	p := s.posts.Create()
	obs.From(r.Context()).Info("post_created", "post_id", p.ID)
	http.Redirect(w, r, "/post/"+p.ID, http.StatusSeeOther)
}

// HandlePost renders the editor page.
func (s *Server) HandlePost(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.PathValue("id"))
	if err != nil {
		s.renderer.RenderError(w, errs.HTTPStatus(errs.CodeOf(err)), errs.MessageOf(err))
		return
	}
	data := PostPageData{Editor: NewEditorView(p.ID, p.State())}
	if err := s.renderer.Render(w, "post.html", data); err != nil {
		obs.From(r.Context()).Error("render_failed", "template", "post.html", "error", err)
		s.renderer.RenderError(w, http.StatusInternalServerError, "Failed to render editor")
	}
}

// HandlePreview renders the serialized post.
func (s *Server) HandlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.PathValue("id"))
	if err != nil {
		s.renderer.RenderError(w, errs.HTTPStatus(errs.CodeOf(err)), errs.MessageOf(err))
		return
	}
	var data PreviewData
	_ = p.Do(func(e *blocks.Editor) error {
		data = PreviewData{
			Title:      "Preview",
			PostID:     p.ID,
			BlockCount: e.Document().Len(),
			Content:    e.Serialize(),
		}
		return nil
	})
	if err := s.renderer.Render(w, "preview.html", data); err != nil {
		obs.From(r.Context()).Error("render_failed", "template", "preview.html", "error", err)
		s.renderer.RenderError(w, http.StatusInternalServerError, "Failed to render preview")
	}
}

// HandleInput applies one input event and answers with the re-rendered
// editor fragment.
func (s *Server) HandleInput(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.PathValue("id"))
	if err != nil {
		writeCodedError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInputBytes))
	if err != nil {
		writeCodedError(w, errs.Wrap(errs.InvalidArgument, "read input body", err))
		return
	}
	var in Input
	if err := json.Unmarshal(body, &in); err != nil {
		obs.From(r.Context()).Warn("input_malformed",
			"post_id", p.ID,
			"body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), body, bodyPreviewBytes, false),
		)
		writeCodedError(w, errs.Wrap(errs.InvalidArgument, "invalid input body", err))
		return
	}

	var buf bytes.Buffer
	err = p.Do(func(e *blocks.Editor) error {
		if err := in.Apply(e); err != nil {
			return err
		}
		return s.renderer.RenderEditor(&buf, NewEditorView(p.ID, e.State()))
	})
	if err != nil {
		obs.From(r.Context()).Warn("input_rejected",
			"post_id", p.ID,
			"key", in.Key,
			"action", in.Action,
			"body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), body, bodyPreviewBytes, false),
			"code", errs.CodeOf(err),
			"error", err,
		)
		writeCodedError(w, err)
		return
	}

	obs.From(r.Context()).Debug("input_applied", "post_id", p.ID, "key", in.Key, "action", in.Action, "item", in.Item)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// HandleFragment renders the editor fragment without applying input.
func (s *Server) HandleFragment(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.PathValue("id"))
	if err != nil {
		writeCodedError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := s.renderer.RenderEditor(&buf, NewEditorView(p.ID, p.State())); err != nil {
		writeCodedError(w, errs.Wrap(errs.Internal, "render editor", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// HandleContent returns the serialized post content as plain text.
func (s *Server) HandleContent(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.PathValue("id"))
	if err != nil {
		writeCodedError(w, err)
		return
	}
	var content string
	_ = p.Do(func(e *blocks.Editor) error {
		content = e.Serialize()
		return nil
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, content)
}

// HandleState returns the editor state as JSON.
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.PathValue("id"))
	if err != nil {
		writeCodedError(w, err)
		return
	}
	var resp StateResponse
	_ = p.Do(func(e *blocks.Editor) error {
		resp = NewStateResponse(p.ID, e)
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleDeletePost discards a post.
func (s *Server) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.posts.Delete(id) {
		writeCodedError(w, errs.New(errs.NotFound, fmt.Sprintf("post %q not found", id)))
		return
	}
	s.limiter.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code errs.Code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: string(code)})
}

// writeCodedError writes err as JSON. Uncoded errors keep their details out
// of the response.
func writeCodedError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	writeError(w, errs.HTTPStatus(code), code, errs.MessageOf(err))
}
