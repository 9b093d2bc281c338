// Package router resolves a parsed request against a per-virtual-host route
// table and dispatches to static-file, CGI, upload, delete, or redirect
// handling. The algorithm is the nine-step procedure from
// original_source/src/router.rs's Router::handle, generalized to reject path
// traversal (original_source joins segments into the filesystem root with no
// canonicalization at all — the flagged security concern this fixes).
package router

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akmhzj/go-localserver/internal/cgi"
	"github.com/akmhzj/go-localserver/internal/config"
	"github.com/akmhzj/go-localserver/internal/errorpage"
	"github.com/akmhzj/go-localserver/internal/request"
	"github.com/akmhzj/go-localserver/internal/response"
)

var mimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
}

const defaultUploadFilename = "uploaded_file"

// Router holds the parsed configuration document and answers Handle for
// every completed request on every connection. It is read-only after
// construction and safe to share across the single-threaded event loop's
// connections.
type Router struct {
	doc *config.Document
}

func New(doc *config.Document) *Router {
	return &Router{doc: doc}
}

// SelectServer performs virtual-host selection: a single pass over the
// configured servers in declaration order, returning the first one that
// either declares no server_names at all (a wildcard) or has a name
// substring-matching host. This is original_source/src/router.rs's
// single-pass find() order exactly — a wildcard server declared before a
// later, more specifically matching named server still wins, since the
// first satisfying server in declaration order is taken, not the best
// match. Exposed separately from Handle so the connection layer can resolve
// client_max_body_size before the body has even arrived.
func (r *Router) SelectServer(host string) *config.ServerConfig {
	for i := range r.doc.Servers {
		s := &r.doc.Servers[i]
		if len(s.ServerNames) == 0 {
			return s
		}
		for _, name := range s.ServerNames {
			if strings.Contains(host, name) {
				return s
			}
		}
	}
	return &r.doc.Servers[0]
}

// Handle resolves and dispatches a completed request to a Response.
func (r *Router) Handle(req *request.Request) *response.Response {
	server := r.SelectServer(req.Headers.Get("Host"))

	route := findRoute(server, req.Target)
	if route == nil {
		return errorpage.Build(404, server)
	}

	method := req.Method.String()
	if !route.AllowsMethod(method) {
		return errorpage.Build(405, server)
	}

	if route.Redirect != "" {
		res := response.New(301)
		res.Headers.Set("Location", route.Redirect)
		return res
	}

	if len(route.CGIExtensions) > 0 {
		if res, handled := r.dispatchCGI(req, route, server); handled {
			return res
		}
	}

	if req.Method.IsPost() && route.AllowUploads {
		return r.handleUpload(req, route)
	}

	if req.Method.IsDelete() {
		return r.handleDelete(req, route, server)
	}

	if route.HasRoot() {
		return r.serveStatic(req, route, server)
	}

	return errorpage.Build(404, server)
}

// findRoute returns the configured route with the longest path prefix
// matching target, ties broken by declaration order (the first-seen route
// among equal-length prefixes wins, since a strict > comparison never
// replaces the incumbent on a tie).
func findRoute(server *config.ServerConfig, target string) *config.RouteConfig {
	var best *config.RouteConfig
	for i := range server.Routes {
		route := &server.Routes[i]
		if !strings.HasPrefix(target, route.Path) {
			continue
		}
		if best == nil || len(route.Path) > len(best.Path) {
			best = route
		}
	}
	return best
}

// relativeTarget returns the portion of target after the matched route
// prefix, with leading slashes stripped so filepath.Join treats it as
// relative.
func relativeTarget(route *config.RouteConfig, target string) string {
	rel := strings.TrimPrefix(target, route.Path)
	return strings.TrimLeft(rel, "/")
}

// safeJoin joins root and rel, rejecting any result that would resolve
// outside root after "..", "." and separator normalization. This is the
// fix for the source's unchecked path join.
func safeJoin(root, rel string) (string, error) {
	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(cleanRoot, rel)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root %q", rel, root)
	}
	return joined, nil
}

func (r *Router) dispatchCGI(req *request.Request, route *config.RouteConfig, server *config.ServerConfig) (*response.Response, bool) {
	ext := filepath.Ext(req.Target)
	interpreter, ok := route.CGIExtensions[ext]
	if !ok {
		return nil, false
	}

	scriptPath, err := safeJoin(route.Root, relativeTarget(route, req.Target))
	if err != nil {
		return errorpage.Build(404, server), true
	}

	handler := cgi.Handler{Interpreter: interpreter, ScriptPath: scriptPath}
	env := cgi.Env(req.Method.String(), req.Target, len(req.Body))

	out, err := handler.Execute(context.Background(), env, req.Body)
	if err != nil {
		return response.New(500).WithBody([]byte("CGI Error: " + err.Error())), true
	}
	return response.New(200).WithBody(out), true
}

func (r *Router) handleUpload(req *request.Request, route *config.RouteConfig) *response.Response {
	filename := req.Headers.Get("X-Filename")
	if filename == "" {
		filename = defaultUploadFilename
	}

	root := route.Root
	if root == "" {
		root = "static/uploads"
	}
	path, err := safeJoin(root, filename)
	if err != nil {
		return response.New(500).WithBody([]byte("Upload Error: " + err.Error()))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return response.New(500).WithBody([]byte("Upload Error: " + err.Error()))
	}
	if err := os.WriteFile(path, req.Body, 0o644); err != nil {
		return response.New(500).WithBody([]byte("Upload Error: " + err.Error()))
	}
	return response.New(201).WithBody([]byte("File uploaded successfully"))
}

func (r *Router) handleDelete(req *request.Request, route *config.RouteConfig, server *config.ServerConfig) *response.Response {
	root := route.Root
	if root == "" {
		root = "."
	}
	path, err := safeJoin(root, relativeTarget(route, req.Target))
	if err != nil {
		return errorpage.Build(404, server)
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return errorpage.Build(404, server)
	}
	if err := os.Remove(path); err != nil {
		return errorpage.Build(500, server)
	}
	return response.New(204)
}

func (r *Router) serveStatic(req *request.Request, route *config.RouteConfig, server *config.ServerConfig) *response.Response {
	path, err := safeJoin(route.Root, relativeTarget(route, req.Target))
	if err != nil {
		return errorpage.Build(404, server)
	}

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		if route.Index != "" {
			path = filepath.Join(path, route.Index)
		} else if route.Autoindex {
			return listDirectory(path)
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errorpage.Build(404, server)
	}

	res := response.New(200).WithBody(content)
	res.Headers.Set("Content-Type", mimeFor(path))
	return res
}

func mimeFor(path string) string {
	if mime, ok := mimeTypes[filepath.Ext(path)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// listDirectory renders a minimal sorted HTML listing, a determinism fix
// over original_source's list_directory (which iterated fs::read_dir in
// whatever order the filesystem returned).
func listDirectory(dir string) *response.Response {
	entries, _ := os.ReadDir(dir)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, name := range names {
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>", name, name)
	}
	b.WriteString("</ul></body></html>")

	res := response.New(200).WithBody([]byte(b.String()))
	res.Headers.Set("Content-Type", "text/html")
	return res
}
