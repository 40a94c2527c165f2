// Package routing wraps http.ServeMux with named routes, route groups and middleware aliases.
package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/pitabwire/util"
)

var (
	ErrDuplicateRouteName = errors.New("duplicate route name")
	ErrUnknownMiddleware  = errors.New("unknown middleware")
	ErrRouteNotFound      = errors.New("route not found")
	ErrMissingParameter   = errors.New("missing route parameter")
	ErrInvalidPattern     = errors.New("invalid route pattern")
)

// Middleware decorates a handler.
type Middleware func(http.Handler) http.Handler

// Route describes a registered route.
type Route struct {
	Name       string
	Method     string
	Path       string
	Patterns   []string
	Action     string
	Middleware []string
	Domain     string
}

// Router records routes while registering them on an http.ServeMux.
type Router struct {
	mux *http.ServeMux

	mu         sync.RWMutex
	routes     []*Route
	names      map[string]*Route
	middleware map[string]Middleware
	groups     []GroupOptions
	errs       []error
}

// New creates an empty router.
func New() *Router {
	return &Router{
		mux:        http.NewServeMux(),
		names:      make(map[string]*Route),
		middleware: make(map[string]Middleware),
	}
}

// AliasMiddleware makes mw available to routes under name.
func (r *Router) AliasMiddleware(name string, mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.middleware[name] = mw
}

// Group registers the routes added by fn with opts applied to each of them.
// Groups nest: prefixes and name prefixes are concatenated, middleware appended.
func (r *Router) Group(opts GroupOptions, fn func(*Router)) {
	r.mu.Lock()
	r.groups = append(r.groups, opts)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.groups = r.groups[:len(r.groups)-1]
		r.mu.Unlock()
	}()

	fn(r)
}

// Get registers a GET route.
func (r *Router) Get(path string, action http.HandlerFunc) *RouteBuilder {
	return r.Handle(http.MethodGet, path, action)
}

// Post registers a POST route.
func (r *Router) Post(path string, action http.HandlerFunc) *RouteBuilder {
	return r.Handle(http.MethodPost, path, action)
}

// Put registers a PUT route.
func (r *Router) Put(path string, action http.HandlerFunc) *RouteBuilder {
	return r.Handle(http.MethodPut, path, action)
}

// Delete registers a DELETE route.
func (r *Router) Delete(path string, action http.HandlerFunc) *RouteBuilder {
	return r.Handle(http.MethodDelete, path, action)
}

// Handle registers action for method and path within the current group.
func (r *Router) Handle(method, path string, action http.HandlerFunc) *RouteBuilder {
	r.mu.Lock()
	defer r.mu.Unlock()

	group := r.currentGroup()
	route := &Route{
		Method:     method,
		Path:       joinPath(group.Prefix, path),
		Action:     handlerName(action),
		Middleware: slices.Clone(group.Middleware),
		Domain:     group.Domain,
	}

	patterns, err := expandPatterns(route.Path)
	if err != nil {
		r.errs = append(r.errs, err)
		return &RouteBuilder{router: r, route: route, namePrefix: group.As}
	}

	handler := r.dispatch(route, action)
	for _, p := range patterns {
		pattern := method + " " + route.Domain + p
		if regErr := register(r.mux, pattern, handler); regErr != nil {
			r.errs = append(r.errs, regErr)
			continue
		}
		route.Patterns = append(route.Patterns, pattern)
	}

	r.routes = append(r.routes, route)
	return &RouteBuilder{router: r, route: route, namePrefix: group.As}
}

func (r *Router) currentGroup() GroupOptions {
	var merged GroupOptions
	for _, g := range r.groups {
		merged.Prefix = joinSegments(merged.Prefix, g.Prefix)
		merged.Middleware = append(merged.Middleware, g.Middleware...)
		if g.Domain != "" {
			merged.Domain = g.Domain
		}
		merged.As += g.As
	}
	return merged
}

func register(mux *http.ServeMux, pattern string, handler http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrInvalidPattern, pattern, rec)
		}
	}()

	mux.Handle(pattern, handler)
	return nil
}

func (r *Router) dispatch(route *Route, action http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		chain, err := r.middlewareFor(route)
		if err != nil {
			util.Log(req.Context()).WithError(err).WithField("route", route.Name).Error("route middleware unavailable")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		var handler = action
		for i := len(chain) - 1; i >= 0; i-- {
			handler = chain[i](handler)
		}

		ctx := context.WithValue(req.Context(), routeKey{}, route)
		handler.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *Router) middlewareFor(route *Route) ([]Middleware, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := make([]Middleware, 0, len(route.Middleware))
	for _, name := range route.Middleware {
		mw, ok := r.middleware[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMiddleware, name)
		}
		chain = append(chain, mw)
	}
	return chain, nil
}

// Err reports registration problems and middleware names no alias exists for.
func (r *Router) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errs := slices.Clone(r.errs)
	for _, route := range r.routes {
		for _, name := range route.Middleware {
			if _, ok := r.middleware[name]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s on route %s %s", ErrUnknownMiddleware, name, route.Method, route.Path))
			}
		}
	}
	return errors.Join(errs...)
}

// ServeHTTP dispatches to the underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler exposes the router as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r
}

// Routes returns copies of the registered routes in registration order.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, copyRoute(route))
	}
	return out
}

// Route looks up a route by name.
func (r *Router) Route(name string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.names[name]
	if !ok {
		return Route{}, false
	}
	return copyRoute(route), true
}

func copyRoute(route *Route) Route {
	c := *route
	c.Patterns = slices.Clone(route.Patterns)
	c.Middleware = slices.Clone(route.Middleware)
	return c
}

// RouteBuilder adjusts a route right after it was registered.
type RouteBuilder struct {
	router     *Router
	route      *Route
	namePrefix string
}

// Name gives the route a unique name, prefixed with the enclosing groups' As option.
func (b *RouteBuilder) Name(name string) *RouteBuilder {
	b.router.mu.Lock()
	defer b.router.mu.Unlock()

	full := b.namePrefix + name
	if _, exists := b.router.names[full]; exists {
		b.router.errs = append(b.router.errs, fmt.Errorf("%w: %s", ErrDuplicateRouteName, full))
		return b
	}

	if b.route.Name != "" {
		delete(b.router.names, b.route.Name)
	}
	b.route.Name = full
	b.router.names[full] = b.route
	return b
}

// Middleware appends middleware aliases to the route.
func (b *RouteBuilder) Middleware(names ...string) *RouteBuilder {
	b.router.mu.Lock()
	defer b.router.mu.Unlock()

	b.route.Middleware = append(b.route.Middleware, names...)
	return b
}

type routeKey struct{}

// CurrentRoute returns the route being served, if any.
func CurrentRoute(ctx context.Context) (Route, bool) {
	route, ok := ctx.Value(routeKey{}).(*Route)
	if !ok {
		return Route{}, false
	}
	return copyRoute(route), true
}

func handlerName(handler http.HandlerFunc) string {
	if handler == nil {
		return ""
	}
	ptr := reflect.ValueOf(handler).Pointer()
	if ptr == 0 {
		return ""
	}
	fn := runtime.FuncForPC(ptr)
	if fn == nil {
		return ""
	}

	name := strings.TrimSuffix(fn.Name(), "-fm")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
