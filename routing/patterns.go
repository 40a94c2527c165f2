package routing

import (
	"fmt"
	"net/url"
	"strings"
)

// joinPath combines a group prefix and a route path into a rooted path template.
func joinPath(prefix, path string) string {
	joined := joinSegments(prefix, path)
	return "/" + joined
}

func joinSegments(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

type segment struct {
	literal  string
	param    string
	optional bool
}

func parseSegments(path string) ([]segment, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}

	raw := strings.Split(trimmed, "/")
	segments := make([]segment, 0, len(raw))
	seenOptional := false
	for _, part := range raw {
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			if seenOptional {
				return nil, fmt.Errorf("%w: %s: literal after optional parameter", ErrInvalidPattern, path)
			}
			segments = append(segments, segment{literal: part})
			continue
		}

		name := strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
		optional := strings.HasSuffix(name, "?")
		name = strings.TrimSuffix(name, "?")
		if name == "" {
			return nil, fmt.Errorf("%w: %s: empty parameter name", ErrInvalidPattern, path)
		}
		if seenOptional && !optional {
			return nil, fmt.Errorf("%w: %s: required parameter after optional one", ErrInvalidPattern, path)
		}
		seenOptional = seenOptional || optional
		segments = append(segments, segment{param: name, optional: optional})
	}
	return segments, nil
}

// expandPatterns turns a path template with trailing optional parameters into one
// ServeMux pattern per accepted arity, shortest first.
func expandPatterns(path string) ([]string, error) {
	segments, err := parseSegments(path)
	if err != nil {
		return nil, err
	}

	if len(segments) == 0 {
		return []string{"/{$}"}, nil
	}

	required := 0
	for _, s := range segments {
		if s.optional {
			break
		}
		required++
	}

	patterns := make([]string, 0, len(segments)-required+1)
	for n := required; n <= len(segments); n++ {
		if n == 0 {
			patterns = append(patterns, "/{$}")
			continue
		}

		parts := make([]string, n)
		for i, s := range segments[:n] {
			if s.param != "" {
				parts[i] = "{" + s.param + "}"
				continue
			}
			parts[i] = s.literal
		}
		patterns = append(patterns, "/"+strings.Join(parts, "/"))
	}
	return patterns, nil
}

// URL builds the path of a named route. Optional parameters are emitted up to the first
// one without a value.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	route, ok := r.Route(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRouteNotFound, name)
	}

	segments, err := parseSegments(route.Path)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.param == "" {
			parts = append(parts, s.literal)
			continue
		}

		value := params[s.param]
		if value == "" {
			if s.optional {
				break
			}
			return "", fmt.Errorf("%w: %s on route %s", ErrMissingParameter, s.param, name)
		}
		parts = append(parts, url.PathEscape(value))
	}

	return "/" + strings.Join(parts, "/"), nil
}

// GroupOptions are the attributes shared by the routes of a group.
type GroupOptions struct {
	Prefix     string
	Middleware []string
	Domain     string
	As         string
}

// GroupOptionsFromMap reads group options as they appear in configuration.
// Middleware may be a single name or a list of names.
func GroupOptionsFromMap(values map[string]any) GroupOptions {
	var opts GroupOptions
	if values == nil {
		return opts
	}

	opts.Prefix = stringValue(values["prefix"])
	opts.Domain = stringValue(values["domain"])
	opts.As = stringValue(values["as"])

	switch mw := values["middleware"].(type) {
	case string:
		if mw != "" {
			opts.Middleware = []string{mw}
		}
	case []string:
		opts.Middleware = append(opts.Middleware, mw...)
	case []any:
		for _, item := range mw {
			opts.Middleware = append(opts.Middleware, fmt.Sprint(item))
		}
	}
	return opts
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
