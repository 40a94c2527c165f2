package translationmanager

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pitabwire/util"

	"github.com/pitabwire/translation-manager/container"
	"github.com/pitabwire/translation-manager/foundation"
)

var groupParams = []string{"group", "group2", "group3", "group4", "group5"}

// Controller serves the translation manager web interface.
type Controller struct {
	app *foundation.Application
}

func NewController(app *foundation.Application) *Controller {
	return &Controller{app: app}
}

func (c *Controller) manager(ctx context.Context) (*Manager, error) {
	return container.Resolve[*Manager](ctx, c.app.Container(), ServiceID)
}

// groupFromRequest joins the group path segments of the route.
func groupFromRequest(r *http.Request) string {
	segments := make([]string, 0, len(groupParams))
	for _, name := range groupParams {
		if v := r.PathValue(name); v != "" {
			segments = append(segments, v)
		}
	}
	return strings.Join(segments, "/")
}

// routeParams splits group back into route parameters.
func routeParams(group string) map[string]string {
	params := make(map[string]string)
	if group == "" {
		return params
	}
	for i, segment := range strings.SplitN(group, "/", len(groupParams)) {
		params[groupParams[i]] = segment
	}
	return params
}

func (c *Controller) url(name string, params map[string]string) string {
	u, err := c.app.Router().URL(name, params)
	if err != nil {
		return ""
	}
	return u
}

type indexPage struct {
	Locales       []string
	Groups        []string
	Group         string
	Rows          []KeyRow
	Changed       int64
	DeleteEnabled bool

	GroupURLs  map[string]string
	DeleteURLs map[string]string
	URLs       map[string]string
}

func (c *Controller) GetIndex(w http.ResponseWriter, r *http.Request) {
	c.renderIndex(w, r, "")
}

func (c *Controller) GetView(w http.ResponseWriter, r *http.Request) {
	c.renderIndex(w, r, groupFromRequest(r))
}

func (c *Controller) renderIndex(w http.ResponseWriter, r *http.Request, group string) {
	ctx := r.Context()

	m, err := c.manager(ctx)
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}

	page := indexPage{
		Group:         group,
		DeleteEnabled: m.DeleteEnabled(),
		GroupURLs:     make(map[string]string),
		DeleteURLs:    make(map[string]string),
		URLs: map[string]string{
			"index":  c.url(ServiceID+".index", nil),
			"import": c.url(ServiceID+".import", nil),
			"find":   c.url(ServiceID+".find", nil),
			"clean":  c.url(ServiceID+".clean", nil),
		},
	}

	if page.Locales, err = m.Locales(ctx); err != nil {
		c.writeError(ctx, w, err)
		return
	}
	if page.Groups, err = m.Groups(ctx); err != nil {
		c.writeError(ctx, w, err)
		return
	}
	for _, g := range page.Groups {
		page.GroupURLs[g] = c.url(ServiceID+".view", routeParams(g))
	}

	if group != "" {
		if page.Rows, err = m.GroupTranslations(ctx, group); err != nil {
			c.writeError(ctx, w, err)
			return
		}
		if page.Changed, err = m.ChangedCount(ctx, group); err != nil {
			c.writeError(ctx, w, err)
			return
		}

		params := routeParams(group)
		page.URLs["add"] = c.url(ServiceID+".add", params)
		page.URLs["edit"] = c.url(ServiceID+".edit", params)
		page.URLs["publish"] = c.url(ServiceID+".publish", params)
		for _, row := range page.Rows {
			params["key"] = row.Key
			page.DeleteURLs[row.Key] = c.url(ServiceID+".delete", params)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err = c.app.Views().Render(ctx, w, ServiceID+"::index", page); err != nil {
		c.writeError(ctx, w, err)
	}
}

func (c *Controller) PostAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group := groupFromRequest(r)

	m, err := c.manager(ctx)
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}

	for _, key := range strings.Split(r.FormValue("keys"), "\n") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if err = m.MissingKey(ctx, group, key); err != nil {
			c.writeError(ctx, w, err)
			return
		}
	}

	http.Redirect(w, r, c.url(ServiceID+".view", routeParams(group)), http.StatusSeeOther)
}

func (c *Controller) PostEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.edit(ctx, r, groupFromRequest(r)); err != nil {
		c.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (c *Controller) edit(ctx context.Context, r *http.Request, group string) error {
	m, err := c.manager(ctx)
	if err != nil {
		return err
	}

	locale, key, found := strings.Cut(r.FormValue("name"), "|")
	if !found {
		return ErrInvalidKey
	}

	_, err = m.UpdateValue(ctx, locale, group, key, r.FormValue("value"))
	return err
}

func (c *Controller) PostDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m, err := c.manager(ctx)
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}

	if _, err = m.DeleteKey(ctx, groupFromRequest(r), r.PathValue("key")); err != nil {
		c.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (c *Controller) PostPublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.publish(ctx, groupFromRequest(r)); err != nil {
		c.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (c *Controller) publish(ctx context.Context, group string) error {
	m, err := c.manager(ctx)
	if err != nil {
		return err
	}

	if group == "*" {
		return m.ExportAllTranslations(ctx)
	}
	return m.ExportTranslations(ctx, group)
}

func (c *Controller) PostImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m, err := c.manager(ctx)
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}

	replace, _ := strconv.ParseBool(r.FormValue("replace"))
	if r.FormValue("replace") == "on" {
		replace = true
	}

	counter, err := m.ImportTranslations(ctx, replace, "")
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "counter": counter})
}

func (c *Controller) PostClean(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m, err := c.manager(ctx)
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}

	counter, err := m.CleanTranslations(ctx)
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "counter": counter})
}

func (c *Controller) PostFind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m, err := c.manager(ctx)
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}

	counter, err := m.FindTranslations(ctx, "")
	if err != nil {
		c.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "counter": counter})
}

// PostEditAndExport stores one value and exports its group in one request.
func (c *Controller) PostEditAndExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group := r.FormValue("group")

	if err := c.edit(ctx, r, group); err != nil {
		c.writeError(ctx, w, err)
		return
	}
	if err := c.publish(ctx, group); err != nil {
		c.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (c *Controller) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)

	logger := util.Log(ctx).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		logger.Error("translation manager request failed")
	} else {
		logger.Debug("translation manager request rejected")
	}

	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
