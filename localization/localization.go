// Package localization serves namespaced UI strings out of go-i18n bundles.
package localization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type contextKey string

func (c contextKey) String() string {
	return "translation-manager/localization/" + string(c)
}

const (
	ctxKeyLanguage = contextKey("languageKey")

	// NamespaceSeparator splits the namespace from the message id, as in "translation-manager::ui.title".
	NamespaceSeparator = "::"
)

// ToContext adds language to the current supplied context.
func ToContext(ctx context.Context, lang []string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// FromContext extracts language from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

// Translator holds the message bundle of every registered namespace.
type Translator struct {
	bundle *i18n.Bundle

	mu         sync.RWMutex
	namespaces map[string]struct{}
}

// NewTranslator creates a translator falling back to defaultLang; English when empty or invalid.
func NewTranslator(defaultLang string) *Translator {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		tag = language.English
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	bundle.RegisterUnmarshalFunc("yml", yaml.Unmarshal)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	return &Translator{bundle: bundle, namespaces: make(map[string]struct{})}
}

// Bundle Access the translation bundle instatiated in the system.
func (t *Translator) Bundle() *i18n.Bundle {
	return t.bundle
}

var unmarshalFuncs = map[string]i18n.UnmarshalFunc{
	"toml": toml.Unmarshal,
	"yaml": yaml.Unmarshal,
	"yml":  yaml.Unmarshal,
	"json": json.Unmarshal,
}

// AddNamespace loads every <locale>/<group>.<ext> file of fsys as messages "ns::group.id".
// Files found under overrideDir, laid out the same way, are loaded afterwards and win.
func (t *Translator) AddNamespace(ctx context.Context, ns string, fsys fs.FS, overrideDir string) error {
	if err := t.loadMessages(ns, fsys); err != nil {
		return err
	}

	if overrideDir != "" {
		if _, err := os.Stat(overrideDir); err == nil {
			if err = t.loadMessages(ns, os.DirFS(overrideDir)); err != nil {
				return err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	t.mu.Lock()
	t.namespaces[ns] = struct{}{}
	t.mu.Unlock()

	util.Log(ctx).WithField("namespace", ns).Debug("localization namespace loaded")
	return nil
}

func (t *Translator) loadMessages(ns string, fsys fs.FS) error {
	locales, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read lang dir for %s: %w", ns, err)
	}

	for _, locale := range locales {
		if !locale.IsDir() || locale.Name() == "vendor" {
			continue
		}

		files, readErr := fs.ReadDir(fsys, locale.Name())
		if readErr != nil {
			return readErr
		}

		for _, file := range files {
			ext := strings.TrimPrefix(path.Ext(file.Name()), ".")
			if file.IsDir() || unmarshalFuncs[ext] == nil {
				continue
			}

			if err = t.loadFile(ns, fsys, locale.Name(), file.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Translator) loadFile(ns string, fsys fs.FS, locale, name string) error {
	data, err := fs.ReadFile(fsys, path.Join(locale, name))
	if err != nil {
		return err
	}

	ext := path.Ext(name)
	group := strings.TrimSuffix(name, ext)

	// go-i18n takes the language tag from the second to last dot separated part of the name.
	mf, err := i18n.ParseMessageFileBytes(data, group+"."+locale+ext, unmarshalFuncs)
	if err != nil {
		return fmt.Errorf("parse %s/%s: %w", locale, name, err)
	}

	for _, msg := range mf.Messages {
		msg.ID = ns + NamespaceSeparator + group + "." + msg.ID
	}
	return t.bundle.AddMessages(mf.Tag, mf.Messages...)
}

// Namespaces lists the loaded namespaces.
func (t *Translator) Namespaces() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.namespaces))
	for ns := range t.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Translate performs a quick translation based on the supplied message id.
func (t *Translator) Translate(ctx context.Context, request any, messageID string) string {
	return t.TranslateWithMap(ctx, request, messageID, map[string]any{})
}

// TranslateWithMap performs a translation with variables based on the supplied message id.
func (t *Translator) TranslateWithMap(
	ctx context.Context,
	request any,
	messageID string,
	variables map[string]any,
) string {
	return t.TranslateWithMapAndCount(ctx, request, messageID, variables, 1)
}

// TranslateWithMapAndCount performs a translation with variables and can pluralize.
// Unknown ids are returned unchanged.
func (t *Translator) TranslateWithMapAndCount(
	ctx context.Context,
	request any,
	messageID string,
	variables map[string]any,
	count int,
) string {
	var languageSlice []string

	switch v := request.(type) {
	case *http.Request:
		languageSlice = ExtractLanguageFromHTTPRequest(v)

	case context.Context:
		languageSlice = FromContext(v)

	case string:
		languageSlice = []string{v}

	case []string:
		languageSlice = v

	case nil:
		languageSlice = FromContext(ctx)

	default:
		logger := util.Log(ctx).WithField("messageID", messageID)
		logger.Warn("no valid request object found, use string, []string, context or http.Request")
		return messageID
	}

	localizer := i18n.NewLocalizer(t.bundle, languageSlice...)

	translated, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: variables,
		PluralCount:  count,
	})
	if err != nil {
		var notFound *i18n.MessageNotFoundErr
		if !errors.As(err, &notFound) {
			util.Log(ctx).WithError(err).WithField("messageID", messageID).Error("could not perform translation")
		}
		return messageID
	}

	return translated
}

func ExtractLanguageFromHTTPRequest(req *http.Request) []string {
	lang := req.URL.Query().Get("lang")

	acceptedLang := ExtractLanguageFromHTTPHeader(req.Header)

	var languages []string
	if lang != "" {
		languages = append(languages, lang)
	}

	return append(languages, acceptedLang...)
}

func ExtractLanguageFromHTTPHeader(req http.Header) []string {
	acceptLanguageHeader := req.Get("Accept-Language")
	if acceptLanguageHeader == "" {
		return nil
	}

	parts := strings.Split(acceptLanguageHeader, ",")
	languages := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			languages = append(languages, p)
		}
	}
	return languages
}
