package translationmanager

import (
	"errors"
	"net/http"

	"github.com/pitabwire/translation-manager/data"
	"github.com/pitabwire/translation-manager/datastore"
)

var (
	ErrDeleteDisabled      = errors.New("deleting translations is disabled")
	ErrInvalidLocale       = errors.New("invalid locale")
	ErrSameLocale          = errors.New("source and target locale are the same")
	ErrInvalidGroup        = errors.New("invalid group")
	ErrInvalidKey          = errors.New("invalid key")
	ErrUnsupportedFormat   = errors.New("unsupported export format")
	ErrTranslationNotFound = errors.New("translation not found")
)

// statusFor maps manager errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDeleteDisabled):
		return http.StatusForbidden
	case errors.Is(err, ErrTranslationNotFound), data.ErrorIsNoRows(err):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidLocale),
		errors.Is(err, ErrSameLocale),
		errors.Is(err, ErrInvalidGroup),
		errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, datastore.ErrStaleEntity), data.ErrorIsDuplicate(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
