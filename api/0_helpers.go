package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/objectstore/query"
	"github.com/fulldump/objectstore/store"
	"github.com/fulldump/objectstore/storage"
)

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (p PrettyError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"error": struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		}{
			p.Message,
			p.Description,
		},
	})
}

func (p PrettyError) MarshalTo(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

func writePrettyError(w http.ResponseWriter, status int, err error, description string) {
	w.WriteHeader(status)
	PrettyError{
		Message:     err.Error(),
		Description: description,
	}.MarshalTo(w)
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}
		w := box.GetResponse(ctx)
		r := box.GetRequest(ctx)

		if err == box.ErrResourceNotFound {
			writePrettyError(w, http.StatusNotFound, err, fmt.Sprintf("resource '%s' not found", r.URL.String()))
			return
		}

		if err == box.ErrMethodNotAllowed {
			writePrettyError(w, http.StatusMethodNotAllowed, err, fmt.Sprintf("method '%s' not allowed", r.Method))
			return
		}

		if errors.Is(err, store.ErrorNotFound) {
			writePrettyError(w, http.StatusNotFound, err, "item not found")
			return
		}

		if errors.Is(err, store.ErrorClosed) {
			writePrettyError(w, http.StatusServiceUnavailable, err, "temporary unavailable: closing")
			return
		}

		if errors.Is(err, query.ErrorInvalidQuery) {
			writePrettyError(w, http.StatusBadRequest, err, "Malformed query")
			return
		}

		if errors.Is(err, store.ErrorMissingID) || errors.Is(err, storage.ErrorInvalidRecord) {
			writePrettyError(w, http.StatusBadRequest, err, "Invalid item")
			return
		}

		var syntaxError *json.SyntaxError
		if errors.As(err, &syntaxError) || errors.Is(err, errMalformedBody) {
			writePrettyError(w, http.StatusBadRequest, err, "Malformed JSON")
			return
		}

		writePrettyError(w, http.StatusInternalServerError, err, "Unexpected error")
	}
}
