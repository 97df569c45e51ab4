package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/fulldump/box"
	jsonv2 "github.com/go-json-experiment/json"

	"github.com/fulldump/objectstore/collection"
	"github.com/fulldump/objectstore/patch"
	"github.com/fulldump/objectstore/query"
	"github.com/fulldump/objectstore/storage"
	"github.com/fulldump/objectstore/store"
	"github.com/fulldump/objectstore/utils"
)

var errMalformedBody = errors.New("malformed body")

type listItemsResponse struct {
	Total int            `json:"total"`
	Items []store.Record `json:"items"`
}

func fetch(ctx context.Context, q query.Query) (*listItemsResponse, error) {

	result := getStore(ctx).Fetch(ctx, q)

	items, err := result.Data.Wait(ctx)
	if err != nil {
		return nil, err
	}
	total, err := result.TotalLength.Wait(ctx)
	if err != nil {
		return nil, err
	}

	return &listItemsResponse{
		Total: total,
		Items: items,
	}, nil
}

func listItems(ctx context.Context, r *http.Request) (*listItemsResponse, error) {

	q, err := query.Parse(r.URL.Query().Get("q"))
	if err != nil {
		return nil, err
	}

	return fetch(ctx, q)
}

type findInput struct {
	Filter map[string]any `json:"filter"`
	Sort   []string       `json:"sort"`
	Skip   int            `json:"skip"`
	Limit  int            `json:"limit"`
}

// findItems accepts {filter, sort, skip, limit}. The filter uses mongo-like
// conditions; limit 0 means no limit.
func findItems(ctx context.Context, r *http.Request) (*listItemsResponse, error) {

	input := findInput{}
	err := decodeBody(r.Body, &input)
	if err != nil {
		return nil, err
	}

	q := query.Compose()
	if len(input.Filter) > 0 {
		q = q.Then(query.Filter(query.Match(input.Filter)))
	}
	if len(input.Sort) > 0 {
		q = q.Then(query.SortBy(input.Sort...))
	}
	if input.Limit > 0 {
		q = q.Then(query.Range(input.Skip, input.Limit))
	} else if input.Skip > 0 {
		q = q.Then(query.Range(input.Skip, math.MaxInt32))
	}

	return fetch(ctx, q)
}

func getItem(ctx context.Context) (store.Record, error) {

	id := box.GetUrlParameter(ctx, "id")

	record, err := getStore(ctx).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: item '%s'", store.ErrorNotFound, id)
	}

	return record, nil
}

func crudOptions(r *http.Request) store.CrudOptions {
	rejectOverwrite, _ := strconv.ParseBool(r.URL.Query().Get("reject_overwrite"))
	return store.CrudOptions{
		ID:              r.URL.Query().Get("id"),
		RejectOverwrite: rejectOverwrite,
	}
}

func addItems(ctx context.Context, r *http.Request) (*storage.UpdateResults[store.Record], error) {

	items, err := readRecords(r.Body)
	if err != nil {
		return nil, err
	}

	results, err := getStore(ctx).Add(items, crudOptions(r)).Wait(ctx)
	if err != nil {
		return nil, err
	}

	box.GetResponse(ctx).WriteHeader(http.StatusCreated)
	return results, nil
}

func putItems(ctx context.Context, r *http.Request) (*storage.UpdateResults[store.Record], error) {

	items, err := readRecords(r.Body)
	if err != nil {
		return nil, err
	}

	return getStore(ctx).Put(items, crudOptions(r)).Wait(ctx)
}

func patchItems(ctx context.Context, r *http.Request) (*storage.UpdateResults[store.Record], error) {

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	argument, err := readPatchArgument(body)
	if err != nil {
		return nil, err
	}

	return getStore(ctx).Patch(argument, crudOptions(r)).Wait(ctx)
}

func deleteItems(ctx context.Context, r *http.Request) (*storage.UpdateResults[string], error) {

	ids := []any{}
	err := decodeBody(r.Body, &ids)
	if err != nil {
		return nil, err
	}

	canonical := make([]string, 0, len(ids))
	for _, id := range ids {
		c, ok := collection.CanonicalID(id)
		if !ok {
			return nil, fmt.Errorf("%w: empty id", store.ErrorMissingID)
		}
		canonical = append(canonical, c)
	}

	return getStore(ctx).Delete(canonical...).Wait(ctx)
}

func decodeBody(r io.Reader, v any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	err = jsonv2.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("%w: %s", errMalformedBody, err.Error())
	}
	return nil
}

// readRecords accepts a single JSON object or an array of them.
func readRecords(r io.Reader) ([]store.Record, error) {

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] == '[' {
		items := []store.Record{}
		err = jsonv2.Unmarshal(body, &items)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errMalformedBody, err.Error())
		}
		return items, nil
	}

	item := store.Record{}
	err = jsonv2.Unmarshal(body, &item)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errMalformedBody, err.Error())
	}
	return []store.Record{item}, nil
}

// readPatchArgument tells explicit entries ({"id":..., "patch":[...]}) apart
// from basic patches (partial records).
func readPatchArgument(body []byte) (store.PatchArgument, error) {

	items, err := readRecords(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	entries := make([]storage.PatchEntry, 0, len(items))
	for _, item := range items {
		entry, ok, err := asPatchEntry(item)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		entries = append(entries, entry)
	}

	if len(entries) == len(items) && len(items) > 0 {
		return entries, nil
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("%w: cannot mix patch entries and partial items", errMalformedBody)
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return items, nil
}

func asPatchEntry(item store.Record) (storage.PatchEntry, bool, error) {

	operations, isEntry := item["patch"].([]any)
	if !isEntry || len(item) != 2 {
		return storage.PatchEntry{}, false, nil
	}
	id, hasID := collection.CanonicalID(item["id"])
	if !hasID {
		return storage.PatchEntry{}, false, nil
	}

	p := patch.Patch{}
	err := utils.Remarshal(operations, &p)
	if err != nil {
		return storage.PatchEntry{}, false, fmt.Errorf("%w: %s", errMalformedBody, err.Error())
	}

	return storage.PatchEntry{ID: id, Patch: p}, true, nil
}
