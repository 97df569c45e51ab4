package store

import (
	"fmt"
	"slices"

	"github.com/fulldump/objectstore/collection"
	"github.com/fulldump/objectstore/patch"
	"github.com/fulldump/objectstore/storage"
)

// PatchArgument is one of PatchMap, storage.PatchEntry, *storage.PatchEntry,
// []storage.PatchEntry, Record or []Record.
type PatchArgument any

// PatchMap patches several records at once, keyed by identity.
type PatchMap map[string]patch.Patch

func (s *Store) canonicalPatches(argument PatchArgument, options CrudOptions) ([]storage.PatchEntry, error) {

	switch value := argument.(type) {
	case PatchMap:
		ids := make([]string, 0, len(value))
		for id := range value {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		entries := make([]storage.PatchEntry, 0, len(ids))
		for _, id := range ids {
			entry, err := canonicalEntry(storage.PatchEntry{ID: id, Patch: value[id]})
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		return entries, nil

	case storage.PatchEntry:
		entry, err := canonicalEntry(value)
		if err != nil {
			return nil, err
		}
		return []storage.PatchEntry{entry}, nil

	case *storage.PatchEntry:
		if value == nil {
			return nil, fmt.Errorf("%w: nil patch entry", ErrorMissingID)
		}
		return s.canonicalPatches(*value, options)

	case []storage.PatchEntry:
		entries := make([]storage.PatchEntry, 0, len(value))
		for i, e := range value {
			entry, err := canonicalEntry(e)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			entries = append(entries, entry)
		}
		return entries, nil

	case map[string]any:
		entry, err := s.basicPatch(value, options.ID)
		if err != nil {
			return nil, err
		}
		return []storage.PatchEntry{entry}, nil

	case []Record:
		entries := make([]storage.PatchEntry, 0, len(value))
		for i, partial := range value {
			entry, err := s.basicPatch(partial, "")
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			entries = append(entries, entry)
		}
		return entries, nil
	}

	return nil, fmt.Errorf("unsupported patch argument %T", argument)
}

func canonicalEntry(entry storage.PatchEntry) (storage.PatchEntry, error) {
	id, ok := collection.CanonicalID(entry.ID)
	if !ok {
		return entry, ErrorMissingID
	}
	entry.ID = id
	return entry, nil
}

// basicPatch turns a partial record into a patch that adds or replaces each
// of its top level fields. The identity comes from id when given, otherwise
// from the partial itself; in that case the identity field is not patched.
func (s *Store) basicPatch(partial Record, id string) (storage.PatchEntry, error) {

	normalized, err := patch.Normalize(partial)
	if err != nil {
		return storage.PatchEntry{}, fmt.Errorf("%w: %s", storage.ErrorInvalidRecord, err.Error())
	}
	fields, ok := normalized.(map[string]any)
	if !ok {
		return storage.PatchEntry{}, storage.ErrorInvalidRecord
	}

	if id == "" {
		if s.idFunction != nil {
			id = s.idFunction(fields)
		} else {
			id, _ = collection.CanonicalID(fields[s.idProperty])
			delete(fields, s.idProperty)
		}
	}

	id, ok = collection.CanonicalID(id)
	if !ok {
		return storage.PatchEntry{}, ErrorMissingID
	}

	return storage.PatchEntry{
		ID:    id,
		Patch: patch.Diff(map[string]any{}, fields),
	}, nil
}
