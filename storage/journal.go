package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fulldump/objectstore/collection"
	"github.com/fulldump/objectstore/patch"
)

// Command is one line of the journal file.
type Command struct {
	Name      string          `json:"name"`
	Uuid      string          `json:"uuid"`
	Timestamp int64           `json:"timestamp"`
	StartByte int64           `json:"start_byte"`
	Payload   json.RawMessage `json:"payload"`
}

type putPayload struct {
	ID     string `json:"id"`
	Record Record `json:"record"`
}

type patchPayload struct {
	ID    string      `json:"id"`
	Patch patch.Patch `json:"patch"`
}

type deletePayload struct {
	ID string `json:"id"`
}

type JournalConfig struct {
	Config

	Filename string

	// SyncWrites flushes the file to disk after every batch.
	SyncWrites bool
}

// Journal is an in-memory adapter backed by an append-only JSON-lines
// command log. The log is replayed on open.
type Journal struct {
	engine

	filename   string
	file       *os.File
	offset     int64
	syncWrites bool
}

func OpenJournal(config JournalConfig) (*Journal, error) {

	j := &Journal{
		filename:   config.Filename,
		syncWrites: config.SyncWrites,
	}
	j.init(config.Config)
	j.commit = j.write

	f, err := os.OpenFile(config.Filename, os.O_RDONLY|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("open file for read: %w", err)
	}
	err = j.replay(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	j.file, err = os.OpenFile(config.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("open file for write: %w", err)
	}

	info, err := j.file.Stat()
	if err != nil {
		j.file.Close()
		return nil, fmt.Errorf("stat journal: %w", err)
	}
	j.offset = info.Size()

	return j, nil
}

func (j *Journal) replay(r io.Reader) error {

	current := collection.New()
	commands := 0

	d := json.NewDecoder(r)
	for {
		command := &Command{}
		err := d.Decode(command)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: command %d: %s", ErrorCorruptedJournal, commands, err.Error())
		}
		commands++

		switch command.Name {
		case string(changePut):
			params := putPayload{}
			err := json.Unmarshal(command.Payload, &params)
			if err != nil {
				return fmt.Errorf("%w: put %s: %s", ErrorCorruptedJournal, command.Uuid, err.Error())
			}
			current = current.Set(params.ID, params.Record)
		case string(changePatch):
			params := patchPayload{}
			err := json.Unmarshal(command.Payload, &params)
			if err != nil {
				return fmt.Errorf("%w: patch %s: %s", ErrorCorruptedJournal, command.Uuid, err.Error())
			}
			existing, found := current.Get(params.ID)
			if !found {
				j.config.Logger.Warn("journal patch of missing record", slog.String("id", params.ID), slog.String("uuid", command.Uuid))
				continue
			}
			patched, err := params.Patch.Apply(existing)
			if err != nil {
				j.config.Logger.Warn("journal patch failed", slog.String("id", params.ID), slog.String("error", err.Error()))
				continue
			}
			record, ok := patched.(map[string]any)
			if !ok {
				j.config.Logger.Warn("journal patch produced a non object", slog.String("id", params.ID))
				continue
			}
			current = current.Set(params.ID, record)
		case string(changeDelete):
			params := deletePayload{}
			err := json.Unmarshal(command.Payload, &params)
			if err != nil {
				return fmt.Errorf("%w: delete %s: %s", ErrorCorruptedJournal, command.Uuid, err.Error())
			}
			current = current.Delete(params.ID)
		default:
			j.config.Logger.Warn("journal: unknown command", slog.String("name", command.Name))
		}
	}

	j.current = current
	j.config.Logger.Debug("journal replayed",
		slog.String("filename", j.filename),
		slog.Int("commands", commands),
		slog.Int("records", current.Len()),
	)
	return nil
}

// write appends one command per change with a single write call.
func (j *Journal) write(changes []change) error {

	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	now := time.Now().UnixNano()

	for _, c := range changes {
		var payload any
		switch c.Kind {
		case changePut:
			payload = putPayload{ID: c.ID, Record: c.Record}
		case changePatch:
			payload = patchPayload{ID: c.ID, Patch: c.Patch}
		case changeDelete:
			payload = deletePayload{ID: c.ID}
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("json encode payload: %w", err)
		}

		err = encoder.Encode(&Command{
			Name:      string(c.Kind),
			Uuid:      uuid.New().String(),
			Timestamp: now,
			StartByte: j.offset + int64(buffer.Len()),
			Payload:   raw,
		})
		if err != nil {
			return fmt.Errorf("json encode command: %w", err)
		}
	}

	n, err := j.file.Write(buffer.Bytes())
	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	j.offset += int64(n)

	if j.syncWrites {
		err = j.file.Sync()
		if err != nil {
			return fmt.Errorf("sync journal: %w", err)
		}
	}

	return nil
}

func (j *Journal) Filename() string {
	return j.filename
}

func (j *Journal) Close() error {
	if !j.close() {
		return nil
	}
	return j.file.Close()
}
