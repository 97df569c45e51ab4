package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/fulldump/objectstore/patch"
)

func JournalEnvironment(t *testing.T, f func(filename string)) {
	f(filepath.Join(t.TempDir(), "journal.json"))
}

func readCommands(filename string) []Command {
	f, err := os.Open(filename)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	commands := []Command{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		command := Command{}
		json.Unmarshal(scanner.Bytes(), &command)
		commands = append(commands, command)
	}
	return commands
}

func TestJournal_WritesCommands(t *testing.T) {
	JournalEnvironment(t, func(filename string) {

		// Setup
		ctx := context.Background()
		j, err := OpenJournal(JournalConfig{Filename: filename})
		AssertNil(err)

		// Run
		j.Put(ctx, []Record{{"id": "1", "name": "a"}, {"id": "2", "name": "b"}}, Options{})
		j.Patch(ctx, []PatchEntry{{ID: "1", Patch: patch.Patch{patch.Replace(patch.Path("name"), "z")}}})
		j.Delete(ctx, []string{"2"})
		j.Close()

		// Check
		commands := readCommands(filename)
		AssertEqual(len(commands), 4)
		AssertEqual(commands[0].Name, "put")
		AssertEqual(string(commands[0].Payload), `{"id":"1","record":{"id":"1","name":"a"}}`)
		AssertEqual(commands[0].StartByte, int64(0))
		AssertTrue(commands[1].StartByte > 0)
		AssertEqual(commands[2].Name, "patch")
		AssertEqual(commands[3].Name, "delete")
		AssertEqual(string(commands[3].Payload), `{"id":"2"}`)
	})
}

func TestJournal_Replay(t *testing.T) {
	JournalEnvironment(t, func(filename string) {

		// Setup
		ctx := context.Background()
		j, _ := OpenJournal(JournalConfig{Filename: filename})
		j.Put(ctx, []Record{{"id": "1", "name": "a"}, {"id": "2", "name": "b"}, {"id": "3", "name": "c"}}, Options{})
		j.Patch(ctx, []PatchEntry{{ID: "2", Patch: patch.Diff(map[string]any{}, map[string]any{"name": "bb", "tags": []any{"x"}})}})
		j.Delete(ctx, []string{"1"})
		j.Close()

		// Run
		reopened, err := OpenJournal(JournalConfig{Filename: filename})
		AssertNil(err)
		defer reopened.Close()

		// Check
		data, total := waitFetch(reopened.Fetch(ctx, nil))
		AssertEqual(total, 2)
		AssertEqualJson(data, []Record{
			{"id": "2", "name": "bb", "tags": []any{"x"}},
			{"id": "3", "name": "c"},
		})

		results, err := reopened.Put(ctx, []Record{{"id": "4"}}, Options{})
		AssertNil(err)
		AssertEqual(len(results.SuccessfulData), 1)
		AssertEqual(len(readCommands(filename)), 6)
	})
}

func TestJournal_FailedItemsAreNotWritten(t *testing.T) {
	JournalEnvironment(t, func(filename string) {
		ctx := context.Background()
		j, _ := OpenJournal(JournalConfig{Filename: filename})
		defer j.Close()

		j.Add(ctx, []Record{{"id": "1"}}, Options{})
		j.Add(ctx, []Record{{"id": "1"}}, Options{})
		j.Delete(ctx, []string{"nope"})

		AssertEqual(len(readCommands(filename)), 1)
	})
}

func TestJournal_Corrupted(t *testing.T) {
	JournalEnvironment(t, func(filename string) {
		os.WriteFile(filename, []byte(`{"name":"put","payload":{"id":"1","record":{}}}`+"\n{broken"), 0666)

		_, err := OpenJournal(JournalConfig{Filename: filename})
		AssertTrue(errors.Is(err, ErrorCorruptedJournal))
	})
}

func TestJournal_CloseTwice(t *testing.T) {
	JournalEnvironment(t, func(filename string) {
		j, _ := OpenJournal(JournalConfig{Filename: filename})
		AssertNil(j.Close())
		AssertNil(j.Close())
		AssertEqual(j.Filename(), filename)
	})
}
