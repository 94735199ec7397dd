package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/exp/ordered"

	"github.com/dotcommander/unai/internal/agent"
	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/present"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/storage"
	"github.com/dotcommander/unai/internal/storage/cache"
)

// conversationStore bundles the run index and the transcript files.
type conversationStore struct {
	DB    *storage.DB
	Cache *cache.Transcripts
}

func openConversationStore(cachePath string) (*conversationStore, error) {
	transcripts, err := cache.New(cachePath)
	if err != nil {
		return nil, fmt.Errorf("open transcripts: %w", err)
	}
	db, err := storage.Open(filepath.Join(cachePath, "conversations"))
	if err != nil {
		return nil, fmt.Errorf("open run index: %w", err)
	}
	return &conversationStore{DB: db, Cache: transcripts}, nil
}

func (s *conversationStore) Close() error {
	return s.DB.Close()
}

type conversationPlan struct {
	WriteID string
	Title   string
	ReadID  string
	API     string
	Model   string
}

// planConversation decides which run to read from and which to write to.
// Continuing without a new title updates the run in place.
func planConversation(cfg *config.Config, db *storage.DB) (conversationPlan, error) {
	continueLast := cfg.ContinueLast || (cfg.Continue != "" && cfg.Title == "")
	readID := cfg.Continue
	writeID := ordered.First(cfg.Title, cfg.Continue)
	title := writeID
	api, model := cfg.API, cfg.Model

	if readID != "" || continueLast {
		found, err := findReadConversation(db, readID)
		if err != nil {
			return conversationPlan{}, errs.Wrap(err, "Could not find the conversation.")
		}
		readID = found.ID
		title = ordered.First(cfg.Title, found.Title)
		if found.API != "" && found.Model != "" {
			api, model = found.API, found.Model
		}
	}

	if continueLast {
		writeID = readID
	}
	if writeID == "" {
		writeID = storage.NewRunID()
	}
	if !storage.IDRegexp.MatchString(writeID) {
		if run, err := db.Find(writeID); err == nil {
			writeID = run.ID
		} else {
			writeID = storage.NewRunID()
		}
	}

	return conversationPlan{
		WriteID: writeID,
		Title:   title,
		ReadID:  readID,
		API:     api,
		Model:   model,
	}, nil
}

// findReadConversation resolves in, falling back to the latest run when in
// is empty.
func findReadConversation(db *storage.DB, in string) (storage.Run, error) {
	if in == "" {
		run, err := db.Head()
		if err != nil {
			return storage.Run{}, fmt.Errorf("find latest conversation: %w", err)
		}
		return run, nil
	}
	run, err := db.Find(in)
	if err != nil {
		return storage.Run{}, fmt.Errorf("find conversation: %w", err)
	}
	return run, nil
}

func loadConversation(store *conversationStore, id string) (proto.Context, error) {
	if id == "" {
		return proto.Context{}, nil
	}
	conv, err := store.Cache.Load(id)
	if errors.Is(err, os.ErrNotExist) {
		return proto.Context{}, errs.Wrap(err, "The conversation transcript is missing.")
	}
	if err != nil {
		return proto.Context{}, errs.Wrap(err, "There was a problem reading the conversation from cache.")
	}
	return conv, nil
}

func saveConversation(cfg *config.Config, store *conversationStore, pl conversationPlan, res agent.Result) error {
	if cfg.NoCache {
		if !cfg.Quiet {
			fmt.Fprintf(
				os.Stderr,
				"\nConversation was not saved because %s or %s is set.\n",
				present.StderrStyles().InlineCode.Render("--no-cache"),
				present.StderrStyles().InlineCode.Render("UNAI_NO_CACHE"),
			)
		}
		return nil
	}

	title := strings.TrimSpace(pl.Title)
	if storage.IDRegexp.MatchString(title) || title == "" {
		title = firstLine(lastPrompt(res.Context))
	}
	if title == "" {
		title = storage.ShortID(pl.WriteID)
	}

	errReason := fmt.Sprintf(
		"There was a problem writing %s to the cache. Use %s / %s to disable it.",
		storage.ShortID(pl.WriteID),
		present.StderrStyles().InlineCode.Render("--no-cache"),
		present.StderrStyles().InlineCode.Render("UNAI_NO_CACHE"),
	)
	if err := store.Cache.Save(pl.WriteID, res.Context); err != nil {
		return errs.Wrap(err, errReason)
	}
	run := storage.Run{
		ID:         pl.WriteID,
		Title:      title,
		API:        pl.API,
		Model:      pl.Model,
		State:      string(res.State),
		Iterations: res.Iterations,
		Tokens:     res.Usage.Total(),
	}
	if err := store.DB.Save(run); err != nil {
		_ = store.Cache.Delete(pl.WriteID)
		return errs.Wrap(err, errReason)
	}

	if !cfg.Quiet {
		styles := present.StderrStyles()
		summary := present.RunSummary(styles, storage.ShortID(pl.WriteID), title, res.Iterations, res.Usage)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, present.Confirmation(styles, "saved", summary))
	}
	return nil
}

func deleteConversationByID(cfg *config.Config, store *conversationStore, id string) error {
	if err := store.DB.Delete(id); err != nil {
		return fmt.Errorf("delete conversation index: %w", err)
	}
	if err := store.Cache.Delete(id); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete conversation transcript: %w", err)
	}
	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr, present.Confirmation(present.StderrStyles(), "deleted", storage.ShortID(id)))
	}
	return nil
}

func lastPrompt(conv proto.Context) string {
	var result string
	for _, msg := range conv.Messages() {
		if msg.Role != proto.RoleUser {
			continue
		}
		if text := strings.TrimSpace(msg.Text()); text != "" {
			result = text
		}
	}
	return result
}

func firstLine(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	return first
}

func runCompletions(cfg *config.Config, toComplete string) []string {
	if cfg.CachePath == "" {
		return nil
	}
	db, err := storage.Open(cfg.ConversationsDir())
	if err != nil {
		return nil
	}
	defer db.Close() //nolint:errcheck
	return db.Completions(toComplete)
}
