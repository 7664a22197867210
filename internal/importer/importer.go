// Package importer seeds a set from markdown manifests found in a local
// directory or a git repository.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/revq/internal/domain"
	"github.com/conorfennell/revq/internal/gitsource"
	"github.com/conorfennell/revq/internal/interval"
	"github.com/conorfennell/revq/internal/knol"
	"github.com/conorfennell/revq/internal/manifest"
	"github.com/conorfennell/revq/internal/storage"
)

// Store is the storage the importer needs.
type Store interface {
	GetSet(ctx context.Context, setID, ownerID string) (domain.Set, error)
	FindItem(ctx context.Context, itemID, ownerID string) (storage.ItemView, error)
	CreateItem(ctx context.Context, item domain.Item, initial domain.ReviewState) error
	ListItems(ctx context.Context, setID, ownerID string) ([]storage.ItemView, error)
	DeleteItem(ctx context.Context, itemID, ownerID string) error
}

// Importer reconciles sets with their manifest sources.
type Importer struct {
	Store    Store
	Params   *interval.Params
	ReposDir string
	Progress io.Writer // git progress output, may be nil
	Now      func() time.Time
}

// Request names what to import and where.
type Request struct {
	OwnerID string
	SetID   string
	Source  string // local directory or git URL
	Prune   bool   // delete items of the set that no manifest lists
}

// Report summarises one import run.
type Report struct {
	Parsed   int
	Created  int
	Existing int
	Pruned   int
	Errors   []error
}

// Import reads every manifest below the source and creates the items that
// do not exist yet. Parse problems are collected in the report; storage
// failures abort the run.
func (im *Importer) Import(ctx context.Context, req Request) (Report, error) {
	if _, err := im.Store.GetSet(ctx, req.SetID, req.OwnerID); err != nil {
		return Report{}, err
	}

	root := req.Source
	if gitsource.IsGitURL(req.Source) {
		localPath, err := gitsource.LocalPath(im.ReposDir, req.Source)
		if err != nil {
			return Report{}, err
		}
		if err := gitsource.Sync(ctx, req.Source, localPath, im.Progress); err != nil {
			return Report{}, err
		}
		root = localPath
	}

	entries, report, err := collect(root)
	if err != nil {
		return report, err
	}

	now := im.now()
	found := make(map[string]bool, len(entries))
	for _, e := range entries {
		id := knol.Hash(req.SetID, e.Question, e.Answer)
		if found[id] {
			continue
		}
		found[id] = true

		_, err := im.Store.FindItem(ctx, id, req.OwnerID)
		if err == nil {
			report.Existing++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return report, fmt.Errorf("checking item %s: %w", id, err)
		}

		item := domain.Item{
			ID:               id,
			SetID:            req.SetID,
			OwnerID:          req.OwnerID,
			QuestionImageURL: e.Question,
			AnswerImageURL:   e.Answer,
			CreatedAt:        now,
		}
		slog.Info("New item found, inserting...", "item_id", id, "set_id", req.SetID)
		if err := im.Store.CreateItem(ctx, item, im.params().NewState(now)); err != nil {
			return report, fmt.Errorf("inserting item %s: %w", id, err)
		}
		report.Created++
	}

	if req.Prune {
		existing, err := im.Store.ListItems(ctx, req.SetID, req.OwnerID)
		if err != nil {
			return report, fmt.Errorf("listing items of set %s: %w", req.SetID, err)
		}
		for _, it := range existing {
			if found[it.ID] {
				continue
			}
			slog.Info("Orphaned item, deleting", "item_id", it.ID)
			if err := im.Store.DeleteItem(ctx, it.ID, req.OwnerID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return report, fmt.Errorf("deleting item %s: %w", it.ID, err)
			}
			report.Pruned++
		}
	}

	slog.Info("import complete",
		"set_id", req.SetID,
		"source", req.Source,
		"parsed", report.Parsed,
		"created", report.Created,
		"existing", report.Existing,
		"pruned", report.Pruned,
		"errors", len(report.Errors),
	)
	return report, nil
}

// collect walks root and parses every .md file. Image references relative
// to a manifest are rewritten relative to root. The .git directory is
// skipped.
func collect(root string) ([]manifest.Entry, Report, error) {
	var entries []manifest.Entry
	var report Report

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		fileEntries, parseErr := manifest.ParseFile(p)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", p, parseErr))
		}

		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		for _, e := range fileEntries {
			e.Question = resolve(rel, e.Question)
			e.Answer = resolve(rel, e.Answer)
			entries = append(entries, e)
		}
		return nil
	})
	if walkErr != nil {
		return nil, report, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	report.Parsed = len(entries)
	return entries, report, nil
}

func resolve(dir, ref string) string {
	if strings.Contains(ref, "://") || path.IsAbs(ref) {
		return ref
	}
	return path.Join(filepath.ToSlash(dir), ref)
}

func (im *Importer) now() time.Time {
	if im.Now != nil {
		return im.Now().UTC()
	}
	return time.Now().UTC()
}

func (im *Importer) params() *interval.Params {
	if im.Params != nil {
		return im.Params
	}
	return interval.DefaultParams()
}
