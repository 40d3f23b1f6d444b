package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/memvault/memvault/internal/errs"
)

// IngestRequest is the caller-facing shape for memory_ingest (spec §6.1): a
// filesystem path (file or directory), optional extra tags, and optional
// chunk sizing overrides. Each file longer than the chunk size is split with the same
// chunkContent boundary-preserving splitter Store uses for oversized content.
type IngestRequest struct {
	Path         string
	Tags         []string
	ChunkSize    int
	ChunkOverlap int
}

// IngestFailure records one file that could not be read or stored.
type IngestFailure struct {
	Path  string
	Error string
}

// IngestOutcome is the result of Ingest (spec §6.1: "{success,
// memories_created, failures}").
type IngestOutcome struct {
	Success         bool
	MemoriesCreated int
	Failures        []IngestFailure
}

const defaultIngestChunkSize = 2000

// Ingest reads every regular file under req.Path (a single file or a
// directory walked recursively) and stores each one through Store, chunking
// per req.ChunkSize/ChunkOverlap. A per-file read or store failure is
// recorded in Failures rather than aborting the whole run.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestOutcome, *errs.Error) {
	if req.Path == "" {
		return nil, errs.Validation("path is required")
	}
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultIngestChunkSize
	}
	overlap := req.ChunkOverlap
	if overlap <= 0 {
		overlap = s.cfg.ChunkOverlap
	}

	files, err := collectFiles(req.Path)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	out := &IngestOutcome{Success: true}
	for _, path := range files {
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			out.Failures = append(out.Failures, IngestFailure{Path: path, Error: readErr.Error()})
			continue
		}
		if len(content) == 0 {
			continue
		}

		tags := append(append([]string(nil), req.Tags...), "ingested")
		pieces := chunkContent(string(content), chunkSize, overlap)
		for _, piece := range pieces {
			storeReq := StoreRequest{
				Content:    piece,
				Tags:       tags,
				MemoryType: "document",
				Metadata:   map[string]interface{}{"source_path": path},
			}
			outcome, serr := s.Store(ctx, storeReq)
			if serr != nil {
				out.Failures = append(out.Failures, IngestFailure{Path: path, Error: serr.Error()})
				continue
			}
			if outcome.Success {
				out.MemoriesCreated++
			}
		}
	}

	if len(out.Failures) > 0 && out.MemoriesCreated == 0 {
		out.Success = false
	}
	return out, nil
}

// collectFiles returns path itself if it's a regular file, or every regular
// file beneath it if it's a directory, skipping dotfiles/dot-directories.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		files = append(files, p)
		return nil
	})
	return files, err
}
