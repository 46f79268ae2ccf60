package retrieval

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkOptions controls how textbook files are split into documents.
type ChunkOptions struct {
	// Size is the maximum chunk length in characters.
	Size int
	// Overlap is the number of characters neighbouring chunks may share.
	Overlap int
	// Extensions lists the file extensions that are read.
	Extensions []string
}

// DefaultChunkOptions matches the textbook splitter used for the vector index.
var DefaultChunkOptions = ChunkOptions{Size: 1000, Overlap: 200, Extensions: []string{".txt", ".md"}}

// LoadCorpus reads every matching file below root and returns its chunks as
// documents with "source" and "chunk" metadata. Files are visited in lexical
// order so document ids are stable.
func LoadCorpus(root string, opts ChunkOptions) ([]Document, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultChunkOptions.Size
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		opts.Overlap = 0
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultChunkOptions.Extensions
	}

	var docs []Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExt(path, opts.Extensions) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			rel = filepath.Base(path)
		}
		chunks, err := Chunk(string(data), opts.Size, opts.Overlap)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", rel, err)
		}
		for i, chunk := range chunks {
			docs = append(docs, Document{
				ID:       fmt.Sprintf("%s#%d", filepath.ToSlash(rel), i),
				Text:     chunk,
				Metadata: map[string]any{"source": filepath.ToSlash(rel), "chunk": i},
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return docs, nil
}

// Chunk splits text into pieces of at most size characters with the
// recursive character splitter: paragraphs first, then lines, then words.
// Neighbouring pieces share up to overlap characters.
func Chunk(text string, size, overlap int) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
	parts, err := splitter.SplitText(strings.ReplaceAll(text, "\r\n", "\n"))
	if err != nil {
		return nil, err
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
