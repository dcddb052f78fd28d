// Package wordlist manages the dictionary store on disk: registering uploaded
// wordlists, extracting compressed archives, counting entries and marking
// dictionaries ready for crack jobs.
package wordlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/internal/repository"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/google/uuid"
)

// Manager owns the wordlist directory and dictionary records.
type Manager struct {
	dir      string
	dictRepo *repository.DictionaryRepository
}

// NewManager creates a manager rooted at dir.
func NewManager(dir string, dictRepo *repository.DictionaryRepository) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create wordlist directory: %w", err)
	}
	return &Manager{dir: dir, dictRepo: dictRepo}, nil
}

// Register takes a wordlist file already placed under the data directory,
// extracts it if it is a .7z archive, counts its entries and creates a ready
// dictionary record.
func (m *Manager) Register(ctx context.Context, name, path string) (*models.Dictionary, error) {
	finalPath := path
	if strings.EqualFold(filepath.Ext(path), ".7z") {
		extracted, err := m.extractArchive(path)
		if err != nil {
			return nil, fmt.Errorf("failed to extract wordlist archive: %w", err)
		}
		finalPath = extracted
		debug.Info("Extracted wordlist archive %s to %s", path, finalPath)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("wordlist file not accessible: %w", err)
	}

	wordCount, err := CountLines(finalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to count wordlist entries: %w", err)
	}

	dict := &models.Dictionary{
		ID:        uuid.New(),
		Name:      name,
		FilePath:  finalPath,
		FileSize:  info.Size(),
		WordCount: wordCount,
		Status:    models.DictionaryStatusReady,
	}
	if err := m.dictRepo.Create(ctx, dict); err != nil {
		return nil, err
	}

	debug.Log("Registered dictionary", map[string]interface{}{
		"name":       name,
		"word_count": wordCount,
		"file_size":  info.Size(),
	})
	return dict, nil
}

// Finalize records the output of a dictionary-generation job on an existing
// pending record.
func (m *Manager) Finalize(ctx context.Context, id uuid.UUID, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("generated wordlist not accessible: %w", err)
	}
	wordCount, err := CountLines(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count generated wordlist: %w", err)
	}
	if err := m.dictRepo.MarkReady(ctx, id, path, info.Size(), wordCount); err != nil {
		return 0, err
	}
	return wordCount, nil
}

// PathFor returns where a generated wordlist with the given name should live.
func (m *Manager) PathFor(name string) string {
	return filepath.Join(m.dir, name)
}

// extractArchive extracts the first file from a .7z archive next to it and
// returns the extracted path.
func (m *Manager) extractArchive(archivePath string) (string, error) {
	reader, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		outPath := filepath.Join(m.dir, filepath.Base(file.Name))
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open archive entry %s: %w", file.Name, err)
		}
		out, err := os.Create(outPath)
		if err != nil {
			rc.Close()
			return "", fmt.Errorf("failed to create extracted file: %w", err)
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return "", fmt.Errorf("failed to extract %s: %w", file.Name, err)
		}
		return outPath, nil
	}
	return "", fmt.Errorf("archive %s contains no files", archivePath)
}

// CountLines counts non-empty lines in a file.
func CountLines(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var count int64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	return count, scanner.Err()
}
