package services

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/doomedramen/autopwn/pkg/debug"
)

// potfileBloomCapacity sizes the duplicate pre-check filter. False positives
// only cost a linear scan of the potfile, never a lost entry.
const (
	potfileBloomCapacity = 1_000_000
	potfileBloomFP       = 0.001
)

// PotfileService appends recovered ESSID:password pairs to the shared potfile.
// A bloom filter screens out duplicates cheaply before falling back to a file
// scan on possible hits.
type PotfileService struct {
	path   string
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewPotfileService opens (or creates) the potfile at path and seeds the
// duplicate filter from its existing entries.
func NewPotfileService(path string) (*PotfileService, error) {
	s := &PotfileService{
		path:   path,
		filter: bloom.NewWithEstimates(potfileBloomCapacity, potfileBloomFP),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create potfile directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open potfile: %w", err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			s.filter.AddString(line)
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read potfile: %w", err)
	}

	debug.Info("Potfile loaded with %d entries from %s", count, path)
	return s, nil
}

// Record appends an entry unless it is already present. Returns true when the
// entry was newly written.
func (s *PotfileService) Record(essid, bssid, password string) (bool, error) {
	entry := fmt.Sprintf("%s:%s:%s", bssid, essid, password)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestString(entry) {
		// Possible duplicate; the filter can false-positive so confirm
		// against the file before skipping.
		exists, err := s.contains(entry)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to open potfile for append: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, entry); err != nil {
		return false, fmt.Errorf("failed to append potfile entry: %w", err)
	}
	s.filter.AddString(entry)
	return true, nil
}

func (s *PotfileService) contains(entry string) (bool, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open potfile: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if scanner.Text() == entry {
			return true, nil
		}
	}
	return false, scanner.Err()
}
