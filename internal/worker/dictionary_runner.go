package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/pkg/debug"
)

// DictionaryRunner generates wordlists with crunch and finalizes the pending
// dictionary record once the file is written.
type DictionaryRunner struct {
	deps Deps
}

// NewDictionaryRunner creates a dictionary runner.
func NewDictionaryRunner(deps Deps) *DictionaryRunner {
	return &DictionaryRunner{deps: deps}
}

// Type implements Runner.
func (r *DictionaryRunner) Type() models.JobType {
	return models.JobTypeDictionary
}

// Run generates the wordlist described by the job options.
func (r *DictionaryRunner) Run(ctx context.Context, job *models.Job) error {
	opts, err := models.GenerateOptionsFrom(job.Options)
	if err != nil {
		return err
	}

	outPath := r.deps.Wordlists.PathFor(opts.Name)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create wordlist directory: %w", err)
	}

	r.deps.Reporter.Stage(ctx, job.ID, "generating wordlist", nil)

	args := crunchArgs(opts, outPath)
	err = RunTool(ctx, r.deps.Cfg.CrunchBin, args, func(line string) {
		if pct, ok := parseCrunchPercent(line); ok {
			r.deps.Reporter.ReportPercent(ctx, job.ID, pct)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	wordCount, err := r.deps.Wordlists.Finalize(ctx, opts.DictionaryID, outPath)
	if err != nil {
		return err
	}
	_ = r.deps.JobRepo.AppendLog(ctx, job.ID,
		fmt.Sprintf("generated %q with %d entries", opts.Name, wordCount))

	r.deps.Reporter.ReportPercent(ctx, job.ID, 100)
	debug.Log("Wordlist generation finished", map[string]interface{}{
		"dictionary_id": opts.DictionaryID,
		"name":          opts.Name,
		"word_count":    wordCount,
	})
	return nil
}

// crunchArgs builds the crunch invocation for the given options. Base words
// switch crunch into permutation mode; otherwise the length bounds apply,
// optionally constrained by a charset and a -t pattern.
func crunchArgs(opts *models.GenerateOptions, outPath string) []string {
	var args []string
	args = append(args, strconv.Itoa(opts.MinLength), strconv.Itoa(opts.MaxLength))
	if opts.Charset != "" {
		args = append(args, opts.Charset)
	}
	if opts.Pattern != "" {
		args = append(args, "-t", opts.Pattern)
	}
	if len(opts.BaseWords) > 0 {
		args = append(args, "-p")
		args = append(args, opts.BaseWords...)
	}
	args = append(args, "-o", outPath)
	return args
}

// parseCrunchPercent extracts the percentage from progress lines like
// "crunch:  42% completed generating output".
func parseCrunchPercent(line string) (float64, bool) {
	idx := strings.Index(line, "% completed")
	if idx < 0 {
		return 0, false
	}
	head := strings.TrimSpace(line[:idx])
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return 0, false
	}
	pct, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}
