package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/internal/services"
	"github.com/doomedramen/autopwn/pkg/debug"
)

const (
	// crackMaxAttempts bounds retries of one hashcat invocation after a
	// transient failure before the dictionary pass is given up.
	crackMaxAttempts = 3
	crackRetryDelay  = 5 * time.Second

	defaultHashType = 22000
)

// CrackRunner runs hashcat over a job's hash material, one dictionary at a
// time in the configured order. Batch jobs iterate their items sequentially;
// each item works through the full dictionary list until a password is found
// or the list is exhausted.
type CrackRunner struct {
	deps Deps
}

// NewCrackRunner creates a crack runner.
func NewCrackRunner(deps Deps) *CrackRunner {
	return &CrackRunner{deps: deps}
}

// Type implements Runner.
func (r *CrackRunner) Type() models.JobType {
	return models.JobTypeCrack
}

// Run drives a crack job to completion. The returned error is non-nil only
// when the job as a whole failed; individual item failures are recorded on the
// items and folded into the aggregate outcome.
func (r *CrackRunner) Run(ctx context.Context, job *models.Job) error {
	opts, err := models.CrackOptionsFrom(job.Options)
	if err != nil {
		return err
	}

	dicts, joins, err := r.deps.JobRepo.ListDictionaries(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(dicts) == 0 {
		return jobs.Validationf("job has no dictionaries to run")
	}

	items, err := r.deps.ItemRepo.ListByJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return jobs.Validationf("job has no capture targets")
	}

	// Resume after pause or requeue: completed and failed items keep their
	// outcome, only pending and processing items run again.
	cracked := 0
	for _, item := range items {
		if item.Status == models.JobItemStatusCompleted && item.Password != nil {
			cracked++
		}
	}
	r.deps.Reporter.SetItemsCracked(job.ID, cracked)

	for _, item := range items {
		if item.Status == models.JobItemStatusCompleted || item.Status == models.JobItemStatusFailed {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		password, itemErr := r.runItem(ctx, job, opts, item, dicts, joins)
		switch {
		case itemErr != nil && errors.Is(itemErr, context.Canceled):
			return itemErr
		case itemErr != nil && errors.Is(itemErr, context.DeadlineExceeded):
			return itemErr
		case itemErr != nil:
			debug.Error("Item %s failed: %v", item.ID, itemErr)
			if err := r.deps.ItemRepo.MarkFailed(ctx, item.ID, itemErr.Error()); err != nil {
				return err
			}
			_ = r.deps.JobRepo.AppendLog(ctx, job.ID,
				fmt.Sprintf("item %s failed: %v", item.Filename, itemErr))
		default:
			if err := r.deps.ItemRepo.MarkCompleted(ctx, item.ID, password); err != nil {
				return err
			}
			if password != nil {
				cracked++
				r.deps.Reporter.SetItemsCracked(job.ID, cracked)
				_ = r.deps.JobRepo.AppendLog(ctx, job.ID,
					fmt.Sprintf("recovered password for %s", item.Filename))
			} else {
				_ = r.deps.JobRepo.AppendLog(ctx, job.ID,
					fmt.Sprintf("exhausted dictionaries for %s", item.Filename))
			}
		}
	}

	counts, err := r.deps.ItemRepo.CountByStatus(ctx, job.ID)
	if err != nil {
		return err
	}
	if services.AggregateStatus(counts) == models.JobStatusFailed {
		return fmt.Errorf("%d of %d captures failed", counts.Failed, counts.Total())
	}
	return nil
}

// runItem works one capture through the dictionary list. Returns the recovered
// password, or nil when every dictionary was exhausted without a hit.
func (r *CrackRunner) runItem(ctx context.Context, job *models.Job, opts *models.CrackOptions, item *models.JobItem, dicts []*models.Dictionary, joins []models.JobDictionary) (*string, error) {
	if item.HashFilePath == nil || *item.HashFilePath == "" {
		// The capture may have been analyzed after this batch was created;
		// backfill the item from the capture record before giving up.
		capture, err := r.deps.CaptureRepo.GetByID(ctx, item.CaptureID)
		if err != nil {
			return nil, err
		}
		if capture.HashFilePath == nil || *capture.HashFilePath == "" {
			return nil, jobs.Validationf("capture %s has not been analyzed", item.Filename)
		}
		essid, bssid := "", ""
		if capture.ESSID != nil {
			essid = *capture.ESSID
		}
		if capture.BSSID != nil {
			bssid = *capture.BSSID
		}
		if err := r.deps.ItemRepo.SetAnalysis(ctx, item.ID, essid, bssid, *capture.HashFilePath); err != nil {
			return nil, err
		}
		item.ESSID = capture.ESSID
		item.BSSID = capture.BSSID
		item.HashFilePath = capture.HashFilePath
	}
	if err := r.deps.ItemRepo.MarkProcessing(ctx, item.ID); err != nil {
		return nil, err
	}

	outPath := filepath.Join(r.deps.Cfg.HashFileDir(),
		fmt.Sprintf("%s-%s.out", job.ID, item.ID))
	defer os.Remove(outPath)

	for i, dict := range dicts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Dictionary-level resume only applies to single-item jobs; batch
		// items each need the full list.
		if !job.BatchMode && joins[i].Status == models.JobDictionaryCompleted {
			continue
		}

		if err := r.deps.JobRepo.SetDictionaryStatus(ctx, job.ID, dict.ID, models.JobDictionaryProcessing); err != nil {
			return nil, err
		}
		r.deps.Reporter.Stage(ctx, job.ID, "cracking: "+dict.Name, &dict.Name)

		if err := r.runHashcat(ctx, job, opts, *item.HashFilePath, dict.FilePath, outPath); err != nil {
			return nil, err
		}

		if !job.BatchMode {
			if err := r.deps.JobRepo.SetDictionaryStatus(ctx, job.ID, dict.ID, models.JobDictionaryCompleted); err != nil {
				return nil, err
			}
		}

		password, err := r.collectResults(ctx, job, item, outPath)
		if err != nil {
			return nil, err
		}
		if password != nil {
			// Remaining dictionaries are pointless for this target.
			return password, nil
		}
	}
	return nil, nil
}

// runHashcat executes one hashcat pass with bounded retries on transient
// failures. Keyspace exhaustion without a crack (exit code 1) is a clean
// outcome, not an error.
func (r *CrackRunner) runHashcat(ctx context.Context, job *models.Job, opts *models.CrackOptions, hashFile, dictFile, outPath string) error {
	args := r.hashcatArgs(opts, hashFile, dictFile, outPath)

	var lastErr error
	for attempt := 1; attempt <= crackMaxAttempts; attempt++ {
		err := RunTool(ctx, r.deps.Cfg.HashcatBin, args, func(line string) {
			r.deps.Reporter.Report(ctx, job.ID, line)
		})
		if err == nil {
			return nil
		}

		var toolErr *jobs.ExternalToolError
		if errors.As(err, &toolErr) && toolErr.ExitCode == 1 {
			// Exhausted.
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		if attempt < crackMaxAttempts {
			debug.Warning("hashcat attempt %d/%d for job %s failed, retrying in %v: %v",
				attempt, crackMaxAttempts, job.ID, crackRetryDelay, err)
			select {
			case <-time.After(crackRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (r *CrackRunner) hashcatArgs(opts *models.CrackOptions, hashFile, dictFile, outPath string) []string {
	hashType := opts.HashType
	if hashType == 0 {
		hashType = defaultHashType
	}
	profile := opts.WorkloadProfile
	if profile == 0 {
		profile = r.deps.Cfg.WorkloadProfile
	}
	return []string{
		"-m", strconv.Itoa(hashType),
		"-a", strconv.Itoa(opts.AttackMode),
		"-w", strconv.Itoa(profile),
		"--status", "--status-timer", "5",
		"--potfile-disable",
		"--outfile", outPath,
		hashFile,
		dictFile,
	}
}

// collectResults reads the hashcat outfile and records any newly recovered
// passwords. Returns the last password seen, nil when the outfile is empty.
func (r *CrackRunner) collectResults(ctx context.Context, job *models.Job, item *models.JobItem, outPath string) (*string, error) {
	file, err := os.Open(outPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open hashcat outfile: %w", err)
	}
	defer file.Close()

	essid, bssid := "", ""
	if item.ESSID != nil {
		essid = *item.ESSID
	}
	if item.BSSID != nil {
		bssid = *item.BSSID
	}

	var found *string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Outfile lines are <hash>:<password>; the hc22000 hash itself is
		// asterisk-separated, so the last colon is the split point.
		idx := strings.LastIndex(line, ":")
		if idx < 0 || idx == len(line)-1 {
			continue
		}
		password := line[idx+1:]

		result := &models.CrackResult{
			JobID:     job.ID,
			JobItemID: &item.ID,
			ESSID:     essid,
			BSSID:     bssid,
			Password:  password,
		}
		if err := r.deps.ResultRepo.Create(ctx, result); err != nil {
			return nil, err
		}
		if newEntry, err := r.deps.Potfile.Record(essid, bssid, password); err != nil {
			debug.Error("Failed to record potfile entry for job %s: %v", job.ID, err)
		} else if newEntry {
			debug.Info("Potfile gained entry for %s", essid)
		}
		p := password
		found = &p
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hashcat outfile: %w", err)
	}
	return found, nil
}
