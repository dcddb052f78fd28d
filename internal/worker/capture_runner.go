package worker

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/pkg/debug"
)

// CaptureRunner converts uploaded capture files into crackable hash files
// using hcxpcapngtool and records the extracted network identities.
type CaptureRunner struct {
	deps Deps
}

// NewCaptureRunner creates a capture runner.
func NewCaptureRunner(deps Deps) *CaptureRunner {
	return &CaptureRunner{deps: deps}
}

// Type implements Runner.
func (r *CaptureRunner) Type() models.JobType {
	return models.JobTypeCapture
}

// Run analyzes the capture referenced by the job options. A capture that
// yields no crackable hashes fails the job with a clear message.
func (r *CaptureRunner) Run(ctx context.Context, job *models.Job) error {
	opts, err := models.CaptureOptionsFrom(job.Options)
	if err != nil {
		return err
	}
	capture, err := r.deps.CaptureRepo.GetByID(ctx, opts.CaptureID)
	if err != nil {
		return err
	}

	r.deps.Reporter.Stage(ctx, job.ID, "analyzing capture", nil)

	if err := os.MkdirAll(r.deps.Cfg.HashFileDir(), 0755); err != nil {
		return fmt.Errorf("failed to create hash file directory: %w", err)
	}
	hashFilePath := filepath.Join(r.deps.Cfg.HashFileDir(), capture.ID.String()+".hc22000")

	args := []string{"-o", hashFilePath, capture.FilePath}
	err = RunTool(ctx, r.deps.Cfg.HcxToolBin, args, func(line string) {
		debug.Debug("hcxpcapngtool: %s", line)
	})
	if err != nil {
		// The tool exits non-zero when nothing convertible was found; map
		// that onto the same empty-capture failure as an empty hash file.
		if jobs.IsExternalTool(err) {
			if _, statErr := os.Stat(hashFilePath); os.IsNotExist(statErr) {
				return jobs.Validationf("capture %s contains no crackable handshakes", capture.Filename)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	networks, hashCount, err := parseHashFile(hashFilePath)
	if err != nil {
		return fmt.Errorf("failed to read generated hash file: %w", err)
	}
	if hashCount == 0 {
		return jobs.Validationf("capture %s contains no crackable handshakes", capture.Filename)
	}

	essid, bssid := "", ""
	if len(networks) > 0 {
		essid = networks[0].ESSID
		bssid = networks[0].BSSID
	}
	if err := r.deps.CaptureRepo.SetAnalysis(ctx, capture.ID, essid, bssid, hashFilePath, hashCount); err != nil {
		return err
	}
	if err := r.deps.JobRepo.SetHashFile(ctx, job.ID, hashFilePath, hashCount); err != nil {
		return err
	}
	_ = r.deps.JobRepo.AppendLog(ctx, job.ID,
		fmt.Sprintf("extracted %d hashes from %s (%d networks)", hashCount, capture.Filename, len(networks)))

	r.deps.Reporter.ReportPercent(ctx, job.ID, 100)
	debug.Log("Capture analysis finished", map[string]interface{}{
		"capture_id": capture.ID,
		"hash_count": hashCount,
		"networks":   len(networks),
	})
	return nil
}

// parseHashFile reads a hc22000 hash file and returns the distinct networks it
// targets plus the number of hash lines.
func parseHashFile(path string) ([]models.Network, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	var networks []models.Network
	seen := make(map[string]bool)
	count := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		count++
		network, ok := parseHashLine(line)
		if !ok {
			continue
		}
		key := network.BSSID + "/" + network.ESSID
		if !seen[key] {
			seen[key] = true
			networks = append(networks, network)
		}
	}
	return networks, count, scanner.Err()
}

// parseHashLine extracts the network identity from one hc22000 line. The
// format is asterisk-separated: WPA*TYPE*PMKID/MIC*MAC_AP*MAC_CLIENT*ESSID...
// with the AP MAC as plain hex and the ESSID hex-encoded.
func parseHashLine(line string) (models.Network, bool) {
	fields := strings.Split(line, "*")
	if len(fields) < 6 || fields[0] != "WPA" {
		return models.Network{}, false
	}

	bssid := formatMAC(fields[3])
	essidBytes, err := hex.DecodeString(fields[5])
	if err != nil {
		return models.Network{}, false
	}
	return models.Network{ESSID: string(essidBytes), BSSID: bssid}, true
}

// formatMAC turns "aabbccddeeff" into "aa:bb:cc:dd:ee:ff".
func formatMAC(raw string) string {
	if len(raw) != 12 {
		return raw
	}
	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, raw[i:i+2])
	}
	return strings.Join(parts, ":")
}
