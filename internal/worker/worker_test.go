package worker

import (
	"time"

	"github.com/doomedramen/autopwn/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		DatabaseURL:             "postgres://localhost/autopwn_test",
		DataDir:                 "/tmp/autopwn-test",
		CaptureWorkers:          1,
		DictionaryWorkers:       1,
		CrackWorkers:            1,
		PollInterval:            10 * time.Millisecond,
		ProgressPersistInterval: time.Second,
		HashcatBin:              "hashcat",
		HcxToolBin:              "hcxpcapngtool",
		CrunchBin:               "crunch",
		WorkloadProfile:         3,
	}
}
