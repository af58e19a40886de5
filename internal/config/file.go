package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkerFile is the standalone worker's configuration file. It covers the
// choices the hosted runtime makes implicitly: which ledger backend to use
// and how to poll the queue.
type WorkerFile struct {
	Ledger struct {
		// Backend selects the ledger store: "sqlite" or "dynamodb".
		Backend string `yaml:"backend"`
		// Path is the sqlite database file. Ignored for dynamodb.
		Path string `yaml:"path"`
	} `yaml:"ledger"`

	Poll struct {
		// BatchSize is the number of messages fetched per receive.
		BatchSize int `yaml:"batch_size"`
		// WaitSeconds is the long-poll duration per receive.
		WaitSeconds int `yaml:"wait_seconds"`
	} `yaml:"poll"`
}

// LoadWorkerFile reads and validates a worker configuration file.
func LoadWorkerFile(path string) (WorkerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkerFile{}, fmt.Errorf("read worker config: %w", err)
	}

	var wf WorkerFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return WorkerFile{}, fmt.Errorf("parse worker config: %w", err)
	}

	switch wf.Ledger.Backend {
	case "", "sqlite":
		wf.Ledger.Backend = "sqlite"
		if wf.Ledger.Path == "" {
			wf.Ledger.Path = "partmirror.db"
		}
	case "dynamodb":
	default:
		return WorkerFile{}, fmt.Errorf("unknown ledger backend %q", wf.Ledger.Backend)
	}

	if wf.Poll.BatchSize <= 0 {
		wf.Poll.BatchSize = 10
	}
	if wf.Poll.WaitSeconds <= 0 {
		wf.Poll.WaitSeconds = 20
	}
	return wf, nil
}
