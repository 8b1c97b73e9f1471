// Package credstore persists the two values the capture side hands over:
// the last portal URL seen and its Authorization header.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"gopkg.in/yaml.v3"
)

// ErrNotCaptured means no credentials have been stored yet, or one of the
// two keys is empty.
var ErrNotCaptured = errors.New("no captured portal credentials")

// Credentials is the stored pair. Latest write wins.
type Credentials struct {
	APIURL     string    `yaml:"apiUrl"`
	APIHeaders string    `yaml:"apiHeaders"`
	CapturedAt time.Time `yaml:"capturedAt,omitempty"`
}

// Store is a YAML file holding one Credentials value.
type Store struct {
	path        string
	retryConfig retry.Config
}

// New returns a Store backed by path. The directory is created on first Save.
func New(path string) *Store {
	return &Store{
		path: path,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the stored credentials. The file is written to a temp file
// and renamed so readers never see a partial write.
func (s *Store) Save(c Credentials) error {
	if strings.TrimSpace(c.APIURL) == "" || strings.TrimSpace(c.APIHeaders) == "" {
		return fmt.Errorf("save credentials: %w", ErrNotCaptured)
	}
	if c.CapturedAt.IsZero() {
		c.CapturedAt = time.Now()
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

// Load reads the stored credentials. A missing file or an empty key yields
// ErrNotCaptured. Transient read failures are retried briefly.
func (s *Store) Load(ctx context.Context) (Credentials, error) {
	retryer := retry.New[Credentials](s.retryConfig)

	var notCaptured bool
	creds, err := retryer.Do(ctx, func(ctx context.Context) (Credentials, error) {
		// #nosec G304 -- path comes from local configuration
		data, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				notCaptured = true
				return Credentials{}, nil
			}
			return Credentials{}, fmt.Errorf("read credentials: %w", err)
		}
		var c Credentials
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Credentials{}, fmt.Errorf("unmarshal credentials: %w", err)
		}
		return c, nil
	})
	if err != nil {
		return Credentials{}, err
	}
	if notCaptured || strings.TrimSpace(creds.APIURL) == "" || strings.TrimSpace(creds.APIHeaders) == "" {
		return Credentials{}, ErrNotCaptured
	}
	return creds, nil
}
