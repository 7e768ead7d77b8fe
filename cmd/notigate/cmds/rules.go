package cmds

import (
	"bytes"
	"context"
	"fmt"
	"notigate/internal/flow"
	"notigate/internal/ports"
	"notigate/internal/types"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

const DefaultReloadDebounce = 250 * time.Millisecond

// ParseRules decodes a YAML RuleConfig on top of the defaults, so absent keys keep their
// default values.
func ParseRules(data []byte) (types.RuleConfig, error) {
	cfg := types.DefaultRuleConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.RuleConfig{}, types.Err(types.ErrInvalidRuleConfig, err, "")
	}
	if err := cfg.Validate(); err != nil {
		return types.RuleConfig{}, types.Err(types.ErrInvalidRuleConfig, err, "")
	}
	return cfg, nil
}

func LoadRules(path string) (types.RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RuleConfig{}, err
	}
	return ParseRules(data)
}

// PutRules loads the file at path and replaces the active RuleConfig with it.
func PutRules(ctx context.Context, store ports.RuleStore, path string) (types.RuleConfig, error) {
	cfg, err := LoadRules(path)
	if err != nil {
		return types.RuleConfig{}, fmt.Errorf("load rules %s: %w", path, err)
	}
	return store.SetRules(ctx, cfg)
}

// hintFile is the advisor rules document.
type hintFile struct {
	Hints []flow.HintRule `yaml:"hints"`
}

func LoadHintRules(path string) ([]flow.HintRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var hf hintFile
	if err := yaml.Unmarshal(data, &hf); err != nil {
		return nil, fmt.Errorf("parse hint rules %s: %w", path, err)
	}
	return hf.Hints, nil
}

// WatchRules applies every valid change of the rule file at path to store until ctx is done.
// The directory is watched so editors that replace the file by rename are seen. Bursts of events
// are debounced, and a file whose content did not change is not reapplied. Invalid files are
// logged and skipped; the active rules stay in place.
func WatchRules(ctx context.Context, store ports.RuleStore, path string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Close()
	}()
	dir, file := filepath.Dir(path), filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	last, _ := os.ReadFile(path)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("rules file unreadable")
			return
		}
		mu.Lock()
		unchanged := bytes.Equal(data, last)
		mu.Unlock()
		if unchanged {
			log.WithField("path", path).Debug("rules file unchanged")
			return
		}
		cfg, err := ParseRules(data)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("rules file rejected")
			return
		}
		if _, err := store.SetRules(ctx, cfg); err != nil {
			log.WithError(err).WithField("path", path).Error("failed to apply rules file")
			return
		}
		mu.Lock()
		last = data
		mu.Unlock()
	}
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, reload)
	}

	log.WithField("path", path).Info("watching rules file")
	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).WithField("path", path).Warn("rules watch error")
		}
	}
}
