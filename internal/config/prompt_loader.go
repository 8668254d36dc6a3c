package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LoadedPrompts holds the content of prompts loaded from files
type LoadedPrompts struct {
	SystemPrompt string
	UserPrompt   string
}

var (
	loadedPromptsMu sync.RWMutex
	loadedPrompts   struct {
		Global  LoadedPrompts
		Inspect LoadedPrompts
	}
)

// GetLoadedInspectPrompts returns the file-loaded prompts for form inspection.
// Operation-specific files win over global ones.
func GetLoadedInspectPrompts() LoadedPrompts {
	loadedPromptsMu.RLock()
	defer loadedPromptsMu.RUnlock()

	result := loadedPrompts.Inspect
	if result.SystemPrompt == "" {
		result.SystemPrompt = loadedPrompts.Global.SystemPrompt
	}
	if result.UserPrompt == "" {
		result.UserPrompt = loadedPrompts.Global.UserPrompt
	}
	return result
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	global, err := c.loadPromptPair(c.AI.CustomPrompts, "global")
	if err != nil {
		return fmt.Errorf("failed to load global prompts: %w", err)
	}
	inspect, err := c.loadPromptPair(c.AI.Inspect.CustomPrompts, "inspect")
	if err != nil {
		return fmt.Errorf("failed to load inspect prompts: %w", err)
	}

	loadedPromptsMu.Lock()
	loadedPrompts.Global = global
	loadedPrompts.Inspect = inspect
	loadedPromptsMu.Unlock()

	c.logPromptLoadingSummary()
	return nil
}

func (c *Config) loadPromptPair(prompts PromptConfig, operation string) (LoadedPrompts, error) {
	var out LoadedPrompts
	if prompts.SystemPromptFile != "" {
		content, err := c.loadPromptFromFile(prompts.SystemPromptFile, "system", operation)
		if err != nil {
			return out, err
		}
		out.SystemPrompt = content
	}
	if prompts.UserPromptFile != "" {
		content, err := c.loadPromptFromFile(prompts.UserPromptFile, "user", operation)
		if err != nil {
			return out, err
		}
		out.UserPrompt = content
	}
	return out, nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func (c *Config) loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles validates that prompt files exist and are readable before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, operation, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, operation, absPath))
		}
	}

	validateFile(c.AI.CustomPrompts.SystemPromptFile, "system", "global")
	validateFile(c.AI.CustomPrompts.UserPromptFile, "user", "global")
	validateFile(c.AI.Inspect.CustomPrompts.SystemPromptFile, "system", "inspect")
	validateFile(c.AI.Inspect.CustomPrompts.UserPromptFile, "user", "inspect")

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

// logPromptLoadingSummary logs a summary of loaded prompts
func (c *Config) logPromptLoadingSummary() {
	log.Println("[CONFIG] === Custom Prompt Loading Summary ===")

	loadedPromptsMu.RLock()
	checks := []struct {
		content string
		message string
	}{
		{loadedPrompts.Global.SystemPrompt, "[CONFIG] Global system prompt: loaded from file"},
		{loadedPrompts.Global.UserPrompt, "[CONFIG] Global user prompt: loaded from file"},
		{loadedPrompts.Inspect.SystemPrompt, "[CONFIG] Inspect-specific system prompt: loaded from file"},
		{loadedPrompts.Inspect.UserPrompt, "[CONFIG] Inspect-specific user prompt: loaded from file"},
	}
	loadedPromptsMu.RUnlock()

	count := 0
	for _, check := range checks {
		if check.content != "" {
			log.Println(check.message)
			count++
		}
	}

	if count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", count)
	}
	log.Println("[CONFIG] ==========================================")
}

// promptFiles lists every configured prompt file path.
func (c *Config) promptFiles() []string {
	var files []string
	for _, p := range []string{
		c.AI.CustomPrompts.SystemPromptFile,
		c.AI.CustomPrompts.UserPromptFile,
		c.AI.Inspect.CustomPrompts.SystemPromptFile,
		c.AI.Inspect.CustomPrompts.UserPromptFile,
	} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			files = append(files, abs)
		}
	}
	return files
}

// PromptWatcher reloads prompt files when they change on disk.
type PromptWatcher struct {
	cfg           *Config
	watcher       *fsnotify.Watcher
	files         map[string]bool
	debounceDelay time.Duration
	onChange      func()
}

// NewPromptWatcher watches the directories holding the configured prompt files.
// It returns nil without error when no prompt files are configured.
func NewPromptWatcher(cfg *Config, debounceDelay time.Duration, onChange func()) (*PromptWatcher, error) {
	files := cfg.promptFiles()
	if len(files) == 0 {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt file watcher: %w", err)
	}

	pw := &PromptWatcher{
		cfg:           cfg,
		watcher:       watcher,
		files:         make(map[string]bool, len(files)),
		debounceDelay: debounceDelay,
		onChange:      onChange,
	}

	// Editors replace files by rename, so watch the parent directories.
	dirs := make(map[string]bool)
	for _, f := range files {
		pw.files[f] = true
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch prompt directory %s: %w", dir, err)
		}
	}

	return pw, nil
}

// Run processes file events until ctx is done. It closes the underlying watcher on return.
func (pw *PromptWatcher) Run(ctx context.Context) {
	defer func() { _ = pw.watcher.Close() }()

	var debounceTimer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if !pw.files[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(pw.debounceDelay)
			timerC = debounceTimer.C
		case <-timerC:
			timerC = nil
			if err := pw.cfg.loadPromptsFromFiles(); err != nil {
				log.Printf("[CONFIG] Prompt reload failed, keeping previous prompts: %v", err)
				continue
			}
			if pw.onChange != nil {
				pw.onChange()
			}
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[CONFIG] Prompt watcher error: %v", err)
		}
	}
}
