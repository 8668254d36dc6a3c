package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"
	"jobapplicator/internal/utils"

	"gopkg.in/yaml.v3"
)

// Defaults applied to run payloads that leave fields out.
var (
	DefaultDomains = []string{"greenhouse.io", "lever.co"}
	DefaultProfile = types.UserProfile{
		Name:       "John Doe",
		Email:      "john.doe@example.com",
		Phone:      "123-456-7890",
		ResumePath: "resume.pdf",
	}
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	return &FileProcessor{logger: logger}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			// Log the error but don't override the main operation result
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return content, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	if err := utils.EnsureDir(filepath.Dir(filename)); err != nil {
		return errors.NewIOError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create directory for %s", filename), err)
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// LoadRunRequest reads a run payload from a JSON or YAML file and fills in
// defaults for anything the payload leaves out.
func (fp *FileProcessor) LoadRunRequest(filename, defaultOutputDir string) (*types.RunRequest, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return nil, errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid payload file %s", filename), err)
	}

	content, err := fp.ReadFile(filename)
	if err != nil {
		return nil, err // Error already wrapped by ReadFile
	}

	var req types.RunRequest
	if utils.IsYAMLFile(filename) {
		err = yaml.Unmarshal(content, &req)
	} else {
		err = json.Unmarshal(content, &req)
	}
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Cannot parse payload file %s", filename), err)
	}

	ApplyRunDefaults(&req, defaultOutputDir)

	// Relative resume paths are resolved against the payload's directory
	if p := req.Profile.ResumePath; p != "" && !filepath.IsAbs(p) {
		req.Profile.ResumePath = filepath.Join(filepath.Dir(filename), p)
	}

	fp.logger.Debug("Run payload loaded",
		"file", filename,
		"domains", req.Domains,
		"output_dir", req.OutputDir)
	return &req, nil
}

// ApplyRunDefaults fills empty profile fields, domains and output directory.
func ApplyRunDefaults(req *types.RunRequest, defaultOutputDir string) {
	p := &req.Profile
	if strings.TrimSpace(p.Name) == "" {
		p.Name = DefaultProfile.Name
	}
	if strings.TrimSpace(p.Email) == "" {
		p.Email = DefaultProfile.Email
	}
	if strings.TrimSpace(p.Phone) == "" {
		p.Phone = DefaultProfile.Phone
	}
	if strings.TrimSpace(p.ResumePath) == "" {
		p.ResumePath = DefaultProfile.ResumePath
	}

	if len(SplitDomains(strings.Join(req.Domains, ","))) == 0 {
		req.Domains = append([]string(nil), DefaultDomains...)
	}

	if req.OutputDir == "" {
		req.OutputDir = defaultOutputDir
	}
}
