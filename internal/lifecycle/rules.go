// Copyright 2025 Cabinet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lifecycle

import (
	"strings"

	"cabinet/internal/common"
	"cabinet/internal/config"
	"cabinet/internal/fault"
)

// Rules is the request-validation collaborator boundary: name legality,
// the file extension allow-list, and the maximum upload size. It is
// consulted before any mutation.
type Rules interface {
	ValidateName(name string) error
	ValidateUpload(name string, sizeBytes int64) error
	ExtensionAllowed(ext string) bool
}

// ConfigRules implements Rules from the service configuration.
type ConfigRules struct {
	MaxNameLength int
	MaxFileBytes  int64
	allowedExts   map[string]struct{}
}

// NewConfigRules builds rules from the upload configuration.
func NewConfigRules(cfg config.UploadConfig) *ConfigRules {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &ConfigRules{
		MaxNameLength: cfg.MaxNameLength,
		MaxFileBytes:  cfg.MaxFileBytes,
		allowedExts:   allowed,
	}
}

// ValidateName implements Rules.
func (r *ConfigRules) ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fault.New(fault.KindInvalidOperation, "name must not be empty")
	}
	if trimmed != name {
		return fault.New(fault.KindInvalidOperation, "name must not start or end with whitespace")
	}
	if len(name) > r.MaxNameLength {
		return fault.New(fault.KindInvalidOperation, "name exceeds %d characters", r.MaxNameLength)
	}
	if name == "." || name == ".." {
		return fault.New(fault.KindInvalidOperation, "name %q is reserved", name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fault.New(fault.KindInvalidOperation, "name must not contain path separators")
	}
	return nil
}

// ValidateUpload implements Rules.
func (r *ConfigRules) ValidateUpload(name string, sizeBytes int64) error {
	if err := r.ValidateName(name); err != nil {
		return err
	}
	if sizeBytes < 0 {
		return fault.New(fault.KindInvalidOperation, "negative upload size")
	}
	if sizeBytes > r.MaxFileBytes {
		return fault.New(fault.KindInvalidOperation, "file exceeds the %d byte upload limit", r.MaxFileBytes)
	}
	ext := common.Extension(name)
	if ext == "" {
		return fault.New(fault.KindInvalidOperation, "file name needs an extension")
	}
	if !r.ExtensionAllowed(ext) {
		return fault.New(fault.KindInvalidOperation, "file extension %q is not supported", ext)
	}
	return nil
}

// ExtensionAllowed implements Rules.
func (r *ConfigRules) ExtensionAllowed(ext string) bool {
	_, ok := r.allowedExts[strings.ToLower(ext)]
	return ok
}
