// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PruneDebugFiles removes debug copies older than maxAge from the workspace
// and reports how many were deleted. Individual removal failures are logged
// and skipped so one stuck file cannot block the sweep.
func (a *PythonAdapter) PruneDebugFiles(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(a.workspace)
	if err != nil {
		return 0, fmt.Errorf("failed to read sandbox workspace: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "debug_") || !strings.HasSuffix(name, ".py") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(a.workspace, name)
		if err := os.Remove(path); err != nil {
			a.logger.Warn("failed to prune debug file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		a.logger.Info("pruned sandbox debug files",
			zap.Int("removed", removed),
			zap.Duration("max_age", maxAge))
	}
	return removed, nil
}
