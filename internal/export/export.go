package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"TrendCloud/internal/model"
)

// ResultPath names the result file of a rolling run inside dir.
func ResultPath(dir string, md model.RunMetadata) string {
	name := fmt.Sprintf("%s_%s_%s_%s.json",
		strings.ToLower(md.Symbol), md.Timeframe,
		md.Start.Format("20060102"), md.End.Format("20060102"))
	return filepath.Join(dir, name)
}

// SaveResult writes a rolling result to a JSON file, creating parent directories.
func SaveResult(filePath string, res *model.RollingResult) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return os.WriteFile(filePath, data, 0644)
}

// LoadResult reads a rolling result written by SaveResult.
func LoadResult(filePath string) (*model.RollingResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var res model.RollingResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	return &res, nil
}
