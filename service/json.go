package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ToJSON writes v as indented json in workingdir/filename (nothing is done if workingdir is empty)
func ToJSON(v interface{}, workingdir, filename string) error {
	if workingdir != "" {
		vb, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("toJSON.Marshal: %w", err)
		}
		if err := os.MkdirAll(workingdir, 0755); err != nil {
			return fmt.Errorf("toJSON.MkdirAll: %w", err)
		}
		if err := os.WriteFile(filepath.Join(workingdir, filename), vb, 0644); err != nil {
			return fmt.Errorf("toJSON.WriteFile: %w", err)
		}
	}
	return nil
}
