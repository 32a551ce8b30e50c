package serializer

import (
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func mustExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// JSON serializes values with encoding/json. Values round-trip as
// map[string]any / []any / string / float64 / bool / nil unless Load's
// caller re-decodes into a concrete type.
type JSON struct{}

func (JSON) FileExtension() string    { return ".json" }
func (JSON) Matches(ext string) bool  { return ext == ".json" }
func (JSON) Save(path string, v any) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
func (JSON) Load(path string) (any, error) {
	if err := mustExist(path); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// YAML serializes values with gopkg.in/yaml.v3.
type YAML struct{}

func (YAML) FileExtension() string   { return ".yaml" }
func (YAML) Matches(ext string) bool { return ext == ".yaml" || ext == ".yml" }
func (YAML) Save(path string, v any) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
func (YAML) Load(path string) (any, error) {
	if err := mustExist(path); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// CSV serializes a [][]string (rows of cells) with encoding/csv. No
// third-party CSV library appears anywhere in the retrieval pack, so this
// one built-in stays on the standard library — see DESIGN.md.
type CSV struct{}

func (CSV) FileExtension() string   { return ".csv" }
func (CSV) Matches(ext string) bool { return ext == ".csv" }
func (CSV) Save(path string, v any) error {
	rows, ok := v.([][]string)
	if !ok {
		return fmt.Errorf("csv serializer expects [][]string, got %T", v)
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
func (CSV) Load(path string) (any, error) {
	if err := mustExist(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

// Binary serializes arbitrary values with encoding/gob — the idiomatic Go
// stand-in for the original prototype's pickle serializer: an opaque,
// language-native binary format for values with no better fit.
type Binary struct{}

func (Binary) FileExtension() string   { return ".bin" }
func (Binary) Matches(ext string) bool { return ext == ".bin" }
func (Binary) Save(path string, v any) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(&v)
}
func (Binary) Load(path string) (any, error) {
	if err := mustExist(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var v any
	if err := gob.NewDecoder(f).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// PlainText serializes a string verbatim.
type PlainText struct{}

func (PlainText) FileExtension() string   { return ".txt" }
func (PlainText) Matches(ext string) bool { return ext == ".txt" }
func (PlainText) Save(path string, v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("plain text serializer expects string, got %T", v)
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0o644)
}
func (PlainText) Load(path string) (any, error) {
	if err := mustExist(path); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
