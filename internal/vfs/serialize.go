package vfs

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// envelopeFormat tags the multi-file serialized form.
const envelopeFormat = "haven.files/v1"

type envelope struct {
	Format string `json:"format"`
	Files  []File `json:"files"`
}

// Serialize encodes the store as a single string. A project holding only the
// entry file is stored as its raw content.
func (s *Store) Serialize() string {
	files := s.Files()
	if len(files) == 1 && files[0].Path == EntryPath {
		return files[0].Content
	}
	data, err := json.Marshal(envelope{Format: envelopeFormat, Files: files})
	if err != nil {
		// Strings always marshal; keep the entry file rather than lose it.
		c, _ := s.Read(EntryPath)
		return c
	}
	return string(data)
}

// Deserialize decodes the output of Serialize. It never fails: input that is
// not a well-formed envelope becomes the entry file's content.
func Deserialize(raw string) *Store {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var env envelope
		if err := json.Unmarshal([]byte(trimmed), &env); err == nil && env.Format == envelopeFormat {
			return FromFiles(env.Files)
		}
	}
	return &Store{files: map[string]string{EntryPath: raw}}
}

// Hash returns a content hash of the serialized store.
func (s *Store) Hash() string {
	h := sha256.Sum256([]byte(s.Serialize()))
	return fmt.Sprintf("sha256:%x", h)
}

// LoadFile reads a serialized project from disk. A missing file yields the
// default project.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("vfs.LoadFile: %w", err)
	}
	return Deserialize(string(data)), nil
}

// SaveFile writes the serialized project to disk, replacing any previous
// content through a rename.
func SaveFile(s *Store, path string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(s.Serialize()), 0o644); err != nil {
		return fmt.Errorf("vfs.SaveFile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vfs.SaveFile: %w", err)
	}
	return nil
}
