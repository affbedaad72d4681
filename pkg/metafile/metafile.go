package metafile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yutahayashi/cc-sync-session/pkg/util"
)

// MetaFileName is the name of the marker metadata file written into the
// session directory.
const MetaFileName = ".ccss.meta.json"

// Content holds the contents of the marker metadata file. It records when
// the repository was initialized and what the last successful sync did,
// which makes the state of a session directory inspectable without tooling.
type Content struct {
	Version       string    `json:"version"`
	InitializedAt time.Time `json:"initializedAt"`
	LastSyncAt    time.Time `json:"lastSyncAt,omitempty"`
	FilesCopied   int       `json:"filesCopied,omitempty"`
	FilesSkipped  int       `json:"filesSkipped,omitempty"`
	FilesFailed   int       `json:"filesFailed,omitempty"`
}

// Write creates or replaces the metadata file in the given directory.
func Write(dirPath string, content *Content) error {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal meta data: %w", err)
	}

	if err := os.WriteFile(metaFilePath, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("could not write meta file %s: %w", metaFilePath, err)
	}

	return nil
}

// Read opens and parses the metadata file in a given directory.
// It returns the parsed metadata or an error if the file cannot be read or
// parsed. A missing file surfaces as the original os error so that
// os.IsNotExist works for callers that tolerate absence.
func Read(dirPath string) (Content, error) {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	metaFile, err := os.Open(metaFilePath)
	if err != nil {
		return Content{}, err
	}
	defer metaFile.Close()

	var content Content
	decoder := json.NewDecoder(metaFile)
	if err := decoder.Decode(&content); err != nil {
		return Content{}, fmt.Errorf("could not parse metafile %s: %w. It may be corrupt", metaFilePath, err)
	}

	return content, nil
}
