package ingest

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cltv-analytics/internal/models"
)

const cacheVersion = "v1"

// cachedRows is a decoded source file kept on disk so repeated runs skip
// the slow spreadsheet parse.
type cachedRows struct {
	Source       string
	LastModified time.Time
	Rows         []models.Transaction
}

type fileCache struct {
	dir string
}

func (c fileCache) filename(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(key)
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

// load returns the cached rows when they are newer than the source file.
func (c fileCache) load(key, sourcePath string) ([]models.Transaction, bool) {
	if c.dir == "" {
		return nil, false
	}
	file, err := os.Open(c.filename(key))
	if err != nil {
		return nil, false
	}
	defer file.Close()

	var data cachedRows
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, false
	}

	info, err := os.Stat(sourcePath)
	if err != nil || !info.ModTime().Before(data.LastModified) {
		return nil, false
	}
	return data.Rows, true
}

func (c fileCache) save(key string, rows []models.Transaction) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filename(key))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(cachedRows{
		Source:       key,
		LastModified: time.Now(),
		Rows:         rows,
	})
}
