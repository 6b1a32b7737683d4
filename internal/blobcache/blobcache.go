// Package blobcache guarda PDFs subidos y sus resultados OCR en disco
// local, indexados por hash MD5 del contenido. El cache es compartido
// entre usuarios: el mismo documento subido dos veces reutiliza el OCR.
//
// Layout bajo el directorio raíz:
//
//	pdf/{hash}_{filename}   el documento original
//	json/{hash}.json        resultado OCR + metadatos
package blobcache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/aerogate/internal/util/atomicwrite"
)

// ErrNotFound indica que no hay resultado OCR cacheado para ese hash.
var ErrNotFound = errors.New("blobcache: entry not found")

// Entry es el resultado OCR persistido junto a sus metadatos.
type Entry struct {
	Results  []map[string]any `json:"results"`
	FileHash string           `json:"file_hash"`
	Filename string           `json:"filename"`
}

// FileInfo describe un PDF guardado.
type FileInfo struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// Store es el cache de blobs en disco. Seguro para uso concurrente: las
// escrituras son atómicas vía rename.
type Store struct {
	root string
}

// New crea el store y sus subdirectorios.
func New(root string) (*Store, error) {
	for _, sub := range []string{"pdf", "json"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("blobcache: mkdir %s: %w", sub, err)
		}
	}
	return &Store{root: root}, nil
}

// HashContent calcula el hash MD5 del contenido en hex. MD5 alcanza para
// identidad de cache y mantiene los nombres compatibles con los blobs
// que ya existen de despliegues anteriores.
func HashContent(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// SavePDF guarda el documento si no estaba y devuelve su hash. Un PDF ya
// presente no se reescribe.
func (s *Store) SavePDF(content []byte, filename string) (string, error) {
	hash := HashContent(content)
	path := s.pdfPath(hash, filename)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("blobcache: stat pdf: %w", err)
	}

	if err := atomicwrite.AtomicWriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("blobcache: save pdf: %w", err)
	}
	return hash, nil
}

// GetOCR devuelve el resultado OCR cacheado o ErrNotFound.
func (s *Store) GetOCR(fileHash string) (*Entry, error) {
	b, err := os.ReadFile(s.ocrPath(fileHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobcache: read ocr: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("blobcache: decode ocr entry: %w", err)
	}
	return &entry, nil
}

// SaveOCR persiste el resultado OCR, pisando cualquier entrada previa.
func (s *Store) SaveOCR(fileHash string, entry *Entry) error {
	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("blobcache: encode ocr entry: %w", err)
	}
	if err := atomicwrite.AtomicWriteFile(s.ocrPath(fileHash), b, 0o644); err != nil {
		return fmt.Errorf("blobcache: save ocr: %w", err)
	}
	return nil
}

// List devuelve los PDFs guardados, más recientes primero.
func (s *Store) List(limit int) ([]FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "pdf"))
	if err != nil {
		return nil, fmt.Errorf("blobcache: list pdfs: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:         e.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].LastModified.After(files[j].LastModified)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// Cleanup borra PDFs y resultados OCR con más antigüedad que la dada.
// Devuelve cuántos archivos se eliminaron.
func (s *Store) Cleanup(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	deleted := 0

	for _, sub := range []string{"pdf", "json"} {
		dir := filepath.Join(s.root, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return deleted, fmt.Errorf("blobcache: list %s: %w", sub, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
					return deleted, fmt.Errorf("blobcache: remove %s: %w", e.Name(), err)
				}
				deleted++
			}
		}
	}
	return deleted, nil
}

func (s *Store) pdfPath(hash, filename string) string {
	return filepath.Join(s.root, "pdf", hash+"_"+sanitizeFilename(filename))
}

func (s *Store) ocrPath(hash string) string {
	return filepath.Join(s.root, "json", hash+".json")
}

// sanitizeFilename reduce el nombre que mandó el cliente a algo seguro
// como componente de path local.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "document.pdf"
	}
	return name
}
