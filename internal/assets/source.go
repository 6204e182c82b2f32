// Package assets resolves brand and municipality logos. Lookups never fail:
// anything that cannot be read or decoded is reported as absent.
package assets

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/rezonia/nfse-renderer/internal/storage"
)

// LogoPattern matches municipality logo file names and captures the code
var LogoPattern = regexp.MustCompile(`(?i)^logo-prefeitura-(\d{1,10})\.(png|jpg|jpeg|webp|gif|svg)$`)

// DefaultBrandFiles are the file names tried for the brand logo
var DefaultBrandFiles = []string{"logo-raio.png", "logo-raio.jpg", "logo.png"}

// Loader fetches the bytes of one asset
type Loader struct {
	Name  string
	Fetch func(ctx context.Context) ([]byte, error)
}

// Index lists the assets a source can provide
type Index struct {
	Logos map[string]Loader
	Brand *Loader
}

// Source lists available assets. Scan only fails when the whole backend is
// unreachable; missing individual files are simply left out of the index.
type Source interface {
	Name() string
	Scan(ctx context.Context) (*Index, error)
}

// FileSystemSource scans local directories
type FileSystemSource struct {
	Dirs       []string
	BrandFiles []string
}

// NewFileSystemSource creates a source over dirs, searched in order
func NewFileSystemSource(dirs []string, brandFiles []string) *FileSystemSource {
	if len(brandFiles) == 0 {
		brandFiles = DefaultBrandFiles
	}
	return &FileSystemSource{Dirs: dirs, BrandFiles: brandFiles}
}

func (s *FileSystemSource) Name() string { return "filesystem" }

func (s *FileSystemSource) Scan(ctx context.Context) (*Index, error) {
	idx := &Index{Logos: map[string]Loader{}}

	for _, dir := range s.Dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			m := LogoPattern.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			if _, seen := idx.Logos[m[1]]; seen {
				continue
			}
			idx.Logos[m[1]] = fileLoader(filepath.Join(dir, e.Name()))
		}

		if idx.Brand == nil {
			for _, name := range s.BrandFiles {
				p := filepath.Join(dir, name)
				if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
					l := fileLoader(p)
					idx.Brand = &l
					break
				}
			}
		}
	}
	return idx, nil
}

func fileLoader(p string) Loader {
	return Loader{
		Name: p,
		Fetch: func(context.Context) ([]byte, error) {
			return os.ReadFile(p)
		},
	}
}

// S3Source lists logos under a bucket prefix
type S3Source struct {
	API      storage.S3API
	Bucket   string
	Prefix   string
	BrandKey string
}

// NewS3Source creates a source over s3://bucket/prefix
func NewS3Source(api storage.S3API, bucket, prefix, brandKey string) *S3Source {
	return &S3Source{API: api, Bucket: bucket, Prefix: prefix, BrandKey: brandKey}
}

func (s *S3Source) Name() string { return "s3" }

func (s *S3Source) Scan(ctx context.Context) (*Index, error) {
	keys, err := storage.ListKeys(ctx, s.API, s.Bucket, s.Prefix)
	if err != nil {
		return nil, err
	}

	idx := &Index{Logos: map[string]Loader{}}
	for _, key := range keys {
		m := LogoPattern.FindStringSubmatch(path.Base(key))
		if m == nil {
			continue
		}
		if _, seen := idx.Logos[m[1]]; seen {
			continue
		}
		idx.Logos[m[1]] = s.loader(key)
	}
	if s.BrandKey != "" {
		l := s.loader(s.BrandKey)
		idx.Brand = &l
	}
	return idx, nil
}

func (s *S3Source) loader(key string) Loader {
	return Loader{
		Name: "s3://" + s.Bucket + "/" + key,
		Fetch: func(ctx context.Context) ([]byte, error) {
			return storage.ReadObject(ctx, s.API, s.Bucket, key)
		},
	}
}
