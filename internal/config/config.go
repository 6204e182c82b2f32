// Package config loads process configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrInvalidEnv     = errors.New("invalid environment variable")
	ErrMissingField   = errors.New("missing required setting")
	ErrInvalidValue   = errors.New("invalid setting")
)

// Asset and name source selectors
const (
	AssetSourceFiles = "assets"
	AssetSourceS3    = "s3"

	NameSourceFile  = "file"
	NameSourceS3    = "s3"
	NameSourceMongo = "mongo"
	NameSourceRedis = "redis"
	NameSourceSQL   = "sql"
)

// Config holds all process configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Render     RenderConfig     `yaml:"render"`
	Layout     LayoutConfig     `yaml:"layout"`
	AWS        AWSConfig        `yaml:"aws"`
	Assets     AssetsConfig     `yaml:"assets"`
	Municipios MunicipiosConfig `yaml:"municipios"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
	Debug        bool          `yaml:"debug"`
}

// RenderConfig configures PDF composition.
type RenderConfig struct {
	FontDir    string `yaml:"fontDir"`
	FontFamily string `yaml:"fontFamily"` // empty = core Helvetica
	Workers    int    `yaml:"workers"`    // batch prefetch depth
}

// LayoutConfig holds printed texts and the verification URL.
type LayoutConfig struct {
	VerifyURL   string `yaml:"verifyUrl"`
	OrgFallback string `yaml:"orgFallback"`
	Department  string `yaml:"department"`
	Title       string `yaml:"title"`
}

// AWSConfig is shared by every S3 backed source.
type AWSConfig struct {
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"forcePathStyle"`
}

// AssetsConfig selects where logos come from.
type AssetsConfig struct {
	Source       string         `yaml:"source"` // "assets" or "s3"
	Dirs         []string       `yaml:"dirs"`
	BrandFiles   []string       `yaml:"brandFiles"`
	FetchTimeout time.Duration  `yaml:"fetchTimeout"`
	S3           S3AssetsConfig `yaml:"s3"`
}

// S3AssetsConfig locates logos in a bucket.
type S3AssetsConfig struct {
	Bucket           string `yaml:"bucket"`
	MunicipiosPrefix string `yaml:"municipiosPrefix"`
	BrandKey         string `yaml:"brandKey"`
	Eager            bool   `yaml:"eager"`
}

// MunicipiosConfig selects where municipality names come from.
type MunicipiosConfig struct {
	Source  string             `yaml:"source"` // file, s3, mongo, redis or sql
	Path    string             `yaml:"path"`
	Timeout time.Duration      `yaml:"timeout"`
	S3      S3MunicipiosConfig `yaml:"s3"`
	Mongo   MongoConfig        `yaml:"mongo"`
	Redis   RedisConfig        `yaml:"redis"`
	SQL     SQLConfig          `yaml:"sql"`
}

// S3MunicipiosConfig locates the name table object.
type S3MunicipiosConfig struct {
	Bucket string `yaml:"bucket"`
	Key    string `yaml:"key"`
}

// MongoConfig locates the name collection.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	IDField    string `yaml:"idField"`
	NameField  string `yaml:"nameField"`
}

// RedisConfig locates the name hash.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// SQLConfig runs a two-column query returning code and name.
type SQLConfig struct {
	Driver string `yaml:"driver"` // mysql or pgx
	DSN    string `yaml:"dsn"`
	Query  string `yaml:"query"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			MaxBodyBytes: 20 << 20,
		},
		Render: RenderConfig{Workers: 1},
		Layout: LayoutConfig{
			VerifyURL:   "https://nfe.prefeitura.sp.gov.br/contribuinte/notaprint.aspx",
			OrgFallback: "SEU MUNICÍPIO",
			Department:  "SECRETARIA MUNICIPAL DAS FINANÇAS",
			Title:       "NOTA FISCAL ELETRÔNICA DE SERVIÇO - NFS-e",
		},
		AWS: AWSConfig{Region: "us-east-1"},
		Assets: AssetsConfig{
			Source:       AssetSourceFiles,
			Dirs:         []string{"dist/assets", "assets"},
			FetchTimeout: 10 * time.Second,
			S3:           S3AssetsConfig{Eager: true},
		},
		Municipios: MunicipiosConfig{
			Source:  NameSourceFile,
			Timeout: 30 * time.Second,
			Mongo:   MongoConfig{IDField: "id", NameField: "nome"},
			Redis:   RedisConfig{Key: "municipios"},
			SQL:     SQLConfig{Query: "SELECT id, nome FROM municipios"},
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return cfg, nil
}

// Validate checks that the selected sources have what they need.
func (c *Config) Validate() error {
	if c.Render.Workers < 1 {
		return fmt.Errorf("%w: render.workers must be positive, got %d", ErrInvalidValue, c.Render.Workers)
	}
	if (c.Render.FontFamily == "") != (c.Render.FontDir == "") {
		return fmt.Errorf("%w: render.fontDir and render.fontFamily are set together", ErrInvalidValue)
	}

	switch strings.ToLower(c.Assets.Source) {
	case AssetSourceFiles:
		if len(c.Assets.Dirs) == 0 {
			return fmt.Errorf("%w: assets.dirs", ErrMissingField)
		}
	case AssetSourceS3:
		if err := required(map[string]string{
			"ASSETS_S3_BUCKET":            c.Assets.S3.Bucket,
			"ASSETS_S3_MUNICIPIOS_PREFIX": c.Assets.S3.MunicipiosPrefix,
			"ASSETS_S3_BRAND_KEY":         c.Assets.S3.BrandKey,
		}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: assets.source %q (must be assets or s3)", ErrInvalidValue, c.Assets.Source)
	}

	m := c.Municipios
	switch strings.ToLower(m.Source) {
	case NameSourceFile:
	case NameSourceS3:
		return required(map[string]string{
			"MUNICIPIOS_S3_BUCKET": m.S3.Bucket,
			"MUNICIPIOS_S3_KEY":    m.S3.Key,
		})
	case NameSourceMongo:
		return required(map[string]string{
			"MONGO_URI":        m.Mongo.URI,
			"MONGO_DB":         m.Mongo.Database,
			"MONGO_COLLECTION": m.Mongo.Collection,
		})
	case NameSourceRedis:
		return required(map[string]string{
			"REDIS_ADDR":           m.Redis.Addr,
			"REDIS_MUNICIPIOS_KEY": m.Redis.Key,
		})
	case NameSourceSQL:
		if err := required(map[string]string{
			"MUNICIPIOS_SQL_DRIVER": m.SQL.Driver,
			"MUNICIPIOS_SQL_DSN":    m.SQL.DSN,
		}); err != nil {
			return err
		}
		switch m.SQL.Driver {
		case "mysql", "pgx", "postgres":
		default:
			return fmt.Errorf("%w: municipios.sql.driver %q (must be mysql or pgx)", ErrInvalidValue, m.SQL.Driver)
		}
	default:
		return fmt.Errorf("%w: municipios.source %q", ErrInvalidValue, m.Source)
	}
	return nil
}

// required reports the first empty setting by its environment name, in
// name order so the message is stable.
func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
}
