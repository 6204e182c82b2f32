package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LookupFunc reads one environment variable
type LookupFunc func(name string) (string, bool)

// OSEnv reads the process environment
var OSEnv LookupFunc = os.LookupEnv

type envVar struct {
	name  string
	apply func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = strings.TrimSpace(v)
		return nil
	}
}

func lower(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = strings.ToLower(strings.TrimSpace(v))
		return nil
	}
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func list(dst func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst(c) = out
		return nil
	}
}

var envVars = []envVar{
	{"ASSET_SOURCE", lower(func(c *Config) *string { return &c.Assets.Source })},
	{"ASSETS_DIRS", list(func(c *Config) *[]string { return &c.Assets.Dirs })},
	{"ASSETS_BRAND_FILES", list(func(c *Config) *[]string { return &c.Assets.BrandFiles })},
	{"ASSETS_S3_BUCKET", str(func(c *Config) *string { return &c.Assets.S3.Bucket })},
	{"ASSETS_S3_MUNICIPIOS_PREFIX", str(func(c *Config) *string { return &c.Assets.S3.MunicipiosPrefix })},
	{"ASSETS_S3_BRAND_KEY", str(func(c *Config) *string { return &c.Assets.S3.BrandKey })},
	{"ASSETS_S3_EAGER", func(c *Config, v string) error {
		// anything but "false" keeps eager loading on
		c.Assets.S3.Eager = !strings.EqualFold(strings.TrimSpace(v), "false")
		return nil
	}},

	{"AWS_REGION", str(func(c *Config) *string { return &c.AWS.Region })},
	{"S3_ENDPOINT", str(func(c *Config) *string { return &c.AWS.Endpoint })},
	{"S3_FORCE_PATH_STYLE", func(c *Config, v string) error {
		c.AWS.ForcePathStyle = strings.TrimSpace(v) == "true"
		return nil
	}},

	{"MUNICIPIO_SOURCE", lower(func(c *Config) *string { return &c.Municipios.Source })},
	{"IBGE_MUNICIPIOS_PATH", str(func(c *Config) *string { return &c.Municipios.Path })},
	{"MUNICIPIOS_S3_BUCKET", str(func(c *Config) *string { return &c.Municipios.S3.Bucket })},
	{"MUNICIPIOS_S3_KEY", str(func(c *Config) *string { return &c.Municipios.S3.Key })},
	{"MONGO_URI", str(func(c *Config) *string { return &c.Municipios.Mongo.URI })},
	{"MONGO_DB", str(func(c *Config) *string { return &c.Municipios.Mongo.Database })},
	{"MONGO_COLLECTION", str(func(c *Config) *string { return &c.Municipios.Mongo.Collection })},
	{"MONGO_ID_FIELD", str(func(c *Config) *string { return &c.Municipios.Mongo.IDField })},
	{"MONGO_NAME_FIELD", str(func(c *Config) *string { return &c.Municipios.Mongo.NameField })},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.Municipios.Redis.Addr })},
	{"REDIS_PASSWORD", func(c *Config, v string) error {
		c.Municipios.Redis.Password = v
		return nil
	}},
	{"REDIS_DB", integer(func(c *Config) *int { return &c.Municipios.Redis.DB })},
	{"REDIS_MUNICIPIOS_KEY", str(func(c *Config) *string { return &c.Municipios.Redis.Key })},
	{"MUNICIPIOS_SQL_DRIVER", lower(func(c *Config) *string { return &c.Municipios.SQL.Driver })},
	{"MUNICIPIOS_SQL_DSN", str(func(c *Config) *string { return &c.Municipios.SQL.DSN })},
	{"MUNICIPIOS_SQL_QUERY", str(func(c *Config) *string { return &c.Municipios.SQL.Query })},

	{"NFSE_PREFEITURA_URL", str(func(c *Config) *string { return &c.Layout.VerifyURL })},
	{"NFSE_RENDER_WORKERS", integer(func(c *Config) *int { return &c.Render.Workers })},
	{"NFSE_FONT_DIR", str(func(c *Config) *string { return &c.Render.FontDir })},
	{"NFSE_FONT_FAMILY", str(func(c *Config) *string { return &c.Render.FontFamily })},
}

// EnvNames lists every variable FromEnv reads
func EnvNames() []string {
	out := make([]string, len(envVars))
	for i, e := range envVars {
		out[i] = e.name
	}
	return out
}

// FromEnv overrides cfg with the variables that are set. Empty values
// count as unset.
func FromEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = OSEnv
	}
	for _, e := range envVars {
		v, ok := lookup(e.name)
		if !ok || v == "" {
			continue
		}
		if err := e.apply(cfg, v); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidEnv, e.name, v, err)
		}
	}
	return nil
}

// Resolve builds the effective configuration: defaults, then the YAML file
// when path is set, then the environment. The result is validated.
func Resolve(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}
	if err := FromEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
