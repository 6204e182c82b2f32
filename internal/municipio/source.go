// Package municipio resolves IBGE municipality codes to display names.
package municipio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql" // "mysql" driver
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" driver
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rezonia/nfse-renderer/internal/storage"
)

// ErrNoTable is returned when no candidate file exists
var ErrNoTable = errors.New("municipality table not found")

// DefaultFileCandidates are searched when no explicit path is configured
var DefaultFileCandidates = []string{
	"assets/municipios-ibge.json",
	"assets/municipios.json",
	"data/municipios-ibge.json",
}

// NameSource loads the full code to name table
type NameSource interface {
	Name() string
	LoadNames(ctx context.Context) (map[string]string, error)
}

// FileSource reads a JSON or YAML table from the first existing path
type FileSource struct {
	Paths []string
}

// NewFileSource creates a file source. An explicit path is tried first.
func NewFileSource(path string) *FileSource {
	paths := DefaultFileCandidates
	if path != "" {
		paths = append([]string{path}, DefaultFileCandidates...)
	}
	return &FileSource{Paths: paths}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) LoadNames(ctx context.Context) (map[string]string, error) {
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml":
			return parseYAML(data)
		default:
			return parseJSON(data)
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoTable, strings.Join(s.Paths, ", "))
}

// S3Source reads a JSON table from one object
type S3Source struct {
	API    storage.S3API
	Bucket string
	Key    string
}

// NewS3Source creates a source over s3://bucket/key
func NewS3Source(api storage.S3API, bucket, key string) *S3Source {
	return &S3Source{API: api, Bucket: bucket, Key: key}
}

func (s *S3Source) Name() string { return "s3" }

func (s *S3Source) LoadNames(ctx context.Context) (map[string]string, error) {
	data, err := storage.ReadObject(ctx, s.API, s.Bucket, s.Key)
	if err != nil {
		return nil, err
	}
	if ext := strings.ToLower(filepath.Ext(s.Key)); ext == ".yaml" || ext == ".yml" {
		return parseYAML(data)
	}
	return parseJSON(data)
}

// MongoSource reads one document per municipality
type MongoSource struct {
	Collection *mongo.Collection
	IDField    string
	NameField  string
}

// NewMongoSource creates a source over an open collection
func NewMongoSource(coll *mongo.Collection, idField, nameField string) *MongoSource {
	if idField == "" {
		idField = "id"
	}
	if nameField == "" {
		nameField = "nome"
	}
	return &MongoSource{Collection: coll, IDField: idField, NameField: nameField}
}

// ConnectMongo opens a client and returns the named collection
func ConnectMongo(ctx context.Context, uri, db, collection string) (*mongo.Client, *mongo.Collection, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	return client, client.Database(db).Collection(collection), nil
}

func (s *MongoSource) Name() string { return "mongo" }

func (s *MongoSource) LoadNames(ctx context.Context) (map[string]string, error) {
	projection := bson.D{{Key: s.IDField, Value: 1}, {Key: s.NameField, Value: 1}}
	cur, err := s.Collection.Find(ctx, bson.D{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("query municipalities: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read municipalities: %w", err)
	}
	return namesFromDocs(docs, s.IDField, s.NameField), nil
}

func namesFromDocs(docs []bson.M, idField, nameField string) map[string]string {
	names := make(map[string]string, len(docs))
	for _, d := range docs {
		id := idString(d[idField])
		name := nameString(d[nameField])
		if id != "" && name != "" {
			names[id] = name
		}
	}
	return names
}

// RedisSource reads a hash of code to name
type RedisSource struct {
	Client redis.UniversalClient
	Key    string
}

// NewRedisSource creates a source over the hash at key
func NewRedisSource(client redis.UniversalClient, key string) *RedisSource {
	return &RedisSource{Client: client, Key: key}
}

func (s *RedisSource) Name() string { return "redis" }

func (s *RedisSource) LoadNames(ctx context.Context) (map[string]string, error) {
	m, err := s.Client.HGetAll(ctx, s.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.Key, err)
	}
	names := make(map[string]string, len(m))
	for k, v := range m {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			names[k] = v
		}
	}
	return names, nil
}

// DefaultSQLQuery selects the code and name columns
const DefaultSQLQuery = "SELECT id, nome FROM municipios"

// SQLSource runs a two-column query (code, name)
type SQLSource struct {
	DB    *sql.DB
	Query string
}

// NewSQLSource creates a source over db
func NewSQLSource(db *sql.DB, query string) *SQLSource {
	if query == "" {
		query = DefaultSQLQuery
	}
	return &SQLSource{DB: db, Query: query}
}

// OpenSQL opens a database handle. driver is "mysql" or "pgx".
func OpenSQL(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "mysql", "pgx":
	case "postgres", "postgresql":
		driver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

func (s *SQLSource) Name() string { return "sql" }

func (s *SQLSource) LoadNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.DB.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("query municipalities: %w", err)
	}
	defer rows.Close()

	names := map[string]string{}
	for rows.Next() {
		var id, name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan municipality: %w", err)
		}
		code, label := strings.TrimSpace(id.String), strings.TrimSpace(name.String)
		if code != "" && label != "" {
			names[code] = label
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read municipalities: %w", err)
	}
	return names, nil
}
