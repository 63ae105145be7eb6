package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/affinity/schema"
	"github.com/spf13/viper"
)

const (
	configFileName = "affinity"
	configFileType = "yaml"

	cfgKeyBackend     = "store.backend"
	cfgKeyRoot        = "store.root"
	cfgKeyBucket      = "store.bucket"
	cfgKeyPrefix      = "store.prefix"
	cfgKeyEndpoint    = "store.endpoint"
	cfgKeyRegion      = "store.region"
	cfgKeyAccessKey   = "store.access_key"
	cfgKeySecretKey   = "store.secret_key"
	cfgKeySecure      = "store.secure"
	cfgKeyCommitTable = "store.commit_table"
	cfgKeyCompression = "compression"
	cfgKeyLogLevel    = "log_level"
	cfgKeyIOLimit     = "io_limit"
	cfgKeySchemas     = "schemas"

	defaultBackend = "local"
)

// defaultConfigYAML documents every key; it is printed by "affinity config".
const defaultConfigYAML = `# affinity CLI configuration

store:
  backend: local        # local | s3 | minio
  root: .               # local backend directory
  # bucket: my-bucket
  # prefix: tables/
  # endpoint: localhost:9000   # minio only
  # region: us-east-1
  # commit_table: affinity-commits  # s3 only, enables DynamoDB commits

compression: zstd       # none | lz4 | zstd
log_level: warn
# io_limit: 10485760    # bytes per second

schemas:
  - name: DamageType
    fields:
      - { name: Kind, kind: string, len: 16, default: None }
      - { name: Amount, kind: float32, default: 1 }
`

type fieldConfig struct {
	Name    string `mapstructure:"name"`
	Kind    string `mapstructure:"kind"`
	Len     int    `mapstructure:"len"`
	Default any    `mapstructure:"default"`
}

type schemaConfig struct {
	Name   string        `mapstructure:"name"`
	Fields []fieldConfig `mapstructure:"fields"`
}

// loadConfig reads affinity.yaml from path, or from the working directory
// and $HOME/.affinity when path is empty. A missing file is not an error.
func loadConfig(v *viper.Viper, path string) error {
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyRoot, ".")
	v.SetDefault(cfgKeyCompression, "zstd")
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeySecure, true)

	v.SetEnvPrefix("AFFINITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.affinity")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// schemasFromConfig builds the schema layouts declared in the config.
func schemasFromConfig(v *viper.Viper) ([]schema.Schema, error) {
	var decls []schemaConfig
	if err := v.UnmarshalKey(cfgKeySchemas, &decls); err != nil {
		return nil, fmt.Errorf("decode schemas: %w", err)
	}

	out := make([]schema.Schema, 0, len(decls))
	for _, d := range decls {
		specs := make([]schema.FieldSpec, 0, len(d.Fields))
		for _, f := range d.Fields {
			kind, ok := schema.ParseKind(f.Kind)
			if !ok {
				return nil, fmt.Errorf("schema %s: field %s: unknown kind %q", d.Name, f.Name, f.Kind)
			}
			specs = append(specs, schema.FieldSpec{Name: f.Name, Kind: kind, Len: f.Len, Default: f.Default})
		}
		s, err := schema.NewStruct(d.Name, specs...)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func logLevel(v *viper.Viper) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString(cfgKeyLogLevel))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
