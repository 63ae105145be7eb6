package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/affinity"
	"github.com/hupe1980/affinity/blobstore"
	minioblob "github.com/hupe1980/affinity/blobstore/minio"
	s3blob "github.com/hupe1980/affinity/blobstore/s3"
	"github.com/hupe1980/affinity/codec"
	"github.com/hupe1980/affinity/schema"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the state shared by every command.
type app struct {
	v          *viper.Viper
	configFile string
	logger     *affinity.Logger
	registry   *schema.Registry
	store      blobstore.Store
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "affinity",
		Short: "Inspect and convert affinity tables",
		Long: `affinity works with serialized affinity tables: two-dimensional grids of
typed records addressed by hierarchical row and column tags.

Tables are read from and written to a blob store (local directory, S3 or
MinIO) configured in affinity.yaml. Record layouts are declared there too.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "config" {
				return nil
			}
			return a.init(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./affinity.yaml or ~/.affinity/affinity.yaml)")
	flags.String("store", defaultBackend, "blob store backend: local, s3 or minio")
	flags.String("root", ".", "local store directory")
	flags.String("bucket", "", "bucket of the s3 or minio store")
	flags.String("prefix", "", "key prefix inside the bucket")
	flags.String("compression", "zstd", "compression of written tables: "+fmt.Sprint(codec.CompressorNames()))
	flags.String("log-level", "warn", "log level: debug, info, warn or error")

	for key, flag := range map[string]string{
		cfgKeyBackend:     "store",
		cfgKeyRoot:        "root",
		cfgKeyBucket:      "bucket",
		cfgKeyPrefix:      "prefix",
		cfgKeyCompression: "compression",
		cfgKeyLogLevel:    "log-level",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newInspectCmd(a),
		newQueryCmd(a),
		newExportCmd(a),
		newConvertCmd(a),
		newListCmd(a),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	if err := loadConfig(a.v, a.configFile); err != nil {
		return err
	}
	level, err := logLevel(a.v)
	if err != nil {
		return err
	}
	a.logger = affinity.NewTextLogger(level)

	schemas, err := schemasFromConfig(a.v)
	if err != nil {
		return err
	}
	a.registry = schema.NewRegistry(schemas...)

	a.store, err = openStore(ctx, a.v)
	return err
}

// openStore creates the blob store named by the config.
func openStore(ctx context.Context, v *viper.Viper) (blobstore.Store, error) {
	switch backend := v.GetString(cfgKeyBackend); backend {
	case "local":
		return blobstore.NewLocalStore(v.GetString(cfgKeyRoot)), nil

	case "s3":
		bucket := v.GetString(cfgKeyBucket)
		if bucket == "" {
			return nil, fmt.Errorf("s3 store needs a bucket")
		}
		var optFns []func(*awsconfig.LoadOptions) error
		if region := v.GetString(cfgKeyRegion); region != "" {
			optFns = append(optFns, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
			if endpoint := v.GetString(cfgKeyEndpoint); endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		store := s3blob.NewStore(client, bucket, v.GetString(cfgKeyPrefix))
		if table := v.GetString(cfgKeyCommitTable); table != "" {
			baseURI := "s3://" + bucket + "/" + v.GetString(cfgKeyPrefix)
			return s3blob.NewCommitStore(store, dynamodb.NewFromConfig(cfg), table, baseURI), nil
		}
		return store, nil

	case "minio":
		bucket := v.GetString(cfgKeyBucket)
		if bucket == "" {
			return nil, fmt.Errorf("minio store needs a bucket")
		}
		client, err := minio.New(v.GetString(cfgKeyEndpoint), &minio.Options{
			Creds:  credentials.NewStaticV4(v.GetString(cfgKeyAccessKey), v.GetString(cfgKeySecretKey), ""),
			Secure: v.GetBool(cfgKeySecure),
			Region: v.GetString(cfgKeyRegion),
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, bucket, v.GetString(cfgKeyPrefix)), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// newTable creates an empty table bound to the configured schemas.
func (a *app) newTable() (*affinity.Table, error) {
	optFns := []affinity.Option{
		affinity.WithSchemaRegistry(a.registry),
		affinity.WithLogger(a.logger),
	}
	if limit := a.v.GetInt64(cfgKeyIOLimit); limit > 0 {
		optFns = append(optFns, affinity.WithIOLimit(limit))
	}
	return affinity.New(optFns...)
}

// loadTable reads the blob name into a new table.
func (a *app) loadTable(ctx context.Context, name string) (*affinity.Table, error) {
	t, err := a.newTable()
	if err != nil {
		return nil, err
	}
	if err := t.LoadFrom(ctx, a.store, name); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return t, nil
}

func (a *app) compressor(name string) (codec.Compressor, error) {
	if name == "" {
		name = a.v.GetString(cfgKeyCompression)
	}
	c, ok := codec.CompressorByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown compression %q (want one of %v)", name, codec.CompressorNames())
	}
	return c, nil
}
