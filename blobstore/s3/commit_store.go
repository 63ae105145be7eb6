package s3

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/hupe1980/affinity/blobstore"
)

// CommitStore implements blobstore.Store backed by S3 with DynamoDB as a
// commit log. Every Put writes a new immutable object and then publishes it
// with a conditional write, so concurrent writers of the same table detect
// each other instead of silently overwriting.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 prefix joined with the blob name
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name affinity-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
	baseURI   string
}

var _ blobstore.Store = (*CommitStore)(nil)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConcurrentModification is returned when another writer committed the
// same version first.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// versionSep separates a blob name from its version in object keys.
const versionSep = "@v"

// NewCommitStore creates a new S3+DynamoDB commit store.
// The baseURI should be "s3://bucket/prefix" and namespaces the commit log.
func NewCommitStore(s3Store *Store, ddbClient DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

func (s *CommitStore) partition(name string) string {
	return strings.TrimSuffix(s.baseURI, "/") + "/" + name
}

// objectName is unique per writer, so a losing writer never clobbers the
// object of the winner.
func objectName(name string, version uint64) string {
	return fmt.Sprintf("%s%s%020d-%s", name, versionSep, version, uuid.NewString())
}

// Get returns the latest committed content of name.
func (s *CommitStore) Get(ctx context.Context, name string) ([]byte, error) {
	version, object, err := s.latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, name)
	}
	return s.s3Store.Get(ctx, object)
}

// GetVersion returns the content of name as committed at version.
func (s *CommitStore) GetVersion(ctx context.Context, name string, version uint64) ([]byte, error) {
	resp, err := s.ddbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: s.partition(name)},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read commit from DynamoDB: %w", err)
	}
	if len(resp.Item) == 0 {
		return nil, fmt.Errorf("%w: %s version %d", blobstore.ErrNotFound, name, version)
	}
	_, object, err := parseCommit(resp.Item)
	if err != nil {
		return nil, err
	}
	return s.s3Store.Get(ctx, object)
}

// Put writes data as the next version of name. It returns
// ErrConcurrentModification when another writer published that version
// first; the uploaded object is removed again in that case.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	current, _, err := s.latest(ctx, name)
	if err != nil {
		return err
	}
	next := current + 1
	object := objectName(name, next)

	if err := s.s3Store.Put(ctx, object, data); err != nil {
		return err
	}
	if err := s.commit(ctx, name, next, object); err != nil {
		_ = s.s3Store.Delete(ctx, object)
		return err
	}
	return nil
}

// Versions lists the committed versions of name in ascending order.
func (s *CommitStore) Versions(ctx context.Context, name string) ([]uint64, error) {
	items, err := s.query(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(items))
	for _, item := range items {
		v, _, err := parseCommit(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// Delete removes every version of name and its commit history.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	items, err := s.query(ctx, name, 0)
	if err != nil {
		return err
	}
	for _, item := range items {
		v, object, err := parseCommit(item)
		if err != nil {
			return err
		}
		if err := s.s3Store.Delete(ctx, object); err != nil {
			return err
		}
		if _, err := s.ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"base_uri": &types.AttributeValueMemberS{Value: s.partition(name)},
				"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)},
			},
		}); err != nil {
			return fmt.Errorf("failed to delete commit from DynamoDB: %w", err)
		}
	}
	return nil
}

// List lists the names that have at least one stored version.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	objects, err := s.s3Store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, o := range objects {
		i := strings.LastIndex(o, versionSep)
		if i < 0 {
			continue
		}
		out = append(out, o[:i])
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (s *CommitStore) query(ctx context.Context, name string, limit int32) ([]map[string]types.AttributeValue, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.partition(name)},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
	}
	if limit > 0 {
		in.Limit = aws.Int32(limit)
	}

	var items []map[string]types.AttributeValue
	for {
		resp, err := s.ddbClient.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB: %w", err)
		}
		items = append(items, resp.Items...)
		if limit > 0 || len(resp.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = resp.LastEvaluatedKey
	}
}

// latest returns the newest committed version of name, or 0.
func (s *CommitStore) latest(ctx context.Context, name string) (uint64, string, error) {
	items, err := s.query(ctx, name, 1)
	if err != nil {
		return 0, "", err
	}
	if len(items) == 0 {
		return 0, "", nil
	}
	return parseCommit(items[0])
}

func (s *CommitStore) commit(ctx context.Context, name string, version uint64, object string) error {
	// Conditional put: only succeed if this version doesn't exist yet
	_, err := s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":    &types.AttributeValueMemberS{Value: s.partition(name)},
			"version":     &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"object_name": &types.AttributeValueMemberS{Value: object},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("failed to commit version to DynamoDB: %w", err)
	}
	return nil
}

func parseCommit(item map[string]types.AttributeValue) (uint64, string, error) {
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in DynamoDB")
	}
	objectAttr, ok := item["object_name"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid object_name attribute in DynamoDB")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse version: %w", err)
	}
	return version, objectAttr.Value, nil
}
