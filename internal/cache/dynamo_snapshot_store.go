package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/bbernstein/baroalt/backend-go/internal/catalog"
	"github.com/bbernstein/baroalt/backend-go/internal/clock"
	"github.com/rs/zerolog/log"
)

// SnapshotRecord is the DynamoDB item holding one period's catalog. The
// snapshot itself is gzip'd JSON to stay under the item size limit.
type SnapshotRecord struct {
	Period      string `dynamodbav:"period"`
	Updated     int64  `dynamodbav:"updated"`
	LastUpdated int64  `dynamodbav:"lastUpdated"`
	TTL         int64  `dynamodbav:"ttl"`
	Payload     []byte `dynamodbav:"payload"`
}

// DynamoSnapshotStore persists catalog snapshots in DynamoDB
type DynamoSnapshotStore struct {
	client    DynamoDBClient
	tableName string
	ttl       time.Duration
	clock     clock.Clock
}

func NewDynamoSnapshotStore(client DynamoDBClient, tableName string, ttl time.Duration) *DynamoSnapshotStore {
	return &DynamoSnapshotStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		clock:     clock.System{},
	}
}

// LoadSnapshot returns the stored snapshot of period, or nil when absent or expired
func (s *DynamoSnapshotStore) LoadSnapshot(ctx context.Context, period string) (*catalog.Snapshot, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"period": &types.AttributeValueMemberS{Value: period},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting snapshot from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var record SnapshotRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot record: %w", err)
	}

	if s.clock.Now().Unix() >= record.TTL {
		log.Debug().Str("period", period).Msg("Snapshot cache expired")
		return nil, nil
	}

	snapshot, err := decodeSnapshot(record.Payload)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	return snapshot, nil
}

// SaveSnapshot writes snapshot, replacing any stored copy of its period
func (s *DynamoSnapshotStore) SaveSnapshot(ctx context.Context, snapshot *catalog.Snapshot) error {
	payload, err := encodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	now := s.clock.Now().Unix()
	record := SnapshotRecord{
		Period:      snapshot.Period,
		Updated:     snapshot.Updated.Unix(),
		LastUpdated: now,
		TTL:         snapshot.Updated.Add(s.ttl).Unix(),
		Payload:     payload,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshaling snapshot record: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("putting snapshot in DynamoDB: %w", err)
	}

	log.Debug().
		Str("period", snapshot.Period).
		Int("bytes", len(payload)).
		Msg("Saved catalog snapshot to cache")

	return nil
}

func encodeSnapshot(snapshot *catalog.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(snapshot); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(payload []byte) (*catalog.Snapshot, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer func(zr io.ReadCloser) {
		if err := zr.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing snapshot reader")
		}
	}(zr)

	var snapshot catalog.Snapshot
	if err := json.NewDecoder(zr).Decode(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
