package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmelim/folio/internal/util"
)

// S3Store keeps one JSON object per document under the collection prefix.
// Subscriptions poll the object listing and fingerprint the ETags; the
// collection is only re-fetched when the fingerprint moves.
type S3Store struct {
	client       *s3.Client
	bucket       string
	pollInterval time.Duration
}

func NewS3Store(accessKeyID, accessKeySecret, endpoint, region, bucket string, pollInterval time.Duration) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &S3Store{
		client:       client,
		bucket:       bucket,
		pollInterval: pollInterval,
	}, nil
}

func (s *S3Store) Subscribe(ctx context.Context, collection string) (<-chan Event, error) {
	docs, fingerprint, err := s.fetchCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("error reading collection %s: %w", collection, err)
	}

	ch := make(chan Event, 16)
	ch <- Event{Docs: docs}

	go s.poll(ctx, collection, ch, fingerprint)

	return ch, nil
}

func (s *S3Store) poll(ctx context.Context, collection string, ch chan Event, lastFingerprint string) {
	defer close(ch)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		fingerprint, err := s.listFingerprint(ctx, collection)
		if err != nil {
			storeLogger.Error().Err(err).Str("collection", collection).Msg("Error listing collection")
			ch <- Event{Err: err}
			return
		}

		if fingerprint == lastFingerprint {
			continue
		}

		docs, fp, err := s.fetchCollection(ctx, collection)
		if err != nil {
			storeLogger.Error().Err(err).Str("collection", collection).Msg("Error reloading collection")
			ch <- Event{Err: err}
			return
		}

		lastFingerprint = fp
		ch <- Event{Docs: docs}
	}
}

type s3Entry struct {
	key      string
	etag     string
	modified time.Time
}

func (s *S3Store) listEntries(ctx context.Context, collection string) ([]s3Entry, error) {
	prefix := collection + "/"

	var entries []s3Entry
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if !strings.HasSuffix(aws.ToString(obj.Key), ".json") {
				continue
			}
			entries = append(entries, s3Entry{
				key:      aws.ToString(obj.Key),
				etag:     aws.ToString(obj.ETag),
				modified: aws.ToTime(obj.LastModified),
			})
		}
	}

	// Oldest first so the document order matches arrival order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].modified.Before(entries[j].modified)
	})

	return entries, nil
}

func (s *S3Store) listFingerprint(ctx context.Context, collection string) (string, error) {
	entries, err := s.listEntries(ctx, collection)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.key)
		b.WriteString(e.etag)
	}
	return util.ContentHashString(b.String()), nil
}

func (s *S3Store) fetchCollection(ctx context.Context, collection string) ([]Document, string, error) {
	entries, err := s.listEntries(ctx, collection)
	if err != nil {
		return nil, "", err
	}

	var docs []Document
	var b strings.Builder
	for _, e := range entries {
		fields, err := s.getFields(ctx, e.key)
		if err != nil {
			return nil, "", err
		}

		id := strings.TrimSuffix(e.key[strings.LastIndex(e.key, "/")+1:], ".json")
		docs = append(docs, Document{ID: id, Fields: fields})
		b.WriteString(e.key)
		b.WriteString(e.etag)
	}

	return docs, util.ContentHashString(b.String()), nil
}

func (s *S3Store) getFields(ctx context.Context, key string) (map[string]any, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", key, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", key, err)
	}
	return fields, nil
}

func (s *S3Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()
	if err := s.putFields(ctx, s.key(collection, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *S3Store) Update(ctx context.Context, doc string, fields map[string]any) error {
	collection, id, err := SplitDoc(doc)
	if err != nil {
		return err
	}

	key := s.key(collection, id)
	existing, err := s.getFields(ctx, key)
	if err != nil {
		return err
	}
	for k, v := range fields {
		existing[k] = v
	}
	return s.putFields(ctx, key, existing)
}

func (s *S3Store) Delete(ctx context.Context, doc string) error {
	collection, id, err := SplitDoc(doc)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(collection, id)),
	})
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	return nil
}

func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) putFields(ctx context.Context, key string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("error encoding fields: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("error writing document: %w", err)
	}
	return nil
}

func (s *S3Store) key(collection, id string) string {
	return collection + "/" + id + ".json"
}
