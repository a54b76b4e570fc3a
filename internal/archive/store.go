// Package archive writes analysis records to S3 with a monthly JSONL manifest.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one line of the monthly manifest.
type ManifestEntry struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id,omitempty"`
	S3Key          string   `json:"s3_key"`
	Status         string   `json:"status"`
	ErrorKind      string   `json:"error_kind,omitempty"`
	Flags          []string `json:"flags,omitempty"`
	ProcessedAt    string   `json:"processed_at"`
}

// Store archives analysis records to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Save implements intake.RecordSink.
func (s *Store) Save(ctx context.Context, rec analysis.Record) error {
	_, err := s.Archive(ctx, rec)
	return err
}

// Archive writes rec as JSON and appends it to the manifest. It returns the object key.
func (s *Store) Archive(ctx context.Context, rec analysis.Record) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	if rec.Input != analysis.RedactedInput {
		rec.Input = analysis.ScrubPII(rec.Input)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("archive: marshal record: %w", err)
	}

	ts := rec.Timestamp.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	key := RecordKey(rec.ID.String(), ts)

	if _, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Debug("archived analysis to S3", "analysis_id", rec.Sequence, "s3_key", key)

	entry := ManifestEntry{
		ID:             rec.ID.String(),
		ConversationID: rec.ConversationID,
		S3Key:          key,
		Status:         string(rec.Result.Status),
		ProcessedAt:    ts.Format(time.RFC3339),
	}
	if rec.Result.Error != nil {
		entry.ErrorKind = string(rec.Result.Error.Kind)
	}
	if c := rec.Result.Classification; c != nil {
		entry.Flags = c.Flags()
	}
	if err := s.AppendManifest(ctx, ts, entry); err != nil {
		// the record itself is already stored
		s.logger.Warn("failed to append manifest", "error", err, "s3_key", key)
	}
	return key, nil
}

// AppendManifest appends a JSONL line to the manifest for the month of ts.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, ts time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	key := ManifestKey(ts)
	var existing []byte
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(out.Body)
		out.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", key)
	default:
		return fmt.Errorf("archive: get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	if _, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	}); err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

// RecordKey is the object key for a record processed at ts.
func RecordKey(id string, ts time.Time) string {
	return fmt.Sprintf("analyses/v1/by-date/%d/%02d/%02d/%s.json", ts.Year(), ts.Month(), ts.Day(), id)
}

// ManifestKey is the monthly manifest key for ts.
func ManifestKey(ts time.Time) string {
	return fmt.Sprintf("analyses/v1/manifests/%d-%02d.jsonl", ts.Year(), ts.Month())
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}
