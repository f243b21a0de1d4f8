package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source yields the raw corpus text. Implementations read on every call.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads the corpus from a local path.
type FileSource struct {
	Path string
}

func (f FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read %s: %w", f.Path, err)
	}
	return data, nil
}

func (f FileSource) String() string { return f.Path }

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches the corpus object from S3.
type S3Source struct {
	Bucket string
	Key    string
	Client S3API
}

func (s S3Source) Read(ctx context.Context) ([]byte, error) {
	if s.Client == nil {
		return nil, errors.New("knowledge: s3 client not configured")
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: s3 get %s: %w", s.String(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("knowledge: s3 read %s: %w", s.String(), err)
	}
	return data, nil
}

func (s S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("knowledge: not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("knowledge: s3 uri needs bucket and key: %q", uri)
	}
	return bucket, key, nil
}

// NewSource picks a source from a KNOWLEDGE_SOURCE value. s3:// locations need
// a client; anything else is a file path.
func NewSource(location string, client S3API) (Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("knowledge: source location is empty")
	}
	if strings.HasPrefix(location, "s3://") {
		bucket, key, err := ParseS3URI(location)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("knowledge: %s requires an s3 client", location)
		}
		return S3Source{Bucket: bucket, Key: key, Client: client}, nil
	}
	return FileSource{Path: location}, nil
}
