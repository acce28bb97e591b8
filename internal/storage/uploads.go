// Package storage stores uploaded ebook files and covers in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/aws"
)

var ErrNoBucket = errors.New("uploads bucket not configured")

type Uploader struct {
	client        aws.S3API
	bucket        string
	region        string
	publicBaseURL string
	newName       func() string
}

// NewUploader returns an Uploader. When publicBaseURL is empty, URLs point at
// the bucket's virtual-hosted S3 endpoint.
func NewUploader(client aws.S3API, bucket, region, publicBaseURL string) *Uploader {
	return &Uploader{
		client:        client,
		bucket:        bucket,
		region:        region,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		newName:       uuid.NewString,
	}
}

// Upload stores body under a random object name that keeps the original
// extension and returns the object's public URL. Existing objects are never overwritten.
func (u *Uploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	if u.bucket == "" {
		return "", ErrNoBucket
	}
	key := u.objectKey(filename)

	in := &s3.PutObjectInput{
		Bucket:      sdkaws.String(u.bucket),
		Key:         sdkaws.String(key),
		Body:        body,
		IfNoneMatch: sdkaws.String("*"),
	}
	if contentType != "" {
		in.ContentType = sdkaws.String(contentType)
	}
	if _, err := u.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 putobject failed: %w", err)
	}
	return u.PublicURL(key), nil
}

// PublicURL returns the URL an object with key is served from.
func (u *Uploader) PublicURL(key string) string {
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}

func (u *Uploader) objectKey(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return u.newName()
	}
	return u.newName() + "." + ext
}
