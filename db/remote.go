// Remote file I/O support for S3 and HTTP URLs.
package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ulikunitz/xz"
)

// S3Config contains S3 authentication configuration. Empty fields fall back
// to the default AWS credential chain.
type S3Config struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // S3-compatible endpoint, path style
}

// ErrLocalAccessDenied is returned for local paths the engine may not use.
var ErrLocalAccessDenied = errors.New("local file access denied")

// LocalAccess restricts local paths used by .open and .export. The zero
// value allows any path.
type LocalAccess struct {
	Disabled bool `yaml:"disabled"`

	// Root confines local paths to this directory. Relative paths resolve
	// against it; symlinks may not leave it.
	Root string `yaml:"root"`
}

type urlScheme string

const (
	schemeFile     urlScheme = "file"
	schemeS3       urlScheme = "s3"
	schemeHTTP     urlScheme = "http"
	schemeHTTPS    urlScheme = "https"
	schemeSnapshot urlScheme = "snapshot"
	schemeLocal    urlScheme = "local" // no scheme, local path
)

const xzSuffix = ".xz"

func detectScheme(path string) urlScheme {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lowerPath, "s3://"):
		return schemeS3
	case strings.HasPrefix(lowerPath, "https://"):
		return schemeHTTPS
	case strings.HasPrefix(lowerPath, "http://"):
		return schemeHTTP
	case strings.HasPrefix(lowerPath, "file://"):
		return schemeFile
	case strings.HasPrefix(lowerPath, "snapshot://"):
		return schemeSnapshot
	default:
		return schemeLocal
	}
}

func isCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), xzSuffix)
}

// readSource reads a whole database image from a local path or URL,
// decompressing .xz sources.
func readSource(ctx context.Context, path string, cfg *S3Config, local LocalAccess) ([]byte, error) {
	reader, err := openRemoteReader(ctx, path, cfg, local)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var r io.Reader = reader
	if isCompressed(path) {
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to open xz stream: %w", err)
		}
		r = xzReader
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// writeDestination writes data to a local path or S3 URL, compressing when
// the destination ends in .xz. Nothing reaches the destination unless the
// whole payload is ready, and a failed write is aborted.
func writeDestination(ctx context.Context, path string, data []byte, cfg *S3Config, local LocalAccess) error {
	payload := data
	if isCompressed(path) {
		var err error
		if payload, err = compress(data); err != nil {
			return err
		}
	}

	writer, err := openRemoteWriter(ctx, path, cfg, local)
	if err != nil {
		return err
	}

	if _, err := writer.Write(payload); err != nil {
		abortWriter(writer)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return writer.Close()
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	xzWriter, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open xz stream: %w", err)
	}
	if _, err := xzWriter.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := xzWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	return buf.Bytes(), nil
}

// aborter is implemented by writers that can discard a partial write.
type aborter interface {
	Abort() error
}

func abortWriter(writer io.WriteCloser) {
	if a, ok := writer.(aborter); ok {
		a.Abort()
		return
	}
	writer.Close()
}

// localFile removes itself on Abort.
type localFile struct {
	*os.File
	name string
	root *os.Root // set when created inside a LocalAccess root
}

func (f localFile) Close() error {
	err := f.File.Close()
	if f.root != nil {
		f.root.Close()
	}
	return err
}

func (f localFile) Abort() error {
	f.File.Close()
	if f.root != nil {
		defer f.root.Close()
		return f.root.Remove(f.name)
	}
	return os.Remove(f.name)
}

func (access LocalAccess) open(path string) (io.ReadCloser, error) {
	if access.Disabled {
		return nil, ErrLocalAccessDenied
	}
	if access.Root == "" {
		return osOpen(path)
	}

	name, err := access.relative(path)
	if err != nil {
		return nil, err
	}
	return os.OpenInRoot(access.Root, name)
}

func (access LocalAccess) create(path string) (io.WriteCloser, error) {
	if access.Disabled {
		return nil, ErrLocalAccessDenied
	}
	if access.Root == "" {
		return osCreate(path)
	}

	name, err := access.relative(path)
	if err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(access.Root)
	if err != nil {
		return nil, err
	}
	file, err := root.Create(name)
	if err != nil {
		root.Close()
		return nil, err
	}
	return localFile{File: file, name: name, root: root}, nil
}

// relative maps path to a name inside Root.
func (access LocalAccess) relative(path string) (string, error) {
	name := path
	if filepath.IsAbs(path) {
		root, err := filepath.Abs(access.Root)
		if err != nil {
			return "", err
		}
		if name, err = filepath.Rel(root, path); err != nil {
			return "", fmt.Errorf("%w: %s is outside %s", ErrLocalAccessDenied, path, access.Root)
		}
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrLocalAccessDenied, path, access.Root)
	}
	return name, nil
}

func localPath(path string) string {
	if detectScheme(path) == schemeFile {
		return path[len("file://"):]
	}
	return path
}

func openRemoteReader(ctx context.Context, path string, cfg *S3Config, local LocalAccess) (io.ReadCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return local.open(localPath(path))

	case schemeHTTP, schemeHTTPS:
		return openHTTPReader(ctx, path)

	case schemeS3:
		return openS3Reader(ctx, path, cfg)

	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", path)
	}
}

func openRemoteWriter(ctx context.Context, path string, cfg *S3Config, local LocalAccess) (io.WriteCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return local.create(localPath(path))

	case schemeHTTP, schemeHTTPS:
		return nil, fmt.Errorf("HTTP/HTTPS does not support writing")

	case schemeS3:
		return openS3Writer(ctx, path, cfg)

	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", path)
	}
}

var httpClient = &http.Client{
	Timeout: 5 * time.Minute, // generous timeout for large files
}

func openHTTPReader(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", url, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// parseS3URL parses s3://bucket/key into bucket and key parts
func parseS3URL(url string) (bucket, key string, err error) {
	path := url[len("s3://"):]
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	return parts[0], parts[1], nil
}

func getS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error

	if cfg != nil && cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg != nil && cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg != nil && cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func openS3Reader(ctx context.Context, url string, cfg *S3Config) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}

	client, err := getS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}

	return resp.Body, nil
}

// s3Writer buffers writes and uploads them as one object on Close.
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buffer []byte
	closed bool
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	if w.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	w.buffer = append(w.buffer, p...)
	return len(p), nil
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buffer),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

// Abort drops the buffer without uploading.
func (w *s3Writer) Abort() error {
	w.closed = true
	w.buffer = nil
	return nil
}

func openS3Writer(ctx context.Context, url string, cfg *S3Config) (io.WriteCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}

	client, err := getS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &s3Writer{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
		buffer: make([]byte, 0),
	}, nil
}

// osOpen wraps os.Open - used to allow the function to be swapped in tests
var osOpen = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// osCreate wraps os.Create - used to allow the function to be swapped in tests
var osCreate = func(path string) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return localFile{File: file, name: path}, nil
}
