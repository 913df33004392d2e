package mount

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/0-chirag-s/sitecrafter/api"
)

// DescriptorObject is the key, relative to the prefix, that holds the
// descriptor itself.
const DescriptorObject = "_mount.json"

// ObjectPutter is the part of the S3 client the object sandbox uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config selects an S3-compatible endpoint. Empty credentials fall back
// to the default AWS credential chain.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style S3 client, which also works for MinIO.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// ObjectSandbox publishes each mounted descriptor to an object store: one
// object per file under Prefix, then the descriptor JSON at
// Prefix/_mount.json so readers see it only after the files it names.
type ObjectSandbox struct {
	Client  ObjectPutter
	Bucket  string
	Prefix  string
	Options Options
}

func NewObjectSandbox(client ObjectPutter, bucket, prefix string, opts Options) *ObjectSandbox {
	return &ObjectSandbox{Client: client, Bucket: bucket, Prefix: prefix, Options: opts}
}

// Mount implements Sandbox. Unsafe entry names are skipped and reported
// after the descriptor object is written; a failed put stops the mount
// before it.
func (s *ObjectSandbox) Mount(ctx context.Context, desc *api.Descriptor) error {
	var skipped []error
	skip := func(err error) {
		s.Options.logger().Warn("skipping descriptor entry", "bucket", s.Bucket, "error", err)
		skipped = append(skipped, err)
	}
	err := eachFile(desc, "", skip, func(p, contents string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data := []byte(contents)
		if s.Options.FormatGo {
			data = FormatSource(p, data)
		}
		return s.put(ctx, p, data, "")
	})
	if err != nil {
		return err
	}

	raw, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	if err := s.put(ctx, DescriptorObject, raw, "application/json"); err != nil {
		return err
	}
	return errors.Join(skipped...)
}

func (s *ObjectSandbox) put(ctx context.Context, rel string, data []byte, contentType string) error {
	key := path.Join(s.Prefix, rel)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// eachFile calls fn for every file in desc with its slash-joined path.
// Entries with unsafe names go to skip instead, with their subtrees.
func eachFile(desc *api.Descriptor, dir string, skip func(error), fn func(p, contents string) error) error {
	return desc.Each(func(name string, e *api.Entry) error {
		if err := checkName(name); err != nil {
			skip(fmt.Errorf("entry %q under %q: %w", name, dir, err))
			return nil
		}
		p := path.Join(dir, name)
		switch {
		case e.IsDir():
			return eachFile(e.Directory, p, skip, fn)
		case e != nil && e.File != nil:
			return fn(p, e.File.Contents)
		default:
			return fmt.Errorf("entry %s is neither directory nor file", p)
		}
	})
}
