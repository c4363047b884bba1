package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/janelia-flyem/omeview/omv"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/memblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// OpenBucket returns a blob.Bucket for the given reference.
// The reference should be of the form:
//
//	gs://<bucketname>[/<prefix>]
//	s3://<bucketname>[/<prefix>]
//	vast://<endpoint>/<bucketname>[/<prefix>]
//	file:///<directory>
//	mem://
func OpenBucket(ctx context.Context, ref string) (bucket *blob.Bucket, err error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		// Uses AWS credentials and AWS_REGION from the environment.
		name, prefix := splitBucketPath(strings.TrimPrefix(ref, "s3://"))
		bucket, err = blob.OpenBucket(ctx, "s3://"+name)
		if err != nil {
			omv.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return prefixed(bucket, prefix), nil

	case strings.HasPrefix(ref, "vast://"):
		// S3-compatible storage with path-style addressing.
		parts := strings.SplitN(strings.TrimPrefix(ref, "vast://"), "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("vast ref must be of form 'vast://<endpoint>/<bucket>'")
		}
		name, prefix := splitBucketPath(parts[1])
		u := fmt.Sprintf("s3://%s?endpoint=%s&s3ForcePathStyle=true", name, parts[0])
		bucket, err = blob.OpenBucket(ctx, u)
		if err != nil {
			omv.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return prefixed(bucket, prefix), nil

	case strings.HasPrefix(ref, "file://"):
		dir := strings.TrimPrefix(ref, "file://")
		bucket, err = fileblob.OpenBucket(dir, nil)
		if err != nil {
			omv.Errorf("Can't open directory bucket @ %q: %v\n", dir, err)
			return nil, err
		}
		return bucket, nil

	case strings.HasPrefix(ref, "mem://"):
		return memblob.OpenBucket(nil), nil

	case strings.HasPrefix(ref, "gs://"):
		// See https://cloud.google.com/docs/authentication/production
		name, prefix := splitBucketPath(strings.TrimPrefix(ref, "gs://"))
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		bucket, err = gcsblob.OpenBucket(ctx, client, name, nil)
		if err != nil {
			omv.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return prefixed(bucket, prefix), nil
	}
	return nil, fmt.Errorf("unsupported bucket reference %q", ref)
}

// OpenEndpoint opens a public bucket on an S3-compatible endpoint such as
// https://s3.embassy.ebi.ac.uk/ with anonymous credentials.  Keys are read
// relative to prefix.
func OpenEndpoint(ctx context.Context, endpoint, bucketName, prefix string) (*blob.Bucket, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("bad storage endpoint %q", endpoint)
	}
	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.AnonymousCredentials,
		Endpoint:         aws.String(strings.TrimRight(endpoint, "/")),
		Region:           aws.String("us-east-1"),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create session for endpoint %q: %v", endpoint, err)
	}
	bucket, err := s3blob.OpenBucket(ctx, sess, bucketName, nil)
	if err != nil {
		omv.Errorf("Can't open bucket %q @ %q: %v\n", bucketName, endpoint, err)
		return nil, err
	}
	omv.Debugf("Opened anonymous bucket %q at %s, prefix %q\n", bucketName, endpoint, prefix)
	return prefixed(bucket, prefix), nil
}

func splitBucketPath(s string) (name, prefix string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func prefixed(bucket *blob.Bucket, prefix string) *blob.Bucket {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return bucket
	}
	return blob.PrefixedBucket(bucket, prefix+"/")
}
