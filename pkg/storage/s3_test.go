package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies []string
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(b))
	return &manager.UploadOutput{}, nil
}

func testS3(up uploader, publicBase string) *S3 {
	return &S3{
		uploader: up,
		cfg:      S3Config{Region: "eu-west-1", DocumentsBucket: "inv-docs", PhotosBucket: "inv-photos", PublicBaseURL: publicBase},
		logger:   zap.NewNop(),
	}
}

func TestObjectKey(t *testing.T) {
	org := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

	key, err := ObjectKey(org, "/units/a.jpg")
	require.NoError(t, err)
	require.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee/units/a.jpg", key)

	for _, bad := range []string{"", "../x", "a/../../b", "./a"} {
		_, err := ObjectKey(org, bad)
		require.ErrorIs(t, err, ErrInvalidPath, bad)
	}
	_, err = ObjectKey(uuid.Nil, "a.jpg")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestUpload_SetsCacheControl(t *testing.T) {
	up := &fakeUploader{}
	s := testS3(up, "")

	url, err := s.Upload(context.Background(), BucketPhotos, "org/a.jpg", "image/jpeg", strings.NewReader("img"), 3)
	require.NoError(t, err)
	require.Equal(t, "https://inv-photos.s3.eu-west-1.amazonaws.com/org/a.jpg", url)

	require.Len(t, up.inputs, 1)
	in := up.inputs[0]
	require.Equal(t, "inv-photos", aws.ToString(in.Bucket))
	require.Equal(t, "max-age=3600", aws.ToString(in.CacheControl))
	require.Equal(t, int64(3), aws.ToInt64(in.ContentLength))
	require.Equal(t, "img", up.bodies[0])
}

func TestUpload_UnknownBucket(t *testing.T) {
	_, err := testS3(&fakeUploader{}, "").Upload(context.Background(), Bucket("secrets"), "k", "text/plain", strings.NewReader(""), 0)
	require.ErrorIs(t, err, ErrUnknownBucket)
}

func TestPublicURL_WithBase(t *testing.T) {
	s := testS3(nil, "https://cdn.invoica.test/")
	require.Equal(t, "https://cdn.invoica.test/inv-docs/org/x.pdf", s.PublicURL(BucketDocuments, "org/x.pdf"))
}

func TestParseBucket(t *testing.T) {
	b, err := ParseBucket("documents")
	require.NoError(t, err)
	require.Equal(t, BucketDocuments, b)
	_, err = ParseBucket("other")
	require.ErrorIs(t, err, ErrUnknownBucket)
}

func TestContentTypeFor(t *testing.T) {
	require.Equal(t, "image/png", ContentTypeFor("a.PNG"))
	require.Equal(t, "application/octet-stream", ContentTypeFor("noext"))
}
