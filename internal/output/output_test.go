package output

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailpdf/internal/model"
)

func TestDirSink_CreatesDirectoryAndWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bils")
	sink := NewDirSink(dir)

	path, err := sink.Write(context.Background(), "a.pdf", []byte("%PDF-1"), model.PDFContentType)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1", string(got))

	// same name replaces the earlier file
	_, err = sink.Write(context.Background(), "a.pdf", []byte("%PDF-2"), model.PDFContentType)
	require.NoError(t, err)
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-2", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDirSink_FailureIsPersistenceError(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "bils")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	_, err := NewDirSink(blocker).Write(context.Background(), "a.pdf", []byte("x"), "")
	require.Error(t, err)
	assert.True(t, model.IsPersistenceError(err))
}

type fakeUploader struct {
	inputs []*s3manager.UploadInput
	bodies []string
	err    error
}

func (f *fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(context.Background(), in, opts...)
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3manager.UploadOutput{}, nil
}

func TestS3Sink_Write(t *testing.T) {
	up := &fakeUploader{}
	sink := NewS3SinkWithUploader(up, "bucket", "bils/")

	loc, err := sink.Write(context.Background(), "a.pdf", []byte("%PDF"), model.PDFContentType)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/bils/a.pdf", loc)

	require.Len(t, up.inputs, 1)
	assert.Equal(t, "bucket", aws.StringValue(up.inputs[0].Bucket))
	assert.Equal(t, "bils/a.pdf", aws.StringValue(up.inputs[0].Key))
	assert.Equal(t, model.PDFContentType, aws.StringValue(up.inputs[0].ContentType))
	assert.Equal(t, "%PDF", up.bodies[0])
}

func TestS3Sink_FailureIsPersistenceError(t *testing.T) {
	sink := NewS3SinkWithUploader(&fakeUploader{err: errors.New("denied")}, "bucket", "")

	_, err := sink.Write(context.Background(), "a.pdf", []byte("%PDF"), "")
	require.Error(t, err)
	assert.True(t, model.IsPersistenceError(err))
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(model.S3Config{})
	assert.Error(t, err)
}

func TestMultiSink_StopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	failing := NewS3SinkWithUploader(&fakeUploader{err: errors.New("down")}, "bucket", "")
	after := &fakeUploader{}

	sinks := MultiSink{NewDirSink(dir), failing, NewS3SinkWithUploader(after, "b", "")}
	_, err := sinks.Write(context.Background(), "a.pdf", []byte("%PDF"), "")
	require.Error(t, err)
	assert.True(t, model.IsPersistenceError(err))
	assert.Empty(t, after.inputs)

	loc, err := MultiSink{NewDirSink(dir), NewS3SinkWithUploader(after, "b", "")}.
		Write(context.Background(), "a.pdf", []byte("%PDF"), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), loc)
	assert.Len(t, after.inputs, 1)
}
