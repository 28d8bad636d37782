package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/samirvithlani/mayaa-backend/services/common/errors"
	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
	"github.com/samirvithlani/mayaa-backend/services/product-service/queue"
)

var importHeader = []string{"Product_Name *", "SEO_Slug *", "Color_Name", "Size", "SKU", "Price", "Stock"}

func teeWorkbook(t *testing.T) *bytes.Buffer {
	return workbook(t, map[string][][]string{
		"Products": {
			importHeader,
			{"Tee", "tee-1", "Red", "S", "SKU1", "100", "10"},
			{"Tee", "tee-1", "Red", "M", "SKU2", "100", "5"},
		},
	}, "Products")
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type fakeArchiver struct {
	name string
	body []byte
	err  error
}

func (f *fakeArchiver) Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error) {
	f.name = name
	f.body, _ = io.ReadAll(body)
	if f.err != nil {
		return "", f.err
	}
	return "s3://imports/" + name, nil
}

type failingProducer struct{}

func (failingProducer) Add(ctx context.Context, name string, task models.ImportTask) (string, error) {
	return "", errors.New("redis unavailable")
}

func TestStartImportEnqueuesRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	q := queue.NewMemoryQueue(queue.Options{})
	metrics := newFakeMetrics()
	p := NewImportProducer(q, dir, WithProducerMetrics(metrics))

	ticket, err := p.StartImport(ctx, teeWorkbook(t), "tees.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2, ticket.TotalRows)
	assert.NotEmpty(t, ticket.JobID)

	job, err := q.GetJob(ctx, ticket.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskImportProducts, job.Name)
	assert.Equal(t, models.JobStateQueued, job.State)
	require.Len(t, job.Data.Rows, 2)
	assert.Equal(t, "Tee", job.Data.Rows[0]["product_name"])
	assert.Equal(t, "SKU2", job.Data.Rows[1]["sku"])

	assert.Empty(t, stagedFiles(t, dir))
	assert.Equal(t, 1.0, metrics.get("ImportJobsQueued"))
}

func TestStartImportArchivesUpload(t *testing.T) {
	archiver := &fakeArchiver{}
	p := NewImportProducer(queue.NewMemoryQueue(queue.Options{}), t.TempDir(), WithArchiver(archiver))

	buf := teeWorkbook(t)
	raw := append([]byte(nil), buf.Bytes()...)
	_, err := p.StartImport(context.Background(), buf, "../../tees.xlsx")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(archiver.name, "-tees.xlsx"))
	assert.Equal(t, raw, archiver.body)
}

func TestStartImportIgnoresArchiveFailure(t *testing.T) {
	archiver := &fakeArchiver{err: errors.New("bucket missing")}
	p := NewImportProducer(queue.NewMemoryQueue(queue.Options{}), t.TempDir(), WithArchiver(archiver))

	ticket, err := p.StartImport(context.Background(), teeWorkbook(t), "tees.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2, ticket.TotalRows)
}

func TestStartImportRejectsBadUploads(t *testing.T) {
	headerOnly := workbook(t, map[string][][]string{"Sheet1": {importHeader}}, "Sheet1")

	cases := []struct {
		name   string
		upload io.Reader
		want   error
	}{
		{"missing", nil, apperrors.ErrFileRequired},
		{"zero bytes", bytes.NewReader(nil), apperrors.ErrEmptyFile},
		{"header only", headerOnly, apperrors.ErrEmptyFile},
		{"not a workbook", strings.NewReader("name,slug\nTee,tee-1\n"), apperrors.ErrInvalidWorkbook},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			q := queue.NewMemoryQueue(queue.Options{BlockTimeout: 1})
			p := NewImportProducer(q, dir)

			ticket, err := p.StartImport(context.Background(), tc.upload, "upload.xlsx")
			assert.Nil(t, ticket)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 400, apperrors.From(err).Code)
			assert.Empty(t, stagedFiles(t, dir))

			job, err := q.Take(context.Background())
			assert.NoError(t, err)
			assert.Nil(t, job, "nothing may be enqueued")
		})
	}
}

func TestStartImportQueueFailure(t *testing.T) {
	dir := t.TempDir()
	p := NewImportProducer(failingProducer{}, dir)

	_, err := p.StartImport(context.Background(), teeWorkbook(t), "tees.xlsx")
	require.ErrorIs(t, err, apperrors.ErrQueueImport)
	assert.Equal(t, 500, apperrors.From(err).Code)
	assert.Empty(t, stagedFiles(t, dir))
}
