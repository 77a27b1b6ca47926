package archive

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebcovid/caseledger/internal/domain"
)

// fakeS3 serves the path-style subset of S3 the archive uses from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			b.WriteString("<Contents><Key>" + k + "</Key><Size>1</Size></Contents>")
		}
		b.WriteString("</ListBucketResult>")
		return respond(http.StatusOK, b.String()), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if _, exists := f.objects[key]; exists && req.Header.Get("If-None-Match") == "*" {
			return respond(http.StatusPreconditionFailed,
				`<?xml version="1.0" encoding="UTF-8"?><Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`), nil
		}
		f.objects[key] = body
		return respond(http.StatusOK, ""), nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound,
				`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`), nil
		}
		return respond(http.StatusOK, string(body)), nil
	}
	return respond(http.StatusNotImplemented, ""), nil
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/xml"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func newFakeS3(t *testing.T, prefix string) (*S3, *fakeS3) {
	t.Helper()

	fake := &fakeS3{objects: make(map[string][]byte)}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		o.RetryMaxAttempts = 1
	})
	return NewS3WithClient(client, "snapshots-bucket", prefix), fake
}

func TestS3_PutGetList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, fake := newFakeS3(t, "caseledger")

	assert.Equal(t, "s3://snapshots-bucket/caseledger/", a.Name())

	require.NoError(t, a.Put(ctx, "snapshots/b.html", []byte("<html>b</html>")))
	require.NoError(t, a.Put(ctx, "snapshots/a.html", []byte("<html>a</html>")))
	assert.Contains(t, fake.objects, "caseledger/snapshots/a.html")

	body, err := a.Get(ctx, "snapshots/b.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>b</html>", string(body))

	keys, err := a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/a.html", "snapshots/b.html"}, keys)
}

func TestS3_PutIsCreateOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, fake := newFakeS3(t, "")

	require.NoError(t, a.Put(ctx, "snapshots/a.html", []byte("original")))
	assert.ErrorIs(t, a.Put(ctx, "snapshots/a.html", []byte("replacement")), domain.ErrAlreadyExists)
	assert.Equal(t, "original", string(fake.objects["snapshots/a.html"]))
}

func TestS3_GetMissing(t *testing.T) {
	t.Parallel()
	a, _ := newFakeS3(t, "")

	_, err := a.Get(context.Background(), "snapshots/missing.html")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
