package aws

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSecrets map[string]string

func (s staticSecrets) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestGetSecretJSON(t *testing.T) {
	secrets := staticSecrets{
		"db":     `{"DB_PASSWORD":"hunter2","DB_USER":"shop"}`,
		"broken": `not-json`,
	}

	got, err := GetSecretJSON(context.Background(), secrets, "db")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got["DB_PASSWORD"])

	_, err = GetSecretJSON(context.Background(), secrets, "broken")
	assert.ErrorContains(t, err, "not a JSON object")

	_, err = GetSecretJSON(context.Background(), secrets, "missing")
	assert.Error(t, err)
}

func TestEndpoint_S3OverrideWins(t *testing.T) {
	t.Setenv("AWS_ENDPOINT", "http://localstack:4566")
	t.Setenv("AWS_S3_ENDPOINT", "")
	assert.Equal(t, "http://localstack:4566", Endpoint())

	t.Setenv("AWS_S3_ENDPOINT", "http://minio:9000")
	assert.Equal(t, "http://minio:9000", Endpoint())
}

func TestMetricsClient_DisabledIsNoop(t *testing.T) {
	var nilClient *MetricsClient
	assert.False(t, nilClient.IsEnabled())

	m := NewMetricsClient(sdkaws.Config{Region: "us-east-1"}, "", false)
	assert.False(t, m.IsEnabled())
	assert.Equal(t, "Storefront", m.namespace)
	assert.NoError(t, m.RecordCount(context.Background(), MetricOrdersCreated, nil))
	assert.NoError(t, m.RecordLatency(context.Background(), MetricHTTPLatency, time.Second, nil))
}

func testS3Store(publicBase string) *S3Store {
	cfg := sdkaws.Config{
		Region:      "eu-west-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
	return NewS3Store(cfg, "storefront-images", publicBase)
}

func TestS3Store_PublicURL(t *testing.T) {
	t.Setenv("AWS_ENDPOINT", "")
	t.Setenv("AWS_S3_ENDPOINT", "")

	assert.Equal(t,
		"https://storefront-images.s3.eu-west-1.amazonaws.com/products/p1/a.png",
		testS3Store("").PublicURL("products/p1/a.png"))
	assert.Equal(t,
		"https://cdn.example.com/products/p1/a.png",
		testS3Store("https://cdn.example.com/").PublicURL("products/p1/a.png"))
}

func TestS3Store_PresignPut(t *testing.T) {
	t.Setenv("AWS_ENDPOINT", "")
	t.Setenv("AWS_S3_ENDPOINT", "")

	url, headers, err := testS3Store("").PresignPut(context.Background(), "products/p1/a.png", "image/png", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "products/p1/a.png"))
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Equal(t, "image/png", headers["Content-Type"])
}

func TestS3Store_PutStreamsWithoutDeclaredLength(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("AWS_ENDPOINT", "")
	t.Setenv("AWS_S3_ENDPOINT", srv.URL)

	cfg := sdkaws.Config{
		Region:       "eu-west-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: sdkaws.String(srv.URL),
	}
	store := NewS3Store(cfg, "storefront-images", "")

	body := struct{ *bytes.Buffer }{bytes.NewBufferString("not-really-a-png")}
	n, err := store.Put(context.Background(), "products/p1/a.png", "image/png", body)
	require.NoError(t, err)
	assert.Equal(t, int64(len("not-really-a-png")), n)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PUT /storefront-images/products/p1/a.png"}, paths)
}
