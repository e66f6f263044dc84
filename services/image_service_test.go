package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
)

type fakeObjects struct {
	objects   map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) PresignPut(_ context.Context, key, contentType string, _ time.Duration) (string, map[string]string, error) {
	return "https://bucket.example.com/" + key + "?sig=1", map[string]string{"Content-Type": contentType}, nil
}

func (f *fakeObjects) Put(_ context.Context, key, _ string, body io.Reader) (int64, error) {
	if f.putErr != nil {
		return 0, f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return int64(len(data)), err
	}
	f.objects[key] = data
	return int64(len(data)), nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func newImageFixture(t *testing.T) (*memStore, *fakeObjects, *countingInvalidator, ImageService, models.Product) {
	t.Helper()
	store := newMemStore()
	objects := newFakeObjects()
	inv := &countingInvalidator{}
	svc := NewImageService(store, objects, inv, 15*time.Minute, 10<<20, testLogger)
	return store, objects, inv, svc, store.seedProduct("Corsair RM850x", 13999, 4)
}

func TestImagePresignUpload(t *testing.T) {
	_, _, _, svc, p := newImageFixture(t)
	ctx := context.Background()

	resp, err := svc.PresignUpload(ctx, p.ID, models.PresignImageRequest{Filename: "psu.webp", ContentType: "image/webp"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Key, "products/"+p.ID.String()+"/"))
	assert.True(t, strings.HasSuffix(resp.Key, ".webp"))
	assert.Contains(t, resp.UploadURL, resp.Key)

	_, err = svc.PresignUpload(ctx, p.ID, models.PresignImageRequest{Filename: "psu.svg", ContentType: "image/svg+xml"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = svc.PresignUpload(ctx, uuid.New(), models.PresignImageRequest{Filename: "x.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
}

func TestImageRegisterChecksKeyPrefix(t *testing.T) {
	_, _, inv, svc, p := newImageFixture(t)
	ctx := context.Background()

	img, err := svc.Register(ctx, p.ID, models.RegisterImageRequest{
		Key:         "products/" + p.ID.String() + "/abc.png",
		ContentType: "image/png",
		SizeBytes:   2048,
	})
	require.NoError(t, err)
	assert.True(t, img.IsPrimary)
	assert.Equal(t, "https://cdn.example.com/products/"+p.ID.String()+"/abc.png", img.URL)
	assert.Equal(t, 1, inv.calls)

	for _, key := range []string{
		"products/" + uuid.NewString() + "/abc.png",
		"products/" + p.ID.String() + "/../other/abc.png",
	} {
		_, err = svc.Register(ctx, p.ID, models.RegisterImageRequest{Key: key, ContentType: "image/png"})
		assert.True(t, errors.Is(err, apperrors.ErrValidation), key)
	}

	_, err = svc.Register(ctx, p.ID, models.RegisterImageRequest{
		Key:         "products/" + p.ID.String() + "/huge.png",
		ContentType: "image/png",
		SizeBytes:   11 << 20,
	})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestImageUploadFirstIsPrimary(t *testing.T) {
	_, objects, _, svc, p := newImageFixture(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, p.ID, "image/jpeg", 5, bytes.NewBufferString("jpeg!"))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, p.ID, "image/png", 4, bytes.NewBufferString("png!"))
	require.NoError(t, err)

	assert.True(t, first.IsPrimary)
	assert.False(t, second.IsPrimary)
	assert.Less(t, first.Position, second.Position)
	assert.Equal(t, []byte("jpeg!"), objects.objects[first.StorageKey])

	list, err := svc.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestImageUploadStorageFailure(t *testing.T) {
	store, objects, _, svc, p := newImageFixture(t)
	objects.putErr = errors.New("s3 down")

	_, err := svc.Upload(context.Background(), p.ID, "image/png", 3, bytes.NewBufferString("png"))
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
	assert.Empty(t, store.images)
}

func TestImageSetPrimaryIsExclusive(t *testing.T) {
	store, _, _, svc, p := newImageFixture(t)
	ctx := context.Background()

	a, err := svc.Upload(ctx, p.ID, "image/png", 1, bytes.NewBufferString("a"))
	require.NoError(t, err)
	b, err := svc.Upload(ctx, p.ID, "image/png", 1, bytes.NewBufferString("b"))
	require.NoError(t, err)

	_, err = svc.SetPrimary(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, store.images[a.ID].IsPrimary)
	assert.True(t, store.images[b.ID].IsPrimary)

	_, err = svc.SetPrimary(ctx, uuid.New())
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.Code)
}

func TestImageDeletePromotesNext(t *testing.T) {
	store, objects, _, svc, p := newImageFixture(t)
	ctx := context.Background()

	a, err := svc.Upload(ctx, p.ID, "image/png", 1, bytes.NewBufferString("a"))
	require.NoError(t, err)
	b, err := svc.Upload(ctx, p.ID, "image/png", 1, bytes.NewBufferString("b"))
	require.NoError(t, err)

	objects.deleteErr = errors.New("s3 flaky")
	require.NoError(t, svc.Delete(ctx, a.ID))

	assert.NotContains(t, store.images, a.ID)
	assert.True(t, store.images[b.ID].IsPrimary)
	assert.Equal(t, []string{a.StorageKey}, objects.deleted)
}

func TestImageUploadTrustsStoredLengthOverHeader(t *testing.T) {
	store := newMemStore()
	objects := newFakeObjects()
	svc := NewImageService(store, objects, &countingInvalidator{}, 15*time.Minute, 8, testLogger)
	p := store.seedProduct("NZXT H5 Flow", 9499, 3)
	ctx := context.Background()

	_, err := svc.Upload(ctx, p.ID, "image/png", 1, bytes.NewBufferString("twenty-bytes-of-png!"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, store.images)
	require.Len(t, objects.deleted, 1)
	assert.NotContains(t, objects.objects, objects.deleted[0])

	img, err := svc.Upload(ctx, p.ID, "image/png", 1, bytes.NewBufferString("png!png!"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), img.SizeBytes)
}
