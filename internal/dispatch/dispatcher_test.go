package dispatch

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quietcut/quietcut/internal/media"
	"github.com/quietcut/quietcut/internal/store"
	"github.com/quietcut/quietcut/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
	err  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

func (f *fakeStore) CreateJob(_ context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) ListJobsForOwner(_ context.Context, _ uuid.UUID) ([]*models.Job, error) {
	return nil, nil
}
func (f *fakeStore) ClaimJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) CompleteJob(_ context.Context, _ uuid.UUID, _ string) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) FailJob(_ context.Context, _ uuid.UUID, _ string) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) FailStuckJobs(_ context.Context, _ time.Duration) (int, error) { return 0, nil }
func (f *fakeStore) ListStalePendingJobs(_ context.Context, _ time.Duration) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeStore) GetAccountsByKeyPrefix(_ context.Context, _ string) ([]*models.Account, error) {
	return nil, nil
}
func (f *fakeStore) TouchAccountLastSeen(_ context.Context, _ uuid.UUID) error { return nil }

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeBlobs) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + key, nil
}

func (f *fakeBlobs) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeBlobs) Ping(_ context.Context) error { return nil }

type fakePublisher struct {
	mu        sync.Mutex
	published []uuid.UUID
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, jobID)
	return nil
}

type fakeProber struct {
	duration float64
	err      error
}

func (f *fakeProber) Duration(_ context.Context, _ string) (float64, error) {
	return f.duration, f.err
}

// --- tests ---

const maxUpload = int64(1 << 20)

func premiumPrincipal() *models.Principal {
	return &models.Principal{AccountID: uuid.New(), KeyPrefix: "qc_abcd1", Premium: true}
}

func TestSubmit_FreeTier(t *testing.T) {
	st := newFakeStore()
	blobs := newFakeBlobs()
	pub := &fakePublisher{}
	d := New(st, blobs, pub, &fakeProber{duration: 45}, maxUpload)

	job, err := d.Submit(context.Background(), strings.NewReader("video-bytes"), "talk.mp4", models.TierFree, nil)
	require.NoError(t, err)

	assert.Equal(t, models.TierFree, job.Tier)
	assert.Equal(t, models.JobStatePending, job.State)
	assert.Equal(t, 45.0, job.DurationSecs)
	assert.Equal(t, int64(len("video-bytes")), job.SizeBytes)
	assert.Nil(t, job.OwnerID)
	assert.Nil(t, job.ArtifactKey)
	assert.Nil(t, job.ErrorMessage)

	// Persisted, stored, and enqueued exactly once.
	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatePending, stored.State)
	assert.Contains(t, blobs.objects, job.UploadKey)
	assert.Equal(t, []uuid.UUID{job.ID}, pub.published)
}

func TestSubmit_FreeOverLimitRejected(t *testing.T) {
	st := newFakeStore()
	blobs := newFakeBlobs()
	pub := &fakePublisher{}
	d := New(st, blobs, pub, &fakeProber{duration: 90}, maxUpload)

	_, err := d.Submit(context.Background(), strings.NewReader("video-bytes"), "long.mp4", models.TierFree, nil)
	require.ErrorIs(t, err, ErrIneligible)

	// No job, no blob, no message.
	assert.Empty(t, st.jobs)
	assert.Empty(t, blobs.objects)
	assert.Empty(t, pub.published)
}

func TestSubmit_PremiumWithoutAccountRejected(t *testing.T) {
	st := newFakeStore()
	d := New(st, newFakeBlobs(), &fakePublisher{}, &fakeProber{duration: 90}, maxUpload)

	_, err := d.Submit(context.Background(), strings.NewReader("video-bytes"), "long.mp4", models.TierPremium, nil)
	require.ErrorIs(t, err, ErrIneligible)
	assert.Empty(t, st.jobs)
}

func TestSubmit_PremiumLongVideo(t *testing.T) {
	st := newFakeStore()
	pub := &fakePublisher{}
	d := New(st, newFakeBlobs(), pub, &fakeProber{duration: 5400}, maxUpload)

	p := premiumPrincipal()
	job, err := d.Submit(context.Background(), strings.NewReader("video-bytes"), "lecture.mp4", models.TierPremium, p)
	require.NoError(t, err)

	assert.Equal(t, models.TierPremium, job.Tier)
	require.NotNil(t, job.OwnerID)
	assert.Equal(t, p.AccountID, *job.OwnerID)
	assert.Equal(t, []uuid.UUID{job.ID}, pub.published)
}

func TestSubmit_ProbeFailureIsValidationError(t *testing.T) {
	st := newFakeStore()
	blobs := newFakeBlobs()
	d := New(st, blobs, &fakePublisher{}, &fakeProber{err: media.ErrProbe}, maxUpload)

	_, err := d.Submit(context.Background(), strings.NewReader("not-a-video"), "junk.bin", models.TierFree, nil)
	require.ErrorIs(t, err, ErrInvalidUpload)
	assert.Empty(t, st.jobs)
	assert.Empty(t, blobs.objects)
}

func TestSubmit_EmptyFileRejected(t *testing.T) {
	d := New(newFakeStore(), newFakeBlobs(), &fakePublisher{}, &fakeProber{duration: 10}, maxUpload)

	_, err := d.Submit(context.Background(), strings.NewReader(""), "empty.mp4", models.TierFree, nil)
	assert.ErrorIs(t, err, ErrInvalidUpload)
}

func TestSubmit_OversizedFileRejected(t *testing.T) {
	d := New(newFakeStore(), newFakeBlobs(), &fakePublisher{}, &fakeProber{duration: 10}, 8)

	_, err := d.Submit(context.Background(), strings.NewReader("way more than eight bytes"), "big.mp4", models.TierFree, nil)
	assert.ErrorIs(t, err, ErrInvalidUpload)
}

func TestSubmit_EnqueueFailureLeavesPendingJob(t *testing.T) {
	st := newFakeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	d := New(st, newFakeBlobs(), pub, &fakeProber{duration: 30}, maxUpload)

	// The sweep recovers orphaned pending jobs; the caller still gets the job.
	job, err := d.Submit(context.Background(), strings.NewReader("video-bytes"), "talk.mp4", models.TierFree, nil)
	require.NoError(t, err)

	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatePending, stored.State)
}

func TestSubmit_CreateFailureDiscardsUpload(t *testing.T) {
	st := newFakeStore()
	st.err = errors.New("db down")
	blobs := newFakeBlobs()
	d := New(st, blobs, &fakePublisher{}, &fakeProber{duration: 30}, maxUpload)

	_, err := d.Submit(context.Background(), strings.NewReader("video-bytes"), "talk.mp4", models.TierFree, nil)
	require.Error(t, err)
	assert.Empty(t, blobs.objects)
	assert.Len(t, blobs.removed, 1)
}
