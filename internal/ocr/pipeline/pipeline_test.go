package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/registry"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/metrics"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports"
	"github.com/docsales/realstate-docgen-front-sub000/internal/ocr/ports/mocks"
)

// =============================================================================
// Pipeline Test Suite
// =============================================================================
// Justification for unit tests: chunk sequencing and the duplicate-submission
// guards are timing properties that cannot be observed through the HTTP layer.

type PipelineSuite struct {
	suite.Suite
	ctx         context.Context
	ctrl        *gomock.Controller
	uploader    *mocks.MockUploader
	reprocessor *mocks.MockReprocessor
	registry    *registry.Registry
	pipeline    *Pipeline
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.uploader = mocks.NewMockUploader(s.ctrl)
	s.reprocessor = mocks.NewMockReprocessor(s.ctrl)
	s.registry = registry.New()
	p, err := New(s.registry, s.uploader, s.reprocessor, WithMetrics(metrics.New(prometheus.NewRegistry())))
	s.Require().NoError(err)
	s.pipeline = p
}

func (s *PipelineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PipelineSuite) add(localID models.LocalID) {
	_, err := s.registry.Add(s.ctx, registry.NewDescriptor{
		LocalID:  localID,
		DealID:   "deal-1",
		Type:     "RG",
		Category: models.CategorySeller,
		PersonID: "p1",
		Content:  []byte("scan-" + string(localID)),
	})
	s.Require().NoError(err)
}

func (s *PipelineSuite) status(localID models.LocalID) models.Status {
	d, err := s.registry.Get(localID)
	s.Require().NoError(err)
	return d.Status
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *PipelineSuite) TestNew() {
	s.Run("nil registry", func() {
		_, err := New(nil, s.uploader, s.reprocessor)
		s.ErrorContains(err, "registry is required")
	})
	s.Run("nil uploader", func() {
		_, err := New(s.registry, nil, s.reprocessor)
		s.ErrorContains(err, "uploader is required")
	})
	s.Run("chunk size option ignores non-positive values", func() {
		p, err := New(s.registry, s.uploader, s.reprocessor, WithChunkSize(0))
		s.Require().NoError(err)
		s.Equal(DefaultChunkSize, p.chunkSize)
	})
}

// =============================================================================
// Submission
// =============================================================================

func (s *PipelineSuite) TestSubmitSuccess() {
	s.add("l1")
	s.uploader.EXPECT().
		Upload(gomock.Any(), []byte("scan-l1"), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []byte, meta ports.UploadMetadata) (*ports.UploadResult, error) {
			s.Equal(models.DocumentType("RG"), meta.DeclaredType)
			s.Equal("deal-1", meta.DealID)
			return &ports.UploadResult{Success: true, RemoteID: "R1", ProcessingHash: "h1"}, nil
		})

	summary := s.pipeline.SubmitPending(s.ctx)
	s.Equal(Summary{Submitted: 1}, summary)
	s.Equal(models.StatusProcessing, s.status("l1"))

	local, ok := s.registry.IDs().Local("R1")
	s.True(ok)
	s.Equal(models.LocalID("l1"), local)

	s.Run("already attempted descriptors are not resubmitted", func() {
		s.Equal(Summary{}, s.pipeline.SubmitPending(s.ctx))
	})
}

func (s *PipelineSuite) TestSubmitFailureAllowsRetry() {
	s.add("l1")
	gomock.InOrder(
		s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &ports.TransientNetworkError{Op: "upload", Err: errors.New("connection reset")}),
		s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&ports.UploadResult{Success: true, RemoteID: "R1"}, nil),
	)

	summary := s.pipeline.SubmitPending(s.ctx)
	s.Equal(1, summary.Failed)

	d, err := s.registry.Get("l1")
	s.Require().NoError(err)
	s.Equal(models.StatusError, d.Status)
	s.Contains(d.ErrorMessage, "connection reset")

	s.Run("error is not retried automatically", func() {
		s.Equal(Summary{}, s.pipeline.SubmitPending(s.ctx))
	})

	s.Run("explicit retry resubmits", func() {
		_, err := s.registry.Retry(s.ctx, "l1")
		s.Require().NoError(err)
		summary := s.pipeline.SubmitPending(s.ctx)
		s.Equal(1, summary.Submitted)
		s.Equal(models.StatusProcessing, s.status("l1"))
	})
}

func (s *PipelineSuite) TestRejectedUploadFails() {
	s.add("l1")
	s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.UploadResult{Success: false}, nil)

	s.pipeline.SubmitPending(s.ctx)
	s.Equal(models.StatusError, s.status("l1"))
}

func (s *PipelineSuite) TestRetriedRemoteDescriptorIsReprocessed() {
	s.add("l1")
	_, err := s.registry.Claim(s.ctx, "l1")
	s.Require().NoError(err)
	_, err = s.registry.MarkUploaded(s.ctx, "l1", "R1", "")
	s.Require().NoError(err)
	s.registry.Reconcile(s.ctx, models.StatusUpdate{RemoteID: "R1", Status: models.StatusError, ErrorMessage: "blurry"})
	_, err = s.registry.Retry(s.ctx, "l1")
	s.Require().NoError(err)

	s.reprocessor.EXPECT().BatchReprocess(gomock.Any(), []string{"R1"}).
		Return(&ports.BatchResult{StillProcessing: 1}, nil)

	summary := s.pipeline.SubmitPending(s.ctx)
	s.Equal(1, summary.Submitted)
	s.Equal(models.StatusProcessing, s.status("l1"))
}

func (s *PipelineSuite) TestCachedUploadRunsHook() {
	var hooked atomic.Int32
	p, err := New(s.registry, s.uploader, s.reprocessor, WithCachedUploadHook(func(_ context.Context, d *models.Descriptor) {
		s.Equal("R1", d.RemoteID)
		hooked.Add(1)
	}))
	s.Require().NoError(err)

	s.add("l1")
	s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.UploadResult{Success: true, RemoteID: "R1", Cached: true}, nil)

	p.SubmitPending(s.ctx)
	s.Equal(int32(1), hooked.Load())
}

// =============================================================================
// Concurrency
// =============================================================================

func (s *PipelineSuite) TestChunksRunSequentially() {
	for _, id := range []models.LocalID{"a", "b", "c", "d", "e", "f", "g"} {
		s.add(id)
	}

	var mu sync.Mutex
	completed, active, maxActive := 0, 0, 0
	var completedAtStart []int

	s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Times(7).
		DoAndReturn(func(_ context.Context, content []byte, _ ports.UploadMetadata) (*ports.UploadResult, error) {
			mu.Lock()
			completedAtStart = append(completedAtStart, completed)
			active++
			maxActive = max(maxActive, active)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			completed++
			mu.Unlock()
			return &ports.UploadResult{Success: true, RemoteID: "R-" + string(content)}, nil
		})

	summary := s.pipeline.SubmitPending(s.ctx)
	s.Equal(7, summary.Submitted)
	s.LessOrEqual(maxActive, DefaultChunkSize)

	perChunk := map[int]int{}
	for _, c := range completedAtStart {
		perChunk[c/DefaultChunkSize]++
	}
	s.Equal(map[int]int{0: 3, 1: 3, 2: 1}, perChunk, "a chunk starts only after the previous one settled")
}

func (s *PipelineSuite) TestConcurrentPassesSubmitOnce() {
	s.add("a")
	s.add("b")

	release := make(chan struct{})
	s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, content []byte, _ ports.UploadMetadata) (*ports.UploadResult, error) {
			<-release
			return &ports.UploadResult{Success: true, RemoteID: "R-" + string(content)}, nil
		})

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pipeline.SubmitPending(s.ctx)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(models.StatusProcessing, s.status("a"))
	s.Equal(models.StatusProcessing, s.status("b"))
}

func (s *PipelineSuite) TestRunDrainsOnNotify() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go s.pipeline.Run(ctx)

	s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.UploadResult{Success: true, RemoteID: "R1"}, nil)

	s.add("l1")
	s.pipeline.Notify()
	s.pipeline.Notify()

	s.Eventually(func() bool {
		d, err := s.registry.Get("l1")
		return err == nil && d.Status == models.StatusProcessing
	}, time.Second, 5*time.Millisecond)
}

// =============================================================================
// Batch reprocess
// =============================================================================

func (s *PipelineSuite) TestReprocess() {
	s.reprocessor.EXPECT().BatchReprocess(gomock.Any(), []string{"R1", "R2"}).
		Return(&ports.BatchResult{Processed: 2}, nil)

	res, err := s.pipeline.Reprocess(s.ctx, []string{"R1", " R2 ", "R1", ""})
	s.Require().NoError(err)
	s.Equal(2, res.Processed)

	s.Run("empty input is a no-op", func() {
		res, err := s.pipeline.Reprocess(s.ctx, nil)
		s.Require().NoError(err)
		s.Equal(ports.BatchResult{}, *res)
	})

	s.Run("service error is wrapped", func() {
		s.reprocessor.EXPECT().BatchReprocess(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))
		_, err := s.pipeline.Reprocess(s.ctx, []string{"R3"})
		s.ErrorContains(err, "batch reprocess")
	})
}

// unrecordedRegistry accepts uploads from the service but cannot record them.
type unrecordedRegistry struct {
	*registry.Registry
}

func (unrecordedRegistry) MarkUploaded(context.Context, models.LocalID, string, string) (*models.Descriptor, error) {
	return nil, errors.New("registry unavailable")
}

func (s *PipelineSuite) TestUnrecordedUploadFailsAndCanRetry() {
	s.add("l1")
	p, err := New(unrecordedRegistry{s.registry}, s.uploader, s.reprocessor)
	s.Require().NoError(err)
	s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.UploadResult{Success: true, RemoteID: "R1"}, nil)

	s.Equal(Summary{Failed: 1}, p.SubmitPending(s.ctx))
	d, err := s.registry.Get("l1")
	s.Require().NoError(err)
	s.Equal(models.StatusError, d.Status)
	s.Equal("registry unavailable", d.ErrorMessage)

	s.Run("explicit retry is picked up again", func() {
		_, err := s.registry.Retry(s.ctx, "l1")
		s.Require().NoError(err)
		s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("still down"))
		s.Equal(Summary{Failed: 1}, p.SubmitPending(s.ctx))
	})
}

func (s *PipelineSuite) TestAckWithoutRemoteIDFails() {
	s.add("l1")
	s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.UploadResult{Success: true}, nil)

	s.Equal(Summary{Failed: 1}, s.pipeline.SubmitPending(s.ctx))
	d, err := s.registry.Get("l1")
	s.Require().NoError(err)
	s.Equal(models.StatusError, d.Status)
	s.Empty(d.RemoteID)
}

func (s *PipelineSuite) TestMissingPayloadFailsWithoutUpload() {
	_, err := s.registry.Add(s.ctx, registry.NewDescriptor{
		LocalID:  "empty",
		DealID:   "deal-1",
		Type:     "MATRICULA",
		Category: models.CategoryProperty,
	})
	s.Require().NoError(err)

	s.Equal(Summary{Failed: 1}, s.pipeline.SubmitPending(s.ctx))
	d, err := s.registry.Get("empty")
	s.Require().NoError(err)
	s.Equal(models.StatusError, d.Status)
	s.Equal(errPayloadUnavailable.Error(), d.ErrorMessage)
}
