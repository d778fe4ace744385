package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dataweaveai/condition-report/internal/cache"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/services/entitlement"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// MockRepository реализует интерфейс report.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateReportAndConsume(ctx context.Context, report *models.Report, isPro bool) error {
	args := m.Called(ctx, report, isPro)
	return args.Error(0)
}

func (m *MockRepository) GetReport(ctx context.Context, id string) (*models.Report, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListReportsByFingerprint(ctx context.Context, fingerprint string, limit int) ([]models.ReportListItem, error) {
	args := m.Called(ctx, fingerprint, limit)
	if res := args.Get(0); res != nil {
		return res.([]models.ReportListItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) CreateShareToken(ctx context.Context, token *models.ShareToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRepository) GetShareToken(ctx context.Context, token string) (*models.ShareToken, error) {
	args := m.Called(ctx, token)
	if res := args.Get(0); res != nil {
		return res.(*models.ShareToken), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockVision реализует интерфейс report.VisionClient
type MockVision struct {
	mock.Mock
}

func (m *MockVision) AnalyzeRoom(ctx context.Context, roomName, inspectionType string, photos [][]byte) (*models.RoomAnalysis, error) {
	args := m.Called(ctx, roomName, inspectionType, photos)
	if res := args.Get(0); res != nil {
		return res.(*models.RoomAnalysis), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRenderer реализует интерфейс report.Renderer
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) RenderToFile(report *models.Report, path string) error {
	args := m.Called(report, path)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// deadCache возвращает кэш с недоступным Redis: промахи и ошибки кэша
// не должны влиять на результат.
func deadCache() *cache.Cache {
	return &cache.Cache{DB: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})}
}

func newTestService(t *testing.T, repo *MockRepository, vision *MockVision, renderer *MockRenderer) (*Service, string) {
	t.Helper()
	uploadDir := t.TempDir()
	reportDir := t.TempDir()
	svc := New(repo, vision, renderer, deadCache(), nil, uploadDir, reportDir, 3, testLogger())
	return svc, uploadDir
}

func writePhoto(t *testing.T, dir, name string) models.UploadedPhotoItem {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("jpegdata"), 0o644))
	return models.UploadedPhotoItem{Filename: name, Path: path, Size: 8}
}

func goodAnalysis() *models.RoomAnalysis {
	return &models.RoomAnalysis{
		OverallRating: models.RatingGood,
		Items:         []models.ChecklistItem{{Name: "Walls", Rating: models.RatingGood}},
		Summary:       "Fine.",
		Flags:         []string{},
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("исчерпанный лимит возвращает PaywallError до анализа", func(t *testing.T) {
		repo := new(MockRepository)
		vision := new(MockVision)
		renderer := new(MockRenderer)
		svc, uploadDir := newTestService(t, repo, vision, renderer)

		user := &models.UserContext{Fingerprint: "fp-1", Plan: models.PlanFree, ReportsUsed: 1}
		req := &models.AnalyzeRequest{Rooms: []models.AnalyzeRoomRequest{
			{RoomName: "Kitchen", Photos: []models.UploadedPhotoItem{writePhoto(t, uploadDir, "a.jpg")}},
		}}

		_, err := svc.Analyze(ctx, user, req)
		var paywall *PaywallError
		require.ErrorAs(t, err, &paywall)
		assert.Equal(t, entitlement.ReasonLimitReached, paywall.Decision.Reason)
		vision.AssertNotCalled(t, "AnalyzeRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("пробный отчёт обрезается до предела комнат", func(t *testing.T) {
		repo := new(MockRepository)
		vision := new(MockVision)
		renderer := new(MockRenderer)
		svc, uploadDir := newTestService(t, repo, vision, renderer)

		rooms := make([]models.AnalyzeRoomRequest, 6)
		for i := range rooms {
			rooms[i] = models.AnalyzeRoomRequest{
				RoomName: fmt.Sprintf("Room %d", i+1),
				Photos:   []models.UploadedPhotoItem{writePhoto(t, uploadDir, fmt.Sprintf("r%d.jpg", i))},
			}
		}

		vision.On("AnalyzeRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(goodAnalysis(), nil)
		renderer.On("RenderToFile", mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateReportAndConsume", mock.Anything, mock.Anything, false).Return(nil)

		user := &models.UserContext{Fingerprint: "fp-1", Plan: models.PlanFree, ReportsUsed: 0}
		got, err := svc.Analyze(ctx, user, &models.AnalyzeRequest{Rooms: rooms})
		require.NoError(t, err)
		assert.Len(t, got.Rooms, entitlement.FreeTrialRoomCap)
		assert.Equal(t, "Room 1", got.Rooms[0].Name)
	})

	t.Run("pro не ограничен по числу комнат", func(t *testing.T) {
		repo := new(MockRepository)
		vision := new(MockVision)
		renderer := new(MockRenderer)
		svc, uploadDir := newTestService(t, repo, vision, renderer)

		rooms := make([]models.AnalyzeRoomRequest, 6)
		for i := range rooms {
			rooms[i] = models.AnalyzeRoomRequest{
				RoomName: fmt.Sprintf("Room %d", i+1),
				Photos:   []models.UploadedPhotoItem{writePhoto(t, uploadDir, fmt.Sprintf("p%d.jpg", i))},
			}
		}

		vision.On("AnalyzeRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(goodAnalysis(), nil)
		renderer.On("RenderToFile", mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateReportAndConsume", mock.Anything, mock.Anything, true).Return(nil)

		user := &models.UserContext{Fingerprint: "fp-1", Plan: models.PlanPro, ReportsUsed: 40}
		got, err := svc.Analyze(ctx, user, &models.AnalyzeRequest{Rooms: rooms})
		require.NoError(t, err)
		assert.Len(t, got.Rooms, 6)
	})

	t.Run("неудача анализа одной комнаты даёт заглушку", func(t *testing.T) {
		repo := new(MockRepository)
		vision := new(MockVision)
		renderer := new(MockRenderer)
		svc, uploadDir := newTestService(t, repo, vision, renderer)

		rooms := []models.AnalyzeRoomRequest{
			{RoomName: "Kitchen", Photos: []models.UploadedPhotoItem{writePhoto(t, uploadDir, "k.jpg")}},
			{RoomName: "Bathroom", Photos: []models.UploadedPhotoItem{writePhoto(t, uploadDir, "b.jpg")}},
		}

		vision.On("AnalyzeRoom", mock.Anything, "Kitchen", mock.Anything, mock.Anything).
			Return(goodAnalysis(), nil)
		vision.On("AnalyzeRoom", mock.Anything, "Bathroom", mock.Anything, mock.Anything).
			Return(nil, errors.New("model overloaded"))
		renderer.On("RenderToFile", mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateReportAndConsume", mock.Anything, mock.Anything, false).Return(nil)

		user := &models.UserContext{Fingerprint: "fp-1", Plan: models.PlanFree}
		got, err := svc.Analyze(ctx, user, &models.AnalyzeRequest{Rooms: rooms})
		require.NoError(t, err)
		require.Len(t, got.Rooms, 2)
		assert.Equal(t, models.RatingGood, got.Rooms[0].Analysis.OverallRating)
		assert.Equal(t, models.RatingNA, got.Rooms[1].Analysis.OverallRating)
		assert.Contains(t, got.Rooms[1].Analysis.Flags, "Automated analysis failed for this room")
	})

	t.Run("фотографии вне каталога загрузок не читаются", func(t *testing.T) {
		repo := new(MockRepository)
		vision := new(MockVision)
		renderer := new(MockRenderer)
		svc, _ := newTestService(t, repo, vision, renderer)

		outside := filepath.Join(t.TempDir(), "secret.jpg")
		require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

		rooms := []models.AnalyzeRoomRequest{
			{RoomName: "Kitchen", Photos: []models.UploadedPhotoItem{{Filename: "secret.jpg", Path: outside}}},
		}
		renderer.On("RenderToFile", mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateReportAndConsume", mock.Anything, mock.Anything, false).Return(nil)

		user := &models.UserContext{Fingerprint: "fp-1", Plan: models.PlanFree}
		got, err := svc.Analyze(ctx, user, &models.AnalyzeRequest{Rooms: rooms})
		require.NoError(t, err)
		assert.Equal(t, models.RatingNA, got.Rooms[0].Analysis.OverallRating)
		vision.AssertNotCalled(t, "AnalyzeRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("проигранная гонка за кредит возвращает limit_reached", func(t *testing.T) {
		repo := new(MockRepository)
		vision := new(MockVision)
		renderer := new(MockRenderer)
		svc, uploadDir := newTestService(t, repo, vision, renderer)

		rooms := []models.AnalyzeRoomRequest{
			{RoomName: "Kitchen", Photos: []models.UploadedPhotoItem{writePhoto(t, uploadDir, "k.jpg")}},
		}
		vision.On("AnalyzeRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(goodAnalysis(), nil)
		renderer.On("RenderToFile", mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateReportAndConsume", mock.Anything, mock.Anything, false).
			Return(fmt.Errorf("storage: %w", repository.ErrCreditExhausted))

		user := &models.UserContext{Fingerprint: "fp-1", Plan: models.PlanFree}
		_, err := svc.Analyze(ctx, user, &models.AnalyzeRequest{Rooms: rooms})
		var paywall *PaywallError
		require.ErrorAs(t, err, &paywall)
		assert.Equal(t, entitlement.ReasonLimitReached, paywall.Decision.Reason)
	})
}

func TestSavePhoto(t *testing.T) {
	repo := new(MockRepository)
	svc, uploadDir := newTestService(t, repo, new(MockVision), new(MockRenderer))

	t.Run("файл сохраняется под случайным именем с исходным расширением", func(t *testing.T) {
		item, err := svc.SavePhoto("kitchen.PNG", []byte("data"))
		require.NoError(t, err)
		assert.Equal(t, "kitchen.PNG", item.Filename)
		assert.Equal(t, ".png", filepath.Ext(item.Path))
		assert.Equal(t, uploadDir, filepath.Dir(item.Path))
		assert.FileExists(t, item.Path)
	})

	t.Run("неизвестное расширение заменяется на jpg", func(t *testing.T) {
		item, err := svc.SavePhoto("payload.exe", []byte("data"))
		require.NoError(t, err)
		assert.Equal(t, ".jpg", filepath.Ext(item.Path))
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("чужой отчёт возвращает ErrForbidden", func(t *testing.T) {
		repo := new(MockRepository)
		svc, _ := newTestService(t, repo, new(MockVision), new(MockRenderer))

		repo.On("GetReport", mock.Anything, "rep-1").
			Return(&models.Report{ID: "rep-1", Fingerprint: "fp-other"}, nil)

		user := &models.UserContext{Fingerprint: "fp-1"}
		_, err := svc.Get(ctx, user, "rep-1")
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("владелец получает отчёт", func(t *testing.T) {
		repo := new(MockRepository)
		svc, _ := newTestService(t, repo, new(MockVision), new(MockRenderer))

		repo.On("GetReport", mock.Anything, "rep-1").
			Return(&models.Report{ID: "rep-1", Fingerprint: "fp-1"}, nil)

		user := &models.UserContext{Fingerprint: "fp-1"}
		got, err := svc.Get(ctx, user, "rep-1")
		require.NoError(t, err)
		assert.Equal(t, "rep-1", got.ID)
	})
}

func TestResolveShareToken(t *testing.T) {
	ctx := context.Background()

	t.Run("просроченный токен отказывает как неизвестный", func(t *testing.T) {
		repo := new(MockRepository)
		svc, _ := newTestService(t, repo, new(MockVision), new(MockRenderer))

		repo.On("GetShareToken", mock.Anything, "tok-expired").
			Return(&models.ShareToken{
				Token:     "tok-expired",
				ReportID:  "rep-1",
				ExpiresAt: time.Now().UTC().Add(-24 * time.Hour),
			}, nil)

		_, _, err := svc.ResolveShareToken(ctx, "tok-expired")
		require.ErrorIs(t, err, repository.ErrNoRows)
		repo.AssertNotCalled(t, "GetReport", mock.Anything, mock.Anything)
	})

	t.Run("действующий токен отдаёт PDF отчёта", func(t *testing.T) {
		repo := new(MockRepository)
		svc, _ := newTestService(t, repo, new(MockVision), new(MockRenderer))

		pdfPath := filepath.Join(t.TempDir(), "rep-1.pdf")
		require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-fake"), 0o644))

		repo.On("GetShareToken", mock.Anything, "tok-1").
			Return(&models.ShareToken{
				Token:     "tok-1",
				ReportID:  "rep-1",
				ExpiresAt: time.Now().UTC().Add(models.ShareTokenTTL),
			}, nil)
		repo.On("GetReport", mock.Anything, "rep-1").
			Return(&models.Report{ID: "rep-1", Fingerprint: "fp-1", PDFPath: pdfPath}, nil)

		data, got, err := svc.ResolveShareToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "rep-1", got.ID)
		assert.Equal(t, []byte("%PDF-fake"), data)
	})
}

func TestAttachSignature(t *testing.T) {
	ctx := context.Background()

	t.Run("невалидный base64 возвращает ErrBadPayload", func(t *testing.T) {
		repo := new(MockRepository)
		svc, _ := newTestService(t, repo, new(MockVision), new(MockRenderer))

		repo.On("GetReport", mock.Anything, "rep-1").
			Return(&models.Report{ID: "rep-1", Fingerprint: "fp-1"}, nil)

		user := &models.UserContext{Fingerprint: "fp-1"}
		err := svc.AttachSignature(ctx, user, "rep-1", "data:image/png;base64,not-valid!!!")
		require.ErrorIs(t, err, ErrBadPayload)
	})

	t.Run("валидная подпись сохраняется и отчёт пересобирается", func(t *testing.T) {
		repo := new(MockRepository)
		renderer := new(MockRenderer)
		svc, _ := newTestService(t, repo, new(MockVision), renderer)

		repo.On("GetReport", mock.Anything, "rep-1").
			Return(&models.Report{ID: "rep-1", Fingerprint: "fp-1", PDFPath: filepath.Join(t.TempDir(), "rep-1.pdf")}, nil)
		renderer.On("RenderToFile", mock.Anything, mock.Anything).Return(nil)

		user := &models.UserContext{Fingerprint: "fp-1"}
		err := svc.AttachSignature(ctx, user, "rep-1", "data:image/png;base64,aGVsbG8=")
		require.NoError(t, err)
		renderer.AssertExpectations(t)
	})
}
