// Package report управляет жизненным циклом отчёта: приём фотографий,
// параллельный анализ комнат vision-моделью, сборка PDF, атомарное
// сохранение с расходом кредита, доступ к готовым отчётам, подпись,
// share-ссылки и постановка писем в очередь.
package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/dataweaveai/condition-report/internal/cache"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/lib/token"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/rabbitmq"
	"github.com/dataweaveai/condition-report/internal/services/entitlement"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
	"github.com/dataweaveai/condition-report/internal/vision"
)

// Ошибки жизненного цикла отчёта.
var (
	ErrForbidden  = errors.New("report belongs to another user")
	ErrBadPayload = errors.New("malformed payload")
)

// PaywallError отказ в генерации с решением для тела ответа 402.
type PaywallError struct {
	Decision entitlement.Decision
}

func (e *PaywallError) Error() string {
	return "generation not allowed: " + e.Decision.Reason
}

// Repository контракт хранилища для отчётов.
type Repository interface {
	CreateReportAndConsume(ctx context.Context, report *models.Report, isPro bool) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReportsByFingerprint(ctx context.Context, fingerprint string, limit int) ([]models.ReportListItem, error)
	CreateShareToken(ctx context.Context, token *models.ShareToken) error
	GetShareToken(ctx context.Context, token string) (*models.ShareToken, error)
}

// VisionClient контракт анализатора фотографий.
type VisionClient interface {
	AnalyzeRoom(ctx context.Context, roomName, inspectionType string, photos [][]byte) (*models.RoomAnalysis, error)
}

// Renderer контракт сборщика PDF.
type Renderer interface {
	RenderToFile(report *models.Report, path string) error
}

type Service struct {
	repo      Repository
	vision    VisionClient
	renderer  Renderer
	cache     *cache.Cache
	channel   *amqp.Channel
	uploadDir string
	reportDir string
	workers   int
	log       *slog.Logger
}

func New(repo Repository, visionClient VisionClient, renderer Renderer, c *cache.Cache,
	channel *amqp.Channel, uploadDir, reportDir string, workers int, log *slog.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		repo:      repo,
		vision:    visionClient,
		renderer:  renderer,
		cache:     c,
		channel:   channel,
		uploadDir: uploadDir,
		reportDir: reportDir,
		workers:   workers,
		log:       log,
	}
}

// SavePhoto сохраняет загруженный файл под случайным именем в каталоге
// загрузок и возвращает описание для последующего запроса анализа.
func (s *Service) SavePhoto(filename string, data []byte) (models.UploadedPhotoItem, error) {
	const op = "report.SavePhoto"

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		ext = ".jpg"
	}
	name := uuid.NewString() + ext
	path := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.UploadedPhotoItem{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.UploadedPhotoItem{
		Filename: filename,
		Path:     path,
		Size:     len(data),
	}, nil
}

// Analyze генерирует отчёт: проверяет право на генерацию, анализирует
// комнаты пулом воркеров, собирает PDF и атомарно сохраняет отчёт с
// расходом кредита. Комнаты сверх предела пробного отчёта молча
// отбрасываются. После начала анализа отмена клиентского запроса не
// прерывает работу: кредит расходуется, отчёт досоздаётся.
func (s *Service) Analyze(ctx context.Context, user *models.UserContext, req *models.AnalyzeRequest) (*models.Report, error) {
	const op = "report.Analyze"

	decision := entitlement.CanGenerate(user)
	if !decision.Allowed {
		return nil, &PaywallError{Decision: decision}
	}

	rooms := req.Rooms
	if decision.RoomCap > 0 && len(rooms) > decision.RoomCap {
		s.log.Info("truncating rooms to trial cap",
			"fingerprint", user.Fingerprint, "requested", len(rooms), "cap", decision.RoomCap)
		rooms = rooms[:decision.RoomCap]
	}

	reportType := req.ReportType
	if reportType == "" {
		reportType = models.ReportTypeMoveIn
	}

	ctx = context.WithoutCancel(ctx)
	results := s.analyzeRooms(ctx, rooms, reportType)

	report := &models.Report{
		ID:           uuid.NewString(),
		Fingerprint:  user.Fingerprint,
		ReportType:   reportType,
		PropertyInfo: req.PropertyInfo,
		Rooms:        results,
		CreatedAt:    time.Now().UTC(),
	}
	if user.Email != "" {
		email := user.Email
		report.Email = &email
	}
	report.PDFPath = filepath.Join(s.reportDir, report.ID+".pdf")

	if err := s.renderer.RenderToFile(report, report.PDFPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.CreateReportAndConsume(ctx, report, user.IsPro()); err != nil {
		if errors.Is(err, repository.ErrCreditExhausted) {
			return nil, &PaywallError{Decision: entitlement.Decision{
				Allowed: false,
				Reason:  entitlement.ReasonLimitReached,
			}}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Invalidate(ctx, cache.ReportListKey(user.Fingerprint)); err != nil {
		s.log.Warn("failed to invalidate report list cache", sl.Err(err))
	}

	s.log.Info("report generated",
		"report_id", report.ID, "rooms", len(results), "reason", decision.Reason)
	return report, nil
}

// analyzeRooms прогоняет комнаты через пул воркеров и возвращает
// результаты в исходном порядке. Неудача анализа одной комнаты даёт
// комнату-заглушку, а не срыв всего отчёта.
func (s *Service) analyzeRooms(ctx context.Context, rooms []models.AnalyzeRoomRequest, reportType string) []models.RoomResult {
	results := make([]models.RoomResult, len(rooms))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.analyzeOne(ctx, rooms[i], reportType)
			}
		}()
	}
	for i := range rooms {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (s *Service) analyzeOne(ctx context.Context, room models.AnalyzeRoomRequest, reportType string) models.RoomResult {
	result := models.RoomResult{
		Name:       room.RoomName,
		PhotoCount: len(room.Photos),
	}

	photos := make([][]byte, 0, len(room.Photos))
	for _, item := range room.Photos {
		data, err := s.readUpload(item.Path)
		if err != nil {
			s.log.Warn("skipping unreadable photo", "path", item.Path, sl.Err(err))
			continue
		}
		photos = append(photos, data)
		result.PhotoPaths = append(result.PhotoPaths, item.Path)
	}
	if len(photos) == 0 {
		result.Analysis = *vision.ErrorAnalysis("no readable photos were provided")
		return result
	}

	analysis, err := s.vision.AnalyzeRoom(ctx, room.RoomName, reportType, photos)
	if err != nil {
		s.log.Error("room analysis failed", "room", room.RoomName, sl.Err(err))
		result.Analysis = *vision.ErrorAnalysis(err.Error())
		return result
	}
	result.Analysis = *analysis
	return result
}

// readUpload читает файл строго внутри каталога загрузок.
func (s *Service) readUpload(path string) ([]byte, error) {
	const op = "report.readUpload"

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	base, err := filepath.Abs(s.uploadDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s: %w", op, ErrBadPayload)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// Get возвращает отчёт после проверки права доступа.
func (s *Service) Get(ctx context.Context, user *models.UserContext, id string) (*models.Report, error) {
	const op = "report.Get"

	report, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !entitlement.CanAccess(report, user, nil) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	return report, nil
}

// PDF возвращает байты PDF-артефакта после проверки права доступа.
func (s *Service) PDF(ctx context.Context, user *models.UserContext, id string) ([]byte, error) {
	const op = "report.PDF"

	report, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(report.PDFPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// List возвращает краткий список отчётов устройства, через кэш.
func (s *Service) List(ctx context.Context, fingerprint string, limit int) ([]models.ReportListItem, error) {
	const op = "report.List"

	key := cache.ReportListKey(fingerprint)
	var cached []models.ReportListItem
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("report list cache read failed", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	items, err := s.repo.ListReportsByFingerprint(ctx, fingerprint, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, key, items, 5*time.Minute); err != nil {
		s.log.Warn("report list cache write failed", sl.Err(err))
	}
	return items, nil
}

// AttachSignature декодирует data-url с PNG-подписью, сохраняет её
// рядом с артефактом и пересобирает PDF на том же месте.
func (s *Service) AttachSignature(ctx context.Context, user *models.UserContext, id, dataURL string) error {
	const op = "report.AttachSignature"

	report, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}

	payload := dataURL
	if idx := strings.Index(payload, ","); idx >= 0 {
		payload = payload[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrBadPayload)
	}

	sigPath := filepath.Join(s.reportDir, report.ID+"_sig.png")
	if err := os.WriteFile(sigPath, raw, 0o644); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.renderer.RenderToFile(report, report.PDFPath); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("signature attached, artifact regenerated", "report_id", report.ID)
	return nil
}

// CreateShareToken выдаёт share-ссылку на отчёт сроком на 7 дней.
// Токенов на один отчёт может быть несколько.
func (s *Service) CreateShareToken(ctx context.Context, user *models.UserContext, reportID string) (*models.ShareToken, error) {
	const op = "report.CreateShareToken"

	report, err := s.Get(ctx, user, reportID)
	if err != nil {
		return nil, err
	}

	value, err := token.New(32)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	share := &models.ShareToken{
		Token:       value,
		ReportID:    report.ID,
		Fingerprint: user.Fingerprint,
		ExpiresAt:   time.Now().UTC().Add(models.ShareTokenTTL),
	}
	if err := s.repo.CreateShareToken(ctx, share); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return share, nil
}

// ResolveShareToken возвращает PDF отчёта по share-токену без проверки
// личности. Неизвестный и истёкший токены неотличимы для клиента.
func (s *Service) ResolveShareToken(ctx context.Context, tokenValue string) ([]byte, *models.Report, error) {
	const op = "report.ResolveShareToken"

	share, err := s.repo.GetShareToken(ctx, tokenValue)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if time.Now().UTC().After(share.ExpiresAt) {
		return nil, nil, fmt.Errorf("%s: %w", op, repository.ErrNoRows)
	}
	report, err := s.repo.GetReport(ctx, share.ReportID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	data, err := os.ReadFile(report.PDFPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, report, nil
}

// EmailReport ставит задание на отправку отчёта почтой в очередь.
func (s *Service) EmailReport(ctx context.Context, user *models.UserContext, reportID, email string) error {
	const op = "report.EmailReport"

	if _, err := s.Get(ctx, user, reportID); err != nil {
		return err
	}
	job := models.EmailJob{ReportID: reportID, Email: email}
	if err := rabbitmq.PublishMessage(s.channel, rabbitmq.ReportsExchange, rabbitmq.EmailRoutingKey, job); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("email job queued", "report_id", reportID)
	return nil
}
