//go:build integration

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	authService "github.com/japanesestudent/media-uploader/internal/auth/service"
	"github.com/japanesestudent/media-uploader/internal/config"
	"github.com/japanesestudent/media-uploader/internal/models"
	"github.com/japanesestudent/media-uploader/internal/repositories"
	"github.com/japanesestudent/media-uploader/internal/server"
	"github.com/japanesestudent/media-uploader/internal/services"
	"github.com/japanesestudent/media-uploader/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testDB     *sql.DB
	testRouter chi.Router
	testLogger *zap.Logger
	testToken  string
	mediaDir   string
)

// TestMain sets up and tears down the test environment
func TestMain(m *testing.M) {
	var err error
	testLogger, err = zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.LoadTestConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load test config: %v", err))
	}
	if !cfg.UseDatabase() {
		fmt.Println("TEST_DB_HOST is not set, skipping integration tests")
		os.Exit(0)
	}

	testDB, err = sql.Open("mysql", cfg.DSN()+"&multiStatements=true")
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to test database: %v", err))
	}
	if err = testDB.Ping(); err != nil {
		panic(fmt.Sprintf("Failed to ping test database: %v", err))
	}

	if err := migrateUp(testDB); err != nil {
		panic(fmt.Sprintf("Failed to run migrations: %v", err))
	}

	mediaDir, err = os.MkdirTemp("", "media-integration")
	if err != nil {
		panic(fmt.Sprintf("Failed to create media dir: %v", err))
	}

	tokens := authService.NewTokenGenerator("integration-secret", time.Hour)
	testToken, err = tokens.GenerateAccessToken("author-1")
	if err != nil {
		panic(fmt.Sprintf("Failed to generate token: %v", err))
	}

	local := storage.NewLocalStorage(mediaDir, "http://example.test", storage.NewURLSigner("url-secret", time.Hour))
	repo := repositories.NewMediaRepository(testDB, testLogger)
	media := services.NewMediaService(repo, local, "http://example.test", testLogger)
	testRouter = server.NewRouter(server.Options{
		Logger:    testLogger,
		Media:     media,
		Receiver:  local,
		Auth:      tokens,
		MaxUpload: 1 << 20,
	})

	code := m.Run()

	testDB.Close()
	os.RemoveAll(mediaDir)
	os.Exit(code)
}

// migrateUp applies the repository migrations to the test database
func migrateUp(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "media_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func cleanupTestData(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec("DELETE FROM media_assets")
	require.NoError(t, err, "Failed to clean up test data")
}

func serve(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if strings.HasPrefix(path, "/api/v1/courses") || strings.HasPrefix(path, "/api/v1/units") {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)
	return w
}

func TestIntegration_UnitUploadLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	defer cleanupTestData(t, testDB)

	payload, _ := json.Marshal(models.UploadIntentRequest{
		Kind:  models.MediaKindVideo,
		Files: []models.UploadIntentFile{{FileName: "lecture.mp4", FileType: "video/mp4", FileSize: 11}},
	})
	w := serve(t, http.MethodPost, "/api/v1/units/u1/media/uploads", payload)
	require.Equal(t, http.StatusCreated, w.Code)

	var intents models.UploadIntentResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&intents))
	require.Len(t, intents.Files, 1)
	entry := intents.Files[0]
	require.NotEmpty(t, entry.ID)

	uploadPath := strings.TrimPrefix(entry.UploadURL, "http://example.test")
	w = serve(t, http.MethodPut, uploadPath, []byte("video bytes"))
	require.Equal(t, http.StatusOK, w.Code)

	body, _ := json.Marshal(models.FinalizeRequest{FileSize: 11})
	w = serve(t, http.MethodPost, "/api/v1/units/u1/media/"+entry.ID+"/finalize", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(t, http.MethodGet, "/api/v1/units/u1/media", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var assets []models.MediaAsset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&assets))
	require.Len(t, assets, 1)
	assert.Equal(t, entry.ID, assets[0].ID)
	assert.Equal(t, models.AssetStatusReady, assets[0].Status)
	assert.Equal(t, int64(11), assets[0].SizeOrZero())

	w = serve(t, http.MethodGet, "/api/v1/media/"+entry.ID+"/content", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video bytes", w.Body.String())

	w = serve(t, http.MethodDelete, "/api/v1/units/u1/media/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = serve(t, http.MethodGet, "/api/v1/units/u1/media", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&assets))
	assert.Empty(t, assets)
}

func TestIntegration_FailedCourseUploadIsSwept(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	defer cleanupTestData(t, testDB)

	payload, _ := json.Marshal(models.UploadIntentRequest{
		Kind:  models.MediaKindSlide,
		Files: []models.UploadIntentFile{{FileName: "deck.pdf", FileType: "application/pdf"}},
	})
	w := serve(t, http.MethodPost, "/api/v1/courses/c1/media/uploads", payload)
	require.Equal(t, http.StatusCreated, w.Code)
	var intents models.UploadIntentResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&intents))
	slideID := intents.Files[0].SlideID

	body, _ := json.Marshal(models.UploadStatusRequest{Status: models.UploadStatusFailed})
	w = serve(t, http.MethodPost, "/api/v1/courses/c1/media/"+slideID+"/status", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(t, http.MethodGet, "/api/v1/courses/c1/media", nil)
	var assets []models.MediaAsset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&assets))
	assert.Empty(t, assets)

	local := storage.NewLocalStorage(mediaDir, "http://example.test", storage.NewURLSigner("url-secret", time.Hour))
	svc := services.NewMediaService(repositories.NewMediaRepository(testDB, testLogger), local, "http://example.test", testLogger)
	removed, err := svc.SweepOrphans(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var count int
	require.NoError(t, testDB.QueryRow("SELECT COUNT(*) FROM media_assets WHERE id = ?", slideID).Scan(&count))
	assert.Equal(t, 0, count)
}
