package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"learnhub/backend/cache"
	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/storage"
	"learnhub/backend/utils"

	gojson "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := utils.OpenTestDB()
	require.NoError(t, err)
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	cfg := &config.Config{
		JWTSecret:            "test-secret",
		JWTTTLHours:          1,
		PlatformFeePercent:   25,
		PaymentWebhookSecret: "hook-secret",
	}

	app := fiber.New(fiber.Config{
		JSONEncoder:  gojson.Marshal,
		JSONDecoder:  gojson.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error { return utils.HandleError(c, err) },
	})
	SetupRoutes(app, Deps{
		DB:        db,
		Cfg:       cfg,
		Blobs:     blobs,
		Summaries: cache.NopRatingSummaryCache{},
		Log:       utils.NewNopLogger(),
	})
	return &testEnv{app: app, db: db, cfg: cfg}
}

type response struct {
	status int
	body   map[string]interface{}
	raw    []byte
}

func (r response) data() map[string]interface{} {
	d, _ := r.body["data"].(map[string]interface{})
	return d
}

func (e *testEnv) send(t *testing.T, method, path, token string, headers map[string]string, body io.Reader) response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, raw: raw}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) response {
	t.Helper()
	var reader io.Reader
	headers := map[string]string{}
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
		headers["Content-Type"] = "application/json"
	}
	return e.send(t, method, path, token, headers, reader)
}

// uploadVideos sends the multipart video batch request.
func (e *testEnv) uploadVideos(t *testing.T, courseID uint, token string, fields map[string]interface{}, files map[string][]string) response {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for name, value := range fields {
		payload, err := json.Marshal(value)
		require.NoError(t, err)
		require.NoError(t, w.WriteField(name, string(payload)))
	}
	for field, names := range files {
		for _, name := range names {
			part, err := w.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = part.Write([]byte("content of " + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return e.send(t, "PUT", fmt.Sprintf("/api/instructor/courses/%d/videos", courseID), token,
		map[string]string{"Content-Type": w.FormDataContentType()}, buf)
}

func (e *testEnv) register(t *testing.T, email, role string) (string, uint) {
	t.Helper()
	resp := e.do(t, "POST", "/api/auth/register", "", map[string]string{
		"first_name": "Test",
		"last_name":  "User",
		"email":      email,
		"password":   "secret123",
		"role":       role,
	})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	user := resp.data()["user"].(map[string]interface{})
	return resp.data()["token"].(string), uint(user["ID"].(float64))
}

func (e *testEnv) admin(t *testing.T) string {
	t.Helper()
	u := models.User{FirstName: "Root", LastName: "Admin", Email: "admin@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, e.db.Create(&u).Error)
	token, err := utils.GenerateJWTToken(u.ID, u.Role, e.cfg)
	require.NoError(t, err)
	return token
}

func (e *testEnv) category(t *testing.T, adminToken, name string) uint {
	t.Helper()
	resp := e.do(t, "POST", "/api/admin/categories", adminToken, map[string]string{"name": name})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	return uint(resp.data()["id"].(float64))
}

func (e *testEnv) createCourse(t *testing.T, token string, body map[string]interface{}) uint {
	t.Helper()
	resp := e.do(t, "POST", "/api/instructor/courses", token, body)
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	return uint(resp.data()["id"].(float64))
}

func videoIDs(t *testing.T, resp response) []uint {
	t.Helper()
	var ids []uint
	for _, v := range resp.data()["videos"].([]interface{}) {
		ids = append(ids, uint(v.(map[string]interface{})["id"].(float64)))
	}
	return ids
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "POST", "/api/auth/register", "", map[string]string{
		"first_name": "A", "last_name": "B", "email": "not-an-email", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body["details"], "email")

	resp = e.do(t, "POST", "/api/auth/register", "", map[string]string{
		"first_name": "A", "last_name": "B", "email": "root@example.com", "password": "secret123", "role": "admin",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.status)

	token, userID := e.register(t, "learner@example.com", "user")
	resp = e.do(t, "POST", "/api/auth/register", "", map[string]string{
		"first_name": "A", "last_name": "B", "email": "Learner@example.com", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = e.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "learner@example.com", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	resp = e.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "learner@example.com", "password": "secret123"})
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = e.do(t, "GET", "/api/me", token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "learner@example.com", resp.data()["email"])

	adminToken := e.admin(t)
	resp = e.do(t, "POST", fmt.Sprintf("/api/admin/users/%d/block", userID), adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)

	resp = e.do(t, "GET", "/api/me", token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	resp = e.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "learner@example.com", "password": "secret123"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = e.do(t, "GET", "/api/admin/users", token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)
}

func TestCourseLifecycle(t *testing.T) {
	e := newTestEnv(t)
	adminToken := e.admin(t)
	instructorToken, _ := e.register(t, "teacher@example.com", "instructor")
	learnerToken, _ := e.register(t, "learner@example.com", "user")
	categoryID := e.category(t, adminToken, "Go")

	resp := e.do(t, "POST", "/api/instructor/courses", learnerToken, map[string]interface{}{"title": "Nope", "category_id": categoryID})
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	courseID := e.createCourse(t, instructorToken, map[string]interface{}{"title": "Go Basics", "category_id": categoryID})

	resp = e.uploadVideos(t, courseID, instructorToken,
		map[string]interface{}{"new_videos_meta": []map[string]interface{}{{"title": "One", "order": 1}, {"title": "Two", "order": 2}}},
		map[string][]string{"new_videos": {"one.mp4", "two.mp4"}})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.raw))
	videos := videoIDs(t, resp)
	require.Len(t, videos, 2)

	resp = e.uploadVideos(t, courseID, instructorToken,
		map[string]interface{}{"new_videos_meta": []map[string]interface{}{{"title": "Dup", "order": 1}}},
		map[string][]string{"new_videos": {"dup.mp4"}})
	assert.Equal(t, fiber.StatusConflict, resp.status)
	details := resp.body["details"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(1)}, details["duplicate_orders"])

	resp = e.uploadVideos(t, courseID, instructorToken,
		map[string]interface{}{"new_videos_meta": []map[string]interface{}{{"title": "Lonely", "order": 3}}},
		nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.status)

	resp = e.do(t, "POST", fmt.Sprintf("/api/instructor/courses/%d/publish", courseID), instructorToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)

	resp = e.do(t, "POST", fmt.Sprintf("/api/courses/%d/rate", courseID), learnerToken, map[string]interface{}{"rating": 5})
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	assert.Equal(t, "not enrolled", resp.body["message"])

	resp = e.do(t, "POST", fmt.Sprintf("/api/courses/%d/enroll", courseID), learnerToken, nil)
	require.Equal(t, fiber.StatusCreated, resp.status)

	resp = e.do(t, "GET", fmt.Sprintf("/api/courses/%d/can-rate", courseID), learnerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, false, resp.data()["can_rate"])
	assert.Equal(t, "course not completed", resp.data()["reason"])

	resp = e.do(t, "GET", fmt.Sprintf("/api/videos/%d/content", videos[0]), learnerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "content of one.mp4", string(resp.raw))

	for _, id := range videos {
		resp = e.do(t, "POST", fmt.Sprintf("/api/videos/%d/progress", id), learnerToken, map[string]bool{"watched": true})
		require.Equal(t, fiber.StatusOK, resp.status)
	}

	resp = e.do(t, "GET", fmt.Sprintf("/api/courses/%d/progress", courseID), learnerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, 100.0, resp.data()["completion_percentage"])
	assert.Equal(t, true, resp.data()["is_completed"])

	resp = e.do(t, "POST", fmt.Sprintf("/api/courses/%d/rate", courseID), learnerToken, map[string]interface{}{"rating": 5, "comment": "great"})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.raw))
	resp = e.do(t, "POST", fmt.Sprintf("/api/courses/%d/rate", courseID), learnerToken, map[string]interface{}{"rating": 4})
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = e.do(t, "GET", fmt.Sprintf("/api/courses/%d/rating-summary", courseID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, 5.0, resp.data()["average_rating"])
	assert.Equal(t, 1.0, resp.data()["total_ratings"])

	resp = e.do(t, "GET", "/api/courses?search=basics", "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, 1.0, resp.body["total"])

	resp = e.do(t, "GET", fmt.Sprintf("/api/courses/%d", courseID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	course := resp.data()["course"].(map[string]interface{})
	assert.Len(t, course["videos"], 2)

	resp = e.do(t, "POST", fmt.Sprintf("/api/instructor/courses/%d/unpublish", courseID), instructorToken, nil)
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = e.do(t, "DELETE", fmt.Sprintf("/api/instructor/courses/%d/videos", courseID), instructorToken, map[string]interface{}{"video_ids": videos})
	assert.Equal(t, fiber.StatusForbidden, resp.status)
}

func TestPaidCourseSettlement(t *testing.T) {
	e := newTestEnv(t)
	adminToken := e.admin(t)
	instructorToken, _ := e.register(t, "teacher@example.com", "instructor")
	learnerToken, _ := e.register(t, "learner@example.com", "user")
	categoryID := e.category(t, adminToken, "Data")

	courseID := e.createCourse(t, instructorToken, map[string]interface{}{
		"title": "SQL", "category_id": categoryID, "is_paid": true, "price": 100,
	})
	resp := e.uploadVideos(t, courseID, instructorToken,
		map[string]interface{}{"new_videos_meta": []map[string]interface{}{{"title": "Intro"}}},
		map[string][]string{"new_videos": {"intro.mp4"}})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.raw))
	resp = e.do(t, "POST", fmt.Sprintf("/api/instructor/courses/%d/publish", courseID), instructorToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)

	resp = e.do(t, "POST", fmt.Sprintf("/api/courses/%d/enroll", courseID), learnerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = e.do(t, "POST", fmt.Sprintf("/api/courses/%d/purchase", courseID), learnerToken, nil)
	require.Equal(t, fiber.StatusCreated, resp.status)
	txn := resp.data()["transaction_id"].(string)

	settlePath := "/api/payments/" + txn + "/settle"
	resp = e.do(t, "POST", settlePath, "", map[string]interface{}{"success": true})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	payload, err := json.Marshal(map[string]interface{}{"success": true, "gateway_response": map[string]string{"val_id": "v-1"}})
	require.NoError(t, err)
	resp = e.send(t, "POST", settlePath, "", map[string]string{
		"Content-Type":     "application/json",
		"X-Gateway-Secret": "hook-secret",
	}, bytes.NewReader(payload))
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.raw))
	assert.Equal(t, "success", resp.data()["status"])

	resp = e.do(t, "GET", "/api/me/enrollments", learnerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"], 1)

	resp = e.do(t, "GET", "/api/admin/revenue", adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, 100.0, resp.data()["gross"])
	assert.Equal(t, 25.0, resp.data()["admin_share"])
	assert.Equal(t, 75.0, resp.data()["instructor_share"])
}
