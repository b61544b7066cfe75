package services

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"learnhub/backend/models"
	"learnhub/backend/storage"
	"learnhub/backend/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	blobDir string
	content *ContentManager
	ledger  *ProgressLedger
	gate    *RatingGate
	enroll  *EnrollmentService
	admin   *AdminService
	cache   *memorySummaryCache

	instructor Actor
	learner    Actor
	adminActor Actor
	category   models.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := utils.OpenTestDB()
	require.NoError(t, err)
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	log := utils.NewNopLogger()
	summaries := newMemorySummaryCache()

	f := &fixture{
		db:      db,
		blobDir: dir,
		content: NewContentManager(db, store, log),
		ledger:  NewProgressLedger(db, log),
		gate:    NewRatingGate(db, summaries, log),
		enroll:  NewEnrollmentService(db, log),
		admin:   NewAdminService(db, 25, log),
		cache:   summaries,
	}
	f.instructor = f.user(t, "Ada", "ada@example.com", models.RoleInstructor)
	f.learner = f.user(t, "Linus", "linus@example.com", models.RoleUser)
	f.adminActor = f.user(t, "Root", "root@example.com", models.RoleAdmin)
	f.category = models.Category{Name: "Programming"}
	require.NoError(t, db.Create(&f.category).Error)
	return f
}

func (f *fixture) user(t *testing.T, name, email string, role models.Role) Actor {
	t.Helper()
	u := models.User{FirstName: name, LastName: "Test", Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, f.db.Create(&u).Error)
	return Actor{UserID: u.ID, Role: role}
}

func (f *fixture) course(t *testing.T, owner Actor) *models.Course {
	t.Helper()
	c, err := f.content.CreateCourse(context.Background(), owner, CourseInput{
		Title:      "Go in Practice",
		CategoryID: f.category.ID,
	})
	require.NoError(t, err)
	return c
}

func intp(i int) *int { return &i }

func strp(s string) *string { return &s }

func upload(name string) Upload {
	return Upload{Filename: name, Body: strings.NewReader("data:" + name)}
}

// appendVideos adds videos with the given orders and returns them sorted.
func (f *fixture) appendVideos(t *testing.T, courseID uint, orders ...int) []models.Video {
	t.Helper()
	var batch VideoBatch
	for i, o := range orders {
		batch.NewVideos = append(batch.NewVideos, upload("part.mp4"))
		batch.NewVideoMeta = append(batch.NewVideoMeta, NewVideoMeta{Title: "Part " + string(rune('A'+i)), Order: intp(o)})
	}
	res, err := f.content.ManageVideos(context.Background(), f.instructor, courseID, batch)
	require.NoError(t, err)
	return res.Videos
}

// publishedWithLearner publishes a free course with n videos and enrolls the
// learner.
func (f *fixture) publishedWithLearner(t *testing.T, n int) (*models.Course, []models.Video) {
	t.Helper()
	ctx := context.Background()
	c := f.course(t, f.instructor)
	orders := make([]int, n)
	for i := range orders {
		orders[i] = i + 1
	}
	videos := f.appendVideos(t, c.ID, orders...)
	_, err := f.content.SetPublished(ctx, f.instructor, c.ID, true)
	require.NoError(t, err)
	_, err = f.enroll.EnrollFree(ctx, f.learner.UserID, c.ID)
	require.NoError(t, err)
	return c, videos
}

func (f *fixture) watchAll(t *testing.T, userID uint, videos []models.Video) {
	t.Helper()
	for _, v := range videos {
		_, err := f.ledger.Report(context.Background(), userID, v.ID, true)
		require.NoError(t, err)
	}
}

func blobCount(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

type memorySummaryCache struct {
	mu          sync.Mutex
	items       map[uint]models.RatingSummary
	invalidated int
}

func newMemorySummaryCache() *memorySummaryCache {
	return &memorySummaryCache{items: map[uint]models.RatingSummary{}}
}

func (c *memorySummaryCache) Get(_ context.Context, courseID uint) (*models.RatingSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[courseID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *memorySummaryCache) Set(_ context.Context, s models.RatingSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[s.CourseID] = s
	return nil
}

func (c *memorySummaryCache) Invalidate(_ context.Context, courseID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, courseID)
	c.invalidated++
	return nil
}
