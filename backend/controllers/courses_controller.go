package controllers

import (
	"mime/multipart"

	"learnhub/backend/apperr"
	"learnhub/backend/config"
	"learnhub/backend/services"
	"learnhub/backend/utils"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// Multipart field names of the video batch endpoint.
const (
	fieldEdits             = "edits"
	fieldNewVideosMeta     = "new_videos_meta"
	fieldReplacements      = "replacements"
	fieldNewVideos         = "new_videos"
	fieldReplacementVideos = "replacement_videos"
	fieldImage             = "image"
)

// CoursesController serves the instructor's course and video management.
type CoursesController struct {
	Content *services.ContentManager
	Cfg     *config.Config
}

func NewCoursesController(content *services.ContentManager, cfg *config.Config) *CoursesController {
	return &CoursesController{Content: content, Cfg: cfg}
}

func (cc *CoursesController) ListMyCourses(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	rows, err := cc.Content.ListOwnCourses(c.UserContext(), a)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, rows)
}

func (cc *CoursesController) GetMyCourse(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	course, err := cc.Content.OwnCourse(c.UserContext(), a, courseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, course)
}

// CreateCourse godoc
// @Summary Create course
// @Tags instructor
// @Accept json
// @Produce json
// @Param input body services.CourseInput true "Course data"
// @Success 201 {object} utils.SuccessResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /instructor/courses [post]
func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	var input services.CourseInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	course, err := cc.Content.CreateCourse(c.UserContext(), a, input)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, course)
}

func (cc *CoursesController) UpdateCourse(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	var input services.CourseUpdate
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	course, err := cc.Content.UpdateCourse(c.UserContext(), a, courseID, input)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, course)
}

func (cc *CoursesController) UploadImage(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	fh, err := c.FormFile(fieldImage)
	if err != nil {
		return utils.HandleError(c, apperr.Validation("image file is required"))
	}
	f, err := fh.Open()
	if err != nil {
		return utils.HandleError(c, apperr.Wrap(err, "open upload"))
	}
	defer f.Close()

	course, err := cc.Content.SetCourseImage(c.UserContext(), a, courseID, services.Upload{Filename: fh.Filename, Body: f})
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, course)
}

// ManageVideos godoc
// @Summary Edit, append and replace course videos in one batch
// @Description Multipart form. JSON fields: edits, new_videos_meta, replacements.
// @Description Files: new_videos (paired with new_videos_meta), replacement_videos (paired with replacements).
// @Tags instructor
// @Accept mpfd
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 403 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /instructor/courses/{id}/videos [put]
func (cc *CoursesController) ManageVideos(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return utils.BadRequest(c, "Expected multipart form")
	}

	var batch services.VideoBatch
	if err := decodeField(form, fieldEdits, &batch.Edits); err != nil {
		return utils.HandleError(c, err)
	}
	if err := decodeField(form, fieldNewVideosMeta, &batch.NewVideoMeta); err != nil {
		return utils.HandleError(c, err)
	}
	if err := decodeField(form, fieldReplacements, &batch.Replacements); err != nil {
		return utils.HandleError(c, err)
	}

	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	openAll := func(field string) ([]services.Upload, error) {
		var uploads []services.Upload
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, apperr.Wrap(err, "open upload")
			}
			opened = append(opened, f)
			uploads = append(uploads, services.Upload{Filename: fh.Filename, Body: f})
		}
		return uploads, nil
	}
	if batch.NewVideos, err = openAll(fieldNewVideos); err != nil {
		return utils.HandleError(c, err)
	}
	if batch.ReplacementFiles, err = openAll(fieldReplacementVideos); err != nil {
		return utils.HandleError(c, err)
	}

	result, err := cc.Content.ManageVideos(c.UserContext(), a, courseID, batch)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}

// decodeField unmarshals a JSON-valued form field into dst; a missing field
// leaves dst untouched.
func decodeField(form *multipart.Form, field string, dst interface{}) error {
	values := form.Value[field]
	if len(values) == 0 || values[0] == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(values[0]), dst); err != nil {
		return apperr.Validation("invalid JSON in form field").
			WithDetails(map[string]string{field: err.Error()})
	}
	return nil
}

type DeleteVideosRequest struct {
	VideoIDs []uint `json:"video_ids" validate:"required,min=1"`
}

func (cc *CoursesController) DeleteVideos(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	var input DeleteVideosRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := utils.Validate(input); err != nil {
		return utils.HandleError(c, err)
	}
	deleted, err := cc.Content.DeleteVideos(c.UserContext(), a, courseID, input.VideoIDs)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": deleted})
}

func (cc *CoursesController) DeleteCourse(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	if err := cc.Content.DeleteCourse(c.UserContext(), a, courseID); err != nil {
		return utils.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (cc *CoursesController) Publish(c *fiber.Ctx) error   { return cc.setPublished(c, true) }
func (cc *CoursesController) Unpublish(c *fiber.Ctx) error { return cc.setPublished(c, false) }

func (cc *CoursesController) setPublished(c *fiber.Ctx, publish bool) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	courseID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid course ID")
	}
	course, err := cc.Content.SetPublished(c.UserContext(), a, courseID, publish)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, course)
}

// StreamVideo отдает содержимое видео владельцу курса или записанному студенту
func (cc *CoursesController) StreamVideo(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	videoID, ok := paramID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Invalid video ID")
	}
	rc, contentType, err := cc.Content.OpenVideo(c.UserContext(), a, videoID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.SendStream(rc)
}
