package services

import (
	"context"
	"testing"

	"learnhub/backend/apperr"
	"learnhub/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidPublishedCourse(t *testing.T, f *fixture, price float64) *models.Course {
	t.Helper()
	ctx := context.Background()
	c, err := f.content.CreateCourse(ctx, f.instructor, CourseInput{Title: "Paid", CategoryID: f.category.ID, IsPaid: true, Price: &price})
	require.NoError(t, err)
	f.appendVideos(t, c.ID, 1)
	_, err = f.content.SetPublished(ctx, f.instructor, c.ID, true)
	require.NoError(t, err)
	return c
}

func TestEnrollFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, f.instructor)

	_, err := f.enroll.EnrollFree(ctx, f.learner.UserID, c.ID)
	assert.ErrorIs(t, err, apperr.ErrCourseNotFound, "unpublished courses are hidden")

	f.appendVideos(t, c.ID, 1)
	_, err = f.content.SetPublished(ctx, f.instructor, c.ID, true)
	require.NoError(t, err)

	_, err = f.enroll.EnrollFree(ctx, f.learner.UserID, c.ID)
	require.NoError(t, err)
	_, err = f.enroll.EnrollFree(ctx, f.learner.UserID, c.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyEnrolled)

	mine, err := f.enroll.MyEnrollments(ctx, f.learner.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].CourseID)

	paid := paidPublishedCourse(t, f, 20)
	_, err = f.enroll.EnrollFree(ctx, f.learner.UserID, paid.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestPurchaseAndSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := paidPublishedCourse(t, f, 20)

	payment, err := f.enroll.InitiatePurchase(ctx, f.learner.UserID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, 20.0, payment.Amount)

	_, err = f.enroll.Settle(ctx, payment.TransactionID, true, []byte("not json"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	settled, err := f.enroll.Settle(ctx, payment.TransactionID, true, []byte(`{"val_id":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, settled.Status)

	again, err := f.enroll.Settle(ctx, payment.TransactionID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, again.Status)

	_, err = f.enroll.Settle(ctx, payment.TransactionID, false, nil)
	assert.ErrorIs(t, err, apperr.ErrPaymentAlreadyDone)

	var enrollments int64
	require.NoError(t, f.db.Model(&models.Enrollment{}).Where("user_id = ? AND course_id = ?", f.learner.UserID, c.ID).Count(&enrollments).Error)
	assert.Equal(t, int64(1), enrollments)

	_, err = f.enroll.InitiatePurchase(ctx, f.learner.UserID, c.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyEnrolled)

	_, err = f.enroll.Settle(ctx, "missing", true, nil)
	assert.ErrorIs(t, err, apperr.ErrPaymentNotFound)
}

func TestFailedPaymentDoesNotEnroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := paidPublishedCourse(t, f, 15)

	payment, err := f.enroll.InitiatePurchase(ctx, f.learner.UserID, c.ID)
	require.NoError(t, err)
	failed, err := f.enroll.Settle(ctx, payment.TransactionID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.Status)

	mine, err := f.enroll.MyEnrollments(ctx, f.learner.UserID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}
