package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoles_DropsUnknownAndDuplicates(t *testing.T) {
	roles := ParseRoles([]string{"learner", "superuser", "learner", "admin"})
	assert.Equal(t, []Role{RoleLearner, RoleAdmin}, roles)
}

func TestRoleRoomsAndTopics(t *testing.T) {
	assert.Equal(t, "admins", RoleAdmin.Room())
	assert.Equal(t, "lecturers", RoleLecturer.Room())
	assert.Equal(t, "learners", RoleLearner.Room())
	assert.Equal(t, "", Role("guest").Room())
	assert.Equal(t, TopicLecturers, RoleLecturer.Topic())
}

func TestTopicsForRoles_AlwaysIncludesAllUsers(t *testing.T) {
	assert.Equal(t, []Topic{TopicAllUsers}, TopicsForRoles(nil))
	assert.Equal(t, []Topic{TopicAllUsers, TopicAdmins, TopicLearners}, TopicsForRoles([]Role{RoleAdmin, RoleLearner}))
}

func TestNotificationQuery_Skip(t *testing.T) {
	assert.Equal(t, 0, NotificationQuery{Page: 1, Limit: 10}.Skip())
	assert.Equal(t, 20, NotificationQuery{Page: 3, Limit: 10}.Skip())
	assert.Equal(t, 0, NotificationQuery{Page: 0, Limit: 10}.Skip())
}

func TestNotificationQuery_SkipSaturatesOnHugePage(t *testing.T) {
	q := NotificationQuery{Page: math.MaxInt/50 + 1, Limit: 100}
	assert.Equal(t, math.MaxInt, q.Skip())
}

func TestNotificationType_Valid(t *testing.T) {
	assert.True(t, NotificationLecturerApproved.Valid())
	assert.False(t, NotificationType("birthday").Valid())
}

func TestNotificationTemplate_For(t *testing.T) {
	tpl := NotificationTemplate{Type: NotificationSystem, Title: "t", Message: "m", TargetRole: RoleLearner}
	n := tpl.For("u1")
	assert.Equal(t, "u1", n.Recipient)
	assert.Equal(t, NotificationSystem, n.Type)
	assert.Equal(t, RoleLearner, n.TargetRole)
	assert.False(t, n.Read)
	assert.Empty(t, n.NotificationID)
}
