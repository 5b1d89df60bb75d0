package middleware

import (
	"ber-tracker/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	sessionUserID = "user_id"
	actorKey      = "actor"
)

// InjectActor resolves the session's user on every request, so role
// changes and deletions apply without a new login.
func InjectActor(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uid, ok := sess.Get(sessionUserID).(uint); ok && uid > 0 {
			var user models.User
			if err := db.WithContext(c.Request.Context()).First(&user, uid).Error; err == nil {
				c.Set(actorKey, models.Actor{ID: user.Username, Role: user.Role})
			}
		}

		c.Next()
	}
}

func CurrentActor(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// StartSession records user in the session cookie.
func StartSession(c *gin.Context, user *models.User) error {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(sessionUserID, user.ID)
	sess.Set("username", user.Username)
	sess.Set("role", string(user.Role))
	return sess.Save()
}

func EndSession(c *gin.Context) error {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	return sess.Save()
}
