package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const sessionUserKey = "user_id"

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 处理用户注册并自动登录
func (a *API) Register(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	username := strings.TrimSpace(payload.Username)
	if username == "" || len(payload.Password) < 6 {
		respondError(c, http.StatusBadRequest, "用户名不能为空，密码至少 6 位")
		return
	}

	var existing db.User
	if err := a.db.Where("username = ?", username).First(&existing).Error; err == nil {
		respondError(c, http.StatusBadRequest, "用户名已被占用")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}

	user := db.User{Username: username, Password: string(hashed)}
	if err := a.db.Create(&user).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}

	if err := saveUserSession(c, user.ID); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": gin.H{"id": user.ID, "username": user.Username}})
}

// Login 处理用户登录请求
func (a *API) Login(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	// 查找用户
	var user db.User
	if err := a.db.Where("username = ?", strings.TrimSpace(payload.Username)).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(payload.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if err := saveUserSession(c, user.ID); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": user.ID, "username": user.Username}})
}

// Logout 处理用户登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(sessionUserKey)
		if userID == nil {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}

func saveUserSession(c *gin.Context, userID uint) error {
	session := sessions.Default(c)
	session.Set(sessionUserKey, userID)
	return session.Save()
}

// currentUserID 从会话中取出登录用户 ID，未登录时返回 false
func currentUserID(c *gin.Context) (uint, bool) {
	session := sessions.Default(c)
	raw := session.Get(sessionUserKey)
	if raw == nil {
		return 0, false
	}
	id, ok := raw.(uint)
	return id, ok
}
