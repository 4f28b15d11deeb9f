package api

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// jwtMiddleware проверяет JWT токен в заголовке Authorization
func (rs *RestServer) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respond(c, http.StatusUnauthorized, "Отсутствует токен авторизации", nil)
			c.Abort()
			return
		}

		// Проверяем формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respond(c, http.StatusUnauthorized, "Неверный формат токена", nil)
			c.Abort()
			return
		}

		claims, err := rs.tokens.Validate(parts[1])
		if err != nil {
			rs.log.Debug("Отклонён токен: %v", err)
			respond(c, http.StatusUnauthorized, "Недействительный токен", nil)
			c.Abort()
			return
		}

		// Сохраняем информацию о пользователе в контексте
		c.Set("subject", claims.Subject)
		c.Set("is_admin", claims.IsAdmin)

		c.Next()
	}
}

// adminMiddleware проверяет, что пользователь является администратором
func (rs *RestServer) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("is_admin") {
			respond(c, http.StatusForbidden, "Недостаточно прав доступа", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// maxWorldNameLen предельная длина имени мира в рунах
const maxWorldNameLen = 64

// validWorldName допускает буквы, цифры и символы _ - . :
func validWorldName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > maxWorldNameLen {
		return false
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_-.:", r) {
			continue
		}
		return false
	}
	return true
}

// worldNameMiddleware отклоняет запросы с недопустимым :world
func worldNameMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name, ok := c.Params.Get("world"); ok && !validWorldName(name) {
			respond(c, http.StatusBadRequest, "Недопустимое имя мира", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
