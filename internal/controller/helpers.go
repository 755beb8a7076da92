package controller

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// parseID 解析路径中的数字 id，非法时返回 0
func parseID(ctx *gin.Context, name string) uint {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// pagination 解析 page/limit 查询参数并给出缺省值
func pagination(ctx *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// isStaff 教学或管理角色
func isStaff(claims *util.Claims) bool {
	return claims != nil && (claims.Role == model.Instructor || claims.Role == model.Admin)
}
