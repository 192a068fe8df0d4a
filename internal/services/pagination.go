package services

import "github.com/tbourn/go-messenger-bot/internal/utils"

// pageBounds applies defaults for invalid page/pageSize and returns the
// resulting offset and limit.
func pageBounds(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = utils.DefaultPage
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	return (page - 1) * pageSize, pageSize
}
