package handler

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 注册自定义校验标签：notblank、lease_duration
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		// 允许列表由服务层按配置校验，这里只挡住非正数
		_ = v.RegisterValidation("lease_duration", func(fl validator.FieldLevel) bool {
			return fl.Field().Int() > 0
		})
	})
}
