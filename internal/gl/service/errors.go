package service

import (
	"errors"

	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
)

// 引擎错误分类。校验类错误直接返回调用方修正输入，永不自动重试；
// AlreadyPosted/AlreadySettled 是幂等信号而非故障；
// ErrImbalancedEntry 表示构造算法本身出错，必须向上传播，不得吞掉。
var (
	ErrNotFound                 = repository.ErrNotFound
	ErrAlreadyPosted            = errors.New("source transaction already posted")
	ErrAlreadySettled           = errors.New("period already settled")
	ErrMissingAccountMapping    = errors.New("required account mapping is not set")
	ErrMissingRequiredDimension = errors.New("required dimension is not assigned")
	ErrImbalancedEntry          = errors.New("constructed posting batch does not balance")
	ErrInvalidPeriod            = errors.New("invalid period, expected YYYY-MM")
	ErrInvalidThreshold         = errors.New("variance threshold must not be negative")
	ErrAccountNotPostable       = errors.New("account is not a postable detail account")
	ErrAlreadyReversed          = errors.New("posting batch already reversed")
	ErrNothingToSettle          = errors.New("no control account balance to settle for period")
	ErrInvalidAmount            = errors.New("payment amount must be positive and not exceed outstanding")
	ErrAccountInUse             = errors.New("account has ledger lines or child accounts and cannot be deleted")
	ErrControlAccount           = errors.New("control account cannot be deactivated or deleted")
)

// IsValidationError 是否为应由调用方修正输入的校验类错误
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMissingAccountMapping) ||
		errors.Is(err, ErrMissingRequiredDimension) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, ErrAccountNotPostable) ||
		errors.Is(err, ErrInvalidAmount)
}
