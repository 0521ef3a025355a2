package admin

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-quota/errcode"
)

// ModuleCode admin error module code
const ModuleCode = 43

var (
	ErrQuotaNotStarted = errcode.Register(errcode.New(ModuleCode, 1, "admin", "QUOTA_NOT_STARTED",
		"Quota engine is not running", http.StatusServiceUnavailable))

	ErrCategoryNotFound = errcode.Register(errcode.New(ModuleCode, 2, "admin", "CATEGORY_NOT_FOUND",
		"Unknown quota category", http.StatusNotFound))

	ErrTierTableRejected = errcode.Register(errcode.New(ModuleCode, 3, "admin", "TIER_TABLE_REJECTED",
		"Tier table rejected", http.StatusBadRequest))

	ErrPersistFailed = errcode.Register(errcode.New(ModuleCode, 4, "admin", "PERSIST_FAILED",
		"Tier table applied but could not be persisted", http.StatusInternalServerError))

	ErrSubscriptionsDisabled = errcode.Register(errcode.New(ModuleCode, 5, "admin", "SUBSCRIPTIONS_DISABLED",
		"Subscription storage is not configured", http.StatusNotImplemented))
)
