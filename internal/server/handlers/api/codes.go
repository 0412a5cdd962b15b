package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeUnauthorized   = "E_UNAUTHORIZED"    // missing or invalid credentials
	CodeBodyTooLarge   = "E_BODY_TOO_LARGE"  // request body over the configured limit

	// Store errors
	CodeStoreUnavailable  = "E_STORE_UNAVAILABLE" // the first-seen transaction could not complete, retry
	CodeFolderNotFound    = "E_FOLDER_NOT_FOUND"  // no record for the folder key
	CodeFolderListFailed  = "E_FOLDER_LIST_FAILED"
	CodeFolderPurgeFailed = "E_FOLDER_PURGE_FAILED"

	// Completion pass errors
	CodeCompletionDisabled = "E_COMPLETION_DISABLED"
	CodeCompletionFailed   = "E_COMPLETION_FAILED"
)
