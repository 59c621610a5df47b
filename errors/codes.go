package errors

// ErrorCode is the machine-readable code returned in error bodies
type ErrorCode int

const (
	ErrorCode_HTTP_OK ErrorCode = 200

	// General
	ErrorCode_INTERNAL          ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT  ErrorCode = 1001
	ErrorCode_NOT_FOUND         ErrorCode = 1002
	ErrorCode_ALREADY_EXISTS    ErrorCode = 1003
	ErrorCode_PERMISSION_DENIED ErrorCode = 1004
	ErrorCode_UNAUTHENTICATED   ErrorCode = 1005
	ErrorCode_FORBIDDEN         ErrorCode = 1006
	ErrorCode_INVALID_PAYLOAD   ErrorCode = 1007
	ErrorCode_CONFLICT          ErrorCode = 1008

	// Authentication
	ErrorCode_AUTH_INVALID_TOKEN ErrorCode = 2000
	ErrorCode_AUTH_TOKEN_EXPIRED ErrorCode = 2001

	// Meetings
	ErrorCode_MEETING_NOT_FOUND       ErrorCode = 3000
	ErrorCode_MEETING_INVALID_STATE   ErrorCode = 3001
	ErrorCode_MEETING_BUSY            ErrorCode = 3002
	ErrorCode_MEETING_AUDIO_MISSING   ErrorCode = 3003
	ErrorCode_MEETING_AUDIO_TOO_LARGE ErrorCode = 3004

	// AI pipeline
	ErrorCode_AI_MISSING_CREDENTIAL  ErrorCode = 4000
	ErrorCode_AI_EXTRACTION_FAILED   ErrorCode = 4001
	ErrorCode_AI_MALFORMED_RESPONSE  ErrorCode = 4002
	ErrorCode_AI_SERVICE_UNAVAILABLE ErrorCode = 4003
	ErrorCode_AI_QUOTA_EXCEEDED      ErrorCode = 4004

	// Export
	ErrorCode_REPORT_EXPORT_FAILED ErrorCode = 5000

	// Integrations
	ErrorCode_INTEGRATION_STORAGE_FAILED ErrorCode = 6000
	ErrorCode_INTEGRATION_CACHE_FAILED   ErrorCode = 6001
)

var codeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:                    "OK",
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                  "NOT_FOUND",
	ErrorCode_ALREADY_EXISTS:             "ALREADY_EXISTS",
	ErrorCode_PERMISSION_DENIED:          "PERMISSION_DENIED",
	ErrorCode_UNAUTHENTICATED:            "UNAUTHENTICATED",
	ErrorCode_FORBIDDEN:                  "FORBIDDEN",
	ErrorCode_INVALID_PAYLOAD:            "INVALID_PAYLOAD",
	ErrorCode_CONFLICT:                   "CONFLICT",
	ErrorCode_AUTH_INVALID_TOKEN:         "AUTH_INVALID_TOKEN",
	ErrorCode_AUTH_TOKEN_EXPIRED:         "AUTH_TOKEN_EXPIRED",
	ErrorCode_MEETING_NOT_FOUND:          "MEETING_NOT_FOUND",
	ErrorCode_MEETING_INVALID_STATE:      "MEETING_INVALID_STATE",
	ErrorCode_MEETING_BUSY:               "MEETING_BUSY",
	ErrorCode_MEETING_AUDIO_MISSING:      "MEETING_AUDIO_MISSING",
	ErrorCode_MEETING_AUDIO_TOO_LARGE:    "MEETING_AUDIO_TOO_LARGE",
	ErrorCode_AI_MISSING_CREDENTIAL:      "AI_MISSING_CREDENTIAL",
	ErrorCode_AI_EXTRACTION_FAILED:       "AI_EXTRACTION_FAILED",
	ErrorCode_AI_MALFORMED_RESPONSE:      "AI_MALFORMED_RESPONSE",
	ErrorCode_AI_SERVICE_UNAVAILABLE:     "AI_SERVICE_UNAVAILABLE",
	ErrorCode_AI_QUOTA_EXCEEDED:          "AI_QUOTA_EXCEEDED",
	ErrorCode_REPORT_EXPORT_FAILED:       "REPORT_EXPORT_FAILED",
	ErrorCode_INTEGRATION_STORAGE_FAILED: "INTEGRATION_STORAGE_FAILED",
	ErrorCode_INTEGRATION_CACHE_FAILED:   "INTEGRATION_CACHE_FAILED",
}

// String returns the symbolic name of the code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
