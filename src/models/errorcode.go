package models

// ErrorCode is the closed set of protocol error codes carried by error
// frames. OK doubles as the generic "acknowledged" code for replies that
// have nothing else to report.
type ErrorCode int

const CodeOK ErrorCode = 0

const (
	CodeUnauthenticated ErrorCode = iota + 100
	CodeConversationClosed
	CodeSchemaError
	CodeUnimplemented
	CodeConversationNotInitialized
	CodeAuthenticationTimeout
	CodeAuthFailUserInactive
	CodeAuthFailInvalidToken
	CodeInactivenessTimeout

	// KEEP LAST
	CodeUnknownError
)

var errorCodeNames = map[ErrorCode]string{
	CodeOK:                         "OK",
	CodeUnauthenticated:            "UNAUTHENTICATED",
	CodeConversationClosed:         "CONVERSATION_CLOSED",
	CodeSchemaError:                "SCHEMA_ERROR",
	CodeUnimplemented:              "UNIMPLEMENTED",
	CodeConversationNotInitialized: "CONVERSATION_NOT_INITIALIZED",
	CodeAuthenticationTimeout:      "AUTHENTICATION_TIMEOUT",
	CodeAuthFailUserInactive:       "AUTH_FAIL_USER_INACTIVE",
	CodeAuthFailInvalidToken:       "AUTH_FAIL_INVALID_TOKEN",
	CodeInactivenessTimeout:        "INACTIVENESS_TIMEOUT",
	CodeUnknownError:               "UNKNOWN_ERROR",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return errorCodeNames[CodeUnknownError]
}
