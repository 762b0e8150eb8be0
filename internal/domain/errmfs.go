package domain

// Protocol error codes. Stable integers, preserved bit-exact for client
// compatibility with deployed agents.
const (
	CodeAllOK                  = 0
	CodeUnauthenticated        = 1
	CodeCanNotRegisterComputer = 2
	CodeGetMethodNotAllowed    = 3
	CodeCommandNotFound        = 4
	CodeInvalidSignature       = 5
	CodeComputerNotFound       = 6
	CodeDeviceNotFound         = 7
	CodeProjectNotFound        = 8
	CodeUserHaveNotPermission  = 9
	CodeUnsubscribedComputer   = 10
	CodeGeneric                = 100
)

var errinfo = map[int]string{
	CodeAllOK:                  "No errors",
	CodeUnauthenticated:        "User unauthenticated",
	CodeCanNotRegisterComputer: "User can not register computers",
	CodeGetMethodNotAllowed:    "Method GET not allowed",
	CodeCommandNotFound:        "Command not found",
	CodeInvalidSignature:       "Signature is not valid",
	CodeComputerNotFound:       "Computer not found",
	CodeDeviceNotFound:         "Device not found",
	CodeProjectNotFound:        "Project not found",
	CodeUserHaveNotPermission:  "User have not permission",
	CodeUnsubscribedComputer:   "Unsubscribed computer",
	CodeGeneric:                "Generic error",
}

// ErrorInfo returns the canonical message for a protocol error code.
func ErrorInfo(code int) string {
	if info, ok := errinfo[code]; ok {
		return info
	}
	return errinfo[CodeGeneric]
}

// Errmfs is the error envelope payload: {"errmfs": {"code": n, "info": s}}.
type Errmfs struct {
	Code int    `json:"code"`
	Info string `json:"info"`
}

// ErrorEnvelope builds the wire-shape error payload. An empty info falls
// back to the canonical message for the code.
func ErrorEnvelope(code int, info string) map[string]any {
	if info == "" {
		info = ErrorInfo(code)
	}
	return map[string]any{"errmfs": Errmfs{Code: code, Info: info}}
}

// OkEnvelope is ErrorEnvelope(CodeAllOK, ""); handlers with nothing to say
// still answer with a well-formed payload.
func OkEnvelope() map[string]any {
	return ErrorEnvelope(CodeAllOK, "")
}

// EnvelopeCode extracts the error code from a payload, if it is an error
// envelope. Returns CodeAllOK for ordinary payloads.
func EnvelopeCode(payload map[string]any) int {
	raw, ok := payload["errmfs"]
	if !ok {
		return CodeAllOK
	}
	switch v := raw.(type) {
	case Errmfs:
		return v.Code
	case map[string]any:
		// the post-JSON form, after a reply roundtrip
		switch c := v["code"].(type) {
		case int:
			return c
		case float64:
			return int(c)
		}
	}
	return CodeGeneric
}

// IsErrorEnvelope reports whether payload carries a non-ok errmfs block.
func IsErrorEnvelope(payload map[string]any) bool {
	if _, ok := payload["errmfs"]; !ok {
		return false
	}
	return EnvelopeCode(payload) != CodeAllOK
}
