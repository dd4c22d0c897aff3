package model

// IonAPIContext is the cached OAuth client context: where the ION gateway
// lives and the bearer token to present. The base URL is resolved once and
// memoized; the token is replaced in place on refresh.
type IonAPIContext struct {
	BaseURL string `json:"baseUrl"`
	Token   string `json:"token"`
}

// IonRequest is an arbitrary HTTP request relative to the resolved ION
// base URL. Source identifies the calling application and is mandatory.
type IonRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
	Source  string            `json:"source"`
	// Retry disables the single transparent retry on 401 when set to
	// false. Nil means retry is allowed.
	Retry *bool `json:"retry,omitempty"`
}

// RetryAllowed reports whether a 401 response may trigger the single
// transparent context refresh and retry.
func (r *IonRequest) RetryAllowed() bool {
	return r.Retry == nil || *r.Retry
}

// IonResponse is the reply of one ION API call.
type IonResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
	// IsRetry marks a response obtained on the transparent second attempt
	// after a 401.
	IsRetry bool `json:"isRetry,omitempty"`
}
