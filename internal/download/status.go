package download

import "net/http"

// RawResponse is a completed request before its body has been looked at.
type RawResponse struct {
	Body       []byte
	StatusCode int
	URL        string
}

// ClassifyStatus passes a 200 response through and turns anything else into a
// *StatusError. These are terminal: a completed request is never retried.
func ClassifyStatus(resp RawResponse) (RawResponse, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		return RawResponse{}, &StatusError{Kind: ErrResourceNotFound, StatusCode: resp.StatusCode, URL: resp.URL}
	case http.StatusForbidden:
		return RawResponse{}, &StatusError{Kind: ErrAccessDenied, StatusCode: resp.StatusCode, URL: resp.URL}
	default:
		return RawResponse{}, &StatusError{Kind: ErrUnexpectedStatus, StatusCode: resp.StatusCode, URL: resp.URL}
	}
}
