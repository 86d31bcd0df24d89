package nntp

// Response is the result of a text-bearing command: a status line plus the
// body lines of a multi-line reply, with dot-stuffing already removed. For
// single-line replies Lines is empty.
type Response struct {
	Code    int
	Message string
	Lines   []string
}

// IsSuccess reports a 2xx status code.
func (r Response) IsSuccess() bool { return r.Code >= 200 && r.Code < 300 }

// IsContinuation reports a 3xx status code (more input expected).
func (r Response) IsContinuation() bool { return r.Code >= 300 && r.Code < 400 }

// IsError reports a 4xx or 5xx status code.
func (r Response) IsError() bool { return r.Code >= 400 }

// BinaryResponse carries the raw body bytes of ARTICLE/BODY/HEAD so callers
// avoid UTF-8 validation and per-line allocation on the high-throughput
// download path.
type BinaryResponse struct {
	Code    int
	Message string
	Body    []byte
}

// IsSuccess reports a 2xx status code.
func (r BinaryResponse) IsSuccess() bool { return r.Code >= 200 && r.Code < 300 }

// IsError reports a 4xx or 5xx status code.
func (r BinaryResponse) IsError() bool { return r.Code >= 400 }
