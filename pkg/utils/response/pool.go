package response

import "sync"

// responsePool reuses Response values across requests to reduce allocations
// on the hot response-writing path.
var responsePool = sync.Pool{
	New: func() interface{} {
		return &Response{}
	},
}

// Acquire returns a zeroed Response from the pool.
// Callers must pass the Response to Release when done with it.
func Acquire() *Response {
	return responsePool.Get().(*Response)
}

// Release resets the Response and returns it to the pool.
// The Response must not be used after Release.
func Release(r *Response) {
	if r == nil {
		return
	}
	r.Code = 0
	r.Reason = ""
	r.HTTPCode = 0
	r.Message = ""
	r.Data = nil
	r.RequestID = ""
	r.Timestamp = 0
	responsePool.Put(r)
}
